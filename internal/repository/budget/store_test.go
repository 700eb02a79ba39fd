package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/docsage/internal/db"
)

type mockStore struct {
	data      map[string][]byte
	incrCalls []string
	expireTTL map[string]time.Duration
	getErr    error
	incrErr   error
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) IncrBy(_ context.Context, key string, _ int64) error {
	m.incrCalls = append(m.incrCalls, key)
	return m.incrErr
}

func (m *mockStore) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if !nx {
		return errors.New("expected NX expire")
	}
	if m.expireTTL == nil {
		m.expireTTL = map[string]time.Duration{}
	}
	m.expireTTL[key] = ttl
	return nil
}

func TestIncrBy_SetsTTL(t *testing.T) {
	ms := &mockStore{}
	s := New(ms)

	if err := s.IncrBy(context.Background(), "k", 10, 48*time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.incrCalls) != 1 {
		t.Fatalf("expected 1 INCRBY, got %d", len(ms.incrCalls))
	}
	if ms.expireTTL["k"] != 48*time.Hour {
		t.Errorf("ttl = %v", ms.expireTTL["k"])
	}
}

func TestIncrBy_NoTTL(t *testing.T) {
	ms := &mockStore{}
	if err := New(ms).IncrBy(context.Background(), "k", 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ms.expireTTL) != 0 {
		t.Error("EXPIRE must not be sent without ttl")
	}
}

func TestIncrBy_Error(t *testing.T) {
	ms := &mockStore{incrErr: errors.New("down")}
	if err := New(ms).IncrBy(context.Background(), "k", 1, time.Hour); err == nil {
		t.Fatal("expected error")
	}
}

func TestGet(t *testing.T) {
	ms := &mockStore{data: map[string][]byte{"k": []byte("42"), "bad": []byte("x")}}
	s := New(ms)
	ctx := context.Background()

	if v, err := s.Get(ctx, "k"); err != nil || v != 42 {
		t.Errorf("Get(k) = %d, %v", v, err)
	}
	if v, err := s.Get(ctx, "missing"); err != nil || v != 0 {
		t.Errorf("Get(missing) = %d, %v", v, err)
	}
	if _, err := s.Get(ctx, "bad"); err == nil {
		t.Error("expected parse error")
	}
}
