package chromem

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

var testSpec = domain.IndexSpec{Name: "docs", Dimension: 3, Metric: domain.MetricCosine}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	x, err := Open("", false, testSpec)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := x.EnsureIndex(context.Background(), testSpec); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	return x
}

func record(id, text string, emb ...float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:        id,
		Embedding: emb,
		Metadata:  domain.RecordMetadata{Text: text, Filename: "a.txt"},
	}
}

func TestEnsureIndex_Idempotent(t *testing.T) {
	x := newTestIndex(t)
	if err := x.EnsureIndex(context.Background(), testSpec); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
}

func TestEnsureIndex_DimensionMismatch(t *testing.T) {
	x := newTestIndex(t)
	other := testSpec
	other.Dimension = 8
	if err := x.EnsureIndex(context.Background(), other); !errors.Is(err, domain.ErrIndexDimensionMismatch) {
		t.Fatalf("expected ErrIndexDimensionMismatch, got %v", err)
	}
}

func TestQuery_RanksBySimilarity(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	ns := namespace.Derive("a.txt")

	err := x.Upsert(ctx, ns, []domain.VectorRecord{
		record("0-a", "alpha", 1, 0, 0),
		record("1-b", "beta", 0, 1, 0),
		record("2-c", "gamma", 0.9, 0.1, 0),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := x.Query(ctx, ns, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Text != "alpha" || got[1].Text != "gamma" {
		t.Errorf("unexpected order: %q, %q", got[0].Text, got[1].Text)
	}
	if got[0].Filename != "a.txt" {
		t.Errorf("filename = %q", got[0].Filename)
	}
}

func TestQuery_EmptyNamespace(t *testing.T) {
	x := newTestIndex(t)
	got, err := x.Query(context.Background(), namespace.Derive("nothing"), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
}

func TestQuery_NamespacesIsolated(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	a, b := namespace.Derive("a.txt"), namespace.Derive("b.txt")

	if err := x.Upsert(ctx, a, []domain.VectorRecord{record("0-a", "alpha", 1, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := x.Query(ctx, b, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("namespace leak: %+v", got)
	}
}

func TestUpsert_IdempotentPerID(t *testing.T) {
	x := newTestIndex(t)
	ctx := context.Background()
	ns := namespace.Derive("a.txt")
	recs := []domain.VectorRecord{record("0-a", "alpha", 1, 0, 0), record("1-b", "beta", 0, 1, 0)}

	for range 2 {
		if err := x.Upsert(ctx, ns, recs); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	n, err := x.Count(ctx, ns)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 records, got %d", n)
	}
}

func TestUpsert_WrongDimension(t *testing.T) {
	x := newTestIndex(t)
	err := x.Upsert(context.Background(), namespace.Derive("a"), []domain.VectorRecord{record("x", "t", 1)})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	ns := namespace.Derive("a.txt")

	x, err := Open(dir, false, testSpec)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := x.EnsureIndex(ctx, testSpec); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := x.Upsert(ctx, ns, []domain.VectorRecord{record("0-a", "alpha", 1, 0, 0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	reopened, err := Open(dir, false, testSpec)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	n, err := reopened.Count(ctx, ns)
	if err != nil || n != 1 {
		t.Fatalf("count after reopen = %d, %v", n, err)
	}
}
