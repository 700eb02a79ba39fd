package fake

import (
	"context"
	"sync"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// ChatLog keeps chat turns in memory.
type ChatLog struct {
	mu    sync.Mutex
	turns []domain.ChatTurn
	err   error
}

// NewChatLog creates an empty chat log.
func NewChatLog() *ChatLog { return &ChatLog{} }

// WithError makes Append fail with err.
func (l *ChatLog) WithError(err error) *ChatLog {
	l.err = err
	return l
}

// Append records turn.
func (l *ChatLog) Append(_ context.Context, turn domain.ChatTurn) error {
	if l.err != nil {
		return l.err
	}
	if turn.UserID == "" {
		turn.UserID = domain.AnonymousUser
	}
	l.mu.Lock()
	l.turns = append(l.turns, turn)
	l.mu.Unlock()
	return nil
}

// History returns up to limit turns of userID, newest first.
func (l *ChatLog) History(_ context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.ChatTurn
	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].UserID != userID {
			continue
		}
		out = append(out, l.turns[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Turns returns every stored turn in append order.
func (l *ChatLog) Turns() []domain.ChatTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ChatTurn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Ping always succeeds.
func (l *ChatLog) Ping(context.Context) error { return nil }

// Close is a no-op.
func (l *ChatLog) Close() error { return nil }
