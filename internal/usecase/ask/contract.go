package ask

import (
	"context"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// Embedder vectorizes the question.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index finds the records of a namespace closest to a vector.
type Index interface {
	Query(ctx context.Context, ns namespace.Namespace, vec []float32, topK int) ([]domain.Match, error)
}

// Generator produces the answer from the assembled prompt.
type Generator interface {
	Generate(ctx context.Context, p domain.Prompt) (domain.Completion, error)
}

// ChatLog persists chat turns.
type ChatLog interface {
	Append(ctx context.Context, turn domain.ChatTurn) error
}
