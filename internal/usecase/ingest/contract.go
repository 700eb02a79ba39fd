package ingest

import (
	"context"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// Extractor turns document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, doc domain.Document) (string, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index writes vector records into a namespace.
type Index interface {
	Upsert(ctx context.Context, ns namespace.Namespace, records []domain.VectorRecord) error
}

// ChatLog persists chat turns.
type ChatLog interface {
	Append(ctx context.Context, turn domain.ChatTurn) error
}
