package ingest

import (
	"context"
	"sync"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

type mockExtractor struct {
	calls int
	err   error
}

func (m *mockExtractor) Extract(_ context.Context, doc domain.Document) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return string(doc.Content), nil
}

type mockIndex struct {
	mu      sync.Mutex
	upserts map[namespace.Namespace][]domain.VectorRecord
	calls   int
	err     error
}

func newMockIndex() *mockIndex {
	return &mockIndex{upserts: make(map[namespace.Namespace][]domain.VectorRecord)}
}

func (m *mockIndex) Upsert(_ context.Context, ns namespace.Namespace, records []domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.upserts[ns] = append(m.upserts[ns], records...)
	return nil
}

// batchCountingEmbedder counts BatchEmbed calls and can fail on a given text.
type batchCountingEmbedder struct {
	batchCalls int
	dim        int
	err        error
}

func (m *batchCountingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, m.dim), TotalTokens: 1}, nil
}

func (m *batchCountingEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchCalls++
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	res := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i := range texts {
		v := make([]float32, m.dim)
		v[0] = float32(i + 1)
		res.Embeddings[i] = v
		res.TotalTokens++
	}
	return res, nil
}
