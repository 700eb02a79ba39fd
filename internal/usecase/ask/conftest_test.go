package ask

import (
	"context"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

type mockEmbedder struct {
	calls int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 3}, nil
}

type mockIndex struct {
	results map[namespace.Namespace][]domain.Match
	queried []namespace.Namespace
	topKs   []int
	err     error
}

func (m *mockIndex) Query(_ context.Context, ns namespace.Namespace, _ []float32, topK int) ([]domain.Match, error) {
	m.queried = append(m.queried, ns)
	m.topKs = append(m.topKs, topK)
	if m.err != nil {
		return nil, m.err
	}
	res := m.results[ns]
	if len(res) > topK {
		res = res[:topK]
	}
	return res, nil
}
