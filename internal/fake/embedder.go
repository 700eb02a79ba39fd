package fake

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/kailas-cloud/docsage/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Embedder maps text to an L2-normalized hashed bag of words.
// Texts sharing words get a positive cosine similarity.
type Embedder struct {
	dim int
	err error

	mu    sync.Mutex
	calls int
}

// NewEmbedder creates an embedder producing dim-sized vectors.
func NewEmbedder(dim int) *Embedder {
	return &Embedder{dim: dim}
}

// WithError makes every call fail with err wrapped in ErrEmbeddingService.
func (e *Embedder) WithError(err error) *Embedder {
	e.err = err
	return e
}

// Calls returns how many provider calls were made.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed vectorizes one text.
func (e *Embedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	e.count()
	if e.err != nil {
		return domain.EmbeddingResult{}, wrapEmbed(e.err)
	}
	vec, tokens := e.vector(text)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: tokens, TotalTokens: tokens}, nil
}

// BatchEmbed vectorizes texts in input order in one call.
func (e *Embedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	e.count()
	if e.err != nil {
		return domain.BatchEmbeddingResult{}, wrapEmbed(e.err)
	}
	res := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, t := range texts {
		vec, tokens := e.vector(t)
		res.Embeddings[i] = vec
		res.PromptTokens += tokens
		res.TotalTokens += tokens
	}
	return res, nil
}

// HealthCheck always succeeds unless an error was configured.
func (e *Embedder) HealthCheck(context.Context) error {
	if e.err != nil {
		return wrapEmbed(e.err)
	}
	return nil
}

func (e *Embedder) count() {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
}

func (e *Embedder) vector(text string) ([]float32, int) {
	vec := make([]float32, e.dim)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		idx := int(sum % uint32(e.dim)) //nolint:gosec // dim is positive
		if sum&(1<<31) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// empty text still needs a valid unit vector
		vec[0] = 1
		return vec, len(tokens)
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, len(tokens)
}
