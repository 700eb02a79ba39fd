// Package chromem is an embedded index gateway on chromem-go.
// Each (index, namespace) pair is its own collection; the DB lives in memory
// or is persisted to a directory.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	cm "github.com/philippgille/chromem-go"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

const (
	metaIDKey       = "id"
	metaFilenameKey = "filename"
	specDocID       = "spec"
)

var errNoEmbeddingFunc = errors.New("chromem: embeddings must be supplied by the caller")

// Index implements the index gateway over chromem-go.
type Index struct {
	db   *cm.DB
	spec domain.IndexSpec
	mu   sync.Mutex
}

// Open creates an index bound to spec. An empty path keeps everything in memory.
func Open(path string, compress bool, spec domain.IndexSpec) (*Index, error) {
	if path == "" {
		return &Index{db: cm.NewDB(), spec: spec}, nil
	}
	db, err := cm.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("%w: open chromem db %s: %w", domain.ErrIndexService, path, err)
	}
	return &Index{db: db, spec: spec}, nil
}

// Spec returns the index the gateway writes to.
func (x *Index) Spec() domain.IndexSpec { return x.spec }

// EnsureIndex records spec in a metadata collection. A recorded spec with
// another dimension or metric is ErrIndexDimensionMismatch.
func (x *Index) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	metric := spec.Metric
	if metric == "" {
		metric = domain.MetricCosine
	}
	if !strings.EqualFold(metric, domain.MetricCosine) {
		return fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, spec.Metric)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	col, err := x.db.GetOrCreateCollection(metaCollection(spec.Name), nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("%w: meta collection %s: %w", domain.ErrIndexService, spec.Name, err)
	}

	if col.Count() > 0 {
		doc, err := col.GetByID(ctx, specDocID)
		if err != nil {
			return fmt.Errorf("%w: read spec %s: %w", domain.ErrIndexService, spec.Name, err)
		}
		dim, _ := strconv.Atoi(doc.Metadata["dimension"])
		if dim != spec.Dimension || !strings.EqualFold(doc.Metadata["metric"], metric) {
			return fmt.Errorf("%w: index %s has dimension %d/%s, configured %d/%s",
				domain.ErrIndexDimensionMismatch, spec.Name,
				dim, doc.Metadata["metric"], spec.Dimension, metric)
		}
		return nil
	}

	err = col.AddDocument(ctx, cm.Document{
		ID: specDocID,
		Metadata: map[string]string{
			"dimension": strconv.Itoa(spec.Dimension),
			"metric":    metric,
		},
		Embedding: []float32{1},
		Content:   spec.Name,
	})
	if err != nil {
		return fmt.Errorf("%w: write spec %s: %w", domain.ErrIndexService, spec.Name, err)
	}
	return nil
}

// Upsert writes records into the collection of ns. Existing ids are replaced.
func (x *Index) Upsert(ctx context.Context, ns namespace.Namespace, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]cm.Document, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != x.spec.Dimension {
			return fmt.Errorf("%w: record %s: %w: got %d, want %d", domain.ErrIndexService,
				rec.ID, domain.ErrVectorDimMismatch, len(rec.Embedding), x.spec.Dimension)
		}
		// chromem normalizes embeddings in place
		emb := make([]float32, len(rec.Embedding))
		copy(emb, rec.Embedding)
		docs[i] = cm.Document{
			ID:      rec.ID,
			Content: rec.Metadata.Text,
			Metadata: map[string]string{
				metaIDKey:       rec.ID,
				metaFilenameKey: rec.Metadata.Filename,
			},
			Embedding: emb,
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	col, err := x.db.GetOrCreateCollection(collectionName(x.spec.Name, ns), nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("%w: collection %s: %w", domain.ErrIndexService, ns, err)
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("%w: add %d documents: %w", domain.ErrIndexService, len(docs), err)
	}
	return nil
}

// Query returns up to topK documents of ns closest to vec, best first.
// A namespace without documents yields no matches.
func (x *Index) Query(ctx context.Context, ns namespace.Namespace, vec []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	if len(vec) != x.spec.Dimension {
		return nil, fmt.Errorf("%w: query: %w: got %d, want %d", domain.ErrIndexService,
			domain.ErrVectorDimMismatch, len(vec), x.spec.Dimension)
	}

	col := x.db.GetCollection(collectionName(x.spec.Name, ns), noEmbedding)
	if col == nil {
		return nil, nil
	}
	n := col.Count()
	if n == 0 {
		return nil, nil
	}
	// chromem requires nResults <= document count
	if topK > n {
		topK = n
	}

	q := make([]float32, len(vec))
	copy(q, vec)
	res, err := col.QueryEmbedding(ctx, q, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %w", domain.ErrIndexService, ns, err)
	}

	matches := make([]domain.Match, 0, len(res))
	for _, r := range res {
		matches = append(matches, domain.Match{
			ID:       r.ID,
			Text:     r.Content,
			Filename: r.Metadata[metaFilenameKey],
			Score:    float64(r.Similarity),
		})
	}
	return matches, nil
}

// Count returns the number of documents stored in ns.
func (x *Index) Count(_ context.Context, ns namespace.Namespace) (int, error) {
	col := x.db.GetCollection(collectionName(x.spec.Name, ns), noEmbedding)
	if col == nil {
		return 0, nil
	}
	return col.Count(), nil
}

// Ping always succeeds: the index lives in process.
func (x *Index) Ping(context.Context) error { return nil }

// Close is a no-op: persistent DBs write through on every change.
func (x *Index) Close() error { return nil }

func collectionName(index string, ns namespace.Namespace) string {
	return index + ":" + string(ns)
}

func metaCollection(index string) string {
	return index + ":meta"
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbeddingFunc
}
