package fake

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// Index is a brute-force cosine index held in memory.
type Index struct {
	spec domain.IndexSpec

	mu      sync.RWMutex
	created *domain.IndexSpec
	records map[namespace.Namespace]map[string]domain.VectorRecord
	order   map[namespace.Namespace][]string
	err     error
}

// NewIndex creates an empty index bound to spec.
func NewIndex(spec domain.IndexSpec) *Index {
	return &Index{
		spec:    spec,
		records: make(map[namespace.Namespace]map[string]domain.VectorRecord),
		order:   make(map[namespace.Namespace][]string),
	}
}

// WithError makes every call fail with err wrapped in ErrIndexService.
func (x *Index) WithError(err error) *Index {
	x.err = err
	return x
}

// Spec returns the index the gateway writes to.
func (x *Index) Spec() domain.IndexSpec { return x.spec }

// EnsureIndex remembers the first spec and rejects a conflicting one.
func (x *Index) EnsureIndex(_ context.Context, spec domain.IndexSpec) error {
	if x.err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexService, x.err)
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.created == nil {
		s := spec
		x.created = &s
		return nil
	}
	if x.created.Dimension != spec.Dimension || !strings.EqualFold(metric(x.created.Metric), metric(spec.Metric)) {
		return fmt.Errorf("%w: index %s has dimension %d, configured %d",
			domain.ErrIndexDimensionMismatch, spec.Name, x.created.Dimension, spec.Dimension)
	}
	return nil
}

// Upsert stores records in ns, replacing existing ids.
func (x *Index) Upsert(_ context.Context, ns namespace.Namespace, records []domain.VectorRecord) error {
	if x.err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexService, x.err)
	}
	for _, rec := range records {
		if len(rec.Embedding) != x.spec.Dimension {
			return fmt.Errorf("%w: record %s: %w: got %d, want %d", domain.ErrIndexService,
				rec.ID, domain.ErrVectorDimMismatch, len(rec.Embedding), x.spec.Dimension)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	bucket, ok := x.records[ns]
	if !ok {
		bucket = make(map[string]domain.VectorRecord)
		x.records[ns] = bucket
	}
	for _, rec := range records {
		if _, exists := bucket[rec.ID]; !exists {
			x.order[ns] = append(x.order[ns], rec.ID)
		}
		bucket[rec.ID] = rec
	}
	return nil
}

// Query ranks the records of ns by cosine similarity to vec.
// Ties keep insertion order.
func (x *Index) Query(_ context.Context, ns namespace.Namespace, vec []float32, topK int) ([]domain.Match, error) {
	if x.err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexService, x.err)
	}
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	ids := x.order[ns]
	matches := make([]domain.Match, 0, len(ids))
	for _, id := range ids {
		rec := x.records[ns][id]
		matches = append(matches, domain.Match{
			ID:       rec.ID,
			Text:     rec.Metadata.Text,
			Filename: rec.Metadata.Filename,
			Score:    cosine(rec.Embedding, vec),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of records in ns.
func (x *Index) Count(_ context.Context, ns namespace.Namespace) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.records[ns]), nil
}

// Close is a no-op.
func (x *Index) Close() error { return nil }

// Ping reports the injected error, if any.
func (x *Index) Ping(context.Context) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.err
}

// Len returns the number of records across all namespaces.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for _, recs := range x.records {
		n += len(recs)
	}
	return n
}

func metric(m string) string {
	if m == "" {
		return domain.MetricCosine
	}
	return m
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
