// Package vector is the index gateway over Redis/Valkey FT search.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docsage/internal/db"
	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// store is the consumer interface for vector records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo stores chunk vectors as hashes under one FT index per IndexSpec.
type Repo struct {
	store store
	spec  domain.IndexSpec
	hnsw  HNSWConfig
}

// New creates a vector repository bound to spec.
func New(s store, spec domain.IndexSpec) *Repo {
	return &Repo{store: s, spec: spec, hnsw: HNSWConfig{M: 16, EFConstruct: 200}}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Spec returns the index the repository writes to.
func (r *Repo) Spec() domain.IndexSpec { return r.spec }

// EnsureIndex creates the index for spec if it does not exist.
// An existing index with another dimension or metric is ErrIndexDimensionMismatch.
func (r *Repo) EnsureIndex(ctx context.Context, spec domain.IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	key := metaKey(spec.Name)

	meta, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: hgetall %s: %w", domain.ErrIndexService, key, err)
	}
	if len(meta) > 0 {
		existing, err := specFromHash(meta)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrIndexService, err)
		}
		if existing.Dimension != spec.Dimension || !strings.EqualFold(existing.Metric, metricOrDefault(spec.Metric)) {
			return fmt.Errorf("%w: index %s has dimension %d/%s, configured %d/%s",
				domain.ErrIndexDimensionMismatch, spec.Name,
				existing.Dimension, existing.Metric, spec.Dimension, metricOrDefault(spec.Metric))
		}
	}

	def, err := buildIndex(spec, r.hnsw)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("%w: check index %s: %w", domain.ErrIndexService, def.Name, err)
	}
	if !exists {
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("%w: create index %s: %w", domain.ErrIndexService, def.Name, err)
		}
	}

	if len(meta) == 0 {
		if err := r.store.HSet(ctx, key, specToHash(spec)); err != nil {
			return fmt.Errorf("%w: hset %s: %w", domain.ErrIndexService, key, err)
		}
	}
	return nil
}

// Upsert writes records into ns. Re-writing an id overwrites it.
func (r *Repo) Upsert(ctx context.Context, ns namespace.Namespace, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if len(rec.Embedding) != r.spec.Dimension {
			return fmt.Errorf("%w: record %s: %w: got %d, want %d", domain.ErrIndexService,
				rec.ID, domain.ErrVectorDimMismatch, len(rec.Embedding), r.spec.Dimension)
		}
		items[i] = db.HashSetItem{
			Key: recordKey(r.spec.Name, ns, rec.ID),
			Fields: map[string]string{
				fieldID:        rec.ID,
				fieldNamespace: string(ns),
				fieldFilename:  rec.Metadata.Filename,
				fieldText:      rec.Metadata.Text,
				fieldVector:    string(db.EncodeVector(rec.Embedding)),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("%w: upsert %d records: %w", domain.ErrIndexService, len(items), err)
	}
	return nil
}

// Query returns up to topK records of ns closest to vec, best first.
func (r *Repo) Query(ctx context.Context, ns namespace.Namespace, vec []float32, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(r.spec.Name),
		Tags:         []db.TagFilter{{Field: fieldNamespace, Value: string(ns)}},
		Vector:       vec,
		K:            topK,
		ReturnFields: []string{fieldID, fieldFilename, fieldText},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn %s: %w", domain.ErrIndexService, ns, err)
	}
	if res == nil {
		return nil, nil
	}

	matches := make([]domain.Match, 0, len(res.Entries))
	for _, e := range res.Entries {
		id := e.Fields[fieldID]
		if id == "" {
			id = e.Key[strings.LastIndexByte(e.Key, ':')+1:]
		}
		matches = append(matches, domain.Match{
			ID:       id,
			Text:     e.Fields[fieldText],
			Filename: e.Fields[fieldFilename],
			Score:    e.Score,
		})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

// Count returns the number of records stored in ns.
func (r *Repo) Count(ctx context.Context, ns namespace.Namespace) (int, error) {
	keys, err := r.store.Scan(ctx, recordKey(r.spec.Name, ns, "*"))
	if err != nil {
		return 0, fmt.Errorf("%w: scan %s: %w", domain.ErrIndexService, ns, err)
	}
	return len(keys), nil
}

func metricOrDefault(m string) string {
	if m == "" {
		return domain.MetricCosine
	}
	return m
}
