package vector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docsage/internal/db"
	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
)

// Hash field names of a stored record.
const (
	fieldID        = "id"
	fieldNamespace = "namespace"
	fieldFilename  = "filename"
	fieldText      = "text"
	fieldVector    = "vector"
)

// Metadata hash fields.
const (
	metaDimension = "dimension"
	metaMetric    = "metric"
)

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// buildIndex creates the FT definition for spec. Namespace and filename are
// TAG fields so KNN can pre-filter on them; text is stored but not indexed.
func buildIndex(spec domain.IndexSpec, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	metric, err := distanceMetric(spec.Metric)
	if err != nil {
		return nil, err
	}
	def, err := db.NewIndex(indexName(spec.Name)).
		Prefix(recordPrefix(spec.Name)).
		TagWithOpts(fieldNamespace, ",", true).
		TagWithOpts(fieldFilename, "|", true).
		VectorHNSW(fieldVector, spec.Dimension, metric, hnsw.M, hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", spec.Name, err)
	}
	return def, nil
}

func distanceMetric(m string) (db.DistanceMetric, error) {
	switch strings.ToLower(m) {
	case "", domain.MetricCosine:
		return db.DistanceCosine, nil
	default:
		return "", fmt.Errorf("unsupported metric %q", m)
	}
}

func specFromHash(m map[string]string) (domain.IndexSpec, error) {
	dim, err := strconv.Atoi(m[metaDimension])
	if err != nil {
		return domain.IndexSpec{}, fmt.Errorf("parse dimension %q: %w", m[metaDimension], err)
	}
	return domain.IndexSpec{Dimension: dim, Metric: m[metaMetric]}, nil
}

func specToHash(spec domain.IndexSpec) map[string]string {
	metric := spec.Metric
	if metric == "" {
		metric = domain.MetricCosine
	}
	return map[string]string{
		metaDimension: strconv.Itoa(spec.Dimension),
		metaMetric:    metric,
	}
}

// Key patterns: docsage:index:{name}, docsage:idx:{name}, docsage:vec:{name}:{ns}:{id}

func metaKey(name string) string {
	return fmt.Sprintf("%sindex:%s", domain.KeyPrefix, name)
}

func indexName(name string) string {
	return fmt.Sprintf("%sidx:%s", domain.KeyPrefix, name)
}

func recordPrefix(name string) string {
	return fmt.Sprintf("%svec:%s:", domain.KeyPrefix, name)
}

func recordKey(name string, ns namespace.Namespace, id string) string {
	return recordPrefix(name) + string(ns) + ":" + id
}
