package domain

// KeyPrefix namespaces every key this service writes to Redis/Valkey.
const KeyPrefix = "docsage:"

// Distance metrics supported by the index backends.
const (
	MetricCosine = "cosine"
)

// IndexSpec describes the vector index the pipeline writes to.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    string
}

// DefaultIndexSpec matches text-embedding-ada-002 / text-embedding-3-small output.
func DefaultIndexSpec() IndexSpec {
	return IndexSpec{
		Name:      "docsage-index",
		Dimension: 1536,
		Metric:    MetricCosine,
	}
}

// Pipeline defaults.
const (
	DefaultChunkSize = 500
	DefaultTopK      = 3
	MaxTopK          = 50
)
