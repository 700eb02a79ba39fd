package health

import "context"

// DBPinger is any backing store that answers a liveness ping: the Redis/Valkey
// database, a standalone vector index, the chat log.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker reports whether the embedding provider is reachable.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
