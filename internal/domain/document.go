package domain

import "time"

// AnonymousUser is the chat log identifier used when no user is signed in.
const AnonymousUser = "anonymous"

// Ingestion sentinel written to the chat log after a document is stored.
const (
	IngestQuestionPrefix = "Processed "
	IngestAnswer         = "Chunks stored"
)

// Document is an uploaded file. Ephemeral, never persisted as a whole.
type Document struct {
	Name        string
	Content     []byte
	ContentType string
}

// Chunk is a bounded-size passage of a document's text.
type Chunk struct {
	Text           string
	SourceFilename string
	SequenceIndex  int
}

// RecordMetadata is stored next to each vector.
type RecordMetadata struct {
	Text     string
	Filename string
}

// VectorRecord is one chunk's embedding as written to the index.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Metadata  RecordMetadata
}

// Match is a single query hit.
type Match struct {
	ID       string
	Text     string
	Filename string
	Score    float64
}

// ChatTurn is one question/answer exchange.
type ChatTurn struct {
	UserID    string
	Question  string
	Answer    string
	Timestamp time.Time
}
