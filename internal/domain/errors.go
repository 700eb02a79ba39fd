package domain

import "errors"

var (
	// ErrSegmentation signals that a document could not be turned into text or chunks.
	ErrSegmentation = errors.New("segmentation error")
	// ErrEmbeddingService signals an embedding provider failure.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrIndexService signals a vector index backend failure.
	ErrIndexService = errors.New("index service error")
	// ErrIndexDimensionMismatch signals an existing index whose dimension or metric
	// differs from the configured one.
	ErrIndexDimensionMismatch = errors.New("index dimension mismatch")
	// ErrLanguageModel signals a language model failure.
	ErrLanguageModel = errors.New("language model error")
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionNotFound signals an unknown or closed session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrVectorDimMismatch signals a vector whose length differs from the index dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)

// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
// It matches ErrEmbeddingService under errors.Is.
var ErrEmbeddingQuotaExceeded error = &quotaError{}

type quotaError struct{}

func (*quotaError) Error() string { return "embedding quota exceeded" }

func (*quotaError) Unwrap() error { return ErrEmbeddingService }
