package chi

import "time"

// ErrorResponseCode is a machine-readable error class.
type ErrorResponseCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeSessionNotFound        ErrorResponseCode = "session_not_found"
	ErrorResponseCodeEmbeddingQuotaExceeded ErrorResponseCode = "embedding_quota_exceeded"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeLanguageModelError     ErrorResponseCode = "language_model_error"
	ErrorResponseCodeIndexError             ErrorResponseCode = "index_error"
	ErrorResponseCodeUnsupportedDocument    ErrorResponseCode = "unsupported_document"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	UserID string `json:"user_id"`
}

// SessionResponse describes an open session.
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentResultItem is the outcome for one uploaded file.
type DocumentResultItem struct {
	Filename  string         `json:"filename"`
	Status    string         `json:"status"`
	Namespace string         `json:"namespace,omitempty"`
	Chunks    int            `json:"chunks"`
	Skipped   bool           `json:"skipped"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

// UploadDocumentsResponse is the body of POST /sessions/{id}/documents.
type UploadDocumentsResponse struct {
	Results   []DocumentResultItem `json:"results"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
}

// AskRequest is the body of POST /sessions/{id}/ask.
// Namespaces and Files narrow the search to documents this session ingested.
type AskRequest struct {
	Question   string   `json:"question"`
	Namespaces []string `json:"namespaces,omitempty"`
	Files      []string `json:"files,omitempty"`
}

// AskResponse is the generated answer and its source files.
type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// HistoryItem is one question/answer exchange.
type HistoryItem struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// UsageResponse reports embedding token consumption for a period.
type UsageResponse struct {
	Period          string     `json:"period"`
	PeriodStartAt   *time.Time `json:"period_start_at,omitempty"`
	PeriodEndAt     *time.Time `json:"period_end_at,omitempty"`
	TokensUsed      int64      `json:"tokens_used"`
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
}

// HealthResponse aggregates component checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
