package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsage/internal/domain"
	dombatch "github.com/kailas-cloud/docsage/internal/domain/batch"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
	domusage "github.com/kailas-cloud/docsage/internal/domain/usage"
	logpkg "github.com/kailas-cloud/docsage/internal/logger"
	askuc "github.com/kailas-cloud/docsage/internal/usecase/ask"
	healthuc "github.com/kailas-cloud/docsage/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docsage/internal/usecase/ingest"
	sessionuc "github.com/kailas-cloud/docsage/internal/usecase/session"
	usageuc "github.com/kailas-cloud/docsage/internal/usecase/usage"
)

// DefaultMaxUploadBytes caps a multipart upload body.
const DefaultMaxUploadBytes = 32 << 20

const uploadField = "files"

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers of the DocSage API.
type Server struct {
	sessions       *sessionuc.Registry
	ingest         *ingestuc.Service
	ask            *askuc.Service
	usage          *usageuc.Service
	health         *healthuc.Service
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	sessions *sessionuc.Registry,
	ingest *ingestuc.Service,
	ask *askuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		sessions:       sessions,
		ingest:         ingest,
		ask:            ask,
		usage:          usage,
		health:         health,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorResponseCodeSessionNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingQuotaExceeded,
			http.StatusPaymentRequired, ErrorResponseCodeEmbeddingQuotaExceeded),
		sentinelHandler(domain.ErrEmbeddingService,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrLanguageModel, http.StatusBadGateway, ErrorResponseCodeLanguageModelError),
		sentinelHandler(domain.ErrIndexService, http.StatusBadGateway, ErrorResponseCodeIndexError),
		sentinelHandler(domain.ErrIndexDimensionMismatch, http.StatusBadGateway, ErrorResponseCodeIndexError),
	}
	return s
}

// WithMaxUploadBytes overrides the multipart body limit.
func (s *Server) WithMaxUploadBytes(n int64) *Server {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	sess, err := s.sessions.Create(r.Context(), req.UserID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionToAPI(sess))
}

// DeleteSession handles DELETE /sessions/{id}. It is the logout operation.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadDocuments handles POST /sessions/{id}/documents.
func (s *Server) UploadDocuments(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	r = r.WithContext(logpkg.With(r.Context(), zap.String("session_id", sess.ID())))

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("at least one %q part is required", uploadField))
		return
	}
	if maxFiles := s.ingest.MaxBatch(); len(headers) > maxFiles {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("files count must be between 1 and %d", maxFiles))
		return
	}

	docs := make([]domain.Document, 0, len(headers))
	for _, fh := range headers {
		doc, err := documentFromPart(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
			return
		}
		docs = append(docs, doc)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results := s.ingest.IngestBatch(ctx, sess, docs)

	succeeded, failed := 0, 0
	items := make([]DocumentResultItem, len(results))
	for i, res := range results {
		items[i] = batchResultToAPI(res)
		if res.Status() == dombatch.StatusError {
			failed++
		} else {
			succeeded++
		}
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, UploadDocumentsResponse{
		Results:   items,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// AskQuestion handles POST /sessions/{id}/ask.
func (s *Server) AskQuestion(w http.ResponseWriter, r *http.Request, id string, topK *int) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	r = r.WithContext(logpkg.With(r.Context(), zap.String("session_id", sess.ID())))

	q := askuc.Question{Text: req.Question, Files: req.Files}
	if topK != nil {
		if *topK <= 0 {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "top_k must be positive")
			return
		}
		q.TopK = *topK
	}
	for _, ns := range req.Namespaces {
		q.Namespaces = append(q.Namespaces, namespace.Namespace(ns))
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	ans, err := s.ask.Ask(ctx, sess, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, AskResponse{Answer: ans.Text, Sources: sources})
}

// GetHistory handles GET /sessions/{id}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	turns := sess.History()
	items := make([]HistoryItem, len(turns))
	for i, t := range turns {
		items[i] = HistoryItem{Question: t.Question, Answer: t.Answer, At: t.At.UTC()}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request, period *string) {
	p := domusage.PeriodMonth
	if period != nil {
		parsed, ok := domusage.ParsePeriod(*period)
		if !ok {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "period must be day or month")
			return
		}
		p = parsed
	}

	report := s.usage.GetReport(r.Context(), p)
	resp := UsageResponse{
		Period:          string(report.Period()),
		TokensUsed:      report.TokensUsed(),
		TokensLimit:     report.TokensLimit(),
		TokensRemaining: report.TokensRemaining(),
		IsExhausted:     report.IsExhausted(),
	}
	if report.PeriodStart() > 0 {
		start := time.UnixMilli(report.PeriodStart()).UTC()
		end := time.UnixMilli(report.PeriodEnd()).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func documentFromPart(fh *multipart.FileHeader) (domain.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.Document{}, fmt.Errorf("open part %q: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read part %q: %w", fh.Filename, err)
	}
	return domain.Document{
		Name:        fh.Filename,
		Content:     content,
		ContentType: fh.Header.Get("Content-Type"),
	}, nil
}

func sessionToAPI(sess *sessionuc.Session) SessionResponse {
	return SessionResponse{
		SessionID: sess.ID(),
		UserID:    sess.UserID(),
		Anonymous: sess.Anonymous(),
		CreatedAt: sess.CreatedAt().UTC(),
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.RequestUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrInvalidInput,
		domain.ErrSegmentation,
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingService,
		domain.ErrLanguageModel,
		domain.ErrIndexDimensionMismatch,
		domain.ErrIndexService,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}

func batchResultToAPI(r dombatch.Result) DocumentResultItem {
	item := DocumentResultItem{
		Filename:  r.Filename(),
		Status:    string(r.Status()),
		Namespace: r.Namespace().String(),
		Chunks:    r.Chunks(),
		Skipped:   r.Status() == dombatch.StatusSkipped,
	}
	if r.Err() != nil {
		item.Error = &ErrorResponse{
			Code:    batchErrorCode(r.Err()),
			Message: safeDomainMessage(r.Err()),
		}
	}
	return item
}

func batchErrorCode(err error) ErrorResponseCode {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return ErrorResponseCodeValidationFailed
	case errors.Is(err, domain.ErrSegmentation):
		return ErrorResponseCodeUnsupportedDocument
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return ErrorResponseCodeEmbeddingQuotaExceeded
	case errors.Is(err, domain.ErrEmbeddingService):
		return ErrorResponseCodeEmbeddingProviderError
	case errors.Is(err, domain.ErrIndexService), errors.Is(err, domain.ErrIndexDimensionMismatch):
		return ErrorResponseCodeIndexError
	default:
		return ErrorResponseCodeInternalError
	}
}
