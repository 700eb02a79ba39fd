// Package app wires configuration into a running DocSage pipeline.
// Both the API server and docsagectl build on it.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docsage/internal/config"
	dbChromem "github.com/kailas-cloud/docsage/internal/db/chromem"
	dbQdrant "github.com/kailas-cloud/docsage/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/docsage/internal/db/redis"
	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
	"github.com/kailas-cloud/docsage/internal/extract"
	"github.com/kailas-cloud/docsage/internal/fake"
	"github.com/kailas-cloud/docsage/internal/metrics"
	budgetrepo "github.com/kailas-cloud/docsage/internal/repository/budget"
	chatlogrepo "github.com/kailas-cloud/docsage/internal/repository/chatlog"
	"github.com/kailas-cloud/docsage/internal/repository/embcache"
	"github.com/kailas-cloud/docsage/internal/repository/vector"
	chiTransport "github.com/kailas-cloud/docsage/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/docsage/internal/transport/openai"
	askuc "github.com/kailas-cloud/docsage/internal/usecase/ask"
	embeddinguc "github.com/kailas-cloud/docsage/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docsage/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/docsage/internal/usecase/ingest"
	sessionuc "github.com/kailas-cloud/docsage/internal/usecase/session"
	usageuc "github.com/kailas-cloud/docsage/internal/usecase/usage"
)

// FakeProvider selects the offline embedder and generator.
const FakeProvider = "fake"

// Gateway is the vector index every backend implements.
type Gateway interface {
	Spec() domain.IndexSpec
	EnsureIndex(ctx context.Context, spec domain.IndexSpec) error
	Upsert(ctx context.Context, ns namespace.Namespace, records []domain.VectorRecord) error
	Query(ctx context.Context, ns namespace.Namespace, vec []float32, topK int) ([]domain.Match, error)
	Count(ctx context.Context, ns namespace.Namespace) (int, error)
}

// App holds the assembled services. Close releases every connection it opened.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store    *dbRedis.Store
	index    Gateway
	embedder domain.Embedder
	chatlog  *chatlogrepo.Repo

	Sessions *sessionuc.Registry
	Ingest   *ingestuc.Service
	Ask      *askuc.Service
	Usage    *usageuc.Service
	Health   *healthuc.Service

	closers []func() error
}

// New builds the pipeline described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	if cfg.Database.Enabled() {
		if err := a.openStore(ctx); err != nil {
			return nil, err
		}
	}

	if err := a.openIndex(); err != nil {
		return nil, err
	}

	budget := a.buildBudget(ctx)
	a.embedder = a.buildEmbedder(budget)
	gen := a.buildGenerator()

	var chatlog ingestuc.ChatLog
	if cfg.ChatLog.Driver != config.ChatLogNone {
		repo, err := chatlogrepo.Open(ctx, chatlogrepo.Config{Driver: cfg.ChatLog.Driver, DSN: cfg.ChatLog.DSN})
		if err != nil {
			return nil, fmt.Errorf("open chat log: %w", err)
		}
		a.chatlog = repo
		a.closers = append(a.closers, repo.Close)
		chatlog = repo
	}

	a.Sessions = sessionuc.NewRegistry(logger).
		WithIdleTTL(time.Duration(cfg.HTTP.SessionIdleMin) * time.Minute)
	a.Ingest = ingestuc.New(extract.New(), a.embedder, a.index, chatlog).
		WithChunkSize(cfg.Pipeline.ChunkSize).
		WithMaxBatchSize(cfg.Pipeline.MaxBatchSize)
	a.Ask = askuc.New(a.embedder, a.index, gen, chatlog).
		WithMaxTopK(cfg.Pipeline.MaxTopK)

	// nil interface, not a typed nil pointer
	var budgetReader usageuc.BudgetReader
	if budget != nil {
		budgetReader = budget
	}
	a.Usage = usageuc.New(budgetReader)
	a.Health = a.buildHealth()

	logger.Info("Pipeline assembled",
		zap.String("index_backend", cfg.Index.Backend),
		zap.String("index", cfg.Index.Name),
		zap.Int("dimensions", cfg.Index.Dimensions),
		zap.String("chatlog", cfg.ChatLog.Driver),
	)
	return a, nil
}

// IndexSpec returns the configured index.
func (a *App) IndexSpec() domain.IndexSpec {
	return domain.IndexSpec{
		Name:      a.cfg.Index.Name,
		Dimension: a.cfg.Index.Dimensions,
		Metric:    a.cfg.Index.Metric,
	}
}

// EnsureIndex provisions the vector index, or verifies an existing one.
func (a *App) EnsureIndex(ctx context.Context) error {
	if err := a.index.EnsureIndex(ctx, a.IndexSpec()); err != nil {
		return fmt.Errorf("ensure index %s: %w", a.cfg.Index.Name, err)
	}
	return nil
}

// History reads a user's persisted chat turns, newest first.
func (a *App) History(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	if a.chatlog == nil {
		return nil, nil
	}
	turns, err := a.chatlog.History(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	return turns, nil
}

// Router returns the HTTP handler with the standard middleware chain.
func (a *App) Router() http.Handler {
	server := chiTransport.NewServer(a.Sessions, a.Ingest, a.Ask, a.Usage, a.Health, a.logger).
		WithMaxUploadBytes(int64(a.cfg.HTTP.MaxUploadMB) << 20)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(a.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEventMiddleware(a.logger))
	r.Use(chiTransport.BearerAuthMiddleware(a.cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	return chiTransport.HandlerWithOptions(server, chiTransport.ServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorResponseCodeBadRequest,
				Message: err.Error(),
			})
		},
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func (a *App) openStore(ctx context.Context) error {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    a.cfg.Database.Addrs,
		Username: a.cfg.Database.Username,
		Password: a.cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create %s store: %w", a.cfg.Database.Driver, err)
	}
	a.store = store
	a.closers = append(a.closers, func() error { store.Close(); return nil })

	timeout := time.Duration(a.cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		return fmt.Errorf("%s not ready: %w", a.cfg.Database.Driver, err)
	}
	a.logger.Info("Connected to database",
		zap.String("driver", a.cfg.Database.Driver),
		zap.Strings("addrs", a.cfg.Database.Addrs),
	)
	return nil
}

func (a *App) openIndex() error {
	spec := a.IndexSpec()
	switch a.cfg.Index.Backend {
	case config.BackendRedis, config.BackendValkey:
		if a.store == nil {
			return errors.New("redis index backend requires database.addrs")
		}
		a.index = vector.New(a.store, spec).WithHNSW(vector.HNSWConfig{
			M:           a.cfg.Index.HNSWM,
			EFConstruct: a.cfg.Index.HNSWEFConstruct,
		})
	case config.BackendQdrant:
		q := a.cfg.Index.Qdrant
		idx, err := dbQdrant.Dial(dbQdrant.Config{
			Host:           q.Host,
			Port:           q.Port,
			UseTLS:         q.UseTLS,
			APIKey:         q.APIKey,
			RequestTimeout: time.Duration(q.TimeoutSec) * time.Second,
		}, spec, a.logger)
		if err != nil {
			return fmt.Errorf("dial qdrant: %w", err)
		}
		a.index = idx
		a.closers = append(a.closers, idx.Close)
	case config.BackendChromem:
		c := a.cfg.Index.Chromem
		idx, err := dbChromem.Open(c.Path, c.Compress, spec)
		if err != nil {
			return fmt.Errorf("open chromem: %w", err)
		}
		a.index = idx
		a.closers = append(a.closers, idx.Close)
	default:
		return fmt.Errorf("unknown index backend %q", a.cfg.Index.Backend)
	}
	return nil
}

// buildBudget returns nil when the vectorizer's provider has no limits.
func (a *App) buildBudget(ctx context.Context) *embeddinguc.BudgetTracker {
	_, vc := a.cfg.Embedding.Vectorizer()
	bc := a.cfg.Embedding.Providers[vc.Provider].Budget
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}

	action := embeddinguc.BudgetActionWarn
	if bc.Action == "reject" {
		action = embeddinguc.BudgetActionReject
	}
	budget := embeddinguc.NewBudgetTracker(vc.Provider, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, a.logger)
	if a.store != nil {
		budget.WithStore(ctx, budgetrepo.New(a.store))
	}
	return budget
}

// buildEmbedder assembles the decorator chain: provider -> cache -> instrumented (budget + metrics).
func (a *App) buildEmbedder(budget *embeddinguc.BudgetTracker) domain.Embedder {
	_, vc := a.cfg.Embedding.Vectorizer()
	pc := a.cfg.Embedding.Providers[vc.Provider]

	var base domain.Embedder
	if vc.Provider == FakeProvider {
		base = fake.NewEmbedder(a.cfg.Index.Dimensions)
	} else {
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			Model:      vc.Model,
			Dimensions: vc.Dimensions,
			Provider:   vc.Provider,
			Logger:     a.logger,
		})
	}

	embedder := base
	if a.store != nil {
		embedder = embcache.New(base, a.store, metrics.EmbeddingCacheTotal, a.logger).
			WithModel(vc.Model).
			WithTTL(time.Duration(a.cfg.Embedding.CacheTTLSec) * time.Second)
	}

	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}
	return embeddinguc.NewInstrumentedEmbedder(embedder, vc.Provider, vc.Model, checker, a.logger)
}

func (a *App) buildGenerator() domain.Generator {
	gc := a.cfg.Generation
	if gc.Provider == FakeProvider {
		return fake.NewGenerator("")
	}
	pc := a.cfg.Embedding.Providers[gc.Provider]
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       gc.Model,
		Temperature: gc.Temperature,
		MaxTokens:   gc.MaxTokens,
		Logger:      a.logger,
	})
}

func (a *App) buildHealth() *healthuc.Service {
	var db healthuc.DBPinger
	if a.store != nil {
		db = a.store
	}
	var emb healthuc.EmbeddingChecker
	if hc, ok := a.embedder.(domain.HealthChecker); ok {
		emb = hc
	}
	svc := healthuc.New(db, emb)
	if a.chatlog != nil {
		svc.WithChatLog(a.chatlog)
	}
	// redis/valkey indexes are covered by the database check
	if p, ok := a.index.(healthuc.DBPinger); ok {
		svc.WithIndex(p)
	}
	return svc
}
