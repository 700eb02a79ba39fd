package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsage/internal/domain"
	dombatch "github.com/kailas-cloud/docsage/internal/domain/batch"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
	"github.com/kailas-cloud/docsage/internal/domain/segment"
	"github.com/kailas-cloud/docsage/internal/logger"
	"github.com/kailas-cloud/docsage/internal/metrics"
	"github.com/kailas-cloud/docsage/internal/usecase/session"
)

// MaxBatchSize is the maximum number of documents per upload.
const MaxBatchSize = 20

// Result is the outcome of ingesting one document.
type Result struct {
	Namespace namespace.Namespace
	Chunks    int
	Skipped   bool
}

// Service is the write path: extract, segment, embed and store documents.
type Service struct {
	extractor    Extractor
	embed        Embedder
	index        Index
	chatlog      ChatLog
	chunkSize    int
	maxBatchSize int
	now          func() time.Time
}

// New creates an ingestion service. chatlog can be nil.
func New(extractor Extractor, embed Embedder, index Index, chatlog ChatLog) *Service {
	return &Service{
		extractor:    extractor,
		embed:        embed,
		index:        index,
		chatlog:      chatlog,
		chunkSize:    domain.DefaultChunkSize,
		maxBatchSize: MaxBatchSize,
		now:          time.Now,
	}
}

// WithChunkSize configures the segmenter target size.
func (s *Service) WithChunkSize(size int) *Service {
	if size > 0 {
		s.chunkSize = size
	}
	return s
}

// WithMaxBatchSize configures the maximum number of documents per upload.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// MaxBatch returns the configured upload limit.
func (s *Service) MaxBatch() int { return s.maxBatchSize }

// Ingest stores one document for sess. Content the session already ingested
// is skipped and reported with its original namespace.
func (s *Service) Ingest(ctx context.Context, sess *session.Session, doc domain.Document) (Result, error) {
	sess.Lock()
	defer sess.Unlock()
	return s.ingest(ctx, sess, doc)
}

// IngestBatch ingests docs in order. A failing document never stops the
// others, except a quota error, which fails every remaining document.
func (s *Service) IngestBatch(ctx context.Context, sess *session.Session, docs []domain.Document) []dombatch.Result {
	results := make([]dombatch.Result, len(docs))

	if len(docs) > s.maxBatchSize {
		for i, d := range docs {
			results[i] = dombatch.NewError(d.Name,
				fmt.Errorf("%w: batch size exceeds %d", domain.ErrInvalidInput, s.maxBatchSize))
		}
		return results
	}

	sess.Lock()
	defer sess.Unlock()

	for i, d := range docs {
		res, err := s.ingest(ctx, sess, d)
		switch {
		case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
			for j := i; j < len(docs); j++ {
				results[j] = dombatch.NewError(docs[j].Name, err)
			}
			return results
		case err != nil:
			results[i] = dombatch.NewError(d.Name, err)
		case res.Skipped:
			results[i] = dombatch.NewSkipped(d.Name, res.Namespace)
		default:
			results[i] = dombatch.NewOK(d.Name, res.Namespace, res.Chunks)
		}
	}
	return results
}

func (s *Service) ingest(ctx context.Context, sess *session.Session, doc domain.Document) (Result, error) {
	log := logger.FromContext(ctx).With(zap.String("filename", doc.Name))

	if doc.Name == "" {
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: document name is required", domain.ErrInvalidInput)
	}

	fp := domain.Fingerprint(doc.Content)
	if ns, ok := sess.Processed(fp); ok {
		log.Debug("Document already ingested", zap.String("fingerprint", fp))
		metrics.IngestDocumentsTotal.WithLabelValues("skipped").Inc()
		return Result{Namespace: ns, Skipped: true}, nil
	}

	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		log.Warn("Text extraction failed", zap.Error(err))
		metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, domain.ErrSegmentation) {
			err = fmt.Errorf("%w: %w", domain.ErrSegmentation, err)
		}
		return Result{}, err
	}

	chunks := segment.Document(doc.Name, text, s.chunkSize)
	ns := namespace.For(doc.Name, sess.UserID())

	if len(chunks) > 0 {
		if err := s.store(ctx, ns, chunks); err != nil {
			log.Error("Document ingestion failed", zap.Error(err))
			metrics.IngestDocumentsTotal.WithLabelValues("error").Inc()
			return Result{}, err
		}
	}

	sess.MarkProcessed(fp, doc.Name, ns)
	s.logIngestion(ctx, sess, doc.Name)

	metrics.IngestDocumentsTotal.WithLabelValues("ok").Inc()
	metrics.IngestChunksTotal.Add(float64(len(chunks)))
	log.Info("Document ingested",
		zap.String("namespace", ns.String()),
		zap.Int("chunks", len(chunks)),
	)
	return Result{Namespace: ns, Chunks: len(chunks)}, nil
}

// store embeds every chunk in one batch and upserts the records.
func (s *Service) store(ctx context.Context, ns namespace.Namespace, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	emb, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			ID:        domain.RecordID(c.SequenceIndex, c.Text),
			Embedding: emb.Embeddings[i],
			Metadata:  domain.RecordMetadata{Text: c.Text, Filename: c.SourceFilename},
		}
	}

	if err := s.index.Upsert(ctx, ns, records); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}
	return nil
}

// logIngestion writes the ingestion sentinel turn for signed-in users.
// A chat log failure never fails the ingestion.
func (s *Service) logIngestion(ctx context.Context, sess *session.Session, filename string) {
	if s.chatlog == nil || sess.Anonymous() {
		return
	}
	err := s.chatlog.Append(ctx, domain.ChatTurn{
		UserID:    sess.UserID(),
		Question:  domain.IngestQuestionPrefix + filename,
		Answer:    domain.IngestAnswer,
		Timestamp: s.now(),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to log ingestion", zap.String("filename", filename), zap.Error(err))
	}
}
