package ask

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docsage/internal/domain"
	"github.com/kailas-cloud/docsage/internal/domain/bundle"
	"github.com/kailas-cloud/docsage/internal/domain/namespace"
	"github.com/kailas-cloud/docsage/internal/logger"
	"github.com/kailas-cloud/docsage/internal/metrics"
	"github.com/kailas-cloud/docsage/internal/usecase/session"
)

// Question is a retrieval request. Without Namespaces and Files it searches
// every namespace the session has ingested; TopK 0 means the default.
//
// Namespaces and Files must belong to the session. Unscoped lifts that check
// for explicit namespaces; only operator tooling with direct index access sets it.
type Question struct {
	Text       string
	Namespaces []namespace.Namespace
	Files      []string
	TopK       int
	Unscoped   bool
}

// Answer is the generated text and the files its context came from.
type Answer struct {
	Text    string
	Sources []string
	Matches []domain.Match
}

// Service is the read path: retrieve, assemble context, generate.
type Service struct {
	embed   Embedder
	index   Index
	gen     Generator
	chatlog ChatLog
	maxTopK int
	now     func() time.Time
}

// New creates a retrieval service. chatlog can be nil.
func New(embed Embedder, index Index, gen Generator, chatlog ChatLog) *Service {
	return &Service{
		embed:   embed,
		index:   index,
		gen:     gen,
		chatlog: chatlog,
		maxTopK: domain.MaxTopK,
		now:     time.Now,
	}
}

// WithMaxTopK configures the largest accepted top_k.
func (s *Service) WithMaxTopK(n int) *Service {
	if n > 0 {
		s.maxTopK = n
	}
	return s
}

// Ask answers q from the session's documents. On generator failure neither
// the session history nor the chat log change.
func (s *Service) Ask(ctx context.Context, sess *session.Session, q Question) (Answer, error) {
	sess.Lock()
	defer sess.Unlock()

	ans, err := s.ask(ctx, sess, q)
	if err != nil {
		metrics.AskRequestsTotal.WithLabelValues("error").Inc()
		return Answer{}, err
	}
	metrics.AskRequestsTotal.WithLabelValues("ok").Inc()
	return ans, nil
}

func (s *Service) ask(ctx context.Context, sess *session.Session, q Question) (Answer, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Answer{}, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	topK, err := s.topK(q.TopK)
	if err != nil {
		return Answer{}, err
	}

	targets, err := resolveTargets(sess, q)
	if err != nil {
		return Answer{}, err
	}

	matches, err := s.retrieve(ctx, text, targets, topK)
	if err != nil {
		return Answer{}, err
	}
	metrics.AskMatchesTotal.Add(float64(len(matches)))

	b := bundle.Group(matches)
	completion, err := s.gen.Generate(ctx, b.Prompt(text))
	if err != nil {
		if !errors.Is(err, domain.ErrLanguageModel) {
			err = fmt.Errorf("%w: %w", domain.ErrLanguageModel, err)
		}
		logger.FromContext(ctx).Error("Answer generation failed", zap.Error(err))
		return Answer{}, fmt.Errorf("generate: %w", err)
	}
	domain.UsageFromContext(ctx).AddCompletionTokens(completion.CompletionTokens)

	sess.AddTurn(text, completion.Text)
	s.logTurn(ctx, sess, text, completion.Text)

	logger.FromContext(ctx).Info("Question answered",
		zap.Int("namespaces", len(targets)),
		zap.Int("matches", len(matches)),
		zap.Int("sources", len(b)),
	)
	return Answer{Text: completion.Text, Sources: b.Sources(), Matches: matches}, nil
}

// retrieve embeds the question once and queries every target namespace.
// Results from several namespaces are merged by score and cut to topK.
func (s *Service) retrieve(
	ctx context.Context, question string, targets []namespace.Namespace, topK int,
) ([]domain.Match, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	emb, err := s.embed.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	var matches []domain.Match
	for _, ns := range targets {
		found, err := s.index.Query(ctx, ns, emb.Embedding, topK)
		if err != nil {
			return nil, fmt.Errorf("query namespace %s: %w", ns, err)
		}
		matches = append(matches, found...)
	}

	if len(targets) > 1 {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
		if len(matches) > topK {
			matches = matches[:topK]
		}
	}
	return matches, nil
}

// resolveTargets returns the distinct namespaces q searches, in request order.
func resolveTargets(sess *session.Session, q Question) ([]namespace.Namespace, error) {
	if len(q.Namespaces) == 0 && len(q.Files) == 0 {
		return sess.Namespaces(), nil
	}

	owned := make(map[namespace.Namespace]struct{})
	for _, ns := range sess.Namespaces() {
		owned[ns] = struct{}{}
	}

	seen := make(map[namespace.Namespace]struct{}, len(q.Namespaces)+len(q.Files))
	targets := make([]namespace.Namespace, 0, len(q.Namespaces)+len(q.Files))
	add := func(ns namespace.Namespace) {
		if _, dup := seen[ns]; dup {
			return
		}
		seen[ns] = struct{}{}
		targets = append(targets, ns)
	}

	for _, ns := range q.Namespaces {
		if !ns.Valid() {
			return nil, fmt.Errorf("%w: malformed namespace %q", domain.ErrInvalidInput, ns)
		}
		if _, ok := owned[ns]; !ok && !q.Unscoped {
			return nil, fmt.Errorf("%w: namespace %s was not ingested in this session", domain.ErrInvalidInput, ns)
		}
		add(ns)
	}
	for _, name := range q.Files {
		ns, ok := sess.NamespaceOf(name)
		if !ok {
			return nil, fmt.Errorf("%w: file %q was not ingested in this session", domain.ErrInvalidInput, name)
		}
		add(ns)
	}
	return targets, nil
}

func (s *Service) topK(k int) (int, error) {
	switch {
	case k == 0:
		return domain.DefaultTopK, nil
	case k < 0 || k > s.maxTopK:
		return 0, fmt.Errorf("%w: top_k must be between 1 and %d", domain.ErrInvalidInput, s.maxTopK)
	default:
		return k, nil
	}
}

func (s *Service) logTurn(ctx context.Context, sess *session.Session, question, answer string) {
	if s.chatlog == nil || sess.Anonymous() {
		return
	}
	err := s.chatlog.Append(ctx, domain.ChatTurn{
		UserID:    sess.UserID(),
		Question:  question,
		Answer:    answer,
		Timestamp: s.now(),
	})
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to log chat turn", zap.Error(err))
	}
}
