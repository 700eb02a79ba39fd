package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// Generator records prompts and answers with a fixed or echoing reply.
type Generator struct {
	reply string
	err   error

	mu      sync.Mutex
	prompts []domain.Prompt
}

// NewGenerator creates a generator that answers with reply.
// An empty reply echoes the question back.
func NewGenerator(reply string) *Generator {
	return &Generator{reply: reply}
}

// WithError makes Generate fail with err wrapped in ErrLanguageModel.
func (g *Generator) WithError(err error) *Generator {
	g.err = err
	return g
}

// Generate records p and returns the configured reply.
func (g *Generator) Generate(_ context.Context, p domain.Prompt) (domain.Completion, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, p)
	g.mu.Unlock()

	if g.err != nil {
		return domain.Completion{}, fmt.Errorf("%w: %w", domain.ErrLanguageModel, g.err)
	}
	text := g.reply
	if text == "" {
		text = "You asked: " + question(p.User)
	}
	return domain.Completion{Text: text, PromptTokens: len(strings.Fields(p.User)), CompletionTokens: len(strings.Fields(text))}, nil
}

// Prompts returns every prompt received so far.
func (g *Generator) Prompts() []domain.Prompt {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Prompt, len(g.prompts))
	copy(out, g.prompts)
	return out
}

func question(user string) string {
	const marker = "Question: "
	if i := strings.LastIndex(user, marker); i >= 0 {
		return user[i+len(marker):]
	}
	return user
}

func wrapEmbed(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingService, err)
}
