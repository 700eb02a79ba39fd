package domain

import "context"

// Prompt is a single-turn chat request.
type Prompt struct {
	System string
	User   string
}

// Completion is the language model's reply with token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Generator produces an answer from a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Completion, error)
}
