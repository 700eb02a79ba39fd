// Package bundle groups retrieved passages by source and renders them into
// the prompt sent to the language model.
package bundle

import (
	"strings"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// SystemPrompt instructs the model to stay inside the retrieved context.
const SystemPrompt = "Answer the user's question using only the provided context. " +
	"If multiple sources are used, indicate which file the info came from."

// SourceGroup is every retrieved passage from one file, in retrieval order.
type SourceGroup struct {
	Filename string
	Texts    []string
}

// Bundle is the ordered set of source groups for one question.
type Bundle []SourceGroup

// Group collects matches by filename. Groups keep the order in which their
// first match appears; passages keep match order within a group.
func Group(matches []domain.Match) Bundle {
	if len(matches) == 0 {
		return nil
	}
	pos := make(map[string]int, len(matches))
	var b Bundle
	for _, m := range matches {
		i, ok := pos[m.Filename]
		if !ok {
			i = len(b)
			pos[m.Filename] = i
			b = append(b, SourceGroup{Filename: m.Filename})
		}
		b[i].Texts = append(b[i].Texts, m.Text)
	}
	return b
}

// Sources lists the distinct filenames in first-encountered order.
func (b Bundle) Sources() []string {
	out := make([]string, 0, len(b))
	for _, g := range b {
		out = append(out, g.Filename)
	}
	return out
}

// Context renders each group as "From <file>:" followed by its passages.
func (b Bundle) Context() string {
	blocks := make([]string, 0, len(b))
	for _, g := range b {
		blocks = append(blocks, "From "+g.Filename+":\n"+strings.Join(g.Texts, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// Prompt builds the model request for question.
func (b Bundle) Prompt(question string) domain.Prompt {
	return domain.Prompt{
		System: SystemPrompt,
		User:   "Context:\n" + b.Context() + "\n\nQuestion: " + question,
	}
}
