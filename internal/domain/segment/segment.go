// Package segment splits document text into bounded-size passages.
package segment

import (
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// Delimiter separates sentence-like units.
const Delimiter = ". "

// Split breaks text into ordered chunks of roughly target characters.
//
// Units are accumulated greedily; a chunk is closed as soon as adding the next
// unit would reach target. A unit longer than target becomes a chunk of its own.
// Whitespace-only input yields no chunks. Units are normalized first: trailing
// whitespace is trimmed and blank units are dropped, so Join(Split(t, n)) equals
// Normalize(t) for every n.
func Split(text string, target int) []string {
	if target <= 0 {
		target = domain.DefaultChunkSize
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		chunks []string
		buf    []string
		bufLen int
	)
	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(buf, Delimiter))
		buf = buf[:0]
		bufLen = 0
	}

	delimLen := utf8.RuneCountInString(Delimiter)
	for _, unit := range units(text) {
		n := utf8.RuneCountInString(unit)
		if len(buf) > 0 && bufLen+n >= target {
			flush()
		}
		buf = append(buf, unit)
		bufLen += n + delimLen
	}
	flush()

	return chunks
}

// Normalize returns text the way Join reassembles it after Split.
func Normalize(text string) string {
	return strings.Join(units(text), Delimiter)
}

// units splits text on Delimiter, trims trailing whitespace and drops blank units.
func units(text string) []string {
	parts := strings.Split(text, Delimiter)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimRightFunc(p, isSpace)
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Join reassembles chunks produced by Split.
func Join(chunks []string) string {
	return strings.Join(chunks, Delimiter)
}

// Document splits text and tags each chunk with its source and position.
func Document(filename, text string, target int) []domain.Chunk {
	parts := Split(text, target)
	if len(parts) == 0 {
		return nil
	}
	out := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		out[i] = domain.Chunk{Text: p, SourceFilename: filename, SequenceIndex: i}
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
