// Package extract turns uploaded documents into plain text.
// PDFs go through poppler's pdftotext; text files pass through as UTF-8.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/docsage/internal/domain"
)

// ErrPDFToolNotFound is returned when pdftotext is not on PATH.
var ErrPDFToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// ErrUnsupportedType is returned for documents that are neither PDF nor text.
var ErrUnsupportedType = errors.New("unsupported document type")

const pdfMagic = "%PDF-"

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Extractor converts a document to text.
type Extractor struct {
	runner CommandRunner
	tool   string
}

// New creates an extractor that shells out to pdftotext.
func New() *Extractor {
	return &Extractor{runner: execRunner{}, tool: "pdftotext"}
}

// NewWithRunner creates an extractor with an injected command runner.
func NewWithRunner(r CommandRunner) *Extractor {
	return &Extractor{runner: r, tool: "pdftotext"}
}

// CheckAvailable reports whether pdftotext is on PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// Extract returns the text of doc. Every failure wraps ErrSegmentation.
func (e *Extractor) Extract(ctx context.Context, doc domain.Document) (string, error) {
	switch {
	case isPDF(doc):
		text, err := e.pdf(ctx, doc.Content)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", domain.ErrSegmentation, doc.Name, err)
		}
		return text, nil
	case isText(doc):
		if !utf8.Valid(doc.Content) {
			return "", fmt.Errorf("%w: %s: invalid UTF-8", domain.ErrSegmentation, doc.Name)
		}
		return string(doc.Content), nil
	default:
		return "", fmt.Errorf("%w: %s: %w", domain.ErrSegmentation, doc.Name, ErrUnsupportedType)
	}
}

// pdf writes content to a temp file and reads pages back, one per line block.
func (e *Extractor) pdf(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docsage-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, e.tool, "-enc", "UTF-8", "-q", tmp.Name(), "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrPDFToolNotFound
		}
		return "", err
	}

	// pdftotext ends each page with a form feed
	pages := strings.Split(strings.TrimRight(string(out), "\f\n"), "\f")
	return strings.Join(pages, "\n"), nil
}

func isPDF(doc domain.Document) bool {
	if strings.EqualFold(doc.ContentType, "application/pdf") {
		return true
	}
	if strings.EqualFold(filepath.Ext(doc.Name), ".pdf") {
		return true
	}
	return bytes.HasPrefix(doc.Content, []byte(pdfMagic))
}

func isText(doc domain.Document) bool {
	ct := strings.ToLower(doc.ContentType)
	if strings.HasPrefix(ct, "text/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(doc.Name)) {
	case ".txt", ".md", ".markdown", ".text":
		return true
	}
	// untyped uploads that are valid UTF-8 are treated as text
	return (ct == "" || ct == "application/octet-stream") && utf8.Valid(doc.Content)
}
