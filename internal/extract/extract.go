// Package extract turns source documents into plain text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is wrapped by every ExtractionError for a format that cannot be read
var ErrUnsupportedFormat = errors.New("unsupported format")

// ErrNoText means the file was read but held no text
var ErrNoText = errors.New("no text content")

// ExtractionError is a per-file failure. It never aborts an ingestion batch.
type ExtractionError struct {
	Path   string
	Format string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", filepath.Base(e.Path), e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Result is the text of a document and what was learned while reading it
type Result struct {
	Text      string
	Format    string
	PageCount int
}

// Extractor reads one file format
type Extractor interface {
	Extract(ctx context.Context, path string) (Result, error)
}

// Registry maps lower-case extensions (with the dot) to extractors
type Registry map[string]Extractor

// SupportedExtensions are the extensions ingestion picks up.
// .doc is listed so legacy files are quarantined with a clear message instead of ignored.
var SupportedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".dot"}

// NewRegistry returns the default registry
func NewRegistry() Registry {
	docx := &DocxExtractor{}
	return Registry{
		".txt":  &TextExtractor{},
		".pdf":  &PDFExtractor{},
		".docx": docx,
		".dot":  docx,
		".doc":  legacyDocExtractor{},
	}
}

var defaultRegistry = NewRegistry()

// Extract reads path with the default registry
func Extract(ctx context.Context, path string) (Result, error) {
	return defaultRegistry.Extract(ctx, path)
}

// IsSupported reports whether ext (".pdf", "PDF", ...) is picked up by ingestion
func IsSupported(ext string) bool {
	ext = normalizeExt(ext)
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract dispatches path on its extension
func (r Registry) Extract(ctx context.Context, path string) (Result, error) {
	ext := normalizeExt(filepath.Ext(path))
	extractor, ok := r[ext]
	if !ok {
		return Result{}, &ExtractionError{Path: path, Format: ext, Err: ErrUnsupportedFormat}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res, err := extractor.Extract(ctx, path)
	if err != nil {
		var ee *ExtractionError
		if errors.As(err, &ee) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return Result{}, &ExtractionError{Path: path, Format: ext, Err: err}
	}

	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return Result{}, &ExtractionError{Path: path, Format: ext, Err: ErrNoText}
	}
	return res, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

type legacyDocExtractor struct{}

func (legacyDocExtractor) Extract(_ context.Context, path string) (Result, error) {
	return Result{}, &ExtractionError{
		Path:   path,
		Format: ".doc",
		Err:    fmt.Errorf("%w: legacy .doc format is not supported, convert the document to .docx", ErrUnsupportedFormat),
	}
}
