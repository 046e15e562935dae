package document

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/markdex/markdex/internal/faults"
)

// ContentSource reads a document's raw bytes at the current revision.
type ContentSource interface {
	ReadBytes(ctx context.Context, path string) ([]byte, error)
}

// Renderer converts raw document text to its display form.
type Renderer interface {
	Render(text string) string
}

// CreationTimer resolves a path's creation timestamp.
type CreationTimer interface {
	CreationTime(ctx context.Context, path string) (time.Time, error)
}

// Loader reads, decodes, renders, and timestamps documents.
type Loader struct {
	source   ContentSource
	renderer Renderer
	created  CreationTimer
	logger   *slog.Logger
}

// NewLoader creates a document loader.
func NewLoader(source ContentSource, renderer Renderer, created CreationTimer, logger *slog.Logger) *Loader {
	return &Loader{
		source:   source,
		renderer: renderer,
		created:  created,
		logger:   logger.With("component", "document"),
	}
}

// Load materializes the document at path from the current revision.
// A path missing at the current revision yields faults.ErrNotFound so
// callers can treat a delete-then-reindex race as a removal rather than
// a failure. Bytes that do not decode as UTF-8 yield faults.ErrCorrupt.
func (l *Loader) Load(ctx context.Context, path string) (*Document, error) {
	raw, err := l.source.ReadBytes(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("decode %s: invalid UTF-8: %w", path, faults.ErrCorrupt)
	}
	content := string(raw)

	created, err := l.created.CreationTime(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	l.logger.Debug("loaded document", "key", path, "bytes", len(raw))
	return &Document{
		Key:       path,
		Content:   content,
		Rendered:  l.renderer.Render(content),
		CreatedAt: created,
	}, nil
}
