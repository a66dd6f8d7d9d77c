package capture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/jobpilot/internal/apperr"
)

// Enumerator produces a snapshot of capture targets.
type Enumerator interface {
	Enumerate(ctx context.Context, opts Options) ([]Source, error)
}

// Registry lists capture sources. Every call is a fresh snapshot.
type Registry struct {
	enum   Enumerator
	opts   Options
	logger *slog.Logger
}

// NewRegistry creates a registry over enum.
func NewRegistry(enum Enumerator, opts Options, logger *slog.Logger) *Registry {
	return &Registry{enum: enum, opts: opts, logger: logger}
}

// Options returns the enumeration options in use.
func (r *Registry) Options() Options { return r.opts }

// Enumerate returns the current sources or an error wrapping
// apperr.ErrEnumerationFailed.
func (r *Registry) Enumerate(ctx context.Context) ([]Source, error) {
	sources, err := r.enum.Enumerate(ctx, r.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrEnumerationFailed, err)
	}
	if sources == nil {
		sources = []Source{}
	}

	var screens, windows int
	for _, s := range sources {
		switch s.Kind() {
		case KindScreen:
			screens++
		case KindWindow:
			windows++
		}
	}
	r.logger.Info("capture: sources enumerated",
		slog.Int("screens", screens),
		slog.Int("windows", windows))
	return sources, nil
}

// ListSources is Enumerate with failures logged and reported as an empty
// list. The result is never nil.
func (r *Registry) ListSources(ctx context.Context) []Source {
	sources, err := r.Enumerate(ctx)
	if err != nil {
		r.logger.Error("capture: enumeration failed", slog.String("error", err.Error()))
		return []Source{}
	}
	return sources
}
