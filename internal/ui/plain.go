package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes line-oriented progress, usable on a TTY or a
// pipe.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain line renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	styles := DefaultStyles()
	if cfg.NoColor {
		styles = PlainStyles()
	}
	return &PlainRenderer{out: cfg.Output, styles: styles}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag := r.styles.Stage.Render(event.Stage.Icon())
	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d %s\n", tag, event.Current, event.Total, event.Message)
	} else if event.Message != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", tag, event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, event)

	prefix := r.styles.Error.Render("ERROR")
	if event.IsWarn {
		prefix = r.styles.Warning.Render("WARN")
	}
	if event.File != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.File, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "%s %d documents, %d pages, %d chunks (%d vectors) in %s\n",
		r.styles.Success.Render("Complete:"),
		stats.Documents, stats.Pages, stats.Chunks, stats.Vectors,
		stats.Duration.Round(100*time.Millisecond))
	if stats.CostUSD > 0 {
		_, _ = fmt.Fprintf(r.out, "%s $%.4f\n", r.styles.Label.Render("Cost:"), stats.CostUSD)
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, "%s %d errors, %d warnings\n",
			r.styles.Warning.Render("Issues:"), stats.Errors, stats.Warnings)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

var _ Renderer = (*PlainRenderer)(nil)
