// Package ui provides terminal rendering for extraction progress and
// retrieval results.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage of a document processing run.
type Stage int

const (
	// StageRasterizing is the PDF to page-image stage.
	StageRasterizing Stage = iota
	// StageExtracting is the LLM extraction stage.
	StageExtracting
	// StageChunking is the chunk generation stage.
	StageChunking
	// StageEmbedding is the embedding generation stage.
	StageEmbedding
	// StageIndexing is the vector and keyword indexing stage.
	StageIndexing
	// StageComplete indicates processing is finished.
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageRasterizing:
		return "Rasterizing"
	case StageExtracting:
		return "Extracting"
	case StageChunking:
		return "Chunking"
	case StageEmbedding:
		return "Embedding"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain output.
func (s Stage) Icon() string {
	switch s {
	case StageRasterizing:
		return "RASTER"
	case StageExtracting:
		return "EXTRACT"
	case StageChunking:
		return "CHUNK"
	case StageEmbedding:
		return "EMBED"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent is one progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent is an error or warning raised during processing.
type ErrorEvent struct {
	File   string
	Err    error
	IsWarn bool
}

// CompletionStats summarizes a finished run.
type CompletionStats struct {
	Documents int
	Pages     int
	Chunks    int
	Vectors   int
	CostUSD   float64
	Duration  time.Duration
	Errors    int
	Warnings  int
}

// Renderer displays processing progress.
type Renderer interface {
	Start(ctx context.Context) error
	UpdateProgress(event ProgressEvent)
	AddError(event ErrorEvent)
	Complete(stats CompletionStats)
	Stop() error
}

// Config selects the renderer behavior.
type Config struct {
	Output  io.Writer
	NoColor bool
}

// NewRenderer picks a renderer for the environment. Pipes and CI get
// uncolored plain output.
func NewRenderer(cfg Config) Renderer {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if !cfg.NoColor {
		cfg.NoColor = !isTerminal(cfg.Output)
	}
	return NewPlainRenderer(cfg)
}

// StylesFor picks colored or plain styles based on whether w is a
// terminal.
func StylesFor(w io.Writer) Styles {
	if isTerminal(w) {
		return DefaultStyles()
	}
	return PlainStyles()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
