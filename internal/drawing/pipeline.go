package drawing

import (
	"context"
	"log/slog"
	"time"

	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/geometry"
)

// PipelineConfig aggregates the per-stage configuration.
type PipelineConfig struct {
	Text      TextExtractorConfig
	Lines     LineDetectorConfig
	Assembler AssemblerConfig
	Detector  DetectorConfig
}

// DefaultPipelineConfig returns the standard pipeline settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Text:      DefaultTextExtractorConfig(),
		Lines:     DefaultLineDetectorConfig(),
		Assembler: DefaultAssemblerConfig(),
		Detector:  DefaultDetectorConfig(),
	}
}

// PageResult is the pipeline output for one page.
type PageResult struct {
	Info     PageInfo          `json:"info"`
	Style    DrawingStyle      `json:"style"`
	Shapes   []geometry.Shape  `json:"-"`
	Elements []DetectedElement `json:"elements"`
	Summary  DetectionSummary  `json:"summary"`
}

// Result is the full-document pipeline output.
type Result struct {
	Pages            []PageResult     `json:"pages"`
	Summary          DetectionSummary `json:"summary"`
	Warnings         []string         `json:"warnings,omitempty"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}

// Pipeline runs text extraction, vector detection, shape assembly, and
// element detection over a drawing PDF. It never calls an LLM.
type Pipeline struct {
	text      *TextExtractor
	lines     *LineDetector
	assembler *Assembler
	detector  *ElementDetector
	logger    *slog.Logger
}

// NewPipeline wires the four stages.
func NewPipeline(cfg PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		text:      NewTextExtractor(cfg.Text, logger),
		lines:     NewLineDetector(cfg.Lines, logger),
		assembler: NewAssembler(cfg.Assembler, logger),
		detector:  NewElementDetector(cfg.Detector, logger),
		logger:    logger,
	}
}

// Run processes every page of the PDF at path. Per-page extraction
// errors become warnings; the result is returned even when some pages
// failed.
func (p *Pipeline) Run(ctx context.Context, path string) (*Result, error) {
	start := time.Now()

	texts, err := p.text.Extract(path)
	if err != nil {
		return nil, err
	}
	vectors, err := p.lines.Detect(path)
	if err != nil {
		return nil, err
	}

	res := &Result{Warnings: texts.Errors}
	textByPage := make(map[int][]TextInstance, len(texts.Pages))
	for _, pt := range texts.Pages {
		textByPage[pt.Info.Number] = pt.Instances
	}

	for _, pv := range vectors {
		if ctx.Err() != nil {
			return res, errors.Cancelled(ctx.Err())
		}

		shapes, analysis := p.assembler.Assemble(pv)
		elements, summary := p.detector.Detect(shapes, textByPage[pv.Info.Number], pv.Info.Number)

		res.Pages = append(res.Pages, PageResult{
			Info:     pv.Info,
			Style:    analysis.Style,
			Shapes:   shapes,
			Elements: elements,
			Summary:  summary,
		})
	}

	res.Summary = mergeSummaries(res.Pages)
	res.ProcessingTimeMS = time.Since(start).Milliseconds()
	p.logger.Info("drawing pipeline complete",
		slog.String("path", path),
		slog.Int("pages", len(res.Pages)),
		slog.Int("elements", res.Summary.Total),
		slog.Int64("elapsed_ms", res.ProcessingTimeMS))
	return res, nil
}

func mergeSummaries(pages []PageResult) DetectionSummary {
	total := DetectionSummary{
		CountsByID:   make(map[string]int),
		CountsByType: make(map[string]int),
	}
	for _, pg := range pages {
		total.Total += pg.Summary.Total
		for id, n := range pg.Summary.CountsByID {
			total.CountsByID[id] += n
		}
		for typ, n := range pg.Summary.CountsByType {
			total.CountsByType[typ] += n
		}
	}
	return total
}
