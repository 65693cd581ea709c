package extract

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/gen2brain/go-fitz"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// RulePage is one page of rule-based output.
type RulePage struct {
	Number    int     `json:"number"`
	Text      string  `json:"text"`
	WordCount int     `json:"word_count"`
	// Density is words per thousand square points of page area.
	Density float64 `json:"density"`
	// ProbablyScanned flags pages whose text density is implausibly low
	// for a digital page. Actionable by the caller, not an error.
	ProbablyScanned bool `json:"probably_scanned"`
}

// RuleExtraction is the output of a rule-based (no-LLM) extractor.
type RuleExtraction struct {
	Format   string         `json:"format"`
	Text     string         `json:"text"`
	Pages    []RulePage     `json:"pages,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RuleBased dispatches per-format native extractors: digital PDF, plain
// text, markdown, CSV, and word-processor documents.
type RuleBased struct {
	// ScanDensityThreshold is the words-per-1000pt² floor below which a
	// PDF page is flagged probably scanned.
	ScanDensityThreshold float64
	logger               *slog.Logger
}

// NewRuleBased creates the dispatcher with the default density floor.
func NewRuleBased(logger *slog.Logger) *RuleBased {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleBased{ScanDensityThreshold: 0.05, logger: logger}
}

// Extract picks a handler by file extension.
func (r *RuleBased) Extract(ctx context.Context, path string) (*RuleExtraction, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.InputNotFound(path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Cancelled(err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return r.extractPDF(path)
	case ".txt":
		return r.extractPlain(path, "text")
	case ".md", ".markdown":
		return r.extractPlain(path, "markdown")
	case ".csv":
		return r.extractCSV(path)
	case ".docx", ".doc":
		return r.extractWordProcessor(path)
	default:
		return nil, errors.InvalidFormat(filepath.Ext(path))
	}
}

// extractWordProcessor pulls per-page text out of word-processor files
// through mupdf, which reflows them the same way it opens PDFs.
func (r *RuleBased) extractWordProcessor(path string) (*RuleExtraction, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileCorrupt, "failed to open document", err).
			WithDetail("path", path)
	}
	defer func() { _ = doc.Close() }()

	out := &RuleExtraction{Format: "docx", Metadata: map[string]any{"page_count": doc.NumPage()}}
	var full strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			r.logger.Warn("page text extraction failed", slog.Int("page", i+1), slog.String("error", err.Error()))
			text = ""
		}
		rp := RulePage{
			Number:    i + 1,
			Text:      strings.TrimSpace(text),
			WordCount: len(strings.Fields(text)),
		}
		if rp.Text != "" {
			full.WriteString(rp.Text)
			full.WriteString("\n\n")
		}
		out.Pages = append(out.Pages, rp)
	}
	out.Text = strings.TrimSpace(full.String())
	return out, nil
}

func (r *RuleBased) extractPDF(path string) (*RuleExtraction, error) {
	reader, err := pdf.Open(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileCorrupt, "failed to open PDF", err).
			WithDetail("path", path)
	}

	out := &RuleExtraction{Format: "pdf", Metadata: map[string]any{"page_count": reader.NumPage()}}
	var full strings.Builder
	scanned := 0

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		rp := RulePage{Number: i}
		if !page.V.IsNull() {
			text, err := page.GetPlainText(nil)
			if err != nil {
				r.logger.Warn("page text extraction failed", slog.Int("page", i), slog.String("error", err.Error()))
			} else {
				rp.Text = strings.TrimSpace(text)
			}

			rp.WordCount = len(strings.Fields(rp.Text))
			info := pdfPageArea(page)
			if info > 0 {
				rp.Density = float64(rp.WordCount) / info * 1000
			}
			rp.ProbablyScanned = rp.Density < r.ScanDensityThreshold
		}
		if rp.ProbablyScanned {
			scanned++
		}
		if rp.Text != "" {
			full.WriteString(rp.Text)
			full.WriteString("\n\n")
		}
		out.Pages = append(out.Pages, rp)
	}

	out.Text = strings.TrimSpace(full.String())
	out.Metadata["probably_scanned_pages"] = scanned
	return out, nil
}

// pdfPageArea returns the page area in square points.
func pdfPageArea(page pdf.Page) float64 {
	mb := page.V.Key("MediaBox")
	for i := 0; i < 16 && mb.IsNull(); i++ {
		parent := page.V.Key("Parent")
		if parent.IsNull() {
			break
		}
		mb = parent.Key("MediaBox")
		page.V = parent
	}
	if mb.IsNull() || mb.Len() != 4 {
		return 612 * 792
	}
	w := mb.Index(2).Float64() - mb.Index(0).Float64()
	h := mb.Index(3).Float64() - mb.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return 612 * 792
	}
	return w * h
}

func (r *RuleBased) extractPlain(path, format string) (*RuleExtraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InputNotFound(path, err)
	}
	text := string(data)
	return &RuleExtraction{
		Format: format,
		Text:   text,
		Metadata: map[string]any{
			"word_count": len(strings.Fields(text)),
			"line_count": strings.Count(text, "\n") + 1,
		},
	}, nil
}

func (r *RuleBased) extractCSV(path string) (*RuleExtraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.InputNotFound(path, err)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileCorrupt, "failed to parse CSV", err).
			WithDetail("path", path)
	}

	var sb strings.Builder
	cols := 0
	for _, rec := range records {
		if len(rec) > cols {
			cols = len(rec)
		}
		sb.WriteString(strings.Join(rec, " | "))
		sb.WriteString("\n")
	}

	return &RuleExtraction{
		Format: "csv",
		Text:   strings.TrimSpace(sb.String()),
		Metadata: map[string]any{
			"row_count":    len(records),
			"column_count": cols,
		},
	}, nil
}
