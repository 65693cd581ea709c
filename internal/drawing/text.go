package drawing

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/geometry"
)

// Character-to-word grouping thresholds in PDF points.
const (
	wordGapX = 3.0
	wordGapY = 2.0
)

// TextExtractorConfig configures the vector text extractor.
type TextExtractorConfig struct {
	// DedupTolerance quantizes instance centers for deduplication, in points.
	DedupTolerance float64
	// Origin selects the output coordinate convention.
	Origin CoordinateOrigin
}

// DefaultTextExtractorConfig returns the standard extraction settings.
func DefaultTextExtractorConfig() TextExtractorConfig {
	return TextExtractorConfig{
		DedupTolerance: 2.0,
		Origin:         OriginPDF,
	}
}

// PageText is the text content of one page.
type PageText struct {
	Info      PageInfo       `json:"info"`
	Instances []TextInstance `json:"instances"`
}

// TextExtraction is the full-document result. Errors holds per-page
// failures from the fallback path; a partial result is still usable.
type TextExtraction struct {
	Pages  []PageText `json:"pages"`
	Errors []string   `json:"errors,omitempty"`
}

// TextExtractor recovers positioned words from a PDF's content streams.
type TextExtractor struct {
	cfg    TextExtractorConfig
	logger *slog.Logger
}

// NewTextExtractor creates a text extractor.
func NewTextExtractor(cfg TextExtractorConfig, logger *slog.Logger) *TextExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DedupTolerance <= 0 {
		cfg.DedupTolerance = 2.0
	}
	return &TextExtractor{cfg: cfg, logger: logger}
}

// Extract reads every page of the PDF at path. Empty pages are not an
// error; they yield an empty instance list.
func (e *TextExtractor) Extract(path string) (*TextExtraction, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, errors.InputNotFound(path, err)
	}

	out := &TextExtraction{}
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			out.Pages = append(out.Pages, PageText{Info: PageInfo{Number: i}})
			continue
		}

		info := pageInfo(page, i)
		instances := e.extractGlyphWords(page, i)
		if len(instances) == 0 {
			// Operator-stream path found no glyphs; fall back to the
			// plain-text reader so scanned-with-text-layer pages still
			// yield something.
			fallback, ferr := fallbackPlainText(page, i)
			if ferr != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("page %d: %v", i, ferr))
			}
			instances = fallback
		}

		instances = Dedup(instances, e.cfg.DedupTolerance)
		if e.cfg.Origin == OriginImage {
			flipToImageOrigin(instances, info.Height)
		}

		out.Pages = append(out.Pages, PageText{Info: info, Instances: instances})
	}

	e.logger.Debug("text extraction complete",
		slog.String("path", path),
		slog.Int("pages", len(out.Pages)),
		slog.Int("errors", len(out.Errors)))
	return out, nil
}

// extractGlyphWords walks the page's glyphs and groups them into words.
// Characters join the current word when the horizontal gap is <= 3 pt and
// the vertical gap is <= 2 pt.
func (e *TextExtractor) extractGlyphWords(page pdf.Page, pageNum int) []TextInstance {
	defer func() {
		// Malformed content streams panic inside the reader; treat the
		// page as glyphless and let the fallback path run.
		if r := recover(); r != nil {
			e.logger.Warn("glyph walk panicked", slog.Int("page", pageNum), slog.Any("cause", r))
		}
	}()

	content := page.Content()
	return groupGlyphs(content.Text, pageNum)
}

// groupGlyphs joins consecutive glyphs into words per the gap rule.
func groupGlyphs(glyphs []pdf.Text, pageNum int) []TextInstance {
	var (
		words   []TextInstance
		current []pdf.Text
	)
	flush := func() {
		if len(current) > 0 {
			words = append(words, wordFromGlyphs(current, pageNum))
			current = nil
		}
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			flush()
			continue
		}
		if len(current) > 0 {
			prev := current[len(current)-1]
			gapX := g.X - (prev.X + prev.W)
			gapY := math.Abs(g.Y - prev.Y)
			if gapX > wordGapX || gapX < -wordGapX || gapY > wordGapY {
				flush()
			}
		}
		current = append(current, g)
	}
	flush()

	return words
}

func wordFromGlyphs(glyphs []pdf.Text, pageNum int) TextInstance {
	var sb strings.Builder
	box := geometry.BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	var fontSize float64
	font := glyphs[0].Font

	for _, g := range glyphs {
		sb.WriteString(g.S)
		box.X0 = math.Min(box.X0, g.X)
		box.X1 = math.Max(box.X1, g.X+g.W)
		box.Y0 = math.Min(box.Y0, g.Y)
		box.Y1 = math.Max(box.Y1, g.Y+g.FontSize)
		if g.FontSize > fontSize {
			fontSize = g.FontSize
		}
	}

	return TextInstance{
		Text:       sb.String(),
		Box:        box,
		Center:     box.Center(),
		Font:       font,
		FontSize:   fontSize,
		Page:       pageNum,
		Confidence: 1.0,
	}
}

// fallbackPlainText extracts unpositioned text lines when the glyph walk
// produced nothing. Instances carry zero boxes and reduced confidence.
func fallbackPlainText(page pdf.Page, pageNum int) ([]TextInstance, error) {
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, err
	}

	var out []TextInstance
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, TextInstance{
			Text:       line,
			Page:       pageNum,
			Confidence: 0.5,
		})
	}
	return out, nil
}

// Dedup collapses instances whose quantized centers and text are equal.
// Rendering overstrokes (bold simulated by double-drawing) produce such
// duplicates. Dedup is idempotent.
func Dedup(instances []TextInstance, tolerance float64) []TextInstance {
	if tolerance <= 0 {
		tolerance = 2.0
	}
	type key struct {
		qx, qy int64
		text   string
	}
	seen := make(map[key]struct{}, len(instances))
	out := make([]TextInstance, 0, len(instances))
	for _, t := range instances {
		k := key{
			qx:   int64(math.Round(t.Center.X / tolerance)),
			qy:   int64(math.Round(t.Center.Y / tolerance)),
			text: t.Text,
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// flipToImageOrigin converts instances from PDF-native (bottom-left) to
// image (top-left) coordinates. The conversion is a pure Y-flip.
func flipToImageOrigin(instances []TextInstance, pageHeight float64) {
	for i := range instances {
		t := &instances[i]
		t.Box = geometry.BBox{
			X0: t.Box.X0,
			Y0: pageHeight - t.Box.Y1,
			X1: t.Box.X1,
			Y1: pageHeight - t.Box.Y0,
		}
		t.Center = t.Box.Center()
	}
}

// pageInfo resolves page dimensions and rotation, walking up the page
// tree for inherited attributes.
func pageInfo(page pdf.Page, number int) PageInfo {
	info := PageInfo{Number: number, Width: 612, Height: 792}

	if mb := inheritedKey(page.V, "MediaBox"); !mb.IsNull() && mb.Len() == 4 {
		x0 := mb.Index(0).Float64()
		y0 := mb.Index(1).Float64()
		x1 := mb.Index(2).Float64()
		y1 := mb.Index(3).Float64()
		info.Width = math.Abs(x1 - x0)
		info.Height = math.Abs(y1 - y0)
	}
	if rot := inheritedKey(page.V, "Rotate"); !rot.IsNull() {
		info.Rotation = int(rot.Int64()) % 360
	}
	return info
}

// inheritedKey looks up key on v, then on its ancestors via Parent.
func inheritedKey(v pdf.Value, key string) pdf.Value {
	for i := 0; i < 16 && !v.IsNull(); i++ {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}
