package drawing

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/steeltrace/steeltrace/internal/geometry"
)

// DetectorConfig controls text-to-shape association.
type DetectorConfig struct {
	// NearThresholdMM is the maximum text-to-shape distance for a NEAR
	// association (default: 10 mm).
	NearThresholdMM float64
	// NearBaseConfidence scales NEAR confidence (default: 0.7).
	NearBaseConfidence float64
	// MinFontSize / MaxFontSize bound valid label sizes in points.
	MinFontSize float64
	MaxFontSize float64
	// MaxIDLength bounds label length; labels never contain spaces.
	MaxIDLength int
	// MinElementConfidence filters weak elements (default: 0.3).
	MinElementConfidence float64
	Patterns             []ElementPattern
}

// DefaultDetectorConfig returns the standard association settings.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		NearThresholdMM:      10,
		NearBaseConfidence:   0.7,
		MinFontSize:          8,
		MaxFontSize:          20,
		MaxIDLength:          10,
		MinElementConfidence: 0.3,
		Patterns:             DefaultElementPatterns(),
	}
}

// ElementDetector associates text instances to shapes by spatial
// proximity, yielding element occurrences.
type ElementDetector struct {
	cfg    DetectorConfig
	logger *slog.Logger
}

// NewElementDetector creates an element detector.
func NewElementDetector(cfg DetectorConfig, logger *slog.Logger) *ElementDetector {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultElementPatterns()
	}
	return &ElementDetector{cfg: cfg, logger: logger}
}

// Detect builds one element per shape that has at least one valid text
// association. Associations are ordered by confidence descending; the
// primary association names the element.
func (d *ElementDetector) Detect(shapes []geometry.Shape, texts []TextInstance, page int) ([]DetectedElement, DetectionSummary) {
	var elements []DetectedElement

	for _, shape := range shapes {
		assocs := d.associate(shape, texts)
		if len(assocs) == 0 {
			continue
		}

		primary := assocs[0]
		if primary.Confidence < d.cfg.MinElementConfidence {
			continue
		}

		typeHint, _ := MatchElementID(primary.Text.Text, d.cfg.Patterns)
		elements = append(elements, DetectedElement{
			ID:           primary.Text.Text,
			Type:         typeHint,
			Anchor:       shape.Bounds().Center(),
			Shape:        shape,
			ShapeKind:    string(shape.Kind()),
			Page:         page,
			Associations: assocs,
			Confidence:   primary.Confidence,
		})
	}

	summary := summarize(elements)
	d.logger.Debug("element detection complete",
		slog.Int("page", page),
		slog.Int("shapes", len(shapes)),
		slog.Int("elements", len(elements)))
	return elements, summary
}

// associate scores every valid text against one shape and sorts the
// results best-first.
func (d *ElementDetector) associate(shape geometry.Shape, texts []TextInstance) []Association {
	var assocs []Association
	for _, t := range texts {
		if !d.validLabel(t) {
			continue
		}

		if shape.ContainsPoint(t.Center) {
			assocs = append(assocs, Association{
				Text:       t,
				Position:   PositionInside,
				DistanceMM: 0,
				Confidence: 1.0,
			})
			continue
		}

		distMM := geometry.PtToMM(shape.DistanceToPoint(t.Center))
		if distMM < 0 || distMM > d.cfg.NearThresholdMM {
			continue
		}
		assocs = append(assocs, Association{
			Text:       t,
			Position:   PositionNear,
			DistanceMM: distMM,
			Confidence: d.cfg.NearBaseConfidence * (1 - distMM/d.cfg.NearThresholdMM),
		})
	}

	// Tie-breaks: inside beats near, then smaller font (the callout,
	// not title text), then lexicographic.
	sort.SliceStable(assocs, func(i, j int) bool {
		a, b := assocs[i], assocs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if (a.Position == PositionInside) != (b.Position == PositionInside) {
			return a.Position == PositionInside
		}
		if a.Text.FontSize != b.Text.FontSize {
			return a.Text.FontSize < b.Text.FontSize
		}
		return a.Text.Text < b.Text.Text
	})
	return assocs
}

// validLabel checks font size, length, spacing, and the element-ID
// pattern table. Fallback instances with no font metrics pass the size
// check.
func (d *ElementDetector) validLabel(t TextInstance) bool {
	text := strings.TrimSpace(t.Text)
	if text == "" || len(text) > d.cfg.MaxIDLength || strings.ContainsAny(text, " \t") {
		return false
	}
	if t.FontSize > 0 && (t.FontSize < d.cfg.MinFontSize || t.FontSize > d.cfg.MaxFontSize) {
		return false
	}
	_, ok := MatchElementID(text, d.cfg.Patterns)
	return ok
}

func summarize(elements []DetectedElement) DetectionSummary {
	s := DetectionSummary{
		Total:        len(elements),
		CountsByID:   make(map[string]int),
		CountsByType: make(map[string]int),
	}
	for _, e := range elements {
		s.CountsByID[e.ID]++
		if e.Type != "" {
			s.CountsByType[e.Type]++
		}
	}
	return s
}
