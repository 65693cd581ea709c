package drawing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/geometry"
)

func label(text string, x, y, fontSize float64) TextInstance {
	return TextInstance{
		Text:     text,
		Center:   geometry.Point{X: x, Y: y},
		Box:      geometry.BBox{X0: x - 5, Y0: y - 5, X1: x + 5, Y1: y + 5},
		FontSize: fontSize,
		Page:     1,
	}
}

func mustCircle(t *testing.T, x, y, r float64) geometry.Shape {
	t.Helper()
	c, err := geometry.NewCircle(geometry.Point{X: x, Y: y}, r, 1, geometry.Style{})
	require.NoError(t, err)
	return c
}

func TestInsideAssociationHasFullConfidence(t *testing.T) {
	d := NewElementDetector(DefaultDetectorConfig(), nil)
	shape := mustCircle(t, 100, 100, 20)

	elements, _ := d.Detect([]geometry.Shape{shape}, []TextInstance{label("C1", 100, 100, 10)}, 1)

	require.Len(t, elements, 1)
	assert.Equal(t, "C1", elements[0].ID)
	assert.Equal(t, "column", elements[0].Type)
	assert.Equal(t, 1.0, elements[0].Confidence)
	assert.Equal(t, PositionInside, elements[0].Associations[0].Position)
}

func TestNearConfidenceDecaysLinearly(t *testing.T) {
	d := NewElementDetector(DefaultDetectorConfig(), nil)
	shape := mustCircle(t, 100, 100, 10)

	// 5 mm outside the boundary: confidence = 0.7 * (1 - 5/10) = 0.35.
	dist := 10 + geometry.MMToPt(5)
	elements, _ := d.Detect([]geometry.Shape{shape}, []TextInstance{label("B2", 100+dist, 100, 10)}, 1)

	require.Len(t, elements, 1)
	assert.Equal(t, PositionNear, elements[0].Associations[0].Position)
	assert.InDelta(t, 0.35, elements[0].Confidence, 0.01)
}

func TestTextBeyondThresholdIsDiscarded(t *testing.T) {
	d := NewElementDetector(DefaultDetectorConfig(), nil)
	shape := mustCircle(t, 100, 100, 10)

	far := 10 + geometry.MMToPt(11)
	elements, _ := d.Detect([]geometry.Shape{shape}, []TextInstance{label("B2", 100+far, 100, 10)}, 1)
	assert.Empty(t, elements)
}

func TestWeakElementsFiltered(t *testing.T) {
	cfg := DefaultDetectorConfig()
	cfg.MinElementConfidence = 0.5
	d := NewElementDetector(cfg, nil)
	shape := mustCircle(t, 100, 100, 10)

	// 5 mm out gives 0.35, below the 0.5 floor.
	dist := 10 + geometry.MMToPt(5)
	elements, _ := d.Detect([]geometry.Shape{shape}, []TextInstance{label("B2", 100+dist, 100, 10)}, 1)
	assert.Empty(t, elements)
}

func TestInvalidLabelsRejected(t *testing.T) {
	d := NewElementDetector(DefaultDetectorConfig(), nil)
	shape := mustCircle(t, 100, 100, 20)

	tests := []struct {
		name string
		text TextInstance
	}{
		{"font too large", label("C1", 100, 100, 24)},
		{"font too small", label("C1", 100, 100, 6)},
		{"contains space", label("SEE NOTE", 100, 100, 10)},
		{"too long", label("ABCDEFGHIJK", 100, 100, 10)},
		{"no pattern match", label("hello", 100, 100, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elements, _ := d.Detect([]geometry.Shape{shape}, []TextInstance{tt.text}, 1)
			assert.Empty(t, elements)
		})
	}
}

func TestPrimaryAssociationWinsTieBreaks(t *testing.T) {
	d := NewElementDetector(DefaultDetectorConfig(), nil)
	shape := mustCircle(t, 100, 100, 30)

	// Both inside, both confidence 1.0: the smaller font wins.
	callout := label("C2", 90, 100, 9)
	title := label("C9", 110, 100, 18)

	elements, _ := d.Detect([]geometry.Shape{shape}, []TextInstance{title, callout}, 1)
	require.Len(t, elements, 1)
	assert.Equal(t, "C2", elements[0].ID)
	require.Len(t, elements[0].Associations, 2)
	assert.Equal(t, elements[0].Confidence, elements[0].Associations[0].Confidence,
		"first association is the highest-confidence one")

	// Equal confidence and font size: lexicographic order decides.
	a := label("A1", 90, 100, 10)
	b := label("B1", 110, 100, 10)
	elements, _ = d.Detect([]geometry.Shape{shape}, []TextInstance{b, a}, 1)
	require.Len(t, elements, 1)
	assert.Equal(t, "A1", elements[0].ID)
}

func TestSummaryAggregation(t *testing.T) {
	d := NewElementDetector(DefaultDetectorConfig(), nil)
	shapes := []geometry.Shape{
		mustCircle(t, 100, 100, 15),
		mustCircle(t, 300, 100, 15),
		mustCircle(t, 500, 100, 15),
	}
	texts := []TextInstance{
		label("C1", 100, 100, 10),
		label("C1", 300, 100, 10),
		label("B1", 500, 100, 10),
	}

	elements, summary := d.Detect(shapes, texts, 1)
	require.Len(t, elements, 3)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.CountsByID["C1"])
	assert.Equal(t, 1, summary.CountsByID["B1"])
	assert.Equal(t, 2, summary.CountsByType["column"])
	assert.Equal(t, 1, summary.CountsByType["beam"])
}

func TestMatchElementIDPatternOrder(t *testing.T) {
	patterns := DefaultElementPatterns()

	tests := []struct {
		text string
		want string
	}{
		{"C1", "column"},
		{"COL-12", "column"},
		{"BM3", "beam"},
		{"FTG2", "footing"},
		{"M8x20", "bolt"},
		{"A", "mark"},
		{"D2", "mark"},
	}
	for _, tt := range tests {
		got, ok := MatchElementID(tt.text, patterns)
		require.True(t, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}

	_, ok := MatchElementID("hello", patterns)
	assert.False(t, ok)
}
