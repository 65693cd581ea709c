package drawing

import (
	"testing"

	"github.com/dslipak/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/geometry"
)

func glyph(s string, x, y, w, size float64) pdf.Text {
	return pdf.Text{Font: "Helvetica", FontSize: size, X: x, Y: y, W: w, S: s}
}

func TestGroupGlyphsJoinsAdjacentCharacters(t *testing.T) {
	glyphs := []pdf.Text{
		glyph("C", 100, 500, 6, 10),
		glyph("1", 106.5, 500, 6, 10), // 0.5 pt gap: same word
		glyph("B", 130, 500, 6, 10),   // 17.5 pt gap: new word
		glyph("2", 136, 500, 6, 10),
	}

	words := groupGlyphs(glyphs, 1)
	require.Len(t, words, 2)
	assert.Equal(t, "C1", words[0].Text)
	assert.Equal(t, "B2", words[1].Text)
	assert.Equal(t, 1, words[0].Page)
	assert.Equal(t, 10.0, words[0].FontSize)
}

func TestGroupGlyphsSplitsOnVerticalGap(t *testing.T) {
	glyphs := []pdf.Text{
		glyph("A", 100, 500, 6, 10),
		glyph("B", 106, 503, 6, 10), // 3 pt vertical gap: new word
	}

	words := groupGlyphs(glyphs, 1)
	require.Len(t, words, 2)
}

func TestGroupGlyphsWhitespaceBreaksWords(t *testing.T) {
	glyphs := []pdf.Text{
		glyph("A", 100, 500, 6, 10),
		glyph(" ", 106, 500, 3, 10),
		glyph("B", 109, 500, 6, 10),
	}

	words := groupGlyphs(glyphs, 1)
	require.Len(t, words, 2)
	assert.Equal(t, "A", words[0].Text)
	assert.Equal(t, "B", words[1].Text)
}

func TestGroupGlyphsWordBox(t *testing.T) {
	glyphs := []pdf.Text{
		glyph("X", 100, 500, 6, 12),
		glyph("Y", 106, 500, 6, 12),
	}

	words := groupGlyphs(glyphs, 1)
	require.Len(t, words, 1)
	assert.Equal(t, 100.0, words[0].Box.X0)
	assert.Equal(t, 112.0, words[0].Box.X1)
	assert.Equal(t, 500.0, words[0].Box.Y0)
	assert.Equal(t, 512.0, words[0].Box.Y1)
}

func TestDedupCollapsesOverstrokes(t *testing.T) {
	a := TextInstance{Text: "C1", Center: geometry.Point{X: 100, Y: 200}}
	aAgain := TextInstance{Text: "C1", Center: geometry.Point{X: 100.4, Y: 200.3}}
	b := TextInstance{Text: "C1", Center: geometry.Point{X: 150, Y: 200}}
	c := TextInstance{Text: "C2", Center: geometry.Point{X: 100, Y: 200}}

	out := Dedup([]TextInstance{a, aAgain, b, c}, 2.0)
	assert.Len(t, out, 3, "same text at the same quantized center collapses")
}

func TestDedupIdempotent(t *testing.T) {
	in := []TextInstance{
		{Text: "C1", Center: geometry.Point{X: 100, Y: 200}},
		{Text: "C1", Center: geometry.Point{X: 100.1, Y: 200.1}},
		{Text: "B2", Center: geometry.Point{X: 50, Y: 50}},
	}

	once := Dedup(in, 2.0)
	onceCopy := make([]TextInstance, len(once))
	copy(onceCopy, once)
	twice := Dedup(onceCopy, 2.0)
	assert.Equal(t, once, twice)
}

func TestDedupLeavesInputIntact(t *testing.T) {
	in := []TextInstance{
		{Text: "C1", Center: geometry.Point{X: 100, Y: 200}},
		{Text: "C1", Center: geometry.Point{X: 100.2, Y: 200.1}},
		{Text: "B2", Center: geometry.Point{X: 50, Y: 50}},
	}
	original := make([]TextInstance, len(in))
	copy(original, in)

	out := Dedup(in, 2.0)

	assert.Len(t, out, 2)
	assert.Equal(t, original, in, "caller's slice is not reordered or truncated")
}

func TestFlipToImageOrigin(t *testing.T) {
	instances := []TextInstance{{
		Text:   "C1",
		Box:    geometry.BBox{X0: 10, Y0: 700, X1: 30, Y1: 712},
		Center: geometry.Point{X: 20, Y: 706},
	}}

	flipToImageOrigin(instances, 792)

	assert.Equal(t, geometry.BBox{X0: 10, Y0: 80, X1: 30, Y1: 92}, instances[0].Box)
	assert.Equal(t, geometry.Point{X: 20, Y: 86}, instances[0].Center)

	// Flipping twice restores the original.
	flipToImageOrigin(instances, 792)
	assert.Equal(t, geometry.Point{X: 20, Y: 706}, instances[0].Center)
}
