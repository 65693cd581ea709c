package extract

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pageN(n int) *PageExtraction {
	return &PageExtraction{
		Page:    n,
		Text:    "content",
		Summary: "summary",
		Layout:  []LayoutBlock{{Type: "heading", Text: "H", Page: n}},
	}
}

func TestMergeIsDeterministicUnderPermutation(t *testing.T) {
	build := func(order []int) ExtractionResponse {
		pages := make([]*PageExtraction, 0, len(order))
		for _, n := range order {
			pages = append(pages, pageN(n))
		}
		return mergePages(pages)
	}

	reference := build([]int{1, 2, 3, 4, 5})
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		order := []int{1, 2, 3, 4, 5}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		got := build(order)
		assert.Equal(t, reference.Text, got.Text)
		assert.Equal(t, reference.Layout, got.Layout)
		assert.Equal(t, reference.Summary, got.Summary)
	}
}

func TestMergeTextSeparators(t *testing.T) {
	merged := mergePages([]*PageExtraction{
		{Page: 2, Text: "second"},
		{Page: 1, Text: "first"},
	})
	assert.Equal(t, "--- Page 1 ---\n\nfirst\n\n--- Page 2 ---\n\nsecond", merged.Text)
}

func TestMergeDrawingMetadataFirstPageWins(t *testing.T) {
	merged := mergePages([]*PageExtraction{
		{Page: 3, DrawingMetadata: &DrawingMetadata{DrawingNumber: "D-999", Scale: "1:50"}},
		{Page: 1, DrawingMetadata: &DrawingMetadata{DrawingNumber: "D-100", Title: "Foundation Plan"}},
	})

	require.NotNil(t, merged.DrawingMetadata)
	assert.Equal(t, "D-100", merged.DrawingMetadata.DrawingNumber, "first page that supplies a field wins")
	assert.Equal(t, "Foundation Plan", merged.DrawingMetadata.Title)
	assert.Equal(t, "1:50", merged.DrawingMetadata.Scale, "later pages contribute missing fields")
}

func TestScheduleValidationHappyPath(t *testing.T) {
	tables := []Table{{
		Headers:    []string{"MARK", "TYPE", "SIZE", "QUANTITY", "MATERIAL"},
		Rows:       [][]string{{"A", "HEX BOLT", "M8x20", "15", "Grade 8.8 Steel"}},
		IsSchedule: true,
	}}
	groups := []ElementGroup{{ElementType: "HEX BOLT", Count: 15}}

	v := scheduleValidation(tables, groups)
	require.Contains(t, v, "HEX_BOLT_M8x20")
	assert.Equal(t, ValidationEntry{Required: 15, Found: 15, Match: true}, v["HEX_BOLT_M8x20"])
}

func TestScheduleValidationMismatch(t *testing.T) {
	tables := []Table{{
		Headers: []string{"TYPE", "QTY"},
		Rows:    [][]string{{"RIVET", "20"}},
	}}
	groups := []ElementGroup{{ElementType: "rivet", Count: 12}}

	v := scheduleValidation(tables, groups)
	require.Contains(t, v, "RIVET")
	assert.Equal(t, ValidationEntry{Required: 20, Found: 12, Match: false}, v["RIVET"])
}

func TestScheduleValidationIgnoresNonScheduleTables(t *testing.T) {
	tables := []Table{{
		Headers: []string{"NOTE", "DETAIL"},
		Rows:    [][]string{{"1", "see sheet 2"}},
	}}
	assert.Nil(t, scheduleValidation(tables, nil))
}

func TestParsePageJSONToleratesFences(t *testing.T) {
	raw := "```json\n{\"text\": \"hello\", \"tables\": []}\n```"
	pe, err := parsePageJSON(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, "hello", pe.Text)
	assert.Equal(t, 3, pe.Page)
}

func TestParsePageJSONAdoptsPageNumbers(t *testing.T) {
	raw := `{"layout": [{"type": "note", "text": "x"}], "tables": [{"headers": ["A"], "rows": [["1"]]}]}`
	pe, err := parsePageJSON(raw, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, pe.Layout[0].Page)
	assert.Equal(t, 7, pe.Tables[0].Page)
}

func TestParsePageJSONMalformed(t *testing.T) {
	_, err := parsePageJSON("the page shows a beam layout", 2)
	require.Error(t, err)

	_, err = parsePageJSON(`{"text": `, 2)
	require.Error(t, err)
}

func TestParsePageJSONMissingKeysAreEmpty(t *testing.T) {
	pe, err := parsePageJSON(`{}`, 1)
	require.NoError(t, err)
	assert.Empty(t, pe.Text)
	assert.Empty(t, pe.Tables)
	assert.Nil(t, pe.DrawingMetadata)
}
