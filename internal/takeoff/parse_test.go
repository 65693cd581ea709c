package takeoff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowWith(overrides map[int]string) Row {
	var row Row
	for i := range row {
		row[i] = "-"
	}
	for i, v := range overrides {
		row[i] = v
	}
	return row
}

func TestNormalizeRowFull(t *testing.T) {
	row := rowWith(map[int]string{
		colID: "C1", colType: "concrete-column", colPage: "3",
		colWidth: "400", colLength: "400", colDepth: "3000",
		colQty: "4", colSideReinf: "N12@200", colGrade: "N40", colCover: "40",
		colLocation: "Grid A", colZone: "Zone 1", colLevel: "L1",
		colNotes: "refer detail 5", colTypical: "YES",
	})

	el, ok := normalizeRow(row)
	require.True(t, ok)
	assert.Equal(t, "C1", el.ID)
	assert.Equal(t, 3, el.Page)
	require.NotNil(t, el.Specs.Dimensions)
	assert.Equal(t, 400, *el.Specs.Dimensions.WidthMM)
	assert.Equal(t, 3000, *el.Specs.Dimensions.DepthMM)
	require.NotNil(t, el.Specs.Reinforcement)
	require.NotNil(t, el.Specs.Reinforcement.Side)
	assert.Equal(t, "N12", el.Specs.Reinforcement.Side.BarSize)
	assert.Equal(t, 200, el.Specs.Reinforcement.Side.SpacingMM)
	require.NotNil(t, el.Specs.Concrete)
	assert.Equal(t, "N40", el.Specs.Concrete.Grade)
	assert.Equal(t, 40, *el.Specs.Concrete.CoverMM)
	require.NotNil(t, el.Specs.Quantity)
	assert.Equal(t, 4, *el.Specs.Quantity.Count)
	assert.Equal(t, "Grid A", el.Specs.Location.Location)
	assert.True(t, el.Specs.Typical)
	assert.Equal(t, []string{"refer detail 5"}, el.Notes)
}

func TestNormalizeRowRejectsJunk(t *testing.T) {
	substantive := map[int]string{colWidth: "400", colGrade: "N32"}

	cases := []struct {
		name string
		row  Row
	}{
		{"empty id", rowWith(substantive)},
		{"placeholder example", rowWith(mergeCells(substantive, colID, "EXAMPLE-1"))},
		{"placeholder typical", rowWith(mergeCells(substantive, colID, "typical column"))},
		{"placeholder see", rowWith(mergeCells(substantive, colID, "see schedule"))},
		{"plain small integer", rowWith(mergeCells(substantive, colID, "12"))},
		{"overlong id", rowWith(mergeCells(substantive, colID, strings.Repeat("C", 51)))},
		{"no substance", rowWith(map[int]string{colID: "C1", colType: "concrete-column", colQty: "4"})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := normalizeRow(tc.row)
			assert.False(t, ok)
		})
	}
}

func mergeCells(base map[int]string, col int, v string) map[int]string {
	out := map[int]string{col: v}
	for k, val := range base {
		out[k] = val
	}
	return out
}

func TestNormalizeRowGradeAloneIsSubstantive(t *testing.T) {
	el, ok := normalizeRow(rowWith(map[int]string{colID: "W1", colType: "wall", colGrade: "N32"}))
	require.True(t, ok)
	assert.Equal(t, "N32", el.Specs.Concrete.Grade)
	assert.Nil(t, el.Specs.Dimensions)
}

func TestParseReinfSpecGrammar(t *testing.T) {
	cases := []struct {
		in   string
		want ReinfSpec
	}{
		{"N12@200", ReinfSpec{BarSize: "N12", SpacingMM: 200}},
		{"n16 @ 150", ReinfSpec{BarSize: "N16", SpacingMM: 150}},
		{"HD20@300", ReinfSpec{BarSize: "HD20", SpacingMM: 300}},
		{"SL82", ReinfSpec{FabricType: "SL82"}},
		{"sl72", ReinfSpec{FabricType: "SL72"}},
		{"F72", ReinfSpec{FabricType: "F72"}},
		{"2 layers SL82", ReinfSpec{Raw: "2 layers SL82"}},
		{"as noted", ReinfSpec{Raw: "as noted"}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got := parseReinfSpec(tc.in)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
	assert.Nil(t, parseReinfSpec(""))
}

func TestParseQuantity(t *testing.T) {
	q := parseQuantity("12")
	require.NotNil(t, q)
	assert.Equal(t, 12, *q.Count)
	assert.Nil(t, q.LinearMeters)

	q = parseQuantity("14.5m")
	require.NotNil(t, q)
	assert.Nil(t, q.Count)
	assert.Equal(t, 14.5, *q.LinearMeters)

	q = parseQuantity("22 lm")
	require.NotNil(t, q)
	assert.Equal(t, 22.0, *q.LinearMeters)

	assert.Nil(t, parseQuantity("various"))
	assert.Nil(t, parseQuantity(""))
}

func TestParseConcreteCover(t *testing.T) {
	c := parseConcrete(rowWith(map[int]string{colGrade: "N40", colCover: "40"}))
	require.NotNil(t, c)
	assert.Equal(t, 40, *c.CoverMM)
	assert.Empty(t, c.CoverText)

	c = parseConcrete(rowWith(map[int]string{colGrade: "N40", colCover: "40 top / 50 bottom"}))
	require.NotNil(t, c)
	assert.Nil(t, c.CoverMM)
	assert.Equal(t, "40 top / 50 bottom", c.CoverText)
}

func TestParseMMToleratesUnits(t *testing.T) {
	n := parseMM("400mm")
	require.NotNil(t, n)
	assert.Equal(t, 400, *n)

	assert.Nil(t, parseMM("varies"))
	assert.Nil(t, parseMM("-450"))
	assert.Nil(t, parseMM(""))
}
