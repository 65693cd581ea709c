package takeoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTableBasic(t *testing.T) {
	response := "Here is the schedule:\n\n" +
		TableHeader + "\n" +
		"C1|concrete-column|1|400|400|3000|4|-|-|N12@200|N40|40|-|Grid A|Zone 1|L1|-|NO\n" +
		"B1|beam|1|300|-|600|2|N16@150|N16@150|-|N32|40|-|Grid B|-|L1|see detail 5|YES\n" +
		"\nCONTINUE: NO\n"

	rows, ok := ParseTable(response)
	require.True(t, ok)
	require.Len(t, rows, 2)
	assert.Equal(t, "C1", rows[0][colID])
	assert.Equal(t, "concrete-column", rows[0][colType])
	assert.Equal(t, "-", rows[0][colTopReinf])
	assert.Equal(t, "YES", rows[1][colTypical])
}

func TestParseTableNoElementsSentinel(t *testing.T) {
	rows, ok := ParseTable("This page is a title block.\n\nNO ELEMENTS\n")
	require.True(t, ok)
	assert.Empty(t, rows)
}

func TestParseTableMissingHeader(t *testing.T) {
	_, ok := ParseTable("The page shows general notes only.")
	assert.False(t, ok)
}

func TestParseTableToleratesMarkdownDecoration(t *testing.T) {
	response := "| " + TableHeader + " |\n" +
		"|---|---|---|---|---|---|---|---|---|---|---|---|---|---|---|---|---|---|\n" +
		"| F1 | footing | 2 | 1200 | 1200 | 400 | 6 | - | N16@200 | - | N32 | 50 | - | - | - | - | - | - |\n"

	rows, ok := ParseTable(response)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "F1", rows[0][colID])
	assert.Equal(t, "1200", rows[0][colWidth])
}

func TestParseTableDropsWrongColumnCount(t *testing.T) {
	response := TableHeader + "\n" +
		"C1|concrete-column|1|400\n" +
		"C2|concrete-column|1|400|400|3000|4|-|-|N12@200|N40|40|-|-|-|-|-|NO\n"

	rows, ok := ParseTable(response)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "C2", rows[0][colID])
}

func TestParseTableStopsAtContinuation(t *testing.T) {
	response := TableHeader + "\n" +
		"C1|concrete-column|1|400|400|3000|4|-|-|N12@200|N40|40|-|-|-|-|-|NO\n" +
		"CONTINUE: YES\n" +
		"stray text after the table\n"

	rows, ok := ParseTable(response)
	require.True(t, ok)
	assert.Len(t, rows, 1)
}

// parse(render(rows)) == rows for rows that conform to the 18-column
// contract.
func TestRenderParseRoundTrip(t *testing.T) {
	rows := []Row{
		{"C1", "concrete-column", "1", "400", "400", "3000", "4", "-", "-", "N12@200", "N40", "40", "-", "Grid A", "Zone 1", "L1", "-", "NO"},
		{"B1", "beam", "2", "300", "-", "600", "2", "N16@150", "N16@150", "-", "N32", "40", "-", "-", "-", "-", "see detail 5", "YES"},
		{"S1", "slab", "3", "-", "-", "200", "-", "SL82", "SL82", "-", "N32", "30", "steel trowel", "-", "-", "L2", "-", "-"},
	}

	parsed, ok := ParseTable(RenderTable(rows))
	require.True(t, ok)
	assert.Equal(t, rows, parsed)
}

func TestRenderTableFillsEmptyCells(t *testing.T) {
	rows := []Row{{"C1", "concrete-column", "1"}}
	rendered := RenderTable(rows)

	parsed, ok := ParseTable(rendered)
	require.True(t, ok)
	require.Len(t, parsed, 1)
	assert.Equal(t, "-", parsed[0][colWidth])
	assert.Equal(t, "-", parsed[0][colTypical])
}
