package takeoff

import (
	"strings"
)

// TableHeader is the exact 18-column wire format the model must emit.
const TableHeader = "ID|TYPE|PAGE|WIDTH|LENGTH|DEPTH|QTY|TOP_REINF|BOT_REINF|SIDE_REINF|GRADE|COVER|FINISH|LOCATION|ZONE|LEVEL|NOTES|TYPICAL"

// NoElementsSentinel marks a page with nothing to take off.
const NoElementsSentinel = "NO ELEMENTS"

const columnCount = 18

// Row is one raw table row, 18 cells, "-" for unknown.
type Row [columnCount]string

// Named cell indexes of the wire format.
const (
	colID = iota
	colType
	colPage
	colWidth
	colLength
	colDepth
	colQty
	colTopReinf
	colBotReinf
	colSideReinf
	colGrade
	colCover
	colFinish
	colLocation
	colZone
	colLevel
	colNotes
	colTypical
)

// ParseTable extracts rows from a model response. The header row is
// located anywhere in the text; rows follow until a blank line or a
// continuation sentinel. A NO ELEMENTS sentinel anywhere yields zero
// rows. Returns ok=false when neither the header nor the sentinel was
// found.
func ParseTable(response string) (rows []Row, ok bool) {
	lines := strings.Split(response, "\n")

	for _, line := range lines {
		if strings.Contains(strings.ToUpper(line), NoElementsSentinel) {
			return nil, true
		}
	}

	headerIdx := -1
	for i, line := range lines {
		if normalizeHeader(line) == TableHeader {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, false
	}

	for _, line := range lines[headerIdx+1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			break
		}
		upper := strings.ToUpper(trimmed)
		// CONTINUE: YES/NO is tolerated but ignored; it also ends the
		// table.
		if strings.HasPrefix(upper, "CONTINUE:") {
			break
		}
		// Markdown-style separator rows between header and data.
		if strings.Trim(trimmed, "-| ") == "" {
			continue
		}
		cells := splitRow(trimmed)
		if cells == nil {
			continue
		}
		rows = append(rows, *cells)
	}
	return rows, true
}

// RenderTable serializes rows back into the wire format. Empty cells
// become "-". parse(render(rows)) == rows for conforming rows.
func RenderTable(rows []Row) string {
	var sb strings.Builder
	sb.WriteString(TableHeader)
	sb.WriteString("\n")
	for _, row := range rows {
		cells := make([]string, columnCount)
		for i, c := range row {
			c = strings.TrimSpace(c)
			if c == "" {
				c = "-"
			}
			cells[i] = c
		}
		sb.WriteString(strings.Join(cells, "|"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func normalizeHeader(line string) string {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.ToUpper(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// splitRow parses one data row, tolerating surrounding pipes and cell
// whitespace. Rows with the wrong column count are dropped.
func splitRow(line string) *Row {
	line = strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(line, "|")
	if len(parts) != columnCount {
		return nil
	}
	var row Row
	for i, p := range parts {
		cell := strings.TrimSpace(p)
		if cell == "" {
			cell = "-"
		}
		row[i] = cell
	}
	return &row
}

// cell returns the value of a column, empty for the "-" placeholder.
func (r Row) cell(i int) string {
	v := strings.TrimSpace(r[i])
	if v == "-" {
		return ""
	}
	return v
}
