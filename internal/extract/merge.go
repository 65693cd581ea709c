package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// mergePages folds per-page results into one response. Pages are
// processed in page-number order, so the merge is deterministic
// regardless of completion order.
func mergePages(pages []*PageExtraction) ExtractionResponse {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })

	var resp ExtractionResponse
	var textParts, summaryParts []string

	for _, pg := range pages {
		if pg.Text != "" {
			textParts = append(textParts, fmt.Sprintf("--- Page %d ---\n\n%s", pg.Page, pg.Text))
		}
		resp.Layout = append(resp.Layout, pg.Layout...)
		resp.Tables = append(resp.Tables, pg.Tables...)
		resp.Entities = append(resp.Entities, pg.Entities...)
		resp.VisualElements.ElementGroups = append(resp.VisualElements.ElementGroups, pg.VisualElements.ElementGroups...)

		if pg.DrawingMetadata != nil {
			if resp.DrawingMetadata == nil {
				md := *pg.DrawingMetadata
				resp.DrawingMetadata = &md
			} else {
				// First page wins; later pages contribute missing fields only.
				resp.DrawingMetadata.merge(pg.DrawingMetadata)
			}
		}
		if pg.Summary != "" {
			summaryParts = append(summaryParts, fmt.Sprintf("Page %d: %s", pg.Page, pg.Summary))
		}
	}

	resp.Text = strings.Join(textParts, "\n\n")
	resp.Summary = strings.Join(summaryParts, "\n")
	resp.PagesProcessed = len(pages)
	resp.VisualElements.Validation = scheduleValidation(resp.Tables, resp.VisualElements.ElementGroups)
	return resp
}

var nonKeyChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// normalizeKey collapses separators but keeps the original case, so
// "HEX BOLT" + "M8x20" keys as "HEX_BOLT_M8x20". Comparisons are
// case-insensitive.
func normalizeKey(parts ...string) string {
	joined := nonKeyChars.ReplaceAllString(strings.Join(parts, "_"), "_")
	return strings.Trim(joined, "_")
}

// scheduleValidation compares schedule/BOM quantities against counted
// visual elements, keyed by normalized type+size.
func scheduleValidation(tables []Table, groups []ElementGroup) map[string]ValidationEntry {
	required := make(map[string]int)

	for _, t := range tables {
		typeCol, sizeCol, qtyCol := scheduleColumns(t.Headers)
		if qtyCol < 0 || typeCol < 0 {
			continue
		}
		for _, row := range t.Rows {
			if typeCol >= len(row) || qtyCol >= len(row) {
				continue
			}
			qty, err := strconv.Atoi(strings.TrimSpace(row[qtyCol]))
			if err != nil || qty <= 0 {
				continue
			}
			parts := []string{row[typeCol]}
			if sizeCol >= 0 && sizeCol < len(row) {
				parts = append(parts, row[sizeCol])
			}
			key := normalizeKey(parts...)
			if key != "" {
				required[key] += qty
			}
		}
	}
	if len(required) == 0 {
		return nil
	}

	validation := make(map[string]ValidationEntry, len(required))
	for key, req := range required {
		uKey := strings.ToUpper(key)
		found := 0
		for _, g := range groups {
			gk := strings.ToUpper(normalizeKey(g.ElementType))
			if gk == "" {
				continue
			}
			if strings.Contains(uKey, gk) || strings.Contains(gk, uKey) {
				found += g.Count
			}
		}
		validation[key] = ValidationEntry{Required: req, Found: found, Match: found == req}
	}
	return validation
}

// scheduleColumns finds the type, size, and quantity column indexes.
// Returns -1 for columns not present.
func scheduleColumns(headers []string) (typeCol, sizeCol, qtyCol int) {
	typeCol, sizeCol, qtyCol = -1, -1, -1
	for i, h := range headers {
		switch strings.ToUpper(strings.TrimSpace(h)) {
		case "TYPE", "DESCRIPTION", "ELEMENT", "ELEMENT TYPE":
			if typeCol < 0 {
				typeCol = i
			}
		case "SIZE", "DIMENSION", "DIM":
			if sizeCol < 0 {
				sizeCol = i
			}
		case "QTY", "QUANTITY", "COUNT", "NO", "NO.":
			if qtyCol < 0 {
				qtyCol = i
			}
		}
	}
	return typeCol, sizeCol, qtyCol
}
