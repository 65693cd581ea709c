package ui

import (
	"fmt"
	"strings"

	"github.com/steeltrace/steeltrace/internal/retrieval"
	"github.com/steeltrace/steeltrace/internal/takeoff"
)

const snippetLength = 160

// RenderSearchResults formats retrieval results for the terminal.
func RenderSearchResults(results []retrieval.RetrievedChunk, styles Styles) string {
	if len(results) == 0 {
		return styles.Dim.Render("No results.") + "\n"
	}

	var sb strings.Builder
	for i, r := range results {
		header := fmt.Sprintf("%d. %s  %s",
			i+1,
			styles.Score.Render(fmt.Sprintf("score=%.4f", r.Score)),
			styles.Label.Render(describeChunk(r)))
		sb.WriteString(styles.Header.Render(header))
		sb.WriteString("\n")
		sb.WriteString("   " + snippet(r.Content) + "\n")
		if len(r.MatchedTerms) > 0 {
			sb.WriteString("   " + styles.Dim.Render("matched: "+strings.Join(r.MatchedTerms, ", ")) + "\n")
		}
	}
	return sb.String()
}

func describeChunk(r retrieval.RetrievedChunk) string {
	parts := []string{r.Kind}
	if r.Page > 0 {
		parts = append(parts, fmt.Sprintf("page %d", r.Page))
	}
	parts = append(parts, "doc "+shortID(r.DocumentID))
	return strings.Join(parts, ", ")
}

// RenderTakeoffResult formats a takeoff run as an element table.
func RenderTakeoffResult(result *takeoff.Result, styles Styles) string {
	var sb strings.Builder
	sb.WriteString(styles.Header.Render(fmt.Sprintf("%d elements across %d pages",
		len(result.Elements), result.PagesProcessed)))
	sb.WriteString("\n")

	for _, el := range result.Elements {
		line := fmt.Sprintf("  %-12s %-18s page %-3d %s",
			el.ID, el.Type, el.Page, describeSpecs(el.Specs))
		sb.WriteString(line + "\n")
	}
	if result.CostUSD > 0 {
		sb.WriteString(styles.Label.Render(fmt.Sprintf("Cost: $%.4f", result.CostUSD)) + "\n")
	}
	for _, w := range result.Warnings {
		sb.WriteString(styles.Warning.Render("WARN: "+w) + "\n")
	}
	return sb.String()
}

func describeSpecs(specs takeoff.Specifications) string {
	var parts []string
	if d := specs.Dimensions; d != nil {
		parts = append(parts, fmt.Sprintf("%sx%sx%s",
			mmOrDash(d.WidthMM), mmOrDash(d.LengthMM), mmOrDash(d.DepthMM)))
	}
	if c := specs.Concrete; c != nil && c.Grade != "" {
		parts = append(parts, c.Grade)
	}
	if q := specs.Quantity; q != nil {
		if q.Count != nil {
			parts = append(parts, fmt.Sprintf("qty %d", *q.Count))
		} else if q.LinearMeters != nil {
			parts = append(parts, fmt.Sprintf("%.1fm", *q.LinearMeters))
		}
	}
	if l := specs.Location; l != nil && l.Location != "" {
		parts = append(parts, l.Location)
	}
	return strings.Join(parts, "  ")
}

func mmOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > snippetLength {
		content = content[:snippetLength] + "…"
	}
	return content
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
