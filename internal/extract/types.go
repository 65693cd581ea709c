// Package extract implements document extraction: the unified
// multi-task vision extraction (one LLM call per page covering text,
// layout, tables, entities, visual elements, and drawing metadata) and
// the rule-based extractors that need no model at all.
package extract

// LayoutBlock is one recognized layout region.
type LayoutBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
	BBox [4]int `json:"bbox"`
	Page int    `json:"page"`
}

// Table is one extracted table. Schedule tables (element marks with
// quantities) drive the drawing cross-validation.
type Table struct {
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	Caption    string     `json:"caption,omitempty"`
	BBox       [4]int     `json:"bbox"`
	Page       int        `json:"page"`
	IsSchedule bool       `json:"is_schedule"`
}

// Entity is one named entity occurrence.
type Entity struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	BBox     [4]int `json:"bbox"`
	Page     int    `json:"page"`
}

// ElementGroup is a set of identical visual elements counted on a page.
type ElementGroup struct {
	ElementType   string   `json:"element_type"`
	Count         int      `json:"count"`
	ClusterCenter [2]int   `json:"cluster_center"`
	Instances     [][2]int `json:"instances,omitempty"`
	Page          int      `json:"page"`
}

// ValidationEntry compares a schedule quantity against the count found
// in the drawing. A mismatch does not fail extraction; it is a computed
// property the consumer may act on.
type ValidationEntry struct {
	Required int  `json:"required"`
	Found    int  `json:"found"`
	Match    bool `json:"match"`
}

// VisualElements aggregates element groups and their schedule validation.
type VisualElements struct {
	ElementGroups []ElementGroup             `json:"element_groups"`
	Validation    map[string]ValidationEntry `json:"validation,omitempty"`
}

// DrawingMetadata is the title-block content of a drawing.
type DrawingMetadata struct {
	DrawingNumber string `json:"drawing_number,omitempty"`
	Title         string `json:"title,omitempty"`
	Revision      string `json:"revision,omitempty"`
	Scale         string `json:"scale,omitempty"`
	Date          string `json:"date,omitempty"`
	DrawnBy       string `json:"drawn_by,omitempty"`
	CheckedBy     string `json:"checked_by,omitempty"`
	Project       string `json:"project,omitempty"`
	Sheet         string `json:"sheet,omitempty"`
}

// merge copies fields from other into m where m is still empty.
func (m *DrawingMetadata) merge(other *DrawingMetadata) {
	if other == nil {
		return
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&m.DrawingNumber, other.DrawingNumber)
	fill(&m.Title, other.Title)
	fill(&m.Revision, other.Revision)
	fill(&m.Scale, other.Scale)
	fill(&m.Date, other.Date)
	fill(&m.DrawnBy, other.DrawnBy)
	fill(&m.CheckedBy, other.CheckedBy)
	fill(&m.Project, other.Project)
	fill(&m.Sheet, other.Sheet)
}

func (m *DrawingMetadata) empty() bool {
	return m == nil || *m == DrawingMetadata{}
}

// PageExtraction is the parsed response for one page.
type PageExtraction struct {
	Page            int              `json:"page"`
	Text            string           `json:"text"`
	Layout          []LayoutBlock    `json:"layout"`
	Tables          []Table          `json:"tables"`
	Entities        []Entity         `json:"entities"`
	VisualElements  VisualElements   `json:"visual_elements"`
	DrawingMetadata *DrawingMetadata `json:"drawing_metadata"`
	Summary         string           `json:"summary"`
}

// ExtractionResponse is the merged whole-document result. Success,
// costs, and timings are populated even on failure paths.
type ExtractionResponse struct {
	Success          bool             `json:"success"`
	Error            string           `json:"error,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	Text             string           `json:"text"`
	Layout           []LayoutBlock    `json:"layout"`
	Tables           []Table          `json:"tables"`
	Entities         []Entity         `json:"entities"`
	VisualElements   VisualElements   `json:"visual_elements"`
	DrawingMetadata  *DrawingMetadata `json:"drawing_metadata,omitempty"`
	Summary          string           `json:"summary"`
	PagesProcessed   int              `json:"pages_processed"`
	CostUSD          float64          `json:"cost_usd"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}
