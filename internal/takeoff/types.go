// Package takeoff enumerates and quantifies engineering elements in a
// drawing set. An LLM cannot reliably return an entire set's element
// table in one response, so extraction iterates page by page over the
// stored per-page text and aggregates the rows.
package takeoff

// Element is one normalized engineering element.
type Element struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Page       int             `json:"page"`
	Confidence float64         `json:"confidence"`
	Specs      Specifications  `json:"specifications"`
	Notes      []string        `json:"notes,omitempty"`
}

// Specifications is the schema-constrained payload of an element. Each
// group is present only when the source row carried it.
type Specifications struct {
	Dimensions    *Dimensions    `json:"dimensions,omitempty"`
	Reinforcement *Reinforcement `json:"reinforcement,omitempty"`
	Concrete      *Concrete      `json:"concrete,omitempty"`
	Quantity      *Quantity      `json:"quantity,omitempty"`
	Location      *Location      `json:"location,omitempty"`
	Finish        string         `json:"finish,omitempty"`
	Typical       bool           `json:"typical,omitempty"`
}

// Dimensions are integer millimeters. Nil means unknown.
type Dimensions struct {
	WidthMM  *int `json:"width_mm,omitempty"`
	LengthMM *int `json:"length_mm,omitempty"`
	DepthMM  *int `json:"depth_mm,omitempty"`
}

// Reinforcement holds up to three faces of reinforcement.
type Reinforcement struct {
	Top    *ReinfSpec `json:"top,omitempty"`
	Bottom *ReinfSpec `json:"bottom,omitempty"`
	Side   *ReinfSpec `json:"side,omitempty"`
}

// ReinfSpec is one parsed reinforcement callout: either a bar size
// with spacing (N12@200) or a fabric type (SL82, F72). Raw keeps the
// source text when neither grammar matches.
type ReinfSpec struct {
	BarSize    string `json:"bar_size,omitempty"`
	SpacingMM  int    `json:"spacing_mm,omitempty"`
	FabricType string `json:"fabric_type,omitempty"`
	Raw        string `json:"raw,omitempty"`
}

// Concrete holds the grade and cover. Cover is integer mm when the
// source was purely numeric, else kept as text.
type Concrete struct {
	Grade     string `json:"grade,omitempty"`
	CoverMM   *int   `json:"cover_mm,omitempty"`
	CoverText string `json:"cover_text,omitempty"`
}

// Quantity is either a piece count or linear meters.
type Quantity struct {
	Count        *int     `json:"count,omitempty"`
	LinearMeters *float64 `json:"linear_meters,omitempty"`
}

// Location positions the element in the building.
type Location struct {
	Location string `json:"location,omitempty"`
	Zone     string `json:"zone,omitempty"`
	Level    string `json:"level,omitempty"`
}

// Result is one takeoff run.
type Result struct {
	DocumentID       string    `json:"document_id"`
	Elements         []Element `json:"elements"`
	PagesProcessed   int       `json:"pages_processed"`
	Warnings         []string  `json:"warnings,omitempty"`
	CostUSD          float64   `json:"cost_usd"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
}
