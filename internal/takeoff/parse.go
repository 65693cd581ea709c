package takeoff

import (
	"regexp"
	"strconv"
	"strings"
)

// Reinforcement grammar. Small and explicit: a bar callout is
// letter(s)+digits '@' digits, a fabric callout is SL or F followed by
// digits.
var (
	barPattern    = regexp.MustCompile(`^([A-Za-z]+\d+)@(\d+)$`)
	fabricPattern = regexp.MustCompile(`^(SL\d+|F\d+)$`)

	// Quantities: a plain count, or linear meters like "12m" / "12.5 m"
	// / "12 lm".
	countPattern  = regexp.MustCompile(`^(\d+)$`)
	linearPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:m|lm|m\.)$`)

	smallIntPattern = regexp.MustCompile(`^\d{1,3}$`)
)

// junkIDWords are placeholder fragments models emit when a page has no
// real schedule.
var junkIDWords = []string{"example", "typical", "see", "etc", "various", "n/a", "none", "tbd", "..."}

const maxElementIDLength = 50

// normalizeRow converts a raw row into an element, or reports it as
// junk. Junk rows: empty id, placeholder ids, plain small integers as
// ids, ids over 50 chars, and rows carrying no dimension, no
// reinforcement, and no concrete grade.
func normalizeRow(row Row) (*Element, bool) {
	id := row.cell(colID)
	if id == "" || len(id) > maxElementIDLength || smallIntPattern.MatchString(id) {
		return nil, false
	}
	lower := strings.ToLower(id)
	for _, w := range junkIDWords {
		if strings.Contains(lower, w) {
			return nil, false
		}
	}

	el := &Element{
		ID:         id,
		Type:       row.cell(colType),
		Confidence: 1.0,
	}
	if p, err := strconv.Atoi(row.cell(colPage)); err == nil {
		el.Page = p
	}

	dims := parseDimensions(row)
	reinf := parseReinforcement(row)
	concrete := parseConcrete(row)
	if dims == nil && reinf == nil && (concrete == nil || concrete.Grade == "") {
		return nil, false
	}

	el.Specs = Specifications{
		Dimensions:    dims,
		Reinforcement: reinf,
		Concrete:      concrete,
		Quantity:      parseQuantity(row.cell(colQty)),
		Location:      parseLocation(row),
		Finish:        row.cell(colFinish),
		Typical:       isAffirmative(row.cell(colTypical)),
	}
	if notes := row.cell(colNotes); notes != "" {
		el.Notes = []string{notes}
	}
	return el, true
}

func parseDimensions(row Row) *Dimensions {
	w := parseMM(row.cell(colWidth))
	l := parseMM(row.cell(colLength))
	d := parseMM(row.cell(colDepth))
	if w == nil && l == nil && d == nil {
		return nil
	}
	return &Dimensions{WidthMM: w, LengthMM: l, DepthMM: d}
}

// parseMM reads an integer millimeter value, tolerating a trailing
// unit ("400", "400mm", "400 mm").
func parseMM(s string) *int {
	if s == "" {
		return nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(s), "mm"))
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func parseReinforcement(row Row) *Reinforcement {
	top := parseReinfSpec(row.cell(colTopReinf))
	bottom := parseReinfSpec(row.cell(colBotReinf))
	side := parseReinfSpec(row.cell(colSideReinf))
	if top == nil && bottom == nil && side == nil {
		return nil
	}
	return &Reinforcement{Top: top, Bottom: bottom, Side: side}
}

func parseReinfSpec(s string) *ReinfSpec {
	if s == "" {
		return nil
	}
	compact := strings.ReplaceAll(s, " ", "")
	if m := barPattern.FindStringSubmatch(compact); m != nil {
		spacing, _ := strconv.Atoi(m[2])
		return &ReinfSpec{BarSize: strings.ToUpper(m[1]), SpacingMM: spacing}
	}
	if m := fabricPattern.FindStringSubmatch(strings.ToUpper(compact)); m != nil {
		return &ReinfSpec{FabricType: m[1]}
	}
	return &ReinfSpec{Raw: s}
}

func parseConcrete(row Row) *Concrete {
	grade := row.cell(colGrade)
	cover := row.cell(colCover)
	if grade == "" && cover == "" {
		return nil
	}
	c := &Concrete{Grade: grade}
	if cover != "" {
		if n, err := strconv.Atoi(cover); err == nil {
			c.CoverMM = &n
		} else {
			c.CoverText = cover
		}
	}
	return c
}

func parseQuantity(s string) *Quantity {
	if s == "" {
		return nil
	}
	compact := strings.ToLower(strings.TrimSpace(s))
	if m := countPattern.FindStringSubmatch(compact); m != nil {
		n, _ := strconv.Atoi(m[1])
		return &Quantity{Count: &n}
	}
	if m := linearPattern.FindStringSubmatch(compact); m != nil {
		v, _ := strconv.ParseFloat(m[1], 64)
		return &Quantity{LinearMeters: &v}
	}
	return nil
}

func parseLocation(row Row) *Location {
	loc := row.cell(colLocation)
	zone := row.cell(colZone)
	level := row.cell(colLevel)
	if loc == "" && zone == "" && level == "" {
		return nil
	}
	return &Location{Location: loc, Zone: zone, Level: level}
}

func isAffirmative(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "TRUE", "TYP", "TYPICAL":
		return true
	default:
		return false
	}
}
