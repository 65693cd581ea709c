package drawing

import "regexp"

// ElementPattern recognizes an element-ID token and hints its type.
type ElementPattern struct {
	Pattern  *regexp.Regexp
	TypeHint string
}

// DefaultElementPatterns is the standard mark-token table for structural
// and fastener drawings. Order matters: the first matching pattern
// supplies the type hint.
func DefaultElementPatterns() []ElementPattern {
	return []ElementPattern{
		{regexp.MustCompile(`^(?:C|COL)-?\d{1,3}[A-Z]?$`), "column"},
		{regexp.MustCompile(`^(?:B|BM|GB)-?\d{1,3}[A-Z]?$`), "beam"},
		{regexp.MustCompile(`^(?:F|FTG|PF)-?\d{1,3}[A-Z]?$`), "footing"},
		{regexp.MustCompile(`^(?:W|WL)-?\d{1,3}[A-Z]?$`), "wall"},
		{regexp.MustCompile(`^(?:S|SL)-?\d{1,3}[A-Z]?$`), "slab"},
		{regexp.MustCompile(`^(?:P|PC)-?\d{1,3}[A-Z]?$`), "pile"},
		{regexp.MustCompile(`^M\d{1,2}(?:x\d{1,3})?$`), "bolt"},
		{regexp.MustCompile(`^(?:R|RV)-?\d{1,3}$`), "rivet"},
		// Bare mark letters with an optional index: "A", "D2", "T12".
		{regexp.MustCompile(`^[A-Z]{1,2}\d{0,3}$`), "mark"},
	}
}

// MatchElementID returns the type hint of the first pattern matching
// text, or false when nothing matches.
func MatchElementID(text string, patterns []ElementPattern) (string, bool) {
	for _, p := range patterns {
		if p.Pattern.MatchString(text) {
			return p.TypeHint, true
		}
	}
	return "", false
}
