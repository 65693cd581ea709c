package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/steeltrace/steeltrace/internal/errors"
)

// parsePageJSON decodes one page's model output. Models occasionally
// wrap the object in markdown fences or prose despite the contract;
// the parser tolerates both. Missing keys are empty values, not errors.
func parsePageJSON(raw string, page int) (*PageExtraction, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, errors.New(errors.ErrCodeParseFailure, "no JSON object in model output", nil).
			WithDetail("page", strconv.Itoa(page))
	}

	var pe PageExtraction
	if err := json.Unmarshal([]byte(payload), &pe); err != nil {
		return nil, errors.New(errors.ErrCodeParseFailure, "malformed JSON in model output", err).
			WithDetail("page", strconv.Itoa(page))
	}
	pe.Page = page

	for i := range pe.Layout {
		pe.Layout[i].Page = page
	}
	for i := range pe.Tables {
		pe.Tables[i].Page = page
	}
	for i := range pe.Entities {
		pe.Entities[i].Page = page
	}
	for i := range pe.VisualElements.ElementGroups {
		pe.VisualElements.ElementGroups[i].Page = page
	}
	if pe.DrawingMetadata.empty() {
		pe.DrawingMetadata = nil
	}
	return &pe, nil
}

// extractJSONObject returns the outermost {...} in raw, stripping
// markdown fences first.
func extractJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if i := strings.LastIndex(raw, "```"); i >= 0 {
			raw = raw[:i]
		}
		raw = strings.TrimSpace(raw)
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}
