package takeoff

import (
	"fmt"
	"sort"
	"strings"
)

// Field group and leaf names used by the schemas.
const (
	GroupDimensions    = "dimensions"
	GroupReinforcement = "reinforcement"
	GroupConcrete      = "concrete"
	GroupQuantity      = "quantity"
	GroupLocation      = "location"
	GroupFinish        = "finish"
)

// Schema declares the allowed field groups for one element type and the
// leaf fields inside each group. Missing groups are tolerated by
// validation; groups outside the schema are errors.
type Schema map[string][]string

// TypeSchemas maps a normalized element type to its schema. Unknown
// types fall back to the permissive default schema.
type TypeSchemas map[string]Schema

// DefaultSchemas covers the common structural element types.
func DefaultSchemas() TypeSchemas {
	full := Schema{
		GroupDimensions:    {"width_mm", "length_mm", "depth_mm"},
		GroupReinforcement: {"top", "bottom", "side"},
		GroupConcrete:      {"grade", "cover"},
		GroupQuantity:      {"value"},
		GroupLocation:      {"location", "zone", "level"},
		GroupFinish:        {"finish"},
	}
	return TypeSchemas{
		"concrete-column": Schema{
			GroupDimensions:    {"width_mm", "length_mm", "depth_mm"},
			GroupReinforcement: {"side"},
			GroupConcrete:      {"grade", "cover"},
			GroupQuantity:      {"value"},
			GroupLocation:      {"location", "zone", "level"},
		},
		"beam": Schema{
			GroupDimensions:    {"width_mm", "depth_mm"},
			GroupReinforcement: {"top", "bottom", "side"},
			GroupConcrete:      {"grade", "cover"},
			GroupQuantity:      {"value"},
			GroupLocation:      {"location", "zone", "level"},
		},
		"slab": Schema{
			GroupDimensions:    {"depth_mm"},
			GroupReinforcement: {"top", "bottom"},
			GroupConcrete:      {"grade", "cover"},
			GroupLocation:      {"location", "zone", "level"},
			GroupFinish:        {"finish"},
		},
		"footing": Schema{
			GroupDimensions:    {"width_mm", "length_mm", "depth_mm"},
			GroupReinforcement: {"bottom"},
			GroupConcrete:      {"grade", "cover"},
			GroupQuantity:      {"value"},
			GroupLocation:      {"location", "zone", "level"},
		},
		"wall": Schema{
			GroupDimensions:    {"width_mm", "length_mm"},
			GroupReinforcement: {"side"},
			GroupConcrete:      {"grade", "cover"},
			GroupLocation:      {"location", "zone", "level"},
			GroupFinish:        {"finish"},
		},
		"default": full,
	}
}

// SchemaFor resolves the schema for an element type, normalizing the
// type token and falling back to the default schema.
func (s TypeSchemas) SchemaFor(elementType string) Schema {
	key := strings.ToLower(strings.TrimSpace(elementType))
	key = strings.ReplaceAll(key, " ", "-")
	key = strings.ReplaceAll(key, "_", "-")
	if schema, ok := s[key]; ok {
		return schema
	}
	return s["default"]
}

// specFields flattens the populated leaves of a specifications object
// into group -> leaf -> value. Absent leaves are omitted.
func specFields(specs Specifications) map[string]map[string]any {
	out := map[string]map[string]any{}
	put := func(group, leaf string, v any) {
		if out[group] == nil {
			out[group] = map[string]any{}
		}
		out[group][leaf] = v
	}

	if d := specs.Dimensions; d != nil {
		if d.WidthMM != nil {
			put(GroupDimensions, "width_mm", *d.WidthMM)
		}
		if d.LengthMM != nil {
			put(GroupDimensions, "length_mm", *d.LengthMM)
		}
		if d.DepthMM != nil {
			put(GroupDimensions, "depth_mm", *d.DepthMM)
		}
	}
	if r := specs.Reinforcement; r != nil {
		if r.Top != nil {
			put(GroupReinforcement, "top", r.Top)
		}
		if r.Bottom != nil {
			put(GroupReinforcement, "bottom", r.Bottom)
		}
		if r.Side != nil {
			put(GroupReinforcement, "side", r.Side)
		}
	}
	if c := specs.Concrete; c != nil {
		if c.Grade != "" {
			put(GroupConcrete, "grade", c.Grade)
		}
		if c.CoverMM != nil {
			put(GroupConcrete, "cover", *c.CoverMM)
		} else if c.CoverText != "" {
			put(GroupConcrete, "cover", c.CoverText)
		}
	}
	if q := specs.Quantity; q != nil {
		if q.Count != nil {
			put(GroupQuantity, "value", *q.Count)
		} else if q.LinearMeters != nil {
			put(GroupQuantity, "value", *q.LinearMeters)
		}
	}
	if l := specs.Location; l != nil {
		if l.Location != "" {
			put(GroupLocation, "location", l.Location)
		}
		if l.Zone != "" {
			put(GroupLocation, "zone", l.Zone)
		}
		if l.Level != "" {
			put(GroupLocation, "level", l.Level)
		}
	}
	if specs.Finish != "" {
		put(GroupFinish, "finish", specs.Finish)
	}
	return out
}

// Validate checks specifications against a schema. Missing groups are
// tolerated; groups and leaves outside the schema are errors.
func (s Schema) Validate(specs Specifications) (bool, []string) {
	var errs []string
	fields := specFields(specs)

	groups := make([]string, 0, len(fields))
	for g := range fields {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, group := range groups {
		allowed, ok := s[group]
		if !ok {
			errs = append(errs, fmt.Sprintf("unexpected field group %q", group))
			continue
		}
		leaves := make([]string, 0, len(fields[group]))
		for leaf := range fields[group] {
			leaves = append(leaves, leaf)
		}
		sort.Strings(leaves)
		for _, leaf := range leaves {
			if !contains(allowed, leaf) {
				errs = append(errs, fmt.Sprintf("unexpected field %s.%s", group, leaf))
			}
		}
	}
	return len(errs) == 0, errs
}

// Sanitize drops any group or leaf the schema does not declare. The
// result is always a field-wise subset of the input and of the schema.
func (s Schema) Sanitize(specs Specifications) Specifications {
	out := specs

	if allowed, ok := s[GroupDimensions]; !ok {
		out.Dimensions = nil
	} else if d := out.Dimensions; d != nil {
		kept := *d
		if !contains(allowed, "width_mm") {
			kept.WidthMM = nil
		}
		if !contains(allowed, "length_mm") {
			kept.LengthMM = nil
		}
		if !contains(allowed, "depth_mm") {
			kept.DepthMM = nil
		}
		if kept.WidthMM == nil && kept.LengthMM == nil && kept.DepthMM == nil {
			out.Dimensions = nil
		} else {
			out.Dimensions = &kept
		}
	}

	if allowed, ok := s[GroupReinforcement]; !ok {
		out.Reinforcement = nil
	} else if r := out.Reinforcement; r != nil {
		kept := *r
		if !contains(allowed, "top") {
			kept.Top = nil
		}
		if !contains(allowed, "bottom") {
			kept.Bottom = nil
		}
		if !contains(allowed, "side") {
			kept.Side = nil
		}
		if kept.Top == nil && kept.Bottom == nil && kept.Side == nil {
			out.Reinforcement = nil
		} else {
			out.Reinforcement = &kept
		}
	}

	if allowed, ok := s[GroupConcrete]; !ok {
		out.Concrete = nil
	} else if c := out.Concrete; c != nil {
		kept := *c
		if !contains(allowed, "grade") {
			kept.Grade = ""
		}
		if !contains(allowed, "cover") {
			kept.CoverMM = nil
			kept.CoverText = ""
		}
		if kept.Grade == "" && kept.CoverMM == nil && kept.CoverText == "" {
			out.Concrete = nil
		} else {
			out.Concrete = &kept
		}
	}

	if _, ok := s[GroupQuantity]; !ok {
		out.Quantity = nil
	}

	if allowed, ok := s[GroupLocation]; !ok {
		out.Location = nil
	} else if l := out.Location; l != nil {
		kept := *l
		if !contains(allowed, "location") {
			kept.Location = ""
		}
		if !contains(allowed, "zone") {
			kept.Zone = ""
		}
		if !contains(allowed, "level") {
			kept.Level = ""
		}
		if kept.Location == "" && kept.Zone == "" && kept.Level == "" {
			out.Location = nil
		} else {
			out.Location = &kept
		}
	}

	if _, ok := s[GroupFinish]; !ok {
		out.Finish = ""
	}
	return out
}

// Completeness is the share of schema leaf fields that are filled,
// in [0, 1]. It is 1 exactly when every leaf the schema declares has a
// value.
func (s Schema) Completeness(specs Specifications) float64 {
	total := 0
	for _, leaves := range s {
		total += len(leaves)
	}
	if total == 0 {
		return 0
	}
	fields := specFields(specs)
	filled := 0
	for group, leaves := range s {
		for _, leaf := range leaves {
			if _, ok := fields[group][leaf]; ok {
				filled++
			}
		}
	}
	return float64(filled) / float64(total)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
