package vectorindex

import (
	"encoding/json"
	"fmt"
)

const (
	maxMetadataString  = 2000
	maxMetadataList    = 100
	maxFlattenedKeys   = 5
)

// SanitizeMetadata normalizes a metadata map to what vector backends
// accept: string, number, boolean, or list-of-strings values. Strings
// are truncated to 2000 chars, lists capped at 100 entries, and nested
// maps are flattened when small (at most 5 keys) or JSON-serialized
// otherwise. Unsupported values are stringified.
func SanitizeMetadata(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		sanitizeValue(out, k, v)
	}
	return out
}

func sanitizeValue(out map[string]any, key string, v any) {
	switch val := v.(type) {
	case nil:
		return
	case string:
		out[key] = truncate(val)
	case bool, int, int32, int64, float32, float64:
		out[key] = val
	case []string:
		out[key] = capList(val)
	case []any:
		list := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				list = append(list, s)
			} else {
				list = append(list, fmt.Sprintf("%v", item))
			}
		}
		out[key] = capList(list)
	case map[string]any:
		if len(val) <= maxFlattenedKeys {
			for nk, nv := range val {
				sanitizeValue(out, key+"_"+nk, nv)
			}
			return
		}
		if b, err := json.Marshal(val); err == nil {
			out[key] = truncate(string(b))
		}
	case map[string]string:
		if len(val) <= maxFlattenedKeys {
			for nk, nv := range val {
				out[key+"_"+nk] = truncate(nv)
			}
			return
		}
		if b, err := json.Marshal(val); err == nil {
			out[key] = truncate(string(b))
		}
	default:
		out[key] = truncate(fmt.Sprintf("%v", val))
	}
}

func truncate(s string) string {
	if len(s) > maxMetadataString {
		return s[:maxMetadataString]
	}
	return s
}

func capList(list []string) []string {
	if len(list) > maxMetadataList {
		list = list[:maxMetadataList]
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = truncate(s)
	}
	return out
}

// matchesFilter reports whether metadata satisfies every filter key by
// exact equality. String representations are compared so numeric types
// from JSON round trips still match.
func matchesFilter(meta map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
