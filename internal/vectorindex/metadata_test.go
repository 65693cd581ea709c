package vectorindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMetadataTruncatesStrings(t *testing.T) {
	meta := SanitizeMetadata(map[string]any{
		"long": strings.Repeat("x", 3000),
	})
	assert.Len(t, meta["long"], 2000)
}

func TestSanitizeMetadataCapsLists(t *testing.T) {
	list := make([]string, 150)
	for i := range list {
		list[i] = "item"
	}
	meta := SanitizeMetadata(map[string]any{"tags": list})
	assert.Len(t, meta["tags"], 100)
}

func TestSanitizeMetadataFlattensSmallMaps(t *testing.T) {
	meta := SanitizeMetadata(map[string]any{
		"drawing": map[string]any{"number": "D-100", "revision": "B"},
	})
	assert.Equal(t, "D-100", meta["drawing_number"])
	assert.Equal(t, "B", meta["drawing_revision"])
	assert.NotContains(t, meta, "drawing")
}

func TestSanitizeMetadataSerializesLargeMaps(t *testing.T) {
	nested := map[string]any{}
	for _, k := range []string{"a", "b", "c", "d", "e", "f"} {
		nested[k] = k
	}
	meta := SanitizeMetadata(map[string]any{"big": nested})
	s, ok := meta["big"].(string)
	require.True(t, ok, "oversized nested map becomes a JSON string")
	assert.Contains(t, s, `"a":"a"`)
}

func TestSanitizeMetadataPassthroughScalars(t *testing.T) {
	meta := SanitizeMetadata(map[string]any{
		"count": 15,
		"score": 0.85,
		"flag":  true,
		"name":  "beam",
		"skip":  nil,
	})
	assert.Equal(t, 15, meta["count"])
	assert.Equal(t, 0.85, meta["score"])
	assert.Equal(t, true, meta["flag"])
	assert.Equal(t, "beam", meta["name"])
	assert.NotContains(t, meta, "skip")
}

func TestSanitizeMetadataConvertsMixedLists(t *testing.T) {
	meta := SanitizeMetadata(map[string]any{
		"mixed": []any{"a", 2, true},
	})
	assert.Equal(t, []string{"a", "2", "true"}, meta["mixed"])
}

func TestMatchesFilter(t *testing.T) {
	meta := map[string]any{"kind": "table", "page": 3}
	assert.True(t, matchesFilter(meta, Filter{"kind": "table"}))
	assert.True(t, matchesFilter(meta, Filter{"kind": "table", "page": 3}))
	assert.True(t, matchesFilter(meta, Filter{"page": "3"}), "numeric values match their string form")
	assert.False(t, matchesFilter(meta, Filter{"kind": "text"}))
	assert.False(t, matchesFilter(meta, Filter{"missing": "x"}))
	assert.True(t, matchesFilter(meta, nil))
}
