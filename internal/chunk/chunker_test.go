package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/extract"
)

func TestKindAtomicity(t *testing.T) {
	assert.True(t, KindTable.Atomic())
	assert.True(t, KindMetadata.Atomic())
	assert.True(t, KindDrawingMetadata.Atomic())
	assert.False(t, KindText.Atomic())
	assert.False(t, KindVisualElementGroup.Atomic())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func TestSplitTextShortInputSingleChunk(t *testing.T) {
	parts := SplitText("hello world", 1000, 200)
	require.Len(t, parts, 1)
	assert.Equal(t, "hello world", parts[0])
}

func TestSplitTextBreaksOnParagraphs(t *testing.T) {
	// 3 paragraphs of ~100 tokens with a 150-token budget: each chunk
	// holds one paragraph (plus overlap seed).
	para := strings.Repeat("word ", 80)
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 3))

	parts := SplitText(text, 150, 0)
	require.Greater(t, len(parts), 1)
	for _, p := range parts {
		assert.LessOrEqual(t, EstimateTokens(p), 170, "chunks stay near the budget")
	}
}

func TestSplitTextOverlapCarriesTail(t *testing.T) {
	para := strings.Repeat("alpha ", 100)
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 4))

	parts := SplitText(text, 120, 30)
	require.Greater(t, len(parts), 1)
	tail := strings.TrimSpace(parts[0][len(parts[0])-30*CharsPerToken:])
	assert.True(t, strings.HasPrefix(parts[1], tail), "next chunk starts with the previous tail")
}

func TestSplitTextDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox. ", 500)
	a := SplitText(text, 100, 20)
	b := SplitText(text, 100, 20)
	assert.Equal(t, a, b)
}

func TestChunkExtractionKinds(t *testing.T) {
	resp := &extract.ExtractionResponse{
		Text: "Some page text.",
		Tables: []extract.Table{{
			Headers:    []string{"MARK", "QTY"},
			Rows:       [][]string{{"A", "15"}},
			Page:       1,
			IsSchedule: true,
		}},
		VisualElements: extract.VisualElements{
			ElementGroups: []extract.ElementGroup{{ElementType: "HEX BOLT", Count: 15, ClusterCenter: [2]int{400, 300}, Page: 1}},
		},
		DrawingMetadata: &extract.DrawingMetadata{DrawingNumber: "D-100", Title: "Plan"},
	}

	chunks := New(DefaultConfig(), nil).ChunkExtraction("doc-1", resp)
	require.Len(t, chunks, 4)

	byKind := map[Kind]Chunk{}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "chunk_index is sequential")
		assert.Equal(t, "doc-1", c.DocumentID)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, EstimateTokens(c.Content), c.TokenCount)
		byKind[c.Kind] = c
	}

	assert.Contains(t, byKind[KindTable].Content, "MARK | QTY")
	assert.Contains(t, byKind[KindTable].Content, "A | 15")
	assert.Equal(t, "true", byKind[KindTable].Metadata["is_schedule"])
	assert.Contains(t, byKind[KindVisualElementGroup].Content, "HEX BOLT: 15 instances")
	assert.Contains(t, byKind[KindDrawingMetadata].Content, "Drawing Number: D-100")
}

func TestChunkExtractionEmptyResponse(t *testing.T) {
	chunks := New(DefaultConfig(), nil).ChunkExtraction("doc-1", &extract.ExtractionResponse{})
	assert.Empty(t, chunks)
}
