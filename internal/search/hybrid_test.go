package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/vectorindex"
)

// memKeywordProvider serves a single in-memory index for every
// namespace.
type memKeywordProvider struct {
	idx *KeywordIndex
}

func (p *memKeywordProvider) For(string) (*KeywordIndex, error) { return p.idx, nil }

func newHybridFixture(t *testing.T) (*Hybrid, vectorindex.Index, *KeywordIndex) {
	t.Helper()
	vectors, err := vectorindex.NewHNSW(vectorindex.HNSWConfig{Dir: t.TempDir(), Dimensions: 3}, nil)
	require.NoError(t, err)
	require.NoError(t, vectors.Initialize(context.Background(), true))

	kw := newMemKeywordIndex(t)
	return NewHybrid(vectors, &memKeywordProvider{idx: kw}, nil), vectors, kw
}

func TestHybridSearchFusesBothSources(t *testing.T) {
	h, vectors, kw := newHybridFixture(t)
	ctx := context.Background()

	require.NoError(t, vectors.Upsert(ctx, "kb1", []vectorindex.Vector{
		{ID: "c1", Values: []float32{1, 0, 0}, Metadata: map[string]any{"kind": "text"}},
		{ID: "c2", Values: []float32{0, 1, 0}, Metadata: map[string]any{"kind": "table"}},
	}))
	require.NoError(t, kw.Index(ctx, []KeywordDoc{
		{ID: "c1", Content: "general notes about anchors"},
		{ID: "c2", Content: "HEX BOLT schedule M8x20"},
	}))

	results, err := h.Search(ctx, "kb1", []float32{1, 0, 0}, "bolt schedule", Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].ID, results[1].ID}
	assert.Contains(t, ids, "c1")
	assert.Contains(t, ids, "c2")

	for _, r := range results {
		if r.ID == "c2" {
			assert.True(t, r.KeywordRank > 0, "c2 matched the keyword query")
			assert.Equal(t, "table", r.Metadata["kind"])
		}
	}
}

func TestHybridSearchWeightedMode(t *testing.T) {
	h, vectors, kw := newHybridFixture(t)
	ctx := context.Background()

	require.NoError(t, vectors.Upsert(ctx, "kb1", []vectorindex.Vector{
		{ID: "c1", Values: []float32{1, 0, 0}},
	}))
	require.NoError(t, kw.Index(ctx, []KeywordDoc{{ID: "c1", Content: "column C1"}}))

	results, err := h.Search(ctx, "kb1", []float32{1, 0, 0}, "column", Options{
		TopK:          5,
		Mode:          FusionWeighted,
		VectorWeight:  0.6,
		KeywordWeight: 0.4,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// Perfect vector match plus top keyword hit: 0.6*1.0 + 0.4*1.0.
	assert.InDelta(t, 1.0, results[0].Score, 0.01)
}

func TestHybridSearchVectorOnlyMode(t *testing.T) {
	h, vectors, kw := newHybridFixture(t)
	ctx := context.Background()

	require.NoError(t, vectors.Upsert(ctx, "kb1", []vectorindex.Vector{
		{ID: "c1", Values: []float32{1, 0, 0}},
		{ID: "c2", Values: []float32{0, 1, 0}},
	}))
	// Only c2 matches the query text; vector-only mode must not see it.
	require.NoError(t, kw.Index(ctx, []KeywordDoc{{ID: "c2", Content: "bolt schedule"}}))

	results, err := h.Search(ctx, "kb1", []float32{1, 0, 0}, "bolt schedule", Options{
		TopK: 5,
		Mode: FusionVectorOnly,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ID, "similarity order, keyword match ignored")
	assert.Equal(t, 1, results[0].VectorRank)
	for _, r := range results {
		assert.Zero(t, r.KeywordRank)
		assert.False(t, r.InBothLists)
	}
}

func TestHybridSearchTrimsToTopK(t *testing.T) {
	h, vectors, kw := newHybridFixture(t)
	ctx := context.Background()

	docs := []vectorindex.Vector{
		{ID: "c1", Values: []float32{1, 0, 0}},
		{ID: "c2", Values: []float32{0.9, 0.1, 0}},
		{ID: "c3", Values: []float32{0.8, 0.2, 0}},
	}
	require.NoError(t, vectors.Upsert(ctx, "kb1", docs))
	require.NoError(t, kw.Index(ctx, []KeywordDoc{
		{ID: "c1", Content: "anchor plate"},
		{ID: "c2", Content: "anchor bolt"},
		{ID: "c3", Content: "anchor rail"},
	}))

	results, err := h.Search(ctx, "kb1", []float32{1, 0, 0}, "anchor", Options{TopK: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHybridSearchEmptyNamespace(t *testing.T) {
	h, _, _ := newHybridFixture(t)
	results, err := h.Search(context.Background(), "empty", []float32{1, 0, 0}, "anything", Options{TopK: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}
