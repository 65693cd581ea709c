package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemKeywordIndex(t *testing.T) *KeywordIndex {
	t.Helper()
	idx, err := NewKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestKeywordIndexSearch(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []KeywordDoc{
		{ID: "c1", Content: "HEX BOLT M8x20 galvanized, quantity 15"},
		{ID: "c2", Content: "Concrete column C1 400x400 grade C30"},
		{ID: "c3", Content: "Reinforcement schedule for slab S2"},
	}))
	assert.Equal(t, 3, idx.DocCount())

	hits, err := idx.Search(ctx, "bolt", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ID)
	assert.Greater(t, hits[0].Score, 0.0)
	assert.Contains(t, hits[0].MatchedTerms, "bolt")
}

func TestKeywordIndexEmptyQuery(t *testing.T) {
	idx := newMemKeywordIndex(t)
	hits, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordIndexDelete(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []KeywordDoc{
		{ID: "c1", Content: "steel beam IPE 200"},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"c1"}))

	hits, err := idx.Search(ctx, "beam", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 0, idx.DocCount())
}

func TestKeywordIndexReindexReplaces(t *testing.T) {
	idx := newMemKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, []KeywordDoc{{ID: "c1", Content: "footing F1"}}))
	require.NoError(t, idx.Index(ctx, []KeywordDoc{{ID: "c1", Content: "pile P3"}}))

	assert.Equal(t, 1, idx.DocCount())
	hits, err := idx.Search(ctx, "footing", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "old content is gone after reindex")
}

func TestDirKeywordProviderCachesPerNamespace(t *testing.T) {
	p := NewDirKeywordProvider(t.TempDir())
	t.Cleanup(func() { p.Close() })

	a, err := p.For("kb1")
	require.NoError(t, err)
	b, err := p.For("kb1")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := p.For("kb2")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}
