package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/chunk"
	"github.com/steeltrace/steeltrace/internal/embed"
	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/extract"
	"github.com/steeltrace/steeltrace/internal/search"
	"github.com/steeltrace/steeltrace/internal/store"
	"github.com/steeltrace/steeltrace/internal/vectorindex"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) (*embed.Result, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return &embed.Result{Embeddings: vectors, ModelUsed: "fake"}, nil
}
func (fakeEmbedder) Dimensions() int { return 3 }
func (fakeEmbedder) Model() string   { return "fake" }

// downIndex simulates an unreachable vector backend.
type downIndex struct{}

func (downIndex) Initialize(context.Context, bool) error { return downErr() }
func (downIndex) Upsert(context.Context, string, []vectorindex.Vector) error {
	return downErr()
}
func (downIndex) Search(context.Context, string, []float32, int, vectorindex.Filter) ([]vectorindex.SearchResult, error) {
	return nil, downErr()
}
func (downIndex) DeleteIDs(context.Context, string, []string) error          { return downErr() }
func (downIndex) DeleteByFilter(context.Context, string, vectorindex.Filter) error { return downErr() }
func (downIndex) DeleteNamespace(context.Context, string) error              { return downErr() }
func (downIndex) Stats(context.Context, string) (*vectorindex.Stats, error)  { return nil, downErr() }
func (downIndex) Close() error                                               { return nil }

func downErr() error {
	return errors.New(errors.ErrCodeVectorBackendUnavailable, "vector backend unreachable", nil)
}

type memKeywordProvider struct{ idx *search.KeywordIndex }

func (p *memKeywordProvider) For(string) (*search.KeywordIndex, error) { return p.idx, nil }

type fixture struct {
	orch  *Orchestrator
	store *store.Store
	kw    *search.KeywordIndex
	kbID  string
	docID string
}

func newFixture(t *testing.T, vectors vectorindex.Index) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	kb, err := st.CreateKnowledgeBase(ctx, store.KnowledgeBase{Name: "drawings"})
	require.NoError(t, err)
	doc, err := st.CreateDocument(ctx, store.Document{
		KnowledgeBaseID: kb.ID, FilePath: "/tmp/plan.pdf", FileName: "plan.pdf",
	})
	require.NoError(t, err)

	if vectors == nil {
		hnsw, err := vectorindex.NewHNSW(vectorindex.HNSWConfig{Dir: t.TempDir(), Dimensions: 3}, nil)
		require.NoError(t, err)
		require.NoError(t, hnsw.Initialize(ctx, true))
		vectors = hnsw
	}

	kw, err := search.NewKeywordIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { kw.Close() })

	orch := New(st, chunk.New(chunk.DefaultConfig(), nil), fakeEmbedder{}, vectors,
		&memKeywordProvider{idx: kw}, nil).
		WithIndexDescriptor("hnsw", "cosine", 3)
	return &fixture{orch: orch, store: st, kw: kw, kbID: kb.ID, docID: doc.ID}
}

func successfulExtraction() *extract.ExtractionResponse {
	return &extract.ExtractionResponse{
		Success: true,
		Text:    "General notes.\n\nAnchor layout per detail 5.",
		Tables: []extract.Table{{
			Headers: []string{"MARK", "QTY"},
			Rows:    [][]string{{"HB1", "15"}},
			Page:    1, IsSchedule: true,
		}},
		CostUSD: 0.02,
	}
}

func TestStoreDocumentHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.orch.StoreDocument(ctx, Request{
		DocumentID:      f.docID,
		KnowledgeBaseID: f.kbID,
		Extraction:      successfulExtraction(),
		FileMeta:        store.FileMetadata{FileName: "plan.pdf", DocType: "engineering_drawing"},
		Pages:           []store.Page{{PageNumber: 1, Text: "General notes."}},
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.Greater(t, result.ChunksStored, 0)
	assert.Equal(t, result.ChunksStored, result.VectorsStored)

	doc, err := f.store.GetDocument(ctx, f.docID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.Status)
	assert.Equal(t, result.ChunksStored, doc.ChunkCount)

	chunks, err := f.store.GetChunks(ctx, f.docID)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.Equal(t, c.ID, c.VectorID, "vector ids recorded on chunks")
	}

	pages, err := f.store.GetPages(ctx, f.docID)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Greater(t, f.kw.DocCount(), 0, "chunks reached the keyword index")

	idx, err := f.store.GetVectorIndex(ctx, f.kbID)
	require.NoError(t, err)
	assert.Equal(t, store.VectorIndexActive, idx.Status)
	assert.Equal(t, result.VectorsStored, idx.VectorCount)
	assert.Equal(t, "hnsw", idx.Backend)
	assert.Equal(t, 3, idx.Dimensions)
}

func TestStoreDocumentVectorFailureIsWarning(t *testing.T) {
	f := newFixture(t, downIndex{})
	ctx := context.Background()

	result, err := f.orch.StoreDocument(ctx, Request{
		DocumentID:      f.docID,
		KnowledgeBaseID: f.kbID,
		Extraction:      successfulExtraction(),
	})
	require.NoError(t, err, "vector failure does not fail the ingestion")

	assert.True(t, result.Success)
	assert.Zero(t, result.VectorsStored)
	assert.Greater(t, result.ChunksStored, 0)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], errors.ErrCodeVectorBackendUnavailable)

	doc, err := f.store.GetDocument(ctx, f.docID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, doc.Status, "chunks persisted, status stays completed")

	idx, err := f.store.GetVectorIndex(ctx, f.kbID)
	require.NoError(t, err)
	assert.Equal(t, store.VectorIndexError, idx.Status)
	assert.Zero(t, idx.VectorCount)
}

func TestStoreDocumentFailedExtractionStopsEarly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.orch.StoreDocument(ctx, Request{
		DocumentID:      f.docID,
		KnowledgeBaseID: f.kbID,
		Extraction:      &extract.ExtractionResponse{Success: false, Error: "no model available"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success, "the failure itself is recorded")
	assert.Zero(t, result.ChunksStored)

	doc, err := f.store.GetDocument(ctx, f.docID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, doc.Status)
}

func TestStoreDocumentAcceptsPrebuiltChunks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	result, err := f.orch.StoreDocument(ctx, Request{
		DocumentID:      f.docID,
		KnowledgeBaseID: f.kbID,
		Extraction:      successfulExtraction(),
		Chunks: []chunk.Chunk{
			{ID: "pre-1", DocumentID: f.docID, Index: 0, Kind: chunk.KindText, Content: "prebuilt", TokenCount: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksStored)

	chunks, err := f.store.GetChunks(ctx, f.docID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "pre-1", chunks[0].ID)
}

func TestDeleteDocumentClearsEverywhere(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.orch.StoreDocument(ctx, Request{
		DocumentID:      f.docID,
		KnowledgeBaseID: f.kbID,
		Extraction:      successfulExtraction(),
	})
	require.NoError(t, err)
	before := f.kw.DocCount()
	require.Greater(t, before, 0)

	require.NoError(t, f.orch.DeleteDocument(ctx, f.docID, f.kbID))

	_, err = f.store.GetDocument(ctx, f.docID)
	require.Error(t, err)
	assert.Zero(t, f.kw.DocCount())

	idx, err := f.store.GetVectorIndex(ctx, f.kbID)
	require.NoError(t, err)
	assert.Zero(t, idx.VectorCount, "descriptor count follows the delete")
	assert.Equal(t, store.VectorIndexActive, idx.Status)
}

func TestStoreDocumentRequiresExtraction(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.orch.StoreDocument(context.Background(), Request{DocumentID: f.docID})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "extraction"))
}
