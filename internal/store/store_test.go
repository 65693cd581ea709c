package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steeltrace/steeltrace/internal/chunk"
	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/extract"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedDocument(t *testing.T, s *Store) *Document {
	t.Helper()
	ctx := context.Background()
	kb, err := s.CreateKnowledgeBase(ctx, KnowledgeBase{Name: "drawings"})
	require.NoError(t, err)
	doc, err := s.CreateDocument(ctx, Document{
		KnowledgeBaseID: kb.ID,
		FilePath:        "/tmp/plan.pdf",
		FileName:        "plan.pdf",
	})
	require.NoError(t, err)
	return doc
}

func TestKnowledgeBaseLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb, err := s.CreateKnowledgeBase(ctx, KnowledgeBase{Name: "structural", Description: "plans"})
	require.NoError(t, err)
	assert.NotEmpty(t, kb.ID)
	assert.Equal(t, 1000, kb.ChunkSize)

	got, err := s.GetKnowledgeBase(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, "structural", got.Name)

	list, err := s.ListKnowledgeBases(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.DeleteKnowledgeBase(ctx, kb.ID))
	_, err = s.GetKnowledgeBase(ctx, kb.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputNotFound, errors.GetCode(err))
}

func TestKnowledgeBaseStatsReconcileAfterSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kb, err := s.CreateKnowledgeBase(ctx, KnowledgeBase{Name: "structural"})
	require.NoError(t, err)

	docA, err := s.CreateDocument(ctx, Document{KnowledgeBaseID: kb.ID, FilePath: "/tmp/a.pdf", FileName: "a.pdf"})
	require.NoError(t, err)
	docB, err := s.CreateDocument(ctx, Document{KnowledgeBaseID: kb.ID, FilePath: "/tmp/b.pdf", FileName: "b.pdf"})
	require.NoError(t, err)

	require.NoError(t, s.StoreChunks(ctx, docA.ID, []chunk.Chunk{
		{ID: "a1", Index: 0, Kind: chunk.KindText, Content: "x", TokenCount: 10},
		{ID: "a2", Index: 1, Kind: chunk.KindText, Content: "y", TokenCount: 5},
	}))
	require.NoError(t, s.StoreChunks(ctx, docB.ID, []chunk.Chunk{
		{ID: "b1", Index: 0, Kind: chunk.KindText, Content: "z", TokenCount: 7},
	}))
	_, err = s.StoreExtraction(ctx, docA.ID, &extract.ExtractionResponse{Success: true, Text: "x", CostUSD: 0.04},
		FileMetadata{FileName: "a.pdf"}, kb.ID)
	require.NoError(t, err)

	stats, err := s.GetKnowledgeBaseStats(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Chunks)
	assert.InDelta(t, 0.04, stats.ExtractionCost, 1e-9)

	// Soft-deleting a document drops its share of every counter.
	require.NoError(t, s.DeleteDocument(ctx, docA.ID))
	stats, err = s.GetKnowledgeBaseStats(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 7, stats.Tokens)
	assert.Zero(t, stats.ExtractionCost)
}

func TestVectorIndexLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kb, err := s.CreateKnowledgeBase(ctx, KnowledgeBase{Name: "structural"})
	require.NoError(t, err)

	rec, err := s.EnsureVectorIndex(ctx, VectorIndexRecord{
		KnowledgeBaseID: kb.ID, Backend: "hnsw", Metric: "cosine", Dimensions: 1536,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, VectorIndexInitializing, rec.Status)
	assert.Zero(t, rec.VectorCount)

	// Ensure is idempotent: the second call returns the same descriptor.
	again, err := s.EnsureVectorIndex(ctx, VectorIndexRecord{KnowledgeBaseID: kb.ID})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	require.NoError(t, s.SetVectorIndexStatus(ctx, kb.ID, VectorIndexUpdating))
	require.NoError(t, s.FinishVectorIndexUpdate(ctx, kb.ID, 12))
	require.NoError(t, s.FinishVectorIndexUpdate(ctx, kb.ID, 5))

	got, err := s.GetVectorIndex(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorIndexActive, got.Status)
	assert.Equal(t, 17, got.VectorCount)
	assert.Equal(t, "hnsw", got.Backend)
	assert.Equal(t, 1536, got.Dimensions)

	// Deletes never drive the count below zero.
	require.NoError(t, s.FinishVectorIndexUpdate(ctx, kb.ID, -40))
	got, err = s.GetVectorIndex(ctx, kb.ID)
	require.NoError(t, err)
	assert.Zero(t, got.VectorCount)

	err = s.SetVectorIndexStatus(ctx, kb.ID, "melted")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))

	_, err = s.GetVectorIndex(ctx, "no-such-kb")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputNotFound, errors.GetCode(err))
}

func TestReconcileVectorIndexStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kb, err := s.CreateKnowledgeBase(ctx, KnowledgeBase{Name: "structural"})
	require.NoError(t, err)
	_, err = s.EnsureVectorIndex(ctx, VectorIndexRecord{KnowledgeBaseID: kb.ID})
	require.NoError(t, err)

	// A descriptor stranded mid-write goes back to active.
	require.NoError(t, s.SetVectorIndexStatus(ctx, kb.ID, VectorIndexUpdating))
	require.NoError(t, s.ReconcileVectorIndexStatus(ctx, kb.ID))
	got, err := s.GetVectorIndex(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorIndexActive, got.Status)

	// An error status survives reconciliation.
	require.NoError(t, s.SetVectorIndexStatus(ctx, kb.ID, VectorIndexError))
	require.NoError(t, s.ReconcileVectorIndexStatus(ctx, kb.ID))
	got, err = s.GetVectorIndex(ctx, kb.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorIndexError, got.Status)
}

func TestDeleteKnowledgeBaseRetiresVectorIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	kb, err := s.CreateKnowledgeBase(ctx, KnowledgeBase{Name: "structural"})
	require.NoError(t, err)
	_, err = s.EnsureVectorIndex(ctx, VectorIndexRecord{KnowledgeBaseID: kb.ID})
	require.NoError(t, err)

	require.NoError(t, s.DeleteKnowledgeBase(ctx, kb.ID))
	_, err = s.GetVectorIndex(ctx, kb.ID)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInputNotFound, errors.GetCode(err))
}

func TestCreateKnowledgeBaseRequiresName(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateKnowledgeBase(context.Background(), KnowledgeBase{})
	require.Error(t, err)
}

func TestDeleteKnowledgeBaseCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StoreChunks(ctx, doc.ID, []chunk.Chunk{
		{ID: "c1", DocumentID: doc.ID, Kind: chunk.KindText, Content: "hello", TokenCount: 2},
	}))
	require.NoError(t, s.DeleteKnowledgeBase(ctx, doc.KnowledgeBaseID))

	_, err := s.GetDocument(ctx, doc.ID)
	require.Error(t, err)
	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStoreExtractionUpdatesAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	resp := &extract.ExtractionResponse{
		Success: true,
		Text:    "page text",
		Tables:  []extract.Table{{Headers: []string{"A"}, Page: 1}},
		Layout:  []extract.LayoutBlock{{Type: "paragraph"}},
		Entities: []extract.Entity{{Text: "EN 1992", Category: "standard"}},
		Summary: "a drawing",
		CostUSD: 0.05,
	}
	rec, err := s.StoreExtraction(ctx, doc.ID, resp, FileMetadata{FileName: "plan.pdf", DocType: "engineering_drawing"}, doc.KnowledgeBaseID)
	require.NoError(t, err)
	assert.True(t, rec.Success)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "engineering_drawing", got.DocType)
	assert.InDelta(t, 1.0, got.QualityScore, 1e-9, "all bonuses present")
	assert.InDelta(t, 0.05, got.ExtractionCost, 1e-9)

	stored, _, err := s.GetExtraction(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "page text", stored.Text)
}

func TestStoreExtractionFailureSetsFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	resp := &extract.ExtractionResponse{Success: false, Error: "no model"}
	_, err := s.StoreExtraction(ctx, doc.ID, resp, FileMetadata{}, doc.KnowledgeBaseID)
	require.NoError(t, err)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Zero(t, got.QualityScore)
}

func TestQualityScoreTable(t *testing.T) {
	cases := []struct {
		name string
		resp *extract.ExtractionResponse
		want float64
	}{
		{"failure", &extract.ExtractionResponse{Success: false, Text: "x"}, 0},
		{"bare success", &extract.ExtractionResponse{Success: true}, 0.3},
		{"text only", &extract.ExtractionResponse{Success: true, Text: "x"}, 0.5},
		{"text and tables", &extract.ExtractionResponse{Success: true, Text: "x", Tables: []extract.Table{{}}}, 0.65},
		{"two warnings", &extract.ExtractionResponse{Success: true, Text: "x", Warnings: []string{"a", "b"}}, 0.3},
		{"warning cap", &extract.ExtractionResponse{Success: true, Text: "x", Warnings: []string{"a", "b", "c", "d", "e"}}, 0.2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, QualityScore(tc.resp), 1e-9)
		})
	}
}

func TestStoreChunksReplacesAndAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StoreChunks(ctx, doc.ID, []chunk.Chunk{
		{ID: "c1", Index: 0, Kind: chunk.KindText, Content: "first", TokenCount: 10,
			Metadata: map[string]string{"kind": "text"}},
		{ID: "c2", Index: 1, Kind: chunk.KindTable, Content: "A | B", TokenCount: 5},
	}))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ChunkCount)
	assert.Equal(t, 15, got.TokenCount)

	// Replacement removes old rows.
	require.NoError(t, s.StoreChunks(ctx, doc.ID, []chunk.Chunk{
		{ID: "c3", Index: 0, Kind: chunk.KindText, Content: "new", TokenCount: 1},
	}))
	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c3", chunks[0].ID)
}

func TestGetChunksByIDsPreservesOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StoreChunks(ctx, doc.ID, []chunk.Chunk{
		{ID: "c1", Index: 0, Kind: chunk.KindText, Content: "one"},
		{ID: "c2", Index: 1, Kind: chunk.KindText, Content: "two"},
		{ID: "c3", Index: 2, Kind: chunk.KindText, Content: "three"},
	}))

	chunks, err := s.GetChunksByIDs(ctx, []string{"c3", "missing", "c1"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c3", chunks[0].ID)
	assert.Equal(t, "c1", chunks[1].ID)
}

func TestSetChunkVectorIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StoreChunks(ctx, doc.ID, []chunk.Chunk{
		{ID: "c1", Index: 0, Kind: chunk.KindText, Content: "x"},
	}))
	require.NoError(t, s.SetChunkVectorIDs(ctx, map[string]string{"c1": "v1"}))

	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", chunks[0].VectorID)
}

func TestRecordRetrievalRollingMean(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StoreChunks(ctx, doc.ID, []chunk.Chunk{
		{ID: "c1", Index: 0, Kind: chunk.KindText, Content: "x"},
	}))

	require.NoError(t, s.RecordRetrieval(ctx, map[string]float64{"c1": 0.8}))
	require.NoError(t, s.RecordRetrieval(ctx, map[string]float64{"c1": 0.4}))

	chunks, err := s.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, chunks[0].RetrievalCount)
	assert.InDelta(t, 0.6, chunks[0].MeanRelevance, 1e-9)
}

func TestStorePagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StorePages(ctx, doc.ID, []Page{
		{PageNumber: 1, Text: "page one", WordCount: 2, TokenCount: 3, ImageWidth: 2480, ImageHeight: 3508},
		{PageNumber: 2, Text: "page two", ProbablyScanned: true},
	}))

	pages, err := s.GetPages(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "page one", pages[0].Text)
	assert.Equal(t, 2, pages[0].WordCount)
	assert.Equal(t, 3, pages[0].TokenCount)
	assert.Equal(t, 2480, pages[0].ImageWidth)
	assert.Equal(t, 3508, pages[0].ImageHeight)
	assert.True(t, pages[1].ProbablyScanned)
	assert.Zero(t, pages[1].ImageWidth, "never rasterized")
}

func TestRecordQueryWithResults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	q, err := s.RecordQuery(ctx, QueryRecord{
		KnowledgeBaseID: "kb1",
		QueryText:       "bolt schedule",
		TopK:            5,
		FusionMode:      "rrf",
		Reranked:        true,
		EmbeddingMS:     12,
		RetrievalMS:     30,
		RerankMS:        3,
	}, []QueryResultRecord{
		{ChunkID: "c2", Rank: 1, Score: 0.9},
		{ChunkID: "c1", Rank: 2, Score: 0.8},
	})
	require.NoError(t, err)

	results, err := s.GetQueryResults(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c2", results[0].ChunkID)
}

func TestStoreTakeoffElements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	doc := seedDocument(t, s)

	require.NoError(t, s.StoreTakeoffElements(ctx, doc.ID, []TakeoffElementRecord{
		{ElementID: "C1", ElementType: "concrete-column", Page: 2, Payload: `{"width_mm":400}`, Completeness: 0.6},
		{ElementID: "B1", ElementType: "beam", Page: 1, Payload: `{}`, Completeness: 0.3},
	}, 0.12))

	elements, err := s.GetTakeoffElements(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, elements, 2)
	assert.Equal(t, "B1", elements[0].ElementID, "ordered by page")

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.12, got.ExtractionCost, 1e-9)
}
