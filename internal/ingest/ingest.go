// Package ingest orchestrates document storage in stages: extraction
// record, chunks, then embeddings and vector upsert. Later stages
// never roll back earlier ones; a vector failure degrades the document
// to keyword-only retrieval and surfaces as a warning.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steeltrace/steeltrace/internal/chunk"
	"github.com/steeltrace/steeltrace/internal/embed"
	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/extract"
	"github.com/steeltrace/steeltrace/internal/search"
	"github.com/steeltrace/steeltrace/internal/store"
	"github.com/steeltrace/steeltrace/internal/vectorindex"
)

// Request is one store_document call.
type Request struct {
	DocumentID      string
	KnowledgeBaseID string
	Extraction      *extract.ExtractionResponse
	FileMeta        store.FileMetadata
	// Pages optionally persists per-page text for later page-scoped
	// reprocessing (takeoff).
	Pages []store.Page
	// Chunks, when non-nil, are accepted as-is instead of generated.
	Chunks []chunk.Chunk
}

// StoreResult reports what each stage persisted. Success means the
// document reached a usable state; warnings list degraded stages.
type StoreResult struct {
	DocumentID    string   `json:"document_id"`
	ChunksStored  int      `json:"chunks_stored"`
	VectorsStored int      `json:"vectors_stored"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Success       bool     `json:"success"`
}

// Orchestrator is the only writer that spans extraction, chunk, and
// vector state in one logical action.
type Orchestrator struct {
	store    *store.Store
	chunker  *chunk.Chunker
	embedder embed.Embedder
	vectors  vectorindex.Index
	keywords search.KeywordProvider
	// backend, metric, and dimensions identify the vector index in its
	// per-KB descriptor row.
	backend    string
	metric     string
	dimensions int
	logger     *slog.Logger
}

// New wires the orchestrator.
func New(st *store.Store, chunker *chunk.Chunker, embedder embed.Embedder, vectors vectorindex.Index, keywords search.KeywordProvider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    st,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		logger:   logger,
	}
}

// WithIndexDescriptor records the vector backend identity written into
// each knowledge base's index descriptor.
func (o *Orchestrator) WithIndexDescriptor(backend, metric string, dimensions int) *Orchestrator {
	o.backend = backend
	o.metric = metric
	o.dimensions = dimensions
	return o
}

// StoreDocument runs the staged pipeline. Chunks are written only when
// the extraction record persisted; vectors are attempted only when
// chunks persisted.
func (o *Orchestrator) StoreDocument(ctx context.Context, req Request) (*StoreResult, error) {
	result := &StoreResult{
		DocumentID: req.DocumentID,
		Errors:     []string{},
		Warnings:   []string{},
	}
	if req.Extraction == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "extraction response is required", nil)
	}

	// Stage a: extraction record plus document aggregates.
	if _, err := o.store.StoreExtraction(ctx, req.DocumentID, req.Extraction, req.FileMeta, req.KnowledgeBaseID); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	if len(req.Pages) > 0 {
		if err := o.store.StorePages(ctx, req.DocumentID, req.Pages); err != nil {
			result.Warnings = append(result.Warnings, "pages not stored: "+err.Error())
		}
	}
	if !req.Extraction.Success {
		// A failed extraction is fully recorded; there is nothing to
		// chunk or embed.
		result.Success = true
		return result, nil
	}

	// Stage b: generate or accept chunks.
	chunks := req.Chunks
	if chunks == nil {
		chunks = o.chunker.ChunkExtraction(req.DocumentID, req.Extraction)
	}

	// Stage c: persist chunks.
	if err := o.store.StoreChunks(ctx, req.DocumentID, chunks); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	result.ChunksStored = len(chunks)

	// Keyword indexing degrades like vectors: a failure leaves the
	// document searchable by vector only.
	if err := o.indexKeywords(ctx, req.KnowledgeBaseID, chunks); err != nil {
		result.Warnings = append(result.Warnings, "keyword indexing failed: "+err.Error())
	}

	// Stage d: embeddings and vector upsert under the KB namespace. The
	// index descriptor tracks the write: updating while the upsert runs,
	// active with the new count on success, error on failure.
	o.beginIndexWrite(ctx, req.KnowledgeBaseID)
	stored, err := o.storeVectors(ctx, req.KnowledgeBaseID, chunks)
	if err != nil {
		o.markIndex(ctx, req.KnowledgeBaseID, store.VectorIndexError)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("vectors not stored (%s): %s", errors.GetCode(err), err.Error()))
		o.logger.Warn("vector stage failed, document stored without embeddings",
			slog.String("document_id", req.DocumentID),
			slog.String("error", err.Error()))
	} else {
		o.finishIndexWrite(ctx, req.KnowledgeBaseID, stored)
		result.VectorsStored = stored
	}

	result.Success = true
	return result, nil
}

// beginIndexWrite ensures the knowledge base's descriptor exists and
// marks it updating. Descriptor bookkeeping never fails an ingestion.
func (o *Orchestrator) beginIndexWrite(ctx context.Context, knowledgeBaseID string) {
	if _, err := o.store.EnsureVectorIndex(ctx, store.VectorIndexRecord{
		KnowledgeBaseID: knowledgeBaseID,
		Backend:         o.backend,
		Metric:          o.metric,
		Dimensions:      o.dimensions,
	}); err != nil {
		o.logger.Warn("failed to ensure vector index descriptor", slog.String("error", err.Error()))
		return
	}
	o.markIndex(ctx, knowledgeBaseID, store.VectorIndexUpdating)
}

func (o *Orchestrator) markIndex(ctx context.Context, knowledgeBaseID, status string) {
	if err := o.store.SetVectorIndexStatus(ctx, knowledgeBaseID, status); err != nil {
		o.logger.Warn("failed to update vector index status",
			slog.String("status", status), slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) finishIndexWrite(ctx context.Context, knowledgeBaseID string, added int) {
	if err := o.store.FinishVectorIndexUpdate(ctx, knowledgeBaseID, added); err != nil {
		o.logger.Warn("failed to finish vector index update", slog.String("error", err.Error()))
	}
}

// DeleteDocument removes a document everywhere: soft-deletes the rows
// and clears its vectors and keyword entries.
func (o *Orchestrator) DeleteDocument(ctx context.Context, documentID, knowledgeBaseID string) error {
	chunks, err := o.store.GetChunks(ctx, documentID)
	if err != nil {
		return err
	}
	if err := o.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := o.vectors.DeleteIDs(ctx, knowledgeBaseID, ids); err != nil {
		o.logger.Warn("failed to delete vectors", slog.String("error", err.Error()))
	} else if len(ids) > 0 {
		o.finishIndexWrite(ctx, knowledgeBaseID, -len(ids))
	}
	if kw, err := o.keywords.For(knowledgeBaseID); err == nil {
		if err := kw.Delete(ctx, ids); err != nil {
			o.logger.Warn("failed to delete keyword entries", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (o *Orchestrator) indexKeywords(ctx context.Context, knowledgeBaseID string, chunks []chunk.Chunk) error {
	kw, err := o.keywords.For(knowledgeBaseID)
	if err != nil {
		return err
	}
	docs := make([]search.KeywordDoc, len(chunks))
	for i, c := range chunks {
		docs[i] = search.KeywordDoc{ID: c.ID, Content: c.Content}
	}
	return kw.Index(ctx, docs)
}

// storeVectors embeds all chunk contents and upserts them under the
// knowledge base namespace, then records the vector ids on the chunks.
func (o *Orchestrator) storeVectors(ctx context.Context, knowledgeBaseID string, chunks []chunk.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embedded, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}

	vectors := make([]vectorindex.Vector, len(chunks))
	vectorIDs := make(map[string]string, len(chunks))
	for i, c := range chunks {
		meta := map[string]any{
			"document_id": c.DocumentID,
			"kind":        string(c.Kind),
			"token_count": c.TokenCount,
			"chunk_index": c.Index,
		}
		if c.Page > 0 {
			meta["page"] = c.Page
		}
		for k, v := range c.Metadata {
			meta[k] = v
		}
		vectors[i] = vectorindex.Vector{ID: c.ID, Values: embedded.Embeddings[i], Metadata: meta}
		vectorIDs[c.ID] = c.ID
	}

	if err := o.vectors.Upsert(ctx, knowledgeBaseID, vectors); err != nil {
		return 0, err
	}
	if err := o.store.SetChunkVectorIDs(ctx, vectorIDs); err != nil {
		return len(vectors), err
	}
	return len(vectors), nil
}
