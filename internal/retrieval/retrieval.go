// Package retrieval answers queries against a knowledge base: embed
// the query, run hybrid search, optionally rerank, hydrate chunk
// content, and record retrieval statistics.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/steeltrace/steeltrace/internal/embed"
	"github.com/steeltrace/steeltrace/internal/errors"
	"github.com/steeltrace/steeltrace/internal/search"
	"github.com/steeltrace/steeltrace/internal/store"
	"github.com/steeltrace/steeltrace/internal/vectorindex"
)

// DefaultRerankTopK is the search depth used when reranking so the
// reranker sees more candidates than the caller asked for.
const DefaultRerankTopK = 50

// Request is one retrieval query.
type Request struct {
	KnowledgeBaseID string
	Query           string
	// TopK is the number of results returned (default: 5).
	TopK int
	// Rerank enables the configured reranker. When set, the underlying
	// search runs at RerankTopK depth before trimming to TopK.
	Rerank     bool
	RerankTopK int
	// Diversify selects the final TopK by maximal marginal relevance
	// instead of taking the head of the fused list. The search runs at
	// RerankTopK depth to give the selection a candidate pool.
	Diversify bool
	// DiversityBias weighs diversity against relevance in [0,1]
	// (default: DefaultDiversityBias).
	DiversityBias float64
	Mode          search.FusionMode
	// VectorWeight and KeywordWeight apply in weighted mode.
	VectorWeight  float64
	KeywordWeight float64
	Filter        vectorindex.Filter
}

// RetrievedChunk is one hit with its stored content.
type RetrievedChunk struct {
	search.Result
	Content    string
	DocumentID string
	Kind       string
	Page       int
}

// Response carries the results and the latency split.
type Response struct {
	Results     []RetrievedChunk
	QueryID     string
	EmbeddingMS int64
	RetrievalMS int64
	RerankMS    int64
}

// Service wires the embedder, hybrid search, reranker, and store.
type Service struct {
	embedder embed.Embedder
	hybrid   *search.Hybrid
	reranker search.Reranker
	store    *store.Store
	logger   *slog.Logger
}

// New creates the retrieval service. reranker may be nil when
// reranking is never requested.
func New(embedder embed.Embedder, hybrid *search.Hybrid, reranker search.Reranker, st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder: embedder,
		hybrid:   hybrid,
		reranker: reranker,
		store:    st,
		logger:   logger,
	}
}

// Retrieve runs the full query path. Embedding, retrieval, and
// reranking latencies are measured separately.
func (s *Service) Retrieve(ctx context.Context, req Request) (*Response, error) {
	if req.Query == "" {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "query text is required", nil)
	}
	if req.KnowledgeBaseID == "" {
		return nil, errors.New(errors.ErrCodeInvalidQuery, "knowledge base id is required", nil)
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}
	if req.RerankTopK <= 0 {
		req.RerankTopK = DefaultRerankTopK
	}

	embedStart := time.Now()
	embedded, err := s.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, err
	}
	if len(embedded.Embeddings) != 1 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "query embedding missing", nil)
	}
	embeddingMS := time.Since(embedStart).Milliseconds()

	depth := req.TopK
	if req.Rerank || req.Diversify {
		depth = req.RerankTopK
	}

	searchStart := time.Now()
	fused, err := s.hybrid.Search(ctx, req.KnowledgeBaseID, embedded.Embeddings[0], req.Query, search.Options{
		TopK:          depth,
		Mode:          req.Mode,
		VectorWeight:  req.VectorWeight,
		KeywordWeight: req.KeywordWeight,
		Filter:        req.Filter,
	})
	if err != nil {
		return nil, err
	}
	retrievalMS := time.Since(searchStart).Milliseconds()

	var rerankMS int64
	if req.Rerank && s.reranker != nil {
		rerankStart := time.Now()
		fused, err = s.reranker.Rerank(ctx, req.Query, fused)
		if err != nil {
			return nil, err
		}
		rerankMS = time.Since(rerankStart).Milliseconds()
	}
	// Diversification needs the chunk text, so the candidate pool is
	// hydrated in full and trimmed after selection.
	if !req.Diversify && len(fused) > req.TopK {
		fused = fused[:req.TopK]
	}

	results, err := s.hydrate(ctx, fused)
	if err != nil {
		return nil, err
	}
	if req.Diversify {
		results = selectDiverse(results, req.TopK, req.DiversityBias)
	}

	s.updateStats(ctx, req.KnowledgeBaseID, results)

	resp := &Response{
		Results:     results,
		EmbeddingMS: embeddingMS,
		RetrievalMS: retrievalMS,
		RerankMS:    rerankMS,
	}
	if q := s.recordQuery(ctx, req, results, embeddingMS, retrievalMS, rerankMS); q != "" {
		resp.QueryID = q
	}
	return resp, nil
}

// hydrate loads chunk content for the fused ids. Vector ids without a
// stored chunk are dropped; the vector reference is weak by contract.
func (s *Service) hydrate(ctx context.Context, fused []search.Result) ([]RetrievedChunk, error) {
	if len(fused) == 0 {
		return []RetrievedChunk{}, nil
	}
	ids := make([]string, len(fused))
	byID := make(map[string]search.Result, len(fused))
	for i, r := range fused {
		ids[i] = r.ID
		byID[r.ID] = r
	}

	chunks, err := s.store.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, RetrievedChunk{
			Result:     byID[c.ID],
			Content:    c.Content,
			DocumentID: c.DocumentID,
			Kind:       c.Kind,
			Page:       c.Page,
		})
	}
	if len(out) < len(fused) {
		s.logger.Debug("dropped stale vector references",
			slog.Int("requested", len(fused)),
			slog.Int("resolved", len(out)))
	}
	return out, nil
}

// updateStats folds each result's score into the chunk's rolling mean
// relevance. Failures are logged, not surfaced: statistics never break
// a query.
func (s *Service) updateStats(ctx context.Context, knowledgeBaseID string, results []RetrievedChunk) {
	relevance := make(map[string]float64, len(results))
	for _, r := range results {
		relevance[r.ID] = r.Score
	}
	if err := s.store.RecordRetrieval(ctx, relevance); err != nil {
		s.logger.Warn("failed to update retrieval stats",
			slog.String("knowledge_base", knowledgeBaseID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) recordQuery(ctx context.Context, req Request, results []RetrievedChunk, embeddingMS, retrievalMS, rerankMS int64) string {
	records := make([]store.QueryResultRecord, len(results))
	for i, r := range results {
		records[i] = store.QueryResultRecord{ChunkID: r.ID, Rank: i + 1, Score: r.Score}
	}
	q, err := s.store.RecordQuery(ctx, store.QueryRecord{
		KnowledgeBaseID: req.KnowledgeBaseID,
		QueryText:       req.Query,
		TopK:            req.TopK,
		FusionMode:      string(req.Mode),
		Reranked:        req.Rerank,
		EmbeddingMS:     embeddingMS,
		RetrievalMS:     retrievalMS,
		RerankMS:        rerankMS,
	}, records)
	if err != nil {
		s.logger.Warn("failed to record query", slog.String("error", err.Error()))
		return ""
	}
	return q.ID
}
