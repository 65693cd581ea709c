package cmd

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/steeltrace/steeltrace/internal/chunk"
	"github.com/steeltrace/steeltrace/internal/config"
	"github.com/steeltrace/steeltrace/internal/embed"
	"github.com/steeltrace/steeltrace/internal/ingest"
	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/retrieval"
	"github.com/steeltrace/steeltrace/internal/search"
	"github.com/steeltrace/steeltrace/internal/store"
	"github.com/steeltrace/steeltrace/internal/vectorindex"
)

// app holds the shared backends a command needs: config, the document
// store, the keyword indexes, and the vector index. Embedders and
// services are built on demand because they need provider credentials.
type app struct {
	cfg      *config.Config
	store    *store.Store
	keywords *search.DirKeywordProvider
	vectors  vectorindex.Index
	logger   *slog.Logger
}

// openApp loads configuration and opens every local backend.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger := slog.Default()

	st, err := store.Open(filepath.Join(cfg.DataDir, "steeltrace.db"))
	if err != nil {
		return nil, err
	}

	vectors, err := vectorindex.New(cfg.VectorIndex, cfg.DataDir, cfg.Embeddings.Dimensions, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := vectors.Initialize(ctx, true); err != nil {
		st.Close()
		return nil, err
	}

	// A prior run that crashed mid-write leaves descriptors stranded in
	// initializing or updating. Flip them back to active now that the
	// backend is up; bookkeeping never blocks startup.
	if kbs, err := st.ListKnowledgeBases(ctx); err == nil {
		for i := range kbs {
			if err := st.ReconcileVectorIndexStatus(ctx, kbs[i].ID); err != nil {
				logger.Warn("failed to reconcile vector index descriptor",
					slog.String("knowledge_base_id", kbs[i].ID),
					slog.String("error", err.Error()))
			}
		}
	}

	return &app{
		cfg:      cfg,
		store:    st,
		keywords: search.NewDirKeywordProvider(filepath.Join(cfg.DataDir, "keyword")),
		vectors:  vectors,
		logger:   logger,
	}, nil
}

// Close releases every backend. Errors are logged, not returned: a
// command's result should not flip on teardown.
func (a *app) Close() {
	if err := a.keywords.Close(); err != nil {
		a.logger.Warn("failed to close keyword indexes", slog.String("error", err.Error()))
	}
	if err := a.vectors.Close(); err != nil {
		a.logger.Warn("failed to close vector index", slog.String("error", err.Error()))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", slog.String("error", err.Error()))
	}
}

// embedder builds the cached OpenAI embedding service.
func (a *app) embedder(sink llm.UsageSink) (embed.Embedder, error) {
	inner, err := embed.NewOpenAI(embed.Config{
		APIKey:     a.cfg.APIKey("openai"),
		BaseURL:    a.cfg.Providers.BaseURLs["openai"],
		Model:      a.cfg.Embeddings.Model,
		Dimensions: a.cfg.Embeddings.Dimensions,
		BatchSize:  a.cfg.Embeddings.BatchSize,
		Timeout:    a.cfg.Embeddings.Timeout,
	}, sink, a.logger)
	if err != nil {
		return nil, err
	}
	return embed.NewCached(inner, a.cfg.Embeddings.CacheSize, a.logger)
}

// chunker builds the chunker with the configured knowledge-base policy.
func (a *app) chunker() *chunk.Chunker {
	return chunk.New(chunk.Config{
		ChunkSize: a.cfg.KnowledgeBase.ChunkSize,
		Overlap:   a.cfg.KnowledgeBase.ChunkOverlap,
	}, a.logger)
}

// orchestrator builds the staged storage orchestrator.
func (a *app) orchestrator(embedder embed.Embedder) *ingest.Orchestrator {
	return ingest.New(a.store, a.chunker(), embedder, a.vectors, a.keywords, a.logger).
		WithIndexDescriptor(a.cfg.VectorIndex.Backend, a.cfg.VectorIndex.Metric, a.cfg.Embeddings.Dimensions)
}

// retriever builds the query service.
func (a *app) retriever(embedder embed.Embedder) (*retrieval.Service, error) {
	reranker, err := search.NewReranker(a.cfg.Search.Reranker)
	if err != nil {
		return nil, err
	}
	hybrid := search.NewHybrid(a.vectors, a.keywords, a.logger)
	return retrieval.New(embedder, hybrid, reranker, a.store, a.logger), nil
}

// router builds the static model router over the configured keys.
func (a *app) router() *llm.StaticRouter {
	return llm.NewStaticRouter(a.cfg.Providers.APIKeys, a.logger)
}

// defaultKnowledgeBase returns the knowledge base with the given id,
// or ensures the shared "default" one exists when id is empty.
func (a *app) defaultKnowledgeBase(ctx context.Context, id string) (*store.KnowledgeBase, error) {
	if id != "" {
		return a.store.GetKnowledgeBase(ctx, id)
	}
	kbs, err := a.store.ListKnowledgeBases(ctx)
	if err != nil {
		return nil, err
	}
	for i := range kbs {
		if kbs[i].Name == "default" {
			return &kbs[i], nil
		}
	}
	return a.store.CreateKnowledgeBase(ctx, store.KnowledgeBase{
		Name:           "default",
		Description:    "Default knowledge base",
		ChunkSize:      a.cfg.KnowledgeBase.ChunkSize,
		ChunkOverlap:   a.cfg.KnowledgeBase.ChunkOverlap,
		EmbeddingModel: a.cfg.Embeddings.Model,
	})
}
