package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/config"
	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/output"
	"github.com/steeltrace/steeltrace/internal/retrieval"
	"github.com/steeltrace/steeltrace/internal/search"
	"github.com/steeltrace/steeltrace/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	kbID   string
	topK   int
	mode   string
	rerank bool
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a knowledge base",
		Long: `Search a knowledge base with hybrid retrieval.

Vector similarity and keyword (BM25) results are fused with
Reciprocal Rank Fusion (or weighted scoring) and optionally reranked.

Examples:
  steeltrace search "pad footing reinforcement"
  steeltrace search "anchor bolt schedule" --kb 4f9c... -n 10
  steeltrace search "hold-down details" --rerank --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kbID, "kb", "", "Knowledge base id (default: the shared 'default' KB)")
	cmd.Flags().IntVarP(&opts.topK, "limit", "n", 0, "Maximum number of results (default: configured top-k)")
	cmd.Flags().StringVar(&opts.mode, "mode", "rrf", "Fusion mode: rrf, weighted, vector (default: from retrieval_strategy)")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Rerank results with the configured policy")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

// strategyDefaults maps the configured retrieval strategy onto the
// request knobs. Explicit --mode and --rerank flags override it.
func strategyDefaults(strategy config.RetrievalStrategy) (mode search.FusionMode, rerank, diversify bool) {
	switch strategy {
	case config.StrategySimilarity:
		return search.FusionVectorOnly, false, false
	case config.StrategyReranking:
		return search.FusionRRF, true, false
	case config.StrategyMMR:
		return search.FusionRRF, false, true
	default:
		return search.FusionRRF, false, false
	}
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	kb, err := a.defaultKnowledgeBase(ctx, opts.kbID)
	if err != nil {
		return err
	}

	embedder, err := a.embedder(llm.NewLogSink(a.logger))
	if err != nil {
		return fmt.Errorf("embeddings unavailable: %w (set OPENAI_API_KEY)", err)
	}
	retriever, err := a.retriever(embedder)
	if err != nil {
		return err
	}

	topK := opts.topK
	if topK <= 0 {
		topK = a.cfg.KnowledgeBase.SimilarityTopK
	}
	mode, rerank, diversify := strategyDefaults(a.cfg.KnowledgeBase.RetrievalStrategy)
	if cmd.Flags().Changed("mode") {
		mode = search.FusionMode(opts.mode)
	}
	if cmd.Flags().Changed("rerank") {
		rerank = opts.rerank
	}
	resp, err := retriever.Retrieve(ctx, retrieval.Request{
		KnowledgeBaseID: kb.ID,
		Query:           query,
		TopK:            topK,
		Rerank:          rerank,
		RerankTopK:      a.cfg.KnowledgeBase.RerankTopK,
		Diversify:       diversify,
		DiversityBias:   a.cfg.KnowledgeBase.MMRDiversityBias,
		Mode:            mode,
		VectorWeight:    a.cfg.Search.VectorWeight,
		KeywordWeight:   a.cfg.Search.KeywordWeight,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderSearchResults(resp.Results, ui.StylesFor(cmd.OutOrStdout())))
	out.Statusf("·", "%d results in %dms (embed %dms, search %dms, rerank %dms)",
		len(resp.Results),
		resp.EmbeddingMS+resp.RetrievalMS+resp.RerankMS,
		resp.EmbeddingMS, resp.RetrievalMS, resp.RerankMS)
	return nil
}
