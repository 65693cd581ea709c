package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/chunk"
	"github.com/steeltrace/steeltrace/internal/extract"
	"github.com/steeltrace/steeltrace/internal/ingest"
	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/output"
	"github.com/steeltrace/steeltrace/internal/prompt"
	"github.com/steeltrace/steeltrace/internal/raster"
	"github.com/steeltrace/steeltrace/internal/store"
	"github.com/steeltrace/steeltrace/internal/ui"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	kbID      string
	unified   bool
	docType   string
	tasks     []string
	priority  string
	firstPage int
	lastPage  int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Extract a document and index it for retrieval",
		Long: `Extract one or more documents and store them in a knowledge base.

By default extraction is rule-based (native PDF/text/markdown/CSV/DOCX
parsing, no LLM). With --unified, each page is additionally sent
through a single multi-task vision call that extracts text, layout,
tables, entities, visual elements, and drawing metadata at once.

Examples:
  steeltrace ingest drawings/S-101.pdf
  steeltrace ingest --unified --doc-type engineering_drawing plan.pdf
  steeltrace ingest --unified --tasks TABLES,VISUAL_ELEMENTS shop.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.kbID, "kb", "", "Knowledge base id (default: the shared 'default' KB)")
	cmd.Flags().BoolVar(&opts.unified, "unified", false, "Run the unified multi-task vision extraction")
	cmd.Flags().StringVar(&opts.docType, "doc-type", "engineering_drawing", "Document type: engineering_drawing, financial, scientific, legal, general")
	cmd.Flags().StringSliceVar(&opts.tasks, "tasks", nil, "Extraction tasks for --unified (default: recommended for doc type)")
	cmd.Flags().StringVar(&opts.priority, "priority", "balanced", "Model selection priority: cost, balanced, quality")
	cmd.Flags().IntVar(&opts.firstPage, "first-page", 0, "First page to extract (1-indexed, 0 = start)")
	cmd.Flags().IntVar(&opts.lastPage, "last-page", 0, "Last page to extract (0 = end)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, paths []string, opts ingestOptions) error {
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
	orch := a.orchestrator(embedder)

	renderer := ui.NewRenderer(ui.Config{Output: cmd.ErrOrStderr()})
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	var stats ui.CompletionStats
	for i, path := range paths {
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageExtracting,
			Current: i + 1,
			Total:   len(paths),
			Message: filepath.Base(path),
		})
		outcome, err := ingestOne(ctx, a, orch, out, kb, path, opts)
		if err != nil {
			renderer.AddError(ui.ErrorEvent{File: filepath.Base(path), Err: err})
			stats.Errors++
			continue
		}
		stats.Documents++
		stats.Pages += outcome.pages
		stats.Chunks += outcome.chunks
		stats.Vectors += outcome.vectors
		stats.CostUSD += outcome.costUSD
		stats.Warnings += outcome.warnings
	}
	stats.Duration = time.Since(start)
	renderer.Complete(stats)

	if stats.Errors > 0 {
		return fmt.Errorf("%d of %d documents failed", stats.Errors, len(paths))
	}
	return nil
}

// ingestOutcome carries the per-document counts runIngest aggregates.
type ingestOutcome struct {
	documentID string
	pages      int
	chunks     int
	vectors    int
	costUSD    float64
	warnings   int
}

func ingestOne(ctx context.Context, a *app, orch *ingest.Orchestrator, out *output.Writer, kb *store.KnowledgeBase, path string, opts ingestOptions) (*ingestOutcome, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	out.Statusf("→", "Ingesting %s (%d bytes)", filepath.Base(path), info.Size())

	doc, err := a.store.CreateDocument(ctx, store.Document{
		KnowledgeBaseID: kb.ID,
		FilePath:        path,
		FileName:        filepath.Base(path),
		FileType:        strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		FileSize:        info.Size(),
		DocType:         opts.docType,
	})
	if err != nil {
		return nil, err
	}

	// Rule-based extraction always runs: it is free and it yields the
	// per-page text the takeoff extractor consumes later.
	rule, err := extract.NewRuleBased(a.logger).Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	resp, pages := ruleResponse(rule)

	if opts.unified {
		uresp, uerr := a.unifiedExtract(ctx, path, opts)
		// A failed unified run is still persisted for audit; the
		// rule-based text keeps the document searchable.
		if uerr != nil {
			out.Warningf("unified extraction failed: %v", uerr)
			resp.Warnings = append(resp.Warnings, "unified extraction failed: "+uerr.Error())
		} else {
			uresp.Warnings = append(uresp.Warnings, resp.Warnings...)
			if uresp.Text == "" {
				uresp.Text = resp.Text
			}
			resp = uresp
		}
	}

	result, err := orch.StoreDocument(ctx, ingest.Request{
		DocumentID:      doc.ID,
		KnowledgeBaseID: kb.ID,
		Extraction:      resp,
		FileMeta: store.FileMetadata{
			FileName: doc.FileName,
			FileType: doc.FileType,
			FileSize: doc.FileSize,
			DocType:  opts.docType,
		},
		Pages: pages,
	})
	if err != nil {
		return nil, err
	}

	for _, w := range result.Warnings {
		out.Warning(w)
	}
	out.Successf("%s stored as %s (%d chunks, %d vectors, $%.4f)",
		doc.FileName, doc.ID, result.ChunksStored, result.VectorsStored, resp.CostUSD)

	slog.Info("ingest complete",
		slog.String("document_id", doc.ID),
		slog.String("knowledge_base", kb.ID),
		slog.Int("chunks", result.ChunksStored),
		slog.Int("vectors", result.VectorsStored))

	return &ingestOutcome{
		documentID: doc.ID,
		pages:      len(pages),
		chunks:     result.ChunksStored,
		vectors:    result.VectorsStored,
		costUSD:    resp.CostUSD,
		warnings:   len(result.Warnings),
	}, nil
}

// unifiedExtract runs the single-pass multi-task vision extraction.
func (a *app) unifiedExtract(ctx context.Context, path string, opts ingestOptions) (*extract.ExtractionResponse, error) {
	router := a.router()
	rasterizer := raster.New(raster.Config{
		DPI:         a.cfg.Vision.DPI,
		MaxWidth:    a.cfg.Vision.MaxWidth,
		MaxHeight:   a.cfg.Vision.MaxHeight,
		Format:      a.cfg.Vision.Format,
		JPEGQuality: a.cfg.Vision.JPEGQuality,
	}, a.logger)

	cfg := extract.DefaultUnifiedConfig()
	cfg.MaxPages = a.cfg.Vision.MaxPages
	cfg.BaseURLs = a.cfg.Providers.BaseURLs

	ux := extract.NewUnifiedExtractor(cfg, rasterizer, router, router.ResolveKey, nil,
		llm.NewLogSink(a.logger), a.logger)
	return ux.Extract(ctx, extract.UnifiedRequest{
		Path:      path,
		Tasks:     parseTasks(opts.tasks),
		DocType:   opts.docType,
		Priority:  llm.Priority(opts.priority),
		FirstPage: opts.firstPage,
		LastPage:  opts.lastPage,
	})
}

// parseTasks maps CLI task names to prompt tasks.
func parseTasks(names []string) []prompt.Task {
	tasks := make([]prompt.Task, 0, len(names))
	for _, n := range names {
		tasks = append(tasks, prompt.Task(strings.ToUpper(strings.TrimSpace(n))))
	}
	return tasks
}

// ruleResponse adapts rule-based output to the extraction response
// shape the storage pipeline consumes, plus the page rows to persist.
func ruleResponse(rule *extract.RuleExtraction) (*extract.ExtractionResponse, []store.Page) {
	resp := &extract.ExtractionResponse{
		Success:        true,
		Text:           rule.Text,
		PagesProcessed: len(rule.Pages),
	}
	pages := make([]store.Page, 0, len(rule.Pages))
	for _, p := range rule.Pages {
		pages = append(pages, store.Page{
			PageNumber:      p.Number,
			Text:            p.Text,
			WordCount:       p.WordCount,
			TokenCount:      chunk.EstimateTokens(p.Text),
			ProbablyScanned: p.ProbablyScanned,
		})
		if p.ProbablyScanned {
			resp.Warnings = append(resp.Warnings,
				fmt.Sprintf("page %d is probably scanned: text density %.3f", p.Number, p.Density))
		}
	}
	return resp, pages
}
