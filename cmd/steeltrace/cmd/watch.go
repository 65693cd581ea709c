package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/output"
	"github.com/steeltrace/steeltrace/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a drop folder and ingest new documents",
		Long: `Watch a directory for incoming documents and ingest each one as it
settles. Events are debounced so a file still being copied produces
one ingestion, not one per write.

The directory defaults to the configured watch.dir. Stop with Ctrl-C.

Examples:
  steeltrace watch ./incoming
  steeltrace watch --unified --doc-type engineering_drawing ./incoming`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			return runWatch(cmd.Context(), cmd, dir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.kbID, "kb", "", "Knowledge base id (default: the shared 'default' KB)")
	cmd.Flags().BoolVar(&opts.unified, "unified", false, "Run the unified multi-task vision extraction")
	cmd.Flags().StringVar(&opts.docType, "doc-type", "engineering_drawing", "Document type for ingested files")
	cmd.Flags().StringVar(&opts.priority, "priority", "balanced", "Model selection priority: cost, balanced, quality")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, dir string, opts ingestOptions) error {
	out := output.New(cmd.OutOrStdout())

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if dir == "" {
		dir = a.cfg.Watch.Dir
	}
	if dir == "" {
		return fmt.Errorf("no watch directory: pass one or set watch.dir in the config")
	}

	kb, err := a.defaultKnowledgeBase(ctx, opts.kbID)
	if err != nil {
		return err
	}
	embedder, err := a.embedder(llm.NewLogSink(a.logger))
	if err != nil {
		return fmt.Errorf("embeddings unavailable: %w (set OPENAI_API_KEY)", err)
	}
	orch := a.orchestrator(embedder)

	debounce, err := time.ParseDuration(a.cfg.Watch.Debounce)
	if err != nil || debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w, err := watcher.NewDropWatcher(watcher.Options{DebounceWindow: debounce}, a.logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx, dir); err != nil {
		return err
	}
	defer w.Stop()

	out.Statusf("→", "Watching %s (knowledge base %s)", dir, kb.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			out.Errorf("watch error: %v", err)
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, ev := range batch {
				if ev.Operation == watcher.OpDelete {
					continue
				}
				if _, err := ingestOne(ctx, a, orch, out, kb, ev.Path, opts); err != nil {
					out.Errorf("%s: %v", filepath.Base(ev.Path), err)
				}
			}
		}
	}
}
