package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/output"
	"github.com/steeltrace/steeltrace/internal/progress"
	"github.com/steeltrace/steeltrace/internal/takeoff"
	"github.com/steeltrace/steeltrace/internal/ui"
)

func newTakeoffCmd() *cobra.Command {
	var jsonOutput bool
	var priority string

	cmd := &cobra.Command{
		Use:   "takeoff <document-id>",
		Short: "Run a page-by-page element takeoff over a stored document",
		Long: `Extract a quantified element schedule from a stored document.

Pages are processed sequentially through the LLM; each response is a
pipe-delimited element table that is parsed, schema-validated, and
deduplicated across the run. Results persist with the document.

Run 'steeltrace ingest' first so the document's page text is stored.

Examples:
  steeltrace takeoff 4f9c1a...
  steeltrace takeoff 4f9c1a... --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTakeoff(cmd.Context(), cmd, args[0], priority, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the full result as JSON")
	cmd.Flags().StringVar(&priority, "priority", "balanced", "Model selection priority: cost, balanced, quality")

	return cmd
}

func runTakeoff(ctx context.Context, cmd *cobra.Command, documentID, priority string, jsonOutput bool) error {
	out := output.New(cmd.OutOrStdout())

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	extractor, err := a.takeoffExtractor(ctx, priority)
	if err != nil {
		return err
	}

	result, err := extractor.Extract(ctx, documentID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprint(cmd.OutOrStdout(), ui.RenderTakeoffResult(result, ui.StylesFor(cmd.OutOrStdout())))
	out.Successf("Done in %dms", result.ProcessingTimeMS)
	return nil
}

// takeoffExtractor routes a text model and wires the extractor. Nil
// when no provider key is configured.
func (a *app) takeoffExtractor(ctx context.Context, priority string) (*takeoff.Extractor, error) {
	router := a.router()
	choice, err := router.Route(ctx, llm.RouteRequest{
		Priority:  llm.Priority(priority),
		MaxTokens: a.cfg.Takeoff.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	key, err := router.ResolveKey(choice.Provider)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewOpenAIClient(key, a.cfg.Providers.BaseURLs[choice.Provider], a.logger)
	if err != nil {
		return nil, err
	}
	extractor := takeoff.New(client, a.store, choice.Provider, choice.Model, a.cfg.Takeoff, a.logger).
		WithProgress(progress.LogSink{Logger: a.logger})
	return extractor, nil
}
