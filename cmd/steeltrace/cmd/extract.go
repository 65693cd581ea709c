package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var opts ingestOptions
	var outPath string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Run the unified vision extraction without storing anything",
		Long: `Run the unified multi-task vision extraction over a document and
print the merged JSON response. Nothing is stored; use 'ingest' to
persist and index the result.

Examples:
  steeltrace extract plan.pdf
  steeltrace extract --tasks TABLES,VISUAL_ELEMENTS --priority quality shop.pdf
  steeltrace extract --first-page 2 --last-page 4 set.pdf -o out.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.Context(), cmd, args[0], opts, outPath)
		},
	}

	cmd.Flags().StringVar(&opts.docType, "doc-type", "engineering_drawing", "Document type: engineering_drawing, financial, scientific, legal, general")
	cmd.Flags().StringSliceVar(&opts.tasks, "tasks", nil, "Extraction tasks (default: recommended for doc type)")
	cmd.Flags().StringVar(&opts.priority, "priority", "balanced", "Model selection priority: cost, balanced, quality")
	cmd.Flags().IntVar(&opts.firstPage, "first-page", 0, "First page to extract (1-indexed, 0 = start)")
	cmd.Flags().IntVar(&opts.lastPage, "last-page", 0, "Last page to extract (0 = end)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write JSON to a file instead of stdout")

	return cmd
}

func runExtract(ctx context.Context, cmd *cobra.Command, path string, opts ingestOptions, outPath string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.unifiedExtract(ctx, path, opts)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
