package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/output"
	"github.com/steeltrace/steeltrace/internal/store"
)

func newKBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage knowledge bases",
		Long: `Create, list, and delete knowledge bases.

Each knowledge base is an isolated corpus with its own chunking
policy and vector namespace. Deleting one soft-deletes its documents
and clears its vectors.`,
	}

	cmd.AddCommand(newKBCreateCmd())
	cmd.AddCommand(newKBListCmd())
	cmd.AddCommand(newKBDeleteCmd())

	return cmd
}

func newKBCreateCmd() *cobra.Command {
	var description string
	var chunkSize, chunkOverlap int

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if chunkSize <= 0 {
				chunkSize = a.cfg.KnowledgeBase.ChunkSize
			}
			if chunkOverlap < 0 {
				chunkOverlap = a.cfg.KnowledgeBase.ChunkOverlap
			}
			kb, err := a.store.CreateKnowledgeBase(ctx, store.KnowledgeBase{
				Name:           args[0],
				Description:    description,
				ChunkSize:      chunkSize,
				ChunkOverlap:   chunkOverlap,
				EmbeddingModel: a.cfg.Embeddings.Model,
			})
			if err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("knowledge base %q created: %s", kb.Name, kb.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Knowledge base description")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Target chunk size in tokens (default: configured)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", -1, "Chunk overlap in tokens (default: configured)")

	return cmd
}

func newKBListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active knowledge bases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runKBList(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKBList(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	kbs, err := a.store.ListKnowledgeBases(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(kbs)
	}

	out := output.New(cmd.OutOrStdout())
	if len(kbs) == 0 {
		out.Status("·", "No knowledge bases")
		return nil
	}
	for _, kb := range kbs {
		stats, err := a.store.GetKnowledgeBaseStats(ctx, kb.ID)
		if err != nil {
			return err
		}
		out.Statusf("•", "%s  %s (%d documents, %d chunks, chunk %d/%d)",
			kb.ID, kb.Name, stats.Documents, stats.Chunks, kb.ChunkSize, kb.ChunkOverlap)
	}
	return nil
}

func newKBDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge base and its vector namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.DeleteKnowledgeBase(ctx, args[0]); err != nil {
				return err
			}
			if err := a.vectors.DeleteNamespace(ctx, args[0]); err != nil {
				output.New(cmd.OutOrStdout()).Warningf("vectors not cleared: %v", err)
			}
			output.New(cmd.OutOrStdout()).Successf("knowledge base %s deleted", args[0])
			return nil
		},
	}
	return cmd
}
