package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/llm"
	"github.com/steeltrace/steeltrace/internal/mcp"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		Long: `Run the MCP server exposing search, document status, and takeoff
tools to AI clients over stdio.

Stdout carries JSON-RPC exclusively; diagnostics go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")

	return cmd
}

func runServe(ctx context.Context, transport string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	embedder, err := a.embedder(llm.NewLogSink(a.logger))
	if err != nil {
		return fmt.Errorf("embeddings unavailable: %w (set OPENAI_API_KEY)", err)
	}
	retriever, err := a.retriever(embedder)
	if err != nil {
		return err
	}

	// Takeoff stays available only when a chat provider is configured;
	// the tool degrades to an explicit error otherwise.
	var runner mcp.TakeoffRunner
	if extractor, err := a.takeoffExtractor(ctx, "balanced"); err == nil {
		runner = extractor
	} else {
		slog.Warn("takeoff tool disabled", slog.String("error", err.Error()))
	}

	server, err := mcp.NewServer(retriever, a.store, runner, a.logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx, transport)
}
