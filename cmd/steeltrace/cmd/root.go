// Package cmd provides the CLI commands for SteelTrace.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/steeltrace/steeltrace/internal/logging"
	"github.com/steeltrace/steeltrace/pkg/version"
)

var (
	cfgPath        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the steeltrace CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steeltrace",
		Short: "Engineering-drawing takeoff and RAG document extraction",
		Long: `SteelTrace extracts structured content from engineering drawings and
technical documents: text, tables, layout, entities, and counted
drawing elements. Extractions are chunked, embedded, and indexed for
hybrid retrieval, and drawing sets can be quantified page by page into
a validated element takeoff.

Run 'steeltrace ingest <file>' to get started.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("steeltrace version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: steeltrace.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.steeltrace/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newDrawingCmd())
	cmd.AddCommand(newTakeoffCmd())
	cmd.AddCommand(newKBCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging sets up file logging. Debug mode raises the level and
// mirrors records to stderr.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	cfg.WriteToStderr = false
	if debugMode {
		cfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
