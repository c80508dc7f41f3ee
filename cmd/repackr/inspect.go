package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonathan/repackr/internal/observability"
	"github.com/jonathan/repackr/internal/pipeline"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Show the metadata and mirror links resolved from an aggregator post",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a := newApp(cfg, slog.Default())
	if !a.orch.IsAggregator(args[0]) {
		return fmt.Errorf("%s is not on a configured aggregator domain", args[0])
	}

	workDir, err := os.MkdirTemp("", "repackr-inspect-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = pipeline.RemoveWorkDir(workDir) }()

	meta, err := a.resolver.Resolve(context.Background(), args[0], workDir)
	if err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintMetadata(meta)
	return nil
}
