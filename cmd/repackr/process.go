package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/repackr/internal/observability"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <url>",
	Short: "Turn an aggregator post or file-host link into a cleaned archive",
	Long: `Resolves the post's file-host mirrors in priority order (upload.ee, mediafire, workupload, pixeldrain),
downloads the first one that works, extracts it with unrar or 7-Zip, removes watermark files and writes a new zip.
A direct file-host link skips the post lookup and is tried once.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var (
	processOutDir     string
	processNoBranding bool
	processForce      bool
	processStore      bool
	processCaption    bool
	processUseBrowser bool
)

func init() {
	processCmd.Flags().StringVarP(&processOutDir, "out", "o", "", "Output directory (default: <data_dir>/output)")
	processCmd.Flags().BoolVar(&processNoBranding, "no-branding", false, "Do not copy branding files into the archive")
	processCmd.Flags().BoolVar(&processForce, "force", false, "Process even when maintenance mode is on")
	processCmd.Flags().BoolVar(&processStore, "store", false, "Save the archive under a short share code (requires DATABASE_URL)")
	processCmd.Flags().BoolVar(&processCaption, "caption", false, "Print the announcement caption")
	processCmd.Flags().BoolVar(&processUseBrowser, "use-browser", false, "Use headless Chrome for blocked pages (requires Chrome)")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = processUseBrowser
	}
	if cfg.Settings.MaintenanceMode && !processForce {
		return fmt.Errorf("maintenance mode is on; pass --force to process anyway")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	a := newApp(cfg, logger)

	outDir := processOutDir
	if outDir == "" {
		outDir = a.defaultOutDir()
	}

	sink := newProgressSink(os.Stdout, logger)
	defer sink.Finish()

	out, err := a.runJob(ctx, args[0], jobOptions{
		OutDir:         outDir,
		InjectBranding: cfg.Settings.InjectBranding && !processNoBranding,
		Progress:       sink.Bytes,
		OnStage:        sink.Stage,
	})
	sink.Finish()
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintResult(out.Result, out.Size)

	if processCaption {
		_, _ = fmt.Fprintf(os.Stdout, "\n%s\n", observability.Caption(out.Result.Metadata, cfg.Settings.ChannelID))
	}

	if processStore {
		database, err := openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		code, err := database.SaveFile(ctx, out.Result.ArchivePath, observability.FileCaption(out.Result.Metadata))
		if err != nil {
			return fmt.Errorf("failed to store archive: %w", err)
		}
		_, _ = fmt.Fprintf(os.Stdout, "Share code: %s\n", code)
	}

	return nil
}
