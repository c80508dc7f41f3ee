package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/repackr/internal/server"
	"github.com/jonathan/repackr/internal/server/ratelimit"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored archives by share code",
	Long: `Starts an HTTP server that streams archives saved with --store or by the poller.

  GET /f/<code>          download the archive
  GET /api/files/<code>  archive details as JSON
  GET /health            liveness check

Requests are rate limited per client IP; see RATE_LIMIT_* environment variables.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	servePort     int
	serveFilesDir string
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveFilesDir, "files-dir", "", "Only serve archives inside this directory (default: <data_dir>/output)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	filesDir := serveFilesDir
	if filesDir == "" {
		filesDir = outputDir(cfg)
	}

	srv := server.New(server.Config{
		Addr:     fmt.Sprintf(":%d", servePort),
		FilesDir: filesDir,
	}, database, ratelimit.NewLimiter(ratelimit.LoadConfig()), slog.Default())

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
