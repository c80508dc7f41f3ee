package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/jonathan/repackr/internal/config"
	"github.com/jonathan/repackr/internal/crawling"
	"github.com/jonathan/repackr/internal/db"
	"github.com/jonathan/repackr/internal/observability"
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Watch aggregator index pages and process new posts",
	Long: `Fetches the configured index pages every poll interval and processes posts that have not been seen before,
oldest first. On an empty database the current posts are recorded without processing.

Send SIGHUP to reload the settings block of the config file (monitor_active, maintenance_mode, inject_branding).
Only one poller may run per data directory.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

var (
	pollOnce   bool
	pollOutDir string
)

func init() {
	pollCmd.Flags().BoolVar(&pollOnce, "once", false, "Run a single poll and exit")
	pollCmd.Flags().StringVarP(&pollOutDir, "out", "o", "", "Output directory (default: <data_dir>/output)")

	rootCmd.AddCommand(pollCmd)
}

func runPoll(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	lockPath := filepath.Join(cfg.DataDir, "repackr-poll.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another repackr poller is already running for this data directory")
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release poll lock", "error", err)
		}
	}()

	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	a := newApp(cfg, logger)
	outDir := pollOutDir
	if outDir == "" {
		outDir = a.defaultOutDir()
	}

	toggles := config.NewToggles(cfg.Settings)
	go reloadOnHangup(ctx, toggles, logger)

	poller := crawling.NewPoller(crawling.PollerOptions{
		IndexURLs: cfg.IndexURLs,
		Interval:  cfg.PollInterval(),
		PostDelay: cfg.PostDelay(),
	}, a.fetcher, database, toggles, postHandler(a, database, toggles, outDir), logger)

	logger.Info("poll lock acquired", "lock", lockPath)

	if pollOnce {
		report, err := poller.PollOnce(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Discovered %d posts: %d seeded, %d new, %d processed, %d failed\n",
			report.Discovered, report.Seeded, report.New, report.Processed, report.Failed)
		return nil
	}

	err = poller.Run(ctx)
	stats := poller.Stats()
	logger.Info("poller stopped",
		"last_check", stats.LastCheck,
		"total_found", stats.TotalFound,
		"total_processed", stats.TotalProcessed,
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// postHandler processes one post and stores the resulting archive under a share code.
func postHandler(a *app, database *db.DB, toggles *config.Toggles, outDir string) crawling.Handler {
	return func(ctx context.Context, postURL string) error {
		out, err := a.runJob(ctx, postURL, jobOptions{
			OutDir:         outDir,
			InjectBranding: toggles.InjectBranding(),
		})
		if err != nil {
			return err
		}

		meta := out.Result.Metadata
		code, err := database.SaveFile(ctx, out.Result.ArchivePath, observability.FileCaption(meta))
		if err != nil {
			return fmt.Errorf("failed to store archive: %w", err)
		}

		a.logger.Info("post processed",
			"post_url", postURL,
			"archive", out.Result.ArchivePath,
			"code", code,
			"caption", observability.Caption(meta, a.cfg.Settings.ChannelID),
		)
		return nil
	}
}

// reloadOnHangup re-reads the config file on SIGHUP and applies its settings.
func reloadOnHangup(ctx context.Context, toggles *config.Toggles, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := loadConfig()
			if err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			toggles.Apply(cfg.Settings)
			logger.Info("settings reloaded",
				"monitor_active", toggles.MonitorActive(),
				"maintenance_mode", toggles.MaintenanceMode(),
				"inject_branding", toggles.InjectBranding(),
			)
		}
	}
}
