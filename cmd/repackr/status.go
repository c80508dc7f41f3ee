package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show processed post counts and the most recent posts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusLimit int

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of recent posts to list")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	count, err := database.CountProcessed(ctx)
	if err != nil {
		return err
	}
	recent, err := database.ListProcessed(ctx, statusLimit)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "Monitor:     %s\n", onOff(cfg.Settings.MonitorActive))
	_, _ = fmt.Fprintf(os.Stdout, "Maintenance: %s\n", onOff(cfg.Settings.MaintenanceMode))
	_, _ = fmt.Fprintf(os.Stdout, "Branding:    %s\n", onOff(cfg.Settings.InjectBranding))
	_, _ = fmt.Fprintf(os.Stdout, "Processed:   %s posts\n\n", humanize.Comma(count))

	for _, post := range recent {
		_, _ = fmt.Fprintf(os.Stdout, "%-14s %s\n", humanize.Time(post.ProcessedAt), post.URL)
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
