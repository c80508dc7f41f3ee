// Package main provides the repackr CLI: it turns aggregator posts and
// file-host links into cleaned, re-zipped archives.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "repackr",
	Short: "Download, clean and repackage archives from aggregator posts",
	Long: `repackr follows an aggregator post to its file-host mirrors, downloads the first archive that works,
extracts it, strips watermark files, optionally adds branding files and writes a fresh zip.

Configuration can be loaded from a JSON file using --config. Command-line flags override config file values,
and DATABASE_URL, REPACKR_DATA_DIR and REPACKR_BRANDING_DIR override both.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		slog.SetDefault(newLogger(os.Stderr, rootVerbose, rootLogJSON))
	},
}

var (
	rootConfigPath string
	rootVerbose    bool
	rootLogJSON    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to config.json file")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&rootLogJSON, "log-json", false, "Write logs as JSON")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
