package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jonathan/repackr/internal/fetch"
	"github.com/jonathan/repackr/internal/observability"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that extraction tools are installed",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a := newApp(cfg, slog.Default())
	statuses := a.extractor.Status()
	observability.NewPrinter(os.Stdout).PrintBackends(statuses)

	_, _ = fmt.Fprintf(os.Stdout, "Fingerprint: %s (available: %s)\n", cfg.Fingerprint, strings.Join(fetch.FingerprintNames(), ", "))

	for _, s := range statuses {
		if s.Available {
			return nil
		}
	}
	return errors.New("no extraction tool available")
}
