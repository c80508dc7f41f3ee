package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link <code>",
	Short: "Look up an archive by its share code",
	Args:  cobra.ExactArgs(1),
	RunE:  runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(_ *cobra.Command, args []string) error {
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

	file, err := database.GetFile(ctx, args[0])
	if err != nil {
		return err
	}
	if file == nil {
		return fmt.Errorf("no archive stored under code %q", args[0])
	}

	_, _ = fmt.Fprintf(os.Stdout, "File:    %s\n", file.FileHandle)
	_, _ = fmt.Fprintf(os.Stdout, "Stored:  %s\n", file.CreatedAt.Format("2006-01-02 15:04:05"))
	if file.Caption != "" {
		_, _ = fmt.Fprintf(os.Stdout, "\n%s\n", file.Caption)
	}
	return nil
}
