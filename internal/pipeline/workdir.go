package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Work directory layout.
const (
	DownloadsDir = "downloads"
	ExtractedDir = "extracted"
)

// NewWorkDir creates a uniquely named directory under base for one invocation.
// The caller owns it and must call RemoveWorkDir when done.
func NewWorkDir(base string) (string, error) {
	dir := filepath.Join(base, "job_"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// RemoveWorkDir deletes a work directory and everything in it.
func RemoveWorkDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove work directory %s: %w", dir, err)
	}
	return nil
}

// resetDir empties dir, creating it when missing.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
