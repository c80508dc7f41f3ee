package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// DefaultDenyList holds the watermark files dropped into every aggregator upload.
func DefaultDenyList() []string {
	return []string{
		"Downloaded from CODELIST.CC.url",
		"codelist.cc.txt",
	}
}

// Sanitize deletes every file under dir whose base name exactly equals an
// entry of denyList (nil uses DefaultDenyList). It returns the removed paths
// relative to dir. Unreadable entries are logged and skipped; the only error
// is a missing or unreadable root.
func Sanitize(dir string, denyList []string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if denyList == nil {
		denyList = DefaultDenyList()
	}
	deny := make(map[string]struct{}, len(denyList))
	for _, name := range denyList {
		deny[name] = struct{}{}
	}

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("sanitize %s: %w", dir, err)
	}

	var removed []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != dir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, hit := deny[d.Name()]; !hit {
			return nil
		}
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to remove watermark file", "path", path, "error", err)
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		removed = append(removed, filepath.ToSlash(rel))
		logger.Info("removed watermark file", "path", rel)
		return nil
	})
	if walkErr != nil {
		logger.Warn("sanitize walk ended early", "dir", dir, "error", walkErr)
	}

	sort.Strings(removed)
	return removed, nil
}

// InjectBranding copies every regular top-level file of assetsDir into dir,
// overwriting files of the same name. A missing assetsDir is logged and skipped.
func InjectBranding(dir, assetsDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(assetsDir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("branding directory not found, skipping", "dir", assetsDir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read branding directory %s: %w", assetsDir, err)
	}

	var copied []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		src := filepath.Join(assetsDir, entry.Name())
		dst := filepath.Join(dir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return copied, fmt.Errorf("copy branding file %s: %w", entry.Name(), err)
		}
		copied = append(copied, entry.Name())
	}
	logger.Info("branding injected", "files", len(copied))
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
