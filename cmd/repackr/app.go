package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/repackr/internal/archive"
	"github.com/jonathan/repackr/internal/config"
	"github.com/jonathan/repackr/internal/db"
	"github.com/jonathan/repackr/internal/fetch"
	"github.com/jonathan/repackr/internal/hosts"
	"github.com/jonathan/repackr/internal/imaging"
	"github.com/jonathan/repackr/internal/metadata"
	"github.com/jonathan/repackr/internal/pipeline"
	"github.com/jonathan/repackr/internal/types"
)

// loadConfig resolves the effective configuration: file, then defaults, then environment.
func loadConfig() (config.Config, error) {
	cfg := config.Config{Settings: config.DefaultSettings()}
	if rootConfigPath != "" {
		loaded, err := config.LoadConfig(rootConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app holds the wired pipeline components for one CLI invocation.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	fetcher   *fetch.Fetcher
	extractor *archive.Extractor
	resolver  *metadata.Resolver
	orch      *pipeline.Orchestrator
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	if logger == nil {
		logger = slog.Default()
	}
	opts := fetch.DefaultOptions()
	opts.DownloadTimeout = cfg.DownloadTimeout()
	opts.Fingerprint = cfg.Fingerprint
	opts.UseBrowser = cfg.UseBrowser

	fetcher := fetch.New(opts, logger)
	registry := hosts.DefaultRegistry(fetcher)
	extractor := archive.NewExtractor(logger, archive.DefaultBackends()...)
	covers := imaging.NewProcessor(fetcher, logger)
	resolver := metadata.NewResolver(fetcher, registry, covers, logger)

	orch := pipeline.New(pipeline.Options{
		Resolver:          resolver,
		Registry:          registry,
		Downloader:        fetcher,
		Extractor:         extractor,
		AggregatorDomains: cfg.AggregatorDomains,
		BrandingDir:       cfg.BrandingDir,
		DenyList:          cfg.DenyList,
		Logger:            logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		fetcher:   fetcher,
		extractor: extractor,
		resolver:  resolver,
		orch:      orch,
	}
}

func (a *app) workRoot() string {
	return filepath.Join(a.cfg.DataDir, "work")
}

func (a *app) defaultOutDir() string {
	return outputDir(a.cfg)
}

func outputDir(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "output")
}

// jobOptions configures one runJob call.
type jobOptions struct {
	OutDir         string
	InjectBranding bool
	Progress       fetch.ProgressFunc
	OnStage        pipeline.ProgressCallback
}

// jobOutput describes files moved out of a finished work directory.
type jobOutput struct {
	Result *types.Result
	Size   int64
}

// runJob processes rawURL in a fresh work directory and moves the archive
// and cover into opts.OutDir. The work directory is always removed.
func (a *app) runJob(ctx context.Context, rawURL string, opts jobOptions) (*jobOutput, error) {
	if err := os.MkdirAll(a.workRoot(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work root: %w", err)
	}
	workDir, err := pipeline.NewWorkDir(a.workRoot())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := pipeline.RemoveWorkDir(workDir); err != nil {
			a.logger.Warn("failed to remove work directory", "dir", workDir, "error", err)
		}
	}()

	result, err := a.orch.Process(ctx, pipeline.Request{
		URL:            rawURL,
		WorkDir:        workDir,
		InjectBranding: opts.InjectBranding,
		Progress:       opts.Progress,
		OnStage:        opts.OnStage,
	})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", opts.OutDir, err)
	}

	archivePath, err := reservePath(opts.OutDir, filepath.Base(result.ArchivePath))
	if err != nil {
		return nil, err
	}
	if err := moveFile(result.ArchivePath, archivePath); err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}
	result.ArchivePath = archivePath

	if meta := result.Metadata; meta.HasCover() {
		archiveName := filepath.Base(archivePath)
		coverPath, err := reservePath(opts.OutDir, strings.TrimSuffix(archiveName, filepath.Ext(archiveName))+"_cover.jpg")
		if err == nil {
			if err = moveFile(meta.ImagePath, coverPath); err != nil {
				_ = os.Remove(coverPath)
			}
		}
		if err != nil {
			a.logger.Warn("failed to keep cover image", "error", err)
			meta.ImagePath = ""
		} else {
			meta.ImagePath = coverPath
		}
	}

	size := int64(-1)
	if info, err := os.Stat(archivePath); err == nil {
		size = info.Size()
	}
	return &jobOutput{Result: result, Size: size}, nil
}

// reservePath claims name inside dir with an exclusive create. When the name
// is taken, a short random suffix is added before the extension. The
// returned path exists as an empty file for moveFile to replace.
func reservePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for attempt := 0; attempt < 5; attempt++ {
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return path, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to reserve %s: %w", path, err)
		}
		candidate = stem + "_" + uuid.NewString()[:8] + ext
	}
	return "", fmt.Errorf("no free output name for %s in %s", name, dir)
}

// moveFile renames src to dst, copying when they are on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	_ = os.Remove(src)
	return nil
}

func openDB(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or database_url config value is required")
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
