package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/jonathan/repackr/internal/archive"
	"github.com/jonathan/repackr/internal/config"
	"github.com/jonathan/repackr/internal/hosts"
	"github.com/jonathan/repackr/internal/pipeline"
	"github.com/jonathan/repackr/internal/types"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigPath(t *testing.T, path string) {
	t.Helper()
	prev := rootConfigPath
	rootConfigPath = path
	t.Cleanup(func() { rootConfigPath = prev })
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	withConfigPath(t, "")
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvBrandingDir, "")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, []string{"codelist.cc"}, cfg.AggregatorDomains)
	assert.True(t, cfg.Settings.MonitorActive)
	assert.True(t, cfg.Settings.InjectBranding)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"data_dir": "/from/file",
		"branding_dir": "/from/file/assets",
		"settings": {"inject_branding": false}
	}`), 0644))
	withConfigPath(t, path)
	t.Setenv(config.EnvDataDir, "/from/env")
	t.Setenv(config.EnvBrandingDir, "")
	t.Setenv(config.EnvDatabaseURL, "postgres://env/db")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.DataDir)
	assert.Equal(t, "/from/file/assets", cfg.BrandingDir)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.False(t, cfg.Settings.InjectBranding)
	assert.Equal(t, 600, cfg.PollIntervalSeconds)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"fingerprint": "lynx"}`), 0644))
	withConfigPath(t, path)

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestNewApp_WiresAggregatorDomains(t *testing.T) {
	cfg := config.Defaults()
	cfg.AggregatorDomains = []string{"agg.example"}

	a := newApp(cfg, nil)

	assert.True(t, a.orch.IsAggregator("https://agg.example/scripts3/1-a.html"))
	assert.False(t, a.orch.IsAggregator("https://www.upload.ee/files/1/a.zip.html"))
	assert.Len(t, a.extractor.Status(), 2)
	assert.Equal(t, filepath.Join("data", "output"), a.defaultOutDir())
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.zip")
	dst := filepath.Join(dir, "out", "a.zip")
	require.NoError(t, os.WriteFile(src, []byte("zip"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, moveFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))
	assert.NoFileExists(t, src)
}

func TestMoveFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := moveFile(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	assert.Error(t, err)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, false, true)

	logger.Debug("hidden")
	logger.Info("shown", "host", "mediafire")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "mediafire", entry["host"])
}

func TestNewLogger_VerboseText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, true, false)

	logger.Debug("details")

	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "msg=details")
}

// treeBackend "extracts" an archive into a single file holding its bytes.
type treeBackend struct{}

func (treeBackend) Name() string     { return "tree" }
func (treeBackend) Tool() types.Tool { return types.ToolUnrar }
func (treeBackend) Available() bool  { return true }

func (treeBackend) Extract(_ context.Context, archivePath, destDir string) error {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, "readme.txt"), data, 0o644)
}

// newJobApp wires an app whose single file host serves /files/<id>/<name>.html
// pages pointing at /download/<id>/<name>.
func newJobApp(t *testing.T, archives map[string]string) (*app, string) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/files/"), ".html")
		_, _ = fmt.Fprintf(w, `<html><body><a href="/download/%s">Download</a></body></html>`, rest)
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		content, ok := archives[strings.TrimPrefix(r.URL.Path, "/download/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = fmt.Fprint(w, content)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := newApp(cfg, logger)

	registry := hosts.NewRegistry(hosts.NewAnchorStrategy(hosts.AnchorConfig{
		Host:         types.HostUploadEE,
		Pattern:      regexp.QuoteMeta(server.URL) + `/files/[^\s"'<>]+`,
		HrefContains: "/download/",
	}, a.fetcher))
	a.orch = pipeline.New(pipeline.Options{
		Resolver:   a.resolver,
		Registry:   registry,
		Downloader: a.fetcher,
		Extractor:  archive.NewExtractor(logger, treeBackend{}),
		Logger:     logger,
	})
	return a, server.URL
}

func zipText(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer func() { _ = rc.Close() }()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatalf("%s has no entry %s", path, name)
	return ""
}

func TestRunJob_SameArchiveNameKeepsBothOutputs(t *testing.T) {
	a, base := newJobApp(t, map[string]string{
		"1/theme.rar": "first build",
		"2/theme.rar": "second build",
	})
	outDir := t.TempDir()

	first, err := a.runJob(context.Background(), base+"/files/1/theme.rar.html", jobOptions{OutDir: outDir})
	require.NoError(t, err)
	second, err := a.runJob(context.Background(), base+"/files/2/theme.rar.html", jobOptions{OutDir: outDir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "theme_cleaned.zip"), first.Result.ArchivePath)
	assert.NotEqual(t, first.Result.ArchivePath, second.Result.ArchivePath)
	assert.Equal(t, outDir, filepath.Dir(second.Result.ArchivePath))
	assert.True(t, strings.HasPrefix(filepath.Base(second.Result.ArchivePath), "theme_cleaned_"))

	assert.Equal(t, "first build", zipText(t, first.Result.ArchivePath, "readme.txt"))
	assert.Equal(t, "second build", zipText(t, second.Result.ArchivePath, "readme.txt"))
	assert.Positive(t, second.Size)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReservePath(t *testing.T) {
	dir := t.TempDir()

	first, err := reservePath(dir, "a_cleaned.zip")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a_cleaned.zip"), first)
	assert.FileExists(t, first)

	second, err := reservePath(dir, "a_cleaned.zip")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^a_cleaned_[0-9a-f-]{8}\.zip$`, filepath.Base(second))

	_, err = reservePath(filepath.Join(dir, "missing"), "a.zip")
	assert.Error(t, err)
}
