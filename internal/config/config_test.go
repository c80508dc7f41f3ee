package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"data_dir": "/srv/repackr",
		"aggregator_domains": ["codelist.cc", "mirror.example"],
		"poll_interval_seconds": 300,
		"fingerprint": "safari15_3",
		"use_browser": true,
		"settings": {"maintenance_mode": true, "channel_id": "@freebies"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/srv/repackr", cfg.DataDir)
	assert.Equal(t, []string{"codelist.cc", "mirror.example"}, cfg.AggregatorDomains)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval())
	assert.Equal(t, "safari15_3", cfg.Fingerprint)
	assert.True(t, cfg.UseBrowser)
	assert.True(t, cfg.Settings.MaintenanceMode)
	assert.Equal(t, "@freebies", cfg.Settings.ChannelID)
	// Omitted toggles keep their defaults.
	assert.True(t, cfg.Settings.MonitorActive)
	assert.True(t, cfg.Settings.InjectBranding)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_SchemaViolation(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"poll_interval_seconds": "often"}`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "does not match schema")
	assert.Contains(t, err.Error(), "poll_interval_seconds")
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"api_key": "secret"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_Defaults(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_BadIndexURL(t *testing.T) {
	cfg := &Config{IndexURLs: []string{"ftp://codelist.cc/"}}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "IndexURLs")
}

func TestValidate_UnknownFingerprint(t *testing.T) {
	cfg := &Config{Fingerprint: "netscape"}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Fingerprint")
}

func TestValidate_NegativeValues(t *testing.T) {
	cfg := &Config{PostDelaySeconds: -1}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "PostDelaySeconds")
}

func TestValidate_BrandingDirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	cfg := &Config{BrandingDir: file, Settings: Settings{InjectBranding: true}}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "branding_dir")
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		DataDir:          "/custom",
		PostDelaySeconds: 3,
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, "/custom", merged.DataDir)
	assert.Equal(t, 3*time.Second, merged.PostDelay())

	// Default values should fill in empty fields
	assert.Equal(t, "assets", merged.BrandingDir)
	assert.Equal(t, []string{"codelist.cc"}, merged.AggregatorDomains)
	assert.Len(t, merged.IndexURLs, 5)
	assert.Equal(t, 10*time.Minute, merged.PollInterval())
	assert.Equal(t, 30*time.Minute, merged.DownloadTimeout())
	assert.Equal(t, "chrome", merged.Fingerprint)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{DataDir: "x"}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "x", merged.DataDir)
	assert.Nil(t, merged.IndexURLs)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://env/db")
	t.Setenv(EnvDataDir, "/env/data")
	t.Setenv(EnvBrandingDir, "")

	cfg := Defaults()
	cfg.ApplyEnv()

	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL)
	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "assets", cfg.BrandingDir)
}

func TestToggles(t *testing.T) {
	toggles := NewToggles(DefaultSettings())
	assert.True(t, toggles.MonitorActive())
	assert.False(t, toggles.MaintenanceMode())
	assert.True(t, toggles.InjectBranding())

	toggles.Apply(Settings{MaintenanceMode: true})
	assert.False(t, toggles.MonitorActive())
	assert.True(t, toggles.MaintenanceMode())
	assert.False(t, toggles.InjectBranding())
}
