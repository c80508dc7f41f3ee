// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/repackr/internal/schemas"
	rootschemas "github.com/jonathan/repackr/schemas"
)

// Environment variables that override file values.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvDataDir     = "REPACKR_DATA_DIR"
	EnvBrandingDir = "REPACKR_BRANDING_DIR"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from Defaults.
type Config struct {
	// Storage
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	DataDir     string `json:"data_dir,omitempty"`     // Work directories, lock file and output archives
	BrandingDir string `json:"branding_dir,omitempty"` // Files copied into archives when branding is on

	// Sources
	AggregatorDomains []string `json:"aggregator_domains,omitempty" validate:"dive,required"`
	IndexURLs         []string `json:"index_urls,omitempty" validate:"dive,http_url"`

	// Timing, in seconds
	PollIntervalSeconds    int `json:"poll_interval_seconds,omitempty" validate:"gte=0"`
	PostDelaySeconds       int `json:"post_delay_seconds,omitempty" validate:"gte=0"`
	DownloadTimeoutSeconds int `json:"download_timeout_seconds,omitempty" validate:"gte=0"`

	// Fetching
	Fingerprint string `json:"fingerprint,omitempty" validate:"omitempty,oneof=chrome chrome110 safari15_3"`
	UseBrowser  bool   `json:"use_browser,omitempty"` // Fall back to headless Chrome on blocked pages

	// DenyList replaces the default watermark file names when set.
	DenyList []string `json:"deny_list,omitempty" validate:"dive,required"`

	Settings Settings `json:"settings"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:           "data",
		BrandingDir:       "assets",
		AggregatorDomains: []string{"codelist.cc"},
		IndexURLs: []string{
			"https://codelist.cc/v3/",
			"https://codelist.cc/scripts3/",
			"https://codelist.cc/plugins3/",
			"https://codelist.cc/mobile/",
			"https://codelist.cc/templates/",
		},
		PollIntervalSeconds:    600,
		PostDelaySeconds:       10,
		DownloadTimeoutSeconds: 1800,
		Fingerprint:            "chrome",
		Settings:               DefaultSettings(),
	}
}

// LoadConfig loads configuration from a JSON file. The raw document is
// checked against the embedded config schema before decoding.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("failed to parse config JSON: %s is not valid JSON", path)
	}
	if err := schemas.ValidateBytes(rootschemas.ConfigSchemaFile, rootschemas.ConfigSchema(), data); err != nil {
		return nil, fmt.Errorf("config file %s does not match schema: %w", path, err)
	}

	// Settings absent from the file keep their defaults.
	cfg := Config{Settings: DefaultSettings()}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.BrandingDir != "" && c.Settings.InjectBranding {
		if info, err := os.Stat(c.BrandingDir); err == nil && !info.IsDir() {
			return fmt.Errorf("config error: branding_dir is not a directory: %s", c.BrandingDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.BrandingDir == "" {
		result.BrandingDir = defaults.BrandingDir
	}
	if result.Fingerprint == "" {
		result.Fingerprint = defaults.Fingerprint
	}

	// Slices: use default if nil
	if result.AggregatorDomains == nil {
		result.AggregatorDomains = defaults.AggregatorDomains
	}
	if result.IndexURLs == nil {
		result.IndexURLs = defaults.IndexURLs
	}
	if result.DenyList == nil {
		result.DenyList = defaults.DenyList
	}

	// Int fields: use default if zero
	if result.PollIntervalSeconds == 0 {
		result.PollIntervalSeconds = defaults.PollIntervalSeconds
	}
	if result.PostDelaySeconds == 0 {
		result.PostDelaySeconds = defaults.PostDelaySeconds
	}
	if result.DownloadTimeoutSeconds == 0 {
		result.DownloadTimeoutSeconds = defaults.DownloadTimeoutSeconds
	}

	if result.Settings.ChannelID == "" {
		result.Settings.ChannelID = defaults.Settings.ChannelID
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge

	return result
}

// ApplyEnv overrides storage locations from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvBrandingDir); v != "" {
		c.BrandingDir = v
	}
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// PostDelay returns the pause between posts as a duration.
func (c *Config) PostDelay() time.Duration {
	return time.Duration(c.PostDelaySeconds) * time.Second
}

// DownloadTimeout returns the per-download timeout as a duration.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSeconds) * time.Second
}
