// Package config loads the updater configuration from YAML.
package config

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "assetsync/internal/errors"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full updater configuration.
type Config struct {
	Content      ClassConfig   `yaml:"content"`
	Code         ClassConfig   `yaml:"code"`
	Storage      StorageConfig `yaml:"storage"`
	HTTP         HTTPConfig    `yaml:"http"`
	VerifyHashes *bool         `yaml:"verify_hashes"`
	Log          LogConfig     `yaml:"log"`
	Metrics      MetricsConfig `yaml:"metrics"`
}

// ClassConfig configures one asset class.
type ClassConfig struct {
	ManifestURL     string        `yaml:"manifest_url"`
	CheckInterval   time.Duration `yaml:"check_interval"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	Enabled         *bool         `yaml:"enabled"`
	BaselineVersion string        `yaml:"baseline_version"`
}

// IsEnabled reports whether the class takes part in checks. Unset means enabled.
func (c ClassConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	BlobDir string `yaml:"blob_dir"`
}

// HTTPConfig tunes the HTTP transport.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryWait  time.Duration `yaml:"retry_wait"`
	UserAgent  string        `yaml:"user_agent"`
	CacheBust  *bool         `yaml:"cache_bust"`
}

// CacheBustEnabled reports whether requests carry cache-busting markers.
func (h HTTPConfig) CacheBustEnabled() bool {
	return h.CacheBust == nil || *h.CacheBust
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the optional /metrics listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ShouldVerifyHashes reports whether payload digests are checked.
func (c *Config) ShouldVerifyHashes() bool {
	return c.VerifyHashes != nil && *c.VerifyHashes
}

var (
	validBackends = map[string]bool{"sqlite": true, "badger": true, "memory": true}
	validFormats  = map[string]bool{"color": true, "text": true, "json": true}
)

//go:embed default.yaml
var embeddedDefaults embed.FS

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	data, err := embeddedDefaults.ReadFile("default.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read embedded default config")
	}
	return decodeConfig(data)
}

// LoadFile loads a configuration file from disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}
	return decodeConfig(data)
}

// Parse decodes configuration data from bytes.
func Parse(data []byte) (*Config, error) {
	if len(data) == 0 {
		return &Config{}, nil
	}
	return decodeConfig(data)
}

// Load merges the embedded defaults with the file at path, when given, then
// expands paths and validates the result.
func Load(path string) (*Config, error) {
	base, err := Default()
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigGeneric, "failed to load default configuration", err).
			WithModule("config").
			WithOperation("Load")
	}

	cfgs := []*Config{base}
	if strings.TrimSpace(path) != "" {
		user, err := LoadFile(path)
		if err != nil {
			return nil, apperrors.ConfigError(apperrors.CodeConfigGeneric, "failed to load configuration file", err).
				WithModule("config").
				WithOperation("Load").
				WithField("path", path)
		}
		cfgs = append(cfgs, user)
	}

	merged, err := MergeConfigs(cfgs...)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigGeneric, "failed to merge configuration", err).
			WithModule("config").
			WithOperation("Load")
	}

	merged.Storage.Path = expandHome(merged.Storage.Path)
	merged.Storage.BlobDir = expandHome(merged.Storage.BlobDir)

	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeConfigs merges configurations in order, later entries overriding
// earlier ones. Zero values never override.
func MergeConfigs(cfgs ...*Config) (*Config, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("no configurations provided")
	}

	var result Config
	for _, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		mergeClass(&result.Content, cfg.Content)
		mergeClass(&result.Code, cfg.Code)

		if v := strings.TrimSpace(cfg.Storage.Backend); v != "" {
			result.Storage.Backend = strings.ToLower(v)
		}
		if v := strings.TrimSpace(cfg.Storage.Path); v != "" {
			result.Storage.Path = v
		}
		if v := strings.TrimSpace(cfg.Storage.BlobDir); v != "" {
			result.Storage.BlobDir = v
		}

		if cfg.HTTP.Timeout > 0 {
			result.HTTP.Timeout = cfg.HTTP.Timeout
		}
		if cfg.HTTP.MaxRetries > 0 {
			result.HTTP.MaxRetries = cfg.HTTP.MaxRetries
		}
		if cfg.HTTP.RetryWait > 0 {
			result.HTTP.RetryWait = cfg.HTTP.RetryWait
		}
		if v := strings.TrimSpace(cfg.HTTP.UserAgent); v != "" {
			result.HTTP.UserAgent = v
		}
		if cfg.HTTP.CacheBust != nil {
			result.HTTP.CacheBust = boolPtr(*cfg.HTTP.CacheBust)
		}

		if cfg.VerifyHashes != nil {
			result.VerifyHashes = boolPtr(*cfg.VerifyHashes)
		}

		if v := strings.TrimSpace(cfg.Log.Level); v != "" {
			result.Log.Level = v
		}
		if v := strings.TrimSpace(cfg.Log.Format); v != "" {
			result.Log.Format = strings.ToLower(v)
		}
		if v := strings.TrimSpace(cfg.Metrics.Addr); v != "" {
			result.Metrics.Addr = v
		}
	}

	if result.HTTP.Timeout == 0 {
		result.HTTP.Timeout = 60 * time.Second
	}
	if result.HTTP.MaxRetries <= 0 {
		result.HTTP.MaxRetries = 3
	}
	if result.Storage.Backend == "" {
		result.Storage.Backend = "sqlite"
	}
	if result.Log.Format == "" {
		result.Log.Format = "color"
	}

	return &result, nil
}

func mergeClass(dst *ClassConfig, src ClassConfig) {
	if v := strings.TrimSpace(src.ManifestURL); v != "" {
		dst.ManifestURL = v
	}
	if src.CheckInterval > 0 {
		dst.CheckInterval = src.CheckInterval
	}
	if src.InitialDelay > 0 {
		dst.InitialDelay = src.InitialDelay
	}
	if src.Enabled != nil {
		dst.Enabled = boolPtr(*src.Enabled)
	}
	if v := strings.TrimSpace(src.BaselineVersion); v != "" {
		dst.BaselineVersion = v
	}
}

// Validate rejects configurations the updater cannot run with.
func (c *Config) Validate() error {
	fail := func(message, field string, value interface{}) error {
		return apperrors.ConfigError(apperrors.CodeConfigGeneric, message, nil).
			WithModule("config").
			WithOperation("Validate").
			WithField(field, value)
	}

	if !validBackends[c.Storage.Backend] {
		return fail("unknown storage backend", "storage.backend", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && strings.TrimSpace(c.Storage.Path) == "" {
		return fail("storage path is required", "storage.backend", c.Storage.Backend)
	}
	if !validFormats[c.Log.Format] {
		return fail("unknown log format", "log.format", c.Log.Format)
	}
	if c.Content.IsEnabled() && strings.TrimSpace(c.Content.ManifestURL) == "" {
		return fail("content manifest url is required", "content.manifest_url", "")
	}
	if c.Code.IsEnabled() && strings.TrimSpace(c.Code.ManifestURL) == "" {
		return fail("code manifest url is required", "code.manifest_url", "")
	}
	if c.HTTP.RetryWait < 0 {
		return fail("retry wait must not be negative", "http.retry_wait", c.HTTP.RetryWait.String())
	}
	return nil
}

func decodeConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse configuration")
	}
	return &cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func boolPtr(v bool) *bool {
	return &v
}
