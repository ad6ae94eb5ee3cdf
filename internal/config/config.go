package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full server configuration. Values come from defaults,
// then an optional TOML file, then environment variables.
type Config struct {
	Addr    string `toml:"addr"`
	BaseURL string `toml:"base_url"`
	// ShareSecret signs share links. Empty selects an ephemeral key that
	// is lost on restart.
	ShareSecret  string `toml:"share_secret"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
	LogLevel     string `toml:"log_level"`

	RateLimit RateLimit `toml:"rate_limit"`
	History   History   `toml:"history"`
	Archive   Archive   `toml:"archive"`
	PDF       PDF       `toml:"pdf"`

	// Redis backs the rate limiter when set.
	RedisURL string `toml:"redis_url"`
}

// RateLimit configures per-client fixed windows.
type RateLimit struct {
	Enabled        bool `toml:"enabled"`
	ShareRequests  int  `toml:"share_requests"`
	ExportRequests int  `toml:"export_requests"`
	WindowSeconds  int  `toml:"window_seconds"`
}

// Window returns the window length.
func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// History configures the git repository that records exports.
type History struct {
	Dir    string `toml:"dir"`
	Author string `toml:"author"`
}

// Archive configures S3-compatible publishing of export bundles.
type Archive struct {
	Endpoint         string `toml:"endpoint"`
	AccessKey        string `toml:"access_key"`
	SecretKey        string `toml:"secret_key"`
	Bucket           string `toml:"bucket"`
	UseSSL           bool   `toml:"use_ssl"`
	PresignTTLSecond int    `toml:"presign_ttl_seconds"`
}

// Enabled reports whether publishing is configured.
func (a Archive) Enabled() bool {
	return strings.TrimSpace(a.Endpoint) != ""
}

// PresignTTL returns the lifetime of download links.
func (a Archive) PresignTTL() time.Duration {
	return time.Duration(a.PresignTTLSecond) * time.Second
}

// PDF configures PRD rendering through headless Chrome.
type PDF struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the render timeout.
func (p PDF) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:         ":8000",
		BaseURL:      "http://localhost:8000",
		MaxBodyBytes: 10 << 20,
		LogLevel:     "info",
		RateLimit: RateLimit{
			Enabled:        true,
			ShareRequests:  30,
			ExportRequests: 20,
			WindowSeconds:  60,
		},
		History: History{
			Author: "SpecStudio",
		},
		Archive: Archive{
			Bucket:           "specstudio-exports",
			UseSSL:           true,
			PresignTTLSecond: 3600,
		},
		PDF: PDF{TimeoutSeconds: 30},
	}
}

// Load reads path (when non-empty) over the defaults and applies
// environment overrides. A missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file %s not found", path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Addr = getenv("SPECSTUDIO_ADDR", cfg.Addr)
	cfg.BaseURL = getenv("SPECSTUDIO_BASE_URL", cfg.BaseURL)
	cfg.ShareSecret = getenv("SPECSTUDIO_SHARE_SECRET", cfg.ShareSecret)
	cfg.MaxBodyBytes = int64(getenvInt("SPECSTUDIO_MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.LogLevel = getenv("SPECSTUDIO_LOG_LEVEL", cfg.LogLevel)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)

	cfg.RateLimit.Enabled = getenvBool("SPECSTUDIO_RATE_LIMIT", cfg.RateLimit.Enabled)
	cfg.RateLimit.ShareRequests = getenvInt("SPECSTUDIO_RATE_LIMIT_SHARE", cfg.RateLimit.ShareRequests)
	cfg.RateLimit.ExportRequests = getenvInt("SPECSTUDIO_RATE_LIMIT_EXPORT", cfg.RateLimit.ExportRequests)
	cfg.RateLimit.WindowSeconds = getenvInt("SPECSTUDIO_RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimit.WindowSeconds)

	cfg.History.Dir = getenv("SPECSTUDIO_HISTORY_DIR", cfg.History.Dir)
	cfg.History.Author = getenv("SPECSTUDIO_HISTORY_AUTHOR", cfg.History.Author)

	// S3-compatible archive, disabled unless an endpoint is set
	cfg.Archive.Endpoint = getenv("SPECSTUDIO_ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.AccessKey = getenv("SPECSTUDIO_ARCHIVE_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = getenv("SPECSTUDIO_ARCHIVE_SECRET_KEY", cfg.Archive.SecretKey)
	cfg.Archive.Bucket = getenv("SPECSTUDIO_ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.UseSSL = getenvBool("SPECSTUDIO_ARCHIVE_USE_SSL", cfg.Archive.UseSSL)

	cfg.PDF.TimeoutSeconds = getenvInt("SPECSTUDIO_PDF_TIMEOUT_SECONDS", cfg.PDF.TimeoutSeconds)
}

func (c *Config) normalize() {
	c.Addr = strings.TrimSpace(c.Addr)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.History.Dir = strings.TrimSpace(c.History.Dir)
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q must be an absolute URL", c.BaseURL)
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max_body_bytes must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.ShareRequests <= 0 || c.RateLimit.ExportRequests <= 0 || c.RateLimit.WindowSeconds <= 0 {
			return errors.New("rate_limit values must be positive when enabled")
		}
	}
	if c.Archive.Enabled() && strings.TrimSpace(c.Archive.Bucket) == "" {
		return errors.New("archive.bucket is required when archive.endpoint is set")
	}
	if c.PDF.TimeoutSeconds <= 0 {
		return errors.New("pdf.timeout_seconds must be positive")
	}
	return nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
