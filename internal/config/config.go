// Package config handles layered YAML configuration with environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all wopt configuration.
type Config struct {
	API      API      `yaml:"api"`
	Cache    Cache    `yaml:"cache"`
	Log      Log      `yaml:"log"`
	Prefetch Prefetch `yaml:"prefetch"`
}

// API holds optimization API connection settings.
type API struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	BusyRetries   int           `yaml:"busy_retries"`    // Re-issues after a 503 with Retry-After
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"` // Cap on a single Retry-After sleep
	ReadyPoll     time.Duration `yaml:"ready_poll"`      // Interval between readiness probes
	UserAgent     string        `yaml:"user_agent"`
}

// Cache holds client-side cache settings.
type Cache struct {
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl"`
	Enabled bool          `yaml:"enabled"`
}

// Log holds diagnostic logging settings.
type Log struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
	File  string `yaml:"file"`  // Empty logs to stderr (CLI) or nowhere (TUI)
}

// Prefetch holds cache-warming run settings.
type Prefetch struct {
	StateDir       string `yaml:"state_dir"`
	FailureMode    string `yaml:"failure_mode"`    // "abort" | "continue"
	CircuitBreaker int    `yaml:"circuit_breaker"` // Consecutive failures before stopping
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: API{
			BaseURL:       "http://localhost:8080",
			Timeout:       2 * time.Minute,
			BusyRetries:   3,
			MaxRetryDelay: 30 * time.Second,
			ReadyPoll:     2 * time.Second,
			UserAgent:     "wopt",
		},
		Cache: Cache{
			Dir:     defaultCacheDir(),
			TTL:     24 * time.Hour,
			Enabled: true,
		},
		Log: Log{
			Level: "info",
		},
		Prefetch: Prefetch{
			StateDir:       ".wopt/prefetch",
			FailureMode:    "continue",
			CircuitBreaker: 5,
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".wopt/cache"
	}
	return filepath.Join(dir, "wopt")
}

// Paths returns the layered config file locations, lowest priority first.
func Paths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wopt", "config.yaml"))
	}
	return append(paths, filepath.Join(".wopt", "config.yaml"))
}

// Load reads a single YAML config file at path and returns a Config.
// For merging multiple config sources, use LoadLayered instead.
// If the file does not exist, defaults are returned without error.
// If the file contains invalid YAML or unknown fields, an error is returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return &cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		// Comment-only YAML files produce EOF with no decoded content.
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadLayered loads config from multiple paths with increasing priority.
// Later paths override earlier ones. Missing files are skipped.
func LoadLayered(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		layer, err := loadLayer(path)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			continue
		}
		cfg.merge(layer)
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: api.base_url cannot be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %v", c.API.Timeout)
	}
	if c.API.BusyRetries < 0 {
		return fmt.Errorf("config: api.busy_retries must be non-negative, got %d", c.API.BusyRetries)
	}
	if c.API.MaxRetryDelay < 0 {
		return fmt.Errorf("config: api.max_retry_delay must be non-negative, got %v", c.API.MaxRetryDelay)
	}
	if c.API.ReadyPoll <= 0 {
		return fmt.Errorf("config: api.ready_poll must be positive, got %v", c.API.ReadyPoll)
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		return errors.New("config: cache.dir cannot be empty when the cache is enabled")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive, got %v", c.Cache.TTL)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Prefetch.FailureMode {
	case "", "abort", "continue":
		// valid
	default:
		return fmt.Errorf("config: prefetch.failure_mode must be \"abort\" or \"continue\", got %q", c.Prefetch.FailureMode)
	}
	if c.Prefetch.CircuitBreaker < 0 {
		return fmt.Errorf("config: prefetch.circuit_breaker must be non-negative, got %d", c.Prefetch.CircuitBreaker)
	}
	if c.Prefetch.StateDir == "" {
		return errors.New("config: prefetch.state_dir cannot be empty")
	}
	return nil
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: log.level must be debug, info, warn or error, got %q", s)
}

// ApplyEnv applies environment variable overrides to the config.
// Supported variables: WOPT_API_URL, WOPT_CACHE_DIR, WOPT_CACHE_TTL, WOPT_LOG_LEVEL.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("WOPT_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("WOPT_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("WOPT_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid WOPT_CACHE_TTL %q: %w", v, err)
		}
		c.Cache.TTL = d
	}
	if v := os.Getenv("WOPT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// rawConfig mirrors Config but uses pointers to distinguish set vs unset fields.
type rawConfig struct {
	API      *rawAPI      `yaml:"api"`
	Cache    *rawCache    `yaml:"cache"`
	Log      *rawLog      `yaml:"log"`
	Prefetch *rawPrefetch `yaml:"prefetch"`
}

type rawAPI struct {
	BaseURL       *string        `yaml:"base_url"`
	Timeout       *time.Duration `yaml:"timeout"`
	BusyRetries   *int           `yaml:"busy_retries"`
	MaxRetryDelay *time.Duration `yaml:"max_retry_delay"`
	ReadyPoll     *time.Duration `yaml:"ready_poll"`
	UserAgent     *string        `yaml:"user_agent"`
}

type rawCache struct {
	Dir     *string        `yaml:"dir"`
	TTL     *time.Duration `yaml:"ttl"`
	Enabled *bool          `yaml:"enabled"`
}

type rawLog struct {
	Level *string `yaml:"level"`
	File  *string `yaml:"file"`
}

type rawPrefetch struct {
	StateDir       *string `yaml:"state_dir"`
	FailureMode    *string `yaml:"failure_mode"`
	CircuitBreaker *int    `yaml:"circuit_breaker"`
}

// loadLayer reads a single config file into a rawConfig for selective merging.
// Returns nil if the file does not exist. Rejects unknown fields.
func loadLayer(path string) (*rawConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var raw rawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return &raw, nil
}

// merge applies non-nil fields from a rawConfig layer onto this Config.
func (c *Config) merge(layer *rawConfig) {
	if a := layer.API; a != nil {
		setIf(&c.API.BaseURL, a.BaseURL)
		setIf(&c.API.Timeout, a.Timeout)
		setIf(&c.API.BusyRetries, a.BusyRetries)
		setIf(&c.API.MaxRetryDelay, a.MaxRetryDelay)
		setIf(&c.API.ReadyPoll, a.ReadyPoll)
		setIf(&c.API.UserAgent, a.UserAgent)
	}
	if ca := layer.Cache; ca != nil {
		setIf(&c.Cache.Dir, ca.Dir)
		setIf(&c.Cache.TTL, ca.TTL)
		setIf(&c.Cache.Enabled, ca.Enabled)
	}
	if l := layer.Log; l != nil {
		setIf(&c.Log.Level, l.Level)
		setIf(&c.Log.File, l.File)
	}
	if p := layer.Prefetch; p != nil {
		setIf(&c.Prefetch.StateDir, p.StateDir)
		setIf(&c.Prefetch.FailureMode, p.FailureMode)
		setIf(&c.Prefetch.CircuitBreaker, p.CircuitBreaker)
	}
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
