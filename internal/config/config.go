// Package config provides configuration loading and validation for the
// server and the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Duration is a time.Duration written as a Go duration string ("1.5s") in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration that can be loaded from a
// JSON file. All fields are optional; missing values use defaults.
type Config struct {
	// Storage
	Store       string `json:"store,omitempty"`        // postgres or memory
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL

	// Page cache; empty RedisAddr keeps the cache in memory
	RedisAddr     string   `json:"redis_addr,omitempty"`
	RedisPassword string   `json:"redis_password,omitempty"`
	RedisDB       int      `json:"redis_db,omitempty"`
	CacheTTL      Duration `json:"cache_ttl,omitempty"`

	// Events; empty disables publishing
	NATSURL string `json:"nats_url,omitempty"`

	// Server
	Port           int    `json:"port,omitempty"`
	LogLevel       string `json:"log_level,omitempty"`
	LogDevelopment bool   `json:"log_development,omitempty"`

	// Scraping
	RequestTimeout     Duration `json:"request_timeout,omitempty"`      // static fetch timeout
	DetailDelay        Duration `json:"detail_delay,omitempty"`         // pause between detail fetches
	BrowserWaitTimeout Duration `json:"browser_wait_timeout,omitempty"` // rendered page wait
	Headless           *bool    `json:"headless,omitempty"`
	Sources            []string `json:"sources,omitempty"` // enabled source tags, empty for all
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	headless := true
	return Config{
		Store:              StorePostgres,
		CacheTTL:           Duration(6 * time.Hour),
		Port:               8080,
		LogLevel:           "info",
		RequestTimeout:     Duration(10 * time.Second),
		DetailDelay:        Duration(time.Second),
		BrowserWaitTimeout: Duration(20 * time.Second),
		Headless:           &headless,
	}
}

// Load reads the JSON file at path when path is non-empty, overlays the
// environment, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
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

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	str("JOBSTAGE_STORE", &c.Store)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("NATS_URL", &c.NATSURL)
	str("LOG_LEVEL", &c.LogLevel)

	if err := num("REDIS_DB", &c.RedisDB); err != nil {
		return err
	}
	if err := num("PORT", &c.Port); err != nil {
		return err
	}
	if err := dur("CACHE_TTL", &c.CacheTTL); err != nil {
		return err
	}
	if err := dur("SCRAPE_REQUEST_TIMEOUT", &c.RequestTimeout); err != nil {
		return err
	}
	if err := dur("SCRAPE_DETAIL_DELAY", &c.DetailDelay); err != nil {
		return err
	}
	if err := dur("SCRAPE_BROWSER_WAIT", &c.BrowserWaitTimeout); err != nil {
		return err
	}

	if v, ok := lookup("HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HEADLESS: %w", err)
		}
		c.Headless = &b
	}
	if v, ok := lookup("SCRAPE_SOURCES"); ok && v != "" {
		c.Sources = nil
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				c.Sources = append(c.Sources, tag)
			}
		}
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config error: 'database_url' is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("config error: unknown store %q (want %s or %s)", c.Store, StorePostgres, StoreMemory)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535, got %d", c.Port)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("config error: 'redis_db' must be non-negative")
	}
	if c.RequestTimeout < 0 || c.BrowserWaitTimeout < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("config error: timeouts must be non-negative")
	}
	if c.DetailDelay < 0 {
		return fmt.Errorf("config error: 'detail_delay' must be non-negative")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown log level %q", c.LogLevel)
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisAddr == "" {
		result.RedisAddr = defaults.RedisAddr
	}
	if result.NATSURL == "" {
		result.NATSURL = defaults.NATSURL
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.CacheTTL == 0 {
		result.CacheTTL = defaults.CacheTTL
	}
	if result.RequestTimeout == 0 {
		result.RequestTimeout = defaults.RequestTimeout
	}
	if result.DetailDelay == 0 {
		result.DetailDelay = defaults.DetailDelay
	}
	if result.BrowserWaitTimeout == 0 {
		result.BrowserWaitTimeout = defaults.BrowserWaitTimeout
	}

	if result.Headless == nil {
		result.Headless = defaults.Headless
	}
	if len(result.Sources) == 0 {
		result.Sources = defaults.Sources
	}

	return result
}

// IsHeadless reports whether the browser runs without a window.
func (c *Config) IsHeadless() bool {
	return c.Headless == nil || *c.Headless
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
