// Package config loads service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidPort        = errors.New("server.port must be a number between 1 and 65535")
	ErrInvalidDriver      = errors.New("database.driver must be 'sqlite', 'postgres' or empty")
	ErrInvalidTransport   = errors.New("http.transport must be 'polite' or 'colly'")
	ErrInvalidTimeout     = errors.New("http.timeout_sec must be at least 1")
	ErrInvalidRate        = errors.New("http.rate_per_sec must be positive")
	ErrInvalidBurst       = errors.New("http.burst must be at least 1")
	ErrInvalidCacheSize   = errors.New("cache.size must be at least 1")
	ErrInvalidCacheTTL    = errors.New("cache.ttl_minutes must be at least 1")
	ErrInvalidConcurrency = errors.New("fanout.concurrency must be between 1 and 32")
	ErrInvalidWatchlist   = errors.New("watchlist needs a source, entities and indicators when enabled")
	ErrInvalidYearRange   = errors.New("watchlist.from cannot exceed watchlist.to")
	ErrInvalidLogLevel    = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat   = errors.New("logging.format must be 'json' or 'text'")
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	HTTP      HTTPConfig      `yaml:"http"`
	Sources   SourcesConfig   `yaml:"sources"`
	Cache     CacheConfig     `yaml:"cache"`
	FanOut    FanOutConfig    `yaml:"fanout"`
	Watchlist WatchlistConfig `yaml:"watchlist"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// DatabaseConfig selects the snapshot store. An empty DSN disables persistence.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
}

type HTTPConfig struct {
	UserAgent     string  `yaml:"user_agent"`
	Transport     string  `yaml:"transport"`
	TimeoutSec    int     `yaml:"timeout_sec"`
	RatePerSec    float64 `yaml:"rate_per_sec"`
	Burst         int     `yaml:"burst"`
	RespectRobots bool    `yaml:"respect_robots"`
}

type SourcesConfig struct {
	DataMapper DataMapperConfig `yaml:"datamapper"`
	WorldBank  WorldBankConfig  `yaml:"worldbank"`
	SDMX       SDMXConfig       `yaml:"sdmx"`
}

type DataMapperConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type WorldBankConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
}

type SDMXConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	Database  string `yaml:"database"`
	Frequency string `yaml:"frequency"`
}

type CacheConfig struct {
	Size       int `yaml:"size"`
	TTLMinutes int `yaml:"ttl_minutes"`
}

type FanOutConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// WatchlistConfig drives the background refresh loop.
type WatchlistConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Source          string   `yaml:"source"`
	Entities        []string `yaml:"entities"`
	Indicators      []string `yaml:"indicators"`
	From            int      `yaml:"from"`
	To              int      `yaml:"to"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	RetentionDays   int      `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration that works without a file.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "indicators.db"},
		HTTP: HTTPConfig{
			UserAgent:  "econ-indicators/1.0",
			Transport:  "polite",
			TimeoutSec: 15,
			RatePerSec: 2,
			Burst:      2,
		},
		Sources: SourcesConfig{
			DataMapper: DataMapperConfig{Enabled: true},
			WorldBank:  WorldBankConfig{Enabled: true, PageSize: 1000},
			SDMX:       SDMXConfig{Enabled: true, Database: "IFS", Frequency: "A"},
		},
		Cache:  CacheConfig{Size: 512, TTLMinutes: 60},
		FanOut: FanOutConfig{Concurrency: 4},
		Watchlist: WatchlistConfig{
			IntervalMinutes: 360,
			RetentionDays:   30,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from PORT, DATABASE_URL, DATABASE_DRIVER and LOG_LEVEL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
		if c.Database.Driver == "sqlite" && strings.HasPrefix(v, "postgres") {
			c.Database.Driver = ""
		}
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 1 || port > 65535 {
		return ErrInvalidPort
	}
	switch strings.ToLower(c.Database.Driver) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return ErrInvalidDriver
	}
	switch strings.ToLower(c.HTTP.Transport) {
	case "", "polite", "colly":
	default:
		return ErrInvalidTransport
	}
	if c.HTTP.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.HTTP.RatePerSec <= 0 {
		return ErrInvalidRate
	}
	if c.HTTP.Burst < 1 {
		return ErrInvalidBurst
	}
	if c.Cache.Size < 1 {
		return ErrInvalidCacheSize
	}
	if c.Cache.TTLMinutes < 1 {
		return ErrInvalidCacheTTL
	}
	if c.FanOut.Concurrency < 1 || c.FanOut.Concurrency > 32 {
		return ErrInvalidConcurrency
	}
	if c.Watchlist.Enabled {
		if c.Watchlist.Source == "" || len(c.Watchlist.Entities) == 0 || len(c.Watchlist.Indicators) == 0 {
			return ErrInvalidWatchlist
		}
	}
	if c.Watchlist.From != 0 && c.Watchlist.To != 0 && c.Watchlist.From > c.Watchlist.To {
		return ErrInvalidYearRange
	}
	if _, ok := parseLevel(c.Logging.Level); !ok {
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}

func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

// Every converts the per-second rate into the interval between requests.
func (h HTTPConfig) Every() time.Duration {
	if h.RatePerSec <= 0 {
		return time.Second
	}
	return time.Duration(float64(time.Second) / h.RatePerSec)
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (w WatchlistConfig) Interval() time.Duration {
	if w.IntervalMinutes <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(w.IntervalMinutes) * time.Minute
}

func (w WatchlistConfig) Retention() time.Duration {
	if w.RetentionDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(w.RetentionDays) * 24 * time.Hour
}

// NewLogger builds the process logger described by the logging section.
func (l LoggingConfig) NewLogger() *slog.Logger {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(l.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
