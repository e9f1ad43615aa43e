// Package config loads and saves ~/.courtside/config.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/courtside/courtside-cli/internal/fx"
)

// Environment variables that override the config file.
const (
	EnvHome     = "COURTSIDE_HOME"
	EnvAPIKey   = "BALLDONTLIE_API_KEY"
	EnvSeason   = "COURTSIDE_SEASON"
	EnvLogLevel = "COURTSIDE_LOG_LEVEL"
)

// Config is the full on-disk configuration.
type Config struct {
	Balldontlie BalldontlieConfig `toml:"balldontlie"`
	Predictor   PredictorConfig   `toml:"predictor"`
	Exchange    ExchangeConfig    `toml:"exchange"`
	Tools       ToolsConfig       `toml:"tools"`
	Server      ServerConfig      `toml:"server"`
	Logging     LoggingConfig     `toml:"logging"`
}

// BalldontlieConfig configures the sports-data API client.
type BalldontlieConfig struct {
	APIKey            string   `toml:"api_key"`
	BaseURL           string   `toml:"base_url" validate:"required,url"`
	AuthScheme        string   `toml:"auth_scheme" validate:"omitempty,alpha"`
	Season            int      `toml:"season" validate:"omitempty,min=1946,max=2100"`
	Timeout           Duration `toml:"timeout"`
	MaxRetries        int      `toml:"max_retries" validate:"min=0,max=10"`
	RetryBackoff      Duration `toml:"retry_backoff"`
	RequestsPerMinute int      `toml:"requests_per_minute" validate:"min=0"`
}

// PredictorConfig tunes the match predictor.
type PredictorConfig struct {
	LastNGames    int    `toml:"last_n_games" validate:"min=1,max=100"`
	LookaheadDays int    `toml:"lookahead_days" validate:"min=1,max=60"`
	FinishedOnly  bool   `toml:"finished_only"`
	Timezone      string `toml:"timezone"`
}

// ExchangeConfig configures the currency rate feeds.
type ExchangeConfig struct {
	Timeout Duration    `toml:"timeout"`
	Sources []fx.Source `toml:"sources" validate:"dive"`
}

// ToolsConfig controls which assistant tools are exposed.
type ToolsConfig struct {
	Desktop bool   `toml:"desktop"`
	Workdir string `toml:"workdir"`
}

// ServerConfig configures `courtside serve`.
type ServerConfig struct {
	Addr string `toml:"addr" validate:"required,hostname_port"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
	File  string `toml:"file"`
}

// Duration is a time.Duration written as a string ("10s") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Balldontlie: BalldontlieConfig{
			BaseURL:           "https://api.balldontlie.io/v1",
			Timeout:           Duration{10 * time.Second},
			MaxRetries:        2,
			RetryBackoff:      Duration{500 * time.Millisecond},
			RequestsPerMinute: 5, // balldontlie free tier
		},
		Predictor: PredictorConfig{
			LastNGames:    10,
			LookaheadDays: 14,
		},
		Exchange: ExchangeConfig{
			Timeout: Duration{5 * time.Second},
			Sources: append([]fx.Source(nil), fx.DefaultSources...),
		},
		Server:  ServerConfig{Addr: "127.0.0.1:2526"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Dir returns the config directory (~/.courtside, or $COURTSIDE_HOME).
func Dir() string {
	if d := os.Getenv(EnvHome); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".courtside"
	}
	return filepath.Join(home, ".courtside")
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, falling back to defaults when it does not
// exist, then applies .env and environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env", "error", err)
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(Path(), cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", Path(), err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Balldontlie.APIKey = v
	}
	if v := os.Getenv(EnvSeason); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeason, err)
		}
		c.Balldontlie.Season = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Save writes the config to Path(), creating the directory if needed.
func (c *Config) Save() error {
	if err := os.MkdirAll(Dir(), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.OpenFile(Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// Location resolves predictor.timezone. Empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Predictor.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Predictor.Timezone)
}
