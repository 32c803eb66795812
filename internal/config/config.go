// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/andesdata/webpresence/internal/fetch"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Render  RenderConfig  `mapstructure:"render"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlConfig governs crawl loop behavior.
type CrawlConfig struct {
	MaxPagesDefault int `mapstructure:"max_pages_default"`
	MaxPagesLimit   int `mapstructure:"max_pages_limit"`
}

// HTTPConfig configures the page fetch client.
type HTTPConfig struct {
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	FollowRedirects  bool    `mapstructure:"follow_redirects"`
	MaxResponseBytes int64   `mapstructure:"max_response_bytes"`
	RatePerHost      float64 `mapstructure:"rate_per_host"`
	UserAgent        string  `mapstructure:"user_agent"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs int  `mapstructure:"settle_delay_ms"`
}

// StorageConfig sets the path of the crawl result database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. An empty path skips the file
// and runs on defaults plus WEBPRESENCE_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBPRESENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := fetch.DefaultSettings()

	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.max_pages_default", 30)
	v.SetDefault("crawl.max_pages_limit", 500)
	v.SetDefault("http.timeout_seconds", int(def.Timeout/time.Second))
	v.SetDefault("http.max_retries", def.MaxRetries)
	v.SetDefault("http.backoff_initial_ms", int(def.BackoffBase/time.Millisecond))
	v.SetDefault("http.backoff_max_ms", int(def.BackoffMax/time.Millisecond))
	v.SetDefault("http.follow_redirects", def.FollowRedirects)
	v.SetDefault("http.max_response_bytes", def.MaxResponseBytes)
	v.SetDefault("http.rate_per_host", def.RequestsPerHostPerSecond)
	v.SetDefault("http.user_agent", def.UserAgent)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.nav_timeout_seconds", 30)
	v.SetDefault("render.settle_delay_ms", 1500)
	v.SetDefault("storage.path", "data/webpresence.db")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawl.max_pages_default must be > 0")
	}
	if c.Crawl.MaxPagesLimit < c.Crawl.MaxPagesDefault {
		return fmt.Errorf("crawl.max_pages_limit must be >= crawl.max_pages_default")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.MaxResponseBytes <= 0 {
		return fmt.Errorf("http.max_response_bytes must be > 0")
	}
	if c.Render.Enabled && c.Render.NavTimeoutSec <= 0 {
		return fmt.Errorf("render.nav_timeout_seconds must be > 0 when rendering is enabled")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set")
	}
	return nil
}

// FetchSettings converts the HTTP section into client settings.
func (c Config) FetchSettings() fetch.Settings {
	return fetch.Settings{
		Timeout:                  time.Duration(c.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:               c.HTTP.MaxRetries,
		BackoffBase:              time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:               time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
		FollowRedirects:          c.HTTP.FollowRedirects,
		MaxResponseBytes:         c.HTTP.MaxResponseBytes,
		RequestsPerHostPerSecond: c.HTTP.RatePerHost,
		UserAgent:                c.HTTP.UserAgent,
	}
}

// RenderSettings converts the render section into renderer settings.
func (c Config) RenderSettings() fetch.RenderConfig {
	return fetch.RenderConfig{
		UserAgent:         c.HTTP.UserAgent,
		NavigationTimeout: time.Duration(c.Render.NavTimeoutSec) * time.Second,
		SettleDelay:       time.Duration(c.Render.SettleDelayMs) * time.Millisecond,
	}
}
