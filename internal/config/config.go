// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/akozlov/ricwatch/internal/fetch"
	"github.com/akozlov/ricwatch/internal/market"
	"github.com/akozlov/ricwatch/internal/watch"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig       `mapstructure:"server"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Fetch       FetchConfig        `mapstructure:"fetch"`
	Render      RenderConfig       `mapstructure:"render"`
	Market      MarketConfig       `mapstructure:"market"`
	Watch       WatchConfig        `mapstructure:"watch"`
	Proxies     ProxiesConfig      `mapstructure:"proxies"`
	State       StateConfig        `mapstructure:"state"`
	Subscribers []SubscriberConfig `mapstructure:"subscribers"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FetchConfig governs the lightweight HTTP client.
type FetchConfig struct {
	UserAgent       string `mapstructure:"user_agent"`
	AcceptLanguage  string `mapstructure:"accept_language"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxConnsPerHost int    `mapstructure:"max_conns_per_host"`
}

// RenderConfig configures the browser rendering subsystem.
type RenderConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	MaxParallel       int     `mapstructure:"max_parallel"`
	NavTimeoutSeconds int     `mapstructure:"nav_timeout_seconds"`
	WaitSelector      string  `mapstructure:"wait_selector"`
	HostQPS           float64 `mapstructure:"host_qps"`
}

// MarketConfig points discovery at the marketplace.
type MarketConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	SearchPath     string `mapstructure:"search_path"`
	MaxPages       int    `mapstructure:"max_pages"`
	FixedPriceOnly bool   `mapstructure:"fixed_price_only"`
}

// WatchConfig carries cycle defaults shared by all subscribers.
type WatchConfig struct {
	DefaultWindowHours     int      `mapstructure:"default_window_hours"`
	DefaultBatchSize       int      `mapstructure:"default_batch_size"`
	DefaultIntervalMinutes int      `mapstructure:"default_interval_minutes"`
	LedgerCap              int      `mapstructure:"ledger_cap"`
	ResultsDir             string   `mapstructure:"results_dir"`
	BlockedSellers         []string `mapstructure:"blocked_sellers"`
}

// ProxiesConfig feeds the rotation pool, from a file, inline entries, or
// both.
type ProxiesConfig struct {
	File string   `mapstructure:"file"`
	List []string `mapstructure:"list"`
}

// StateConfig selects and configures the snapshot store.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	DSN     string `mapstructure:"dsn"`
	Table   string `mapstructure:"table"`
}

// SubscriberConfig declares one watched query.
type SubscriberConfig struct {
	Name            string   `mapstructure:"name"`
	Category        string   `mapstructure:"category"`
	WindowHours     int      `mapstructure:"window_hours"`
	BatchSize       int      `mapstructure:"batch_size"`
	IntervalMinutes int      `mapstructure:"interval_minutes"`
	BlockedSellers  []string `mapstructure:"blocked_sellers"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RICWATCH")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	v.SetDefault("fetch.accept_language", "de-CH,de;q=0.9,en;q=0.7")
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.max_idle_conns", 32)
	v.SetDefault("fetch.max_conns_per_host", 8)
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.max_parallel", 1)
	v.SetDefault("render.nav_timeout_seconds", 40)
	v.SetDefault("render.host_qps", 0.5)
	v.SetDefault("market.base_url", "https://www.ricardo.ch")
	v.SetDefault("market.search_path", "/api/rmf/search")
	v.SetDefault("market.max_pages", 8)
	v.SetDefault("market.fixed_price_only", false)
	v.SetDefault("watch.default_window_hours", 24)
	v.SetDefault("watch.default_batch_size", 30)
	v.SetDefault("watch.default_interval_minutes", 5)
	v.SetDefault("watch.ledger_cap", 3000)
	v.SetDefault("watch.results_dir", "results")
	v.SetDefault("state.backend", "file")
	v.SetDefault("state.dir", "state")
	v.SetDefault("state.table", "watch_state")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	if c.Market.MaxPages <= 0 {
		return fmt.Errorf("market.max_pages must be > 0")
	}
	switch c.State.Backend {
	case "file":
		if c.State.Dir == "" {
			return fmt.Errorf("state.dir must be set for the file backend")
		}
	case "postgres":
		if c.State.DSN == "" {
			return fmt.Errorf("state.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("state.backend must be file or postgres, got %q", c.State.Backend)
	}
	for i, sub := range c.Subscribers {
		if sub.Name == "" {
			return fmt.Errorf("subscribers[%d].name is required", i)
		}
		if sub.BatchSize != 0 && (sub.BatchSize < 5 || sub.BatchSize > 1000) {
			return fmt.Errorf("subscribers[%d].batch_size must be between 5 and 1000, or 0 for the default", i)
		}
	}
	return nil
}

// FetchSettings maps the config onto the fetch package's knobs.
func (c Config) FetchSettings() fetch.Config {
	parallel := 0
	if c.Render.Enabled {
		parallel = c.Render.MaxParallel
	}
	return fetch.Config{
		UserAgent:       c.Fetch.UserAgent,
		AcceptLanguage:  c.Fetch.AcceptLanguage,
		Timeout:         time.Duration(c.Fetch.TimeoutSeconds) * time.Second,
		RenderTimeout:   time.Duration(c.Render.NavTimeoutSeconds) * time.Second,
		RenderWaitFor:   c.Render.WaitSelector,
		RenderParallel:  parallel,
		RenderHostQPS:   c.Render.HostQPS,
		MaxIdleConns:    c.Fetch.MaxIdleConns,
		MaxConnsPerHost: c.Fetch.MaxConnsPerHost,
	}
}

// MarketSettings maps the config onto the market package's knobs.
func (c Config) MarketSettings() market.Config {
	return market.Config{
		BaseURL:        c.Market.BaseURL,
		SearchPath:     c.Market.SearchPath,
		MaxPages:       c.Market.MaxPages,
		FixedPriceOnly: c.Market.FixedPriceOnly,
	}
}

// RunnerSettings maps the config onto the cycle runner's defaults.
func (c Config) RunnerSettings() watch.RunnerConfig {
	return watch.RunnerConfig{
		DefaultWindow:    time.Duration(c.Watch.DefaultWindowHours) * time.Hour,
		DefaultBatchSize: c.Watch.DefaultBatchSize,
		LedgerCap:        c.Watch.LedgerCap,
		SharedBlocklist:  c.Watch.BlockedSellers,
	}
}

// WatchSubscribers converts the declared subscribers, applying the
// shared defaults.
func (c Config) WatchSubscribers() []watch.Subscriber {
	out := make([]watch.Subscriber, 0, len(c.Subscribers))
	for _, sub := range c.Subscribers {
		window := sub.WindowHours
		if window <= 0 {
			window = c.Watch.DefaultWindowHours
		}
		batch := sub.BatchSize
		if batch <= 0 {
			batch = c.Watch.DefaultBatchSize
		}
		interval := sub.IntervalMinutes
		if interval <= 0 {
			interval = c.Watch.DefaultIntervalMinutes
		}
		out = append(out, watch.Subscriber{
			Name:           sub.Name,
			Category:       sub.Category,
			Window:         time.Duration(window) * time.Hour,
			BatchSize:      batch,
			Interval:       time.Duration(interval) * time.Minute,
			BlockedSellers: sub.BlockedSellers,
		})
	}
	return out
}

// ProxyLines merges the proxy file (one entry per line, # comments) with
// the inline list. A missing file is only an error when it was named.
func (c Config) ProxyLines() ([]string, error) {
	out := append([]string(nil), c.Proxies.List...)
	if c.Proxies.File == "" {
		return out, nil
	}
	raw, err := os.ReadFile(c.Proxies.File)
	if err != nil {
		return nil, fmt.Errorf("read proxies file: %w", err)
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
