// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Detector DetectorConfig `mapstructure:"detector"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// SourceConfig identifies the site being crawled.
type SourceConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	CountryPath string `mapstructure:"country_path"`
	SeedID      int    `mapstructure:"seed_id"`
	SeedSlug    string `mapstructure:"seed_slug"`
	ProbeMaxID  int    `mapstructure:"probe_max_id"`
}

// CrawlerConfig governs pacing, retries, and checkpoint cadence.
type CrawlerConfig struct {
	MaxCountries        int  `mapstructure:"max_countries"`
	Concurrency         int  `mapstructure:"concurrency"`
	CountryDelaySeconds int  `mapstructure:"country_delay_seconds"`
	DetailDelayMs       int  `mapstructure:"detail_delay_ms"`
	ProbeDelayMs        int  `mapstructure:"probe_delay_ms"`
	MaxRetries          int  `mapstructure:"max_retries"`
	BackoffInitialMs    int  `mapstructure:"backoff_initial_ms"`
	CheckpointEvery     int  `mapstructure:"checkpoint_every"`
	Resume              bool `mapstructure:"resume"`
}

// HeadlessConfig configures the browser-backed fetcher.
type HeadlessConfig struct {
	MaxParallel            int    `mapstructure:"max_parallel"`
	NavTimeoutSeconds      int    `mapstructure:"nav_timeout_seconds"`
	SelectorTimeoutSeconds int    `mapstructure:"selector_timeout_seconds"`
	Headed                 bool   `mapstructure:"headed"`
	UserAgent              string `mapstructure:"user_agent"`
}

// DetectorConfig tunes the needs-render heuristic used on detail pages.
type DetectorConfig struct {
	MinHTMLBytes  int      `mapstructure:"min_html_bytes"`
	MustSelectors []string `mapstructure:"must_selectors"`
	Keywords      []string `mapstructure:"keywords"`
}

// OutputConfig sets export and checkpoint file locations.
type OutputConfig struct {
	Path    string `mapstructure:"path"`
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DebugConfig controls the optional debug HTTP server.
type DebugConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment. A missing config file is not
// an error; defaults and environment variables apply.
func Load(path string) (Config, error) {
	v := viper.GetViper()
	v.SetEnvPrefix("TREATYCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/treatycrawl/")
		v.AddConfigPath("$HOME/.treatycrawl")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
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

// SetDefaults registers every default on the given Viper instance. The
// pacing and timeout values match the navigator's tolerances.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://investmentpolicy.unctad.org")
	v.SetDefault("source.country_path", "/international-investment-agreements/countries")
	v.SetDefault("source.seed_id", 1)
	v.SetDefault("source.seed_slug", "afghanistan")
	v.SetDefault("source.probe_max_id", 250)

	v.SetDefault("crawler.max_countries", 0)
	v.SetDefault("crawler.concurrency", 1)
	v.SetDefault("crawler.country_delay_seconds", 1)
	v.SetDefault("crawler.detail_delay_ms", 500)
	v.SetDefault("crawler.probe_delay_ms", 300)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.backoff_initial_ms", 2000)
	v.SetDefault("crawler.checkpoint_every", 10)
	v.SetDefault("crawler.resume", false)

	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 60)
	v.SetDefault("headless.selector_timeout_seconds", 30)
	v.SetDefault("headless.headed", false)
	v.SetDefault("headless.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("detector.min_html_bytes", 2000)
	v.SetDefault("detector.must_selectors", []string{"table"})
	v.SetDefault("detector.keywords", []string{"__NEXT_DATA__", "data-reactroot", "ng-app"})

	v.SetDefault("output.path", "data/treaties.csv")
	v.SetDefault("output.data_dir", "data")

	v.SetDefault("logging.development", true)

	v.SetDefault("debug.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if c.Source.ProbeMaxID <= 0 {
		return fmt.Errorf("source.probe_max_id must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxRetries <= 0 {
		return fmt.Errorf("crawler.max_retries must be > 0")
	}
	if c.Crawler.CheckpointEvery <= 0 {
		return fmt.Errorf("crawler.checkpoint_every must be > 0")
	}
	if c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0")
	}
	if c.Headless.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("headless.nav_timeout_seconds must be > 0")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	if c.Output.DataDir == "" {
		return fmt.Errorf("output.data_dir must be set")
	}
	return nil
}
