// Package config loads the watch daemon configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the watch daemon configuration.
type Config struct {
	Market struct {
		AssetID    string `yaml:"asset_id"`
		Days       int    `yaml:"days"`
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		WSEndpoint string `yaml:"ws_endpoint"` // optional trade stream for monitor polling
	} `yaml:"market"`
	Forecast struct {
		Lookback int `yaml:"lookback"`
		Steps    int `yaml:"steps"` // 0 derives the horizon from history length
		Trials   int `yaml:"trials"`
	} `yaml:"forecast"`
	Schedule struct {
		Enabled         bool `yaml:"enabled"`
		IntervalMinutes int  `yaml:"interval_minutes"`
	} `yaml:"schedule"`
	Monitor struct {
		Enabled      bool `yaml:"enabled"`
		Slots        int  `yaml:"slots"`
		PollSeconds  int  `yaml:"poll_seconds"`
		HistoryLimit int  `yaml:"history_limit"`
	} `yaml:"monitor"`
	Storage struct {
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"`
	} `yaml:"storage"`
	Observability struct {
		MetricsAddr string `yaml:"metrics_addr"` // empty disables the /metrics endpoint
	} `yaml:"observability"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FORECAST_ASSET_ID"); v != "" {
		cfg.Market.AssetID = v
	}
	if v := os.Getenv("COINGECKO_BASE_URL"); v != "" {
		cfg.Market.BaseURL = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.Market.APIKey = v
	}
	if v := os.Getenv("FORECAST_WS_ENDPOINT"); v != "" {
		cfg.Market.WSEndpoint = v
	}
	if v := os.Getenv("FORECAST_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Forecast.Trials = n
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Observability.MetricsAddr = v
	}

	// Defaults
	if cfg.Market.AssetID == "" {
		cfg.Market.AssetID = "bitcoin"
	}
	if cfg.Market.Days == 0 {
		cfg.Market.Days = 30
	}
	if cfg.Forecast.Lookback == 0 {
		cfg.Forecast.Lookback = 8
	}
	if cfg.Forecast.Trials == 0 {
		cfg.Forecast.Trials = 10
	}
	if cfg.Schedule.IntervalMinutes == 0 {
		cfg.Schedule.IntervalMinutes = 10
	}
	if cfg.Monitor.Slots == 0 {
		cfg.Monitor.Slots = 10
	}
	if cfg.Monitor.PollSeconds == 0 {
		cfg.Monitor.PollSeconds = 3
	}
	if cfg.Monitor.HistoryLimit == 0 {
		cfg.Monitor.HistoryLimit = 200
	}

	return cfg, nil
}

// Validate checks that all required fields are consistent.
func (c *Config) Validate() error {
	if c.Market.AssetID == "" {
		return fmt.Errorf("market.asset_id is required")
	}
	if c.Market.Days <= 0 {
		return fmt.Errorf("market.days must be positive")
	}
	if c.Forecast.Lookback < 2 {
		return fmt.Errorf("forecast.lookback must be at least 2")
	}
	if c.Forecast.Trials <= 0 {
		return fmt.Errorf("forecast.trials must be positive")
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return fmt.Errorf("schedule.interval_minutes must be positive")
	}
	if c.Monitor.Slots <= 0 {
		return fmt.Errorf("monitor.slots must be positive")
	}
	if c.Monitor.PollSeconds <= 0 {
		return fmt.Errorf("monitor.poll_seconds must be positive")
	}
	return nil
}

// CycleInterval returns the scheduled cycle interval as a duration.
func (c *Config) CycleInterval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}

// PollInterval returns the monitor poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Monitor.PollSeconds) * time.Second
}
