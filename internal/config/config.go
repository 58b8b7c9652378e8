// Package config loads and validates the application configuration from a
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Engine   EngineConfig   `mapstructure:"engine"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// EngineConfig holds the fusion-engine parameters
type EngineConfig struct {
	DecayHalfLife      time.Duration `mapstructure:"decay_half_life"`
	RecentWindow       int           `mapstructure:"recent_window"`
	EMAAlpha           float64       `mapstructure:"ema_alpha"`
	MinLeadLagSamples  int           `mapstructure:"min_leadlag_samples"`
	ConsensusLookback  time.Duration `mapstructure:"consensus_lookback"`
	ForecastScale      time.Duration `mapstructure:"forecast_scale"`
	MinNotifConfidence float64       `mapstructure:"min_notif_confidence"`
}

// FeedConfig holds the Polymarket data-api configuration
type FeedConfig struct {
	APIBaseURL   string        `mapstructure:"api_base_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinTradeUSD  float64       `mapstructure:"min_trade_usd"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	Enabled  bool   `mapstructure:"enabled"`
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	StatsFilePath   string        `mapstructure:"stats_file_path"`
	JournalDBPath   string        `mapstructure:"journal_db_path"`
	PersistInterval time.Duration `mapstructure:"persist_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("WHALEFUSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.decay_half_life", "6h")
	v.SetDefault("engine.recent_window", 20)
	v.SetDefault("engine.ema_alpha", 0.1)
	v.SetDefault("engine.min_leadlag_samples", 5)
	v.SetDefault("engine.consensus_lookback", "24h")
	v.SetDefault("engine.forecast_scale", "2h")
	v.SetDefault("engine.min_notif_confidence", 0.4)

	v.SetDefault("feed.api_base_url", "https://data-api.polymarket.com")
	v.SetDefault("feed.poll_interval", "1m")
	v.SetDefault("feed.timeout", "30s")
	v.SetDefault("feed.min_trade_usd", 5000.0)
	v.SetDefault("feed.max_retries", 3)

	v.SetDefault("storage.stats_file_path", "./data/whale-stats.json")
	v.SetDefault("storage.journal_db_path", "./data/journal.db")
	v.SetDefault("storage.persist_interval", "5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid. Any violation is
// a startup failure: no computation proceeds on an invalid configuration.
func (c *Config) Validate() error {
	if c.Engine.DecayHalfLife <= 0 {
		return fmt.Errorf("engine.decay_half_life must be positive")
	}
	if c.Engine.RecentWindow < 1 {
		return fmt.Errorf("engine.recent_window must be at least 1")
	}
	if c.Engine.EMAAlpha <= 0.0 || c.Engine.EMAAlpha >= 1.0 {
		return fmt.Errorf("engine.ema_alpha must be strictly between 0.0 and 1.0")
	}
	if c.Engine.MinLeadLagSamples < 2 {
		return fmt.Errorf("engine.min_leadlag_samples must be at least 2")
	}
	if c.Engine.ConsensusLookback <= 0 {
		return fmt.Errorf("engine.consensus_lookback must be positive")
	}
	if c.Engine.ForecastScale <= 0 {
		return fmt.Errorf("engine.forecast_scale must be positive")
	}
	if c.Engine.MinNotifConfidence < 0.0 || c.Engine.MinNotifConfidence > 1.0 {
		return fmt.Errorf("engine.min_notif_confidence must be between 0.0 and 1.0")
	}

	if c.Feed.APIBaseURL == "" {
		return fmt.Errorf("feed.api_base_url is required")
	}
	if c.Feed.PollInterval < 1*time.Second {
		return fmt.Errorf("feed.poll_interval must be at least 1 second")
	}
	if c.Feed.MinTradeUSD < 0 {
		return fmt.Errorf("feed.min_trade_usd must not be negative")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.StatsFilePath == "" {
		return fmt.Errorf("storage.stats_file_path is required")
	}
	if c.Storage.JournalDBPath == "" {
		return fmt.Errorf("storage.journal_db_path is required")
	}
	if c.Storage.PersistInterval < 1*time.Second {
		return fmt.Errorf("storage.persist_interval must be at least 1 second")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	return nil
}
