package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// BackendConfig holds vision backend connection settings
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig holds polling cadence, alerting, and capacity settings
type AnalysisConfig struct {
	RecordedPollInterval time.Duration  `mapstructure:"recorded_poll_interval"`
	LivePollInterval     time.Duration  `mapstructure:"live_poll_interval"`
	AlertThreshold       int            `mapstructure:"alert_threshold"`
	AlertDuration        time.Duration  `mapstructure:"alert_duration"`
	Capacities           map[string]int `mapstructure:"capacities"`
	DefaultCapacity      int            `mapstructure:"default_capacity"`
	FrameDir             string         `mapstructure:"frame_dir"`
}

// TelegramConfig holds Telegram alert delivery configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds the local cache location
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// APIConfig holds the status API listener configuration
type APIConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. An empty
// path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// ZONEWATCH_BACKEND_BASE_URL overrides backend.base_url, etc.
	v.SetEnvPrefix("ZONEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.base_url", "http://127.0.0.1:5000")
	v.SetDefault("backend.timeout", "30s")

	// Analysis defaults
	v.SetDefault("analysis.recorded_poll_interval", "100ms")
	v.SetDefault("analysis.live_poll_interval", "1s")
	v.SetDefault("analysis.alert_threshold", 7)
	v.SetDefault("analysis.alert_duration", "3s")
	v.SetDefault("analysis.capacities", map[string]int{
		"Entrance": 50,
		"Checkout": 120,
		"Aisle":    80,
	})
	v.SetDefault("analysis.default_capacity", 60)
	v.SetDefault("analysis.frame_dir", "")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/zonewatch.db")

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.listen_addr", "127.0.0.1:8090")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Backend config
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL")
	}
	if c.Backend.Timeout < 1*time.Second {
		return fmt.Errorf("backend.timeout must be at least 1 second")
	}

	// Validate Analysis config
	if c.Analysis.RecordedPollInterval < 10*time.Millisecond {
		return fmt.Errorf("analysis.recorded_poll_interval must be at least 10ms")
	}
	if c.Analysis.LivePollInterval < 10*time.Millisecond {
		return fmt.Errorf("analysis.live_poll_interval must be at least 10ms")
	}
	if c.Analysis.AlertThreshold < 1 {
		return fmt.Errorf("analysis.alert_threshold must be at least 1")
	}
	if c.Analysis.AlertDuration <= 0 {
		return fmt.Errorf("analysis.alert_duration must be positive")
	}
	if c.Analysis.DefaultCapacity < 1 {
		return fmt.Errorf("analysis.default_capacity must be at least 1")
	}
	for name, capacity := range c.Analysis.Capacities {
		if capacity < 1 {
			return fmt.Errorf("analysis.capacities.%s must be at least 1", name)
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	// Validate API config
	if c.API.Enabled && c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr is required when the api is enabled")
	}

	// Validate Logging config
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

// CapacityFor returns the capacity of a zone. The first configured key that
// appears in the zone name wins (keys are tried in sorted order so the
// result is stable); otherwise DefaultCapacity applies.
func (a AnalysisConfig) CapacityFor(zoneName string) int {
	keys := make([]string, 0, len(a.Capacities))
	for k := range a.Capacities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lower := strings.ToLower(zoneName)
	for _, k := range keys {
		if strings.Contains(lower, strings.ToLower(k)) {
			return a.Capacities[k]
		}
	}
	return a.DefaultCapacity
}
