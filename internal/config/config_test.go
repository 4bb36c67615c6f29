package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadAndValidate(t *testing.T) {
	// Create temp config file
	content := `
backend:
  base_url: "http://vision.local:5000"
  timeout: 10s

analysis:
  recorded_poll_interval: 200ms
  live_poll_interval: 2s
  alert_threshold: 9
  alert_duration: 5s
  capacities:
    Lobby: 30
  default_capacity: 40

telegram:
  bot_token: "test_token"
  chat_id: "12345"
  enabled: true

storage:
  db_path: "./data/test.db"

logging:
  level: "debug"
  format: "json"
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Test Load
	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Verify values
	if cfg.Backend.BaseURL != "http://vision.local:5000" {
		t.Errorf("Unexpected base URL: %s", cfg.Backend.BaseURL)
	}
	if cfg.Analysis.RecordedPollInterval != 200*time.Millisecond {
		t.Errorf("Unexpected recorded poll interval: %v", cfg.Analysis.RecordedPollInterval)
	}
	if cfg.Analysis.AlertThreshold != 9 {
		t.Errorf("Unexpected alert threshold: %d", cfg.Analysis.AlertThreshold)
	}
	if got := cfg.Analysis.CapacityFor("Main Lobby"); got != 30 {
		t.Errorf("Expected Lobby capacity 30, got %d", got)
	}
	if got := cfg.Analysis.CapacityFor("Parking"); got != 40 {
		t.Errorf("Expected default capacity 40, got %d", got)
	}

	// Defaults survive for unset keys
	if cfg.API.ListenAddr != "127.0.0.1:8090" {
		t.Errorf("Expected default listen addr, got %s", cfg.API.ListenAddr)
	}
	if cfg.Telegram.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", cfg.Telegram.MaxRetries)
	}

	// Test Validate
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}

	if cfg.Analysis.RecordedPollInterval != 100*time.Millisecond {
		t.Errorf("Expected 100ms recorded cadence, got %v", cfg.Analysis.RecordedPollInterval)
	}
	if cfg.Analysis.LivePollInterval != time.Second {
		t.Errorf("Expected 1s live cadence, got %v", cfg.Analysis.LivePollInterval)
	}
	if cfg.Analysis.AlertThreshold != 7 || cfg.Analysis.AlertDuration != 3*time.Second {
		t.Errorf("Unexpected alert defaults: %d / %v", cfg.Analysis.AlertThreshold, cfg.Analysis.AlertDuration)
	}

	capacities := map[string]int{
		"Entrance":       50,
		"Checkout 2":     120,
		"Aisle 7":        80,
		"Something else": 60,
	}
	for name, want := range capacities {
		if got := cfg.Analysis.CapacityFor(name); got != want {
			t.Errorf("CapacityFor(%q) = %d, expected %d", name, got, want)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ZONEWATCH_BACKEND_BASE_URL", "http://override:9000")
	t.Setenv("ZONEWATCH_ANALYSIS_ALERT_THRESHOLD", "12")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://override:9000" {
		t.Errorf("Expected env override for base URL, got %s", cfg.Backend.BaseURL)
	}
	if cfg.Analysis.AlertThreshold != 12 {
		t.Errorf("Expected env override for threshold, got %d", cfg.Analysis.AlertThreshold)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/zonewatch.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:5000",
			Timeout: 30 * time.Second,
		},
		Analysis: AnalysisConfig{
			RecordedPollInterval: 100 * time.Millisecond,
			LivePollInterval:     time.Second,
			AlertThreshold:       7,
			AlertDuration:        3 * time.Second,
			DefaultCapacity:      60,
		},
		Storage: StorageConfig{DBPath: "./data/test.db"},
		API:     APIConfig{Enabled: true, ListenAddr: ":8090"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing base url", func(c *Config) { c.Backend.BaseURL = "" }, true},
		{"relative base url", func(c *Config) { c.Backend.BaseURL = "vision.local" }, true},
		{"short timeout", func(c *Config) { c.Backend.Timeout = time.Millisecond }, true},
		{"zero threshold", func(c *Config) { c.Analysis.AlertThreshold = 0 }, true},
		{"zero alert duration", func(c *Config) { c.Analysis.AlertDuration = 0 }, true},
		{"poll too fast", func(c *Config) { c.Analysis.RecordedPollInterval = time.Millisecond }, true},
		{"bad capacity", func(c *Config) { c.Analysis.Capacities = map[string]int{"Entrance": 0} }, true},
		{"missing telegram token when enabled", func(c *Config) {
			c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"}
		}, true},
		{"missing db path", func(c *Config) { c.Storage.DBPath = "" }, true},
		{"api without addr", func(c *Config) { c.API.ListenAddr = "" }, true},
		{"api disabled without addr", func(c *Config) { c.API = APIConfig{} }, false},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
