// Package daemon manages the rejectly daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api"`
	Store         StoreConfig         `toml:"store"`
	Scheduler     SchedulerConfig     `toml:"scheduler"`
	Quests        QuestsConfig        `toml:"quests"`
	Notifications NotificationsConfig `toml:"notifications"`
	Suggestions   SuggestionsConfig   `toml:"suggestions"`
	Generator     GeneratorConfig     `toml:"generator"`
	Push          PushConfig          `toml:"push"`
	Logging       LoggingConfig       `toml:"logging"`
	Telemetry     TelemetryConfig     `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// StoreConfig controls the SQLite store.
type StoreConfig struct {
	Dir             string `toml:"dir"`
	ProvisionSocial bool   `toml:"provision_social"`
}

// SchedulerConfig controls the periodic jobs. Durations use
// time.ParseDuration syntax; windows are UTC "HH:MM".
type SchedulerConfig struct {
	Enabled          bool    `toml:"enabled"`
	DailyWindow      string  `toml:"daily_window"`
	MilestoneWindow  string  `toml:"milestone_window"`
	WindowTolerance  string  `toml:"window_tolerance"`
	WindowCheck      string  `toml:"window_check"`
	WarningInterval  string  `toml:"warning_interval"`
	ReminderInterval string  `toml:"reminder_interval"`
	HealthInterval   string  `toml:"health_interval"`
	MotivationChance float64 `toml:"motivation_chance"`
}

// QuestsConfig controls quest progress.
type QuestsConfig struct {
	MaxActive int `toml:"max_active"`
}

// NotificationsConfig controls the dispatcher.
type NotificationsConfig struct {
	BatchSize           int    `toml:"batch_size"`
	PreferenceCacheSize int    `toml:"preference_cache_size"`
	MessagesFile        string `toml:"messages_file"`
}

// SuggestionsConfig controls the live suggestion queue.
type SuggestionsConfig struct {
	RefundOnDecline bool `toml:"refund_on_decline"`
}

// GeneratorConfig selects the quest generator. An empty BaseURL uses the
// built-in pool only.
type GeneratorConfig struct {
	BaseURL     string  `toml:"base_url"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
	Seed        int64   `toml:"seed"`
}

// PushConfig selects push gateways.
type PushConfig struct {
	ExpoURL         string `toml:"expo_url"`
	ExpoAccessToken string `toml:"expo_access_token"`
	TelegramToken   string `toml:"telegram_token"`
	Timeout         string `toml:"timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	homeDir := rejectlyHome()
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8420,
			CORSOrigins: []string{"*"},
		},
		Store: StoreConfig{
			Dir:             homeDir,
			ProvisionSocial: true,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			DailyWindow:      "09:00",
			MilestoneWindow:  "14:00",
			WindowTolerance:  "5m",
			WindowCheck:      "5m",
			WarningInterval:  "30s",
			ReminderInterval: "1h",
			HealthInterval:   "30s",
			MotivationChance: 0.30,
		},
		Quests: QuestsConfig{
			MaxActive: 2,
		},
		Notifications: NotificationsConfig{
			BatchSize:           10,
			PreferenceCacheSize: 1024,
		},
		Generator: GeneratorConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.8,
			Timeout:     "30s",
		},
		Push: PushConfig{
			ExpoURL: "https://exp.host/--/api/v2/push/send",
			Timeout: "10s",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(homeDir, "rejectly.log"),
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads $REJECTLY_HOME/config.toml over the defaults, then
// applies a .env file (if any) and REJECTLY_* environment overrides.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays REJECTLY_* variables on cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("REJECTLY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("REJECTLY_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REJECTLY_API_PORT: %w", err)
		}
		cfg.API.Port = port
	}
	if v := os.Getenv("REJECTLY_GENERATOR_URL"); v != "" {
		cfg.Generator.BaseURL = v
	}
	if v := os.Getenv("REJECTLY_GENERATOR_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("REJECTLY_EXPO_ACCESS_TOKEN"); v != "" {
		cfg.Push.ExpoAccessToken = v
	}
	if v := os.Getenv("REJECTLY_TELEGRAM_TOKEN"); v != "" {
		cfg.Push.TelegramToken = v
	}
	if v := os.Getenv("REJECTLY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// SaveConfig writes the config to $REJECTLY_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath is where LoadConfig looks for the config file.
func ConfigPath() string {
	return filepath.Join(rejectlyHome(), "config.toml")
}

// rejectlyHome returns the rejectly data directory.
func rejectlyHome() string {
	if env := os.Getenv("REJECTLY_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rejectly")
}

// Home is exported for use by other packages.
func Home() string {
	return rejectlyHome()
}
