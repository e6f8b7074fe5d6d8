// Package config loads the process configuration: environment variables
// first, with an optional YAML file supplying structural settings that
// rarely belong in the environment (e.g. watchdog_paths).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full recognised option set, matching exactly the env
// option names the external interface documents.
type Config struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Model           string `yaml:"model"`
	MaxTokens       int    `yaml:"max_tokens"`
	DataDir         string `yaml:"data_dir"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	LogLevel string `yaml:"log_level"`

	MaxContextMessages int  `yaml:"max_context_messages"`
	AutoApproveReads   bool `yaml:"auto_approve_reads"`

	SchedulerEnabled  bool   `yaml:"scheduler_enabled"`
	SchedulerTimezone string `yaml:"scheduler_timezone"`

	WebhookEnabled bool   `yaml:"webhook_enabled"`
	WebhookSecret  string `yaml:"webhook_secret"`

	WatchdogEnabled         bool     `yaml:"watchdog_enabled"`
	WatchdogPaths           []string `yaml:"watchdog_paths"`
	WatchdogDebounceSeconds int      `yaml:"watchdog_debounce_seconds"`

	DNDEnabled     bool   `yaml:"dnd_enabled"`
	DNDStart       string `yaml:"dnd_start"`
	DNDEnd         string `yaml:"dnd_end"`
	DNDAllowUrgent bool   `yaml:"dnd_allow_urgent"`

	AgentsEnabled  bool `yaml:"agents_enabled"`
	PluginsEnabled bool `yaml:"plugins_enabled"`
}

// Default returns the zero-value defaults before env/file overrides apply.
func Default() Config {
	return Config{
		Model:                   "claude-sonnet-4-5",
		MaxTokens:               4096,
		DataDir:                 "./data",
		Host:                    "127.0.0.1",
		Port:                    8080,
		LogLevel:                "info",
		MaxContextMessages:      50,
		SchedulerTimezone:       "UTC",
		WatchdogDebounceSeconds: 2,
		DNDStart:                "22:00",
		DNDEnd:                  "07:00",
		AgentsEnabled:           true,
	}
}

// WatchdogDebounce returns WatchdogDebounceSeconds as a time.Duration.
func (c Config) WatchdogDebounce() time.Duration {
	return time.Duration(c.WatchdogDebounceSeconds) * time.Second
}

// DNDWindow parses DNDStart/DNDEnd ("HH:MM") into times on a fixed zero
// date in UTC; the notification dispatcher uses only their hour/minute
// components.
func (c Config) DNDWindow() (start, end time.Time, err error) {
	start, err = parseClock(c.DNDStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid dnd_start: %w", err)
	}
	end, err = parseClock(c.DNDEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid dnd_end: %w", err)
	}
	return start, end, nil
}

func parseClock(value string) (time.Time, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC), nil
}

// envOverrides applies every recognised environment variable onto cfg.
func envOverrides(cfg *Config) {
	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.Model, "MODEL")
	setInt(&cfg.MaxTokens, "MAX_TOKENS")
	setString(&cfg.DataDir, "DATA_DIR")

	setString(&cfg.Host, "HOST")
	setInt(&cfg.Port, "PORT")

	setString(&cfg.LogLevel, "LOG_LEVEL")

	setInt(&cfg.MaxContextMessages, "MAX_CONTEXT_MESSAGES")
	setBool(&cfg.AutoApproveReads, "AUTO_APPROVE_READS")

	setBool(&cfg.SchedulerEnabled, "SCHEDULER_ENABLED")
	setString(&cfg.SchedulerTimezone, "SCHEDULER_TIMEZONE")

	setBool(&cfg.WebhookEnabled, "WEBHOOK_ENABLED")
	setString(&cfg.WebhookSecret, "WEBHOOK_SECRET")

	setBool(&cfg.WatchdogEnabled, "WATCHDOG_ENABLED")
	setStringSlice(&cfg.WatchdogPaths, "WATCHDOG_PATHS")
	setInt(&cfg.WatchdogDebounceSeconds, "WATCHDOG_DEBOUNCE_SECONDS")

	setBool(&cfg.DNDEnabled, "DND_ENABLED")
	setString(&cfg.DNDStart, "DND_START")
	setString(&cfg.DNDEnd, "DND_END")
	setBool(&cfg.DNDAllowUrgent, "DND_ALLOW_URGENT")

	setBool(&cfg.AgentsEnabled, "AGENTS_ENABLED")
	setBool(&cfg.PluginsEnabled, "PLUGINS_ENABLED")
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = strings.Split(v, ",")
	}
}
