package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load builds a Config from defaults, an optional YAML override file, and
// the process environment. Secrets (API keys, the webhook secret) are
// env-first: the environment always wins over the file. Structural
// settings such as watchdog_paths are file-first: once a file sets them,
// the environment does not override them, matching the shape of a list
// that's awkward to express as a single env var.
func Load(path string) (Config, error) {
	cfg := Default()

	var fileWatchdogPaths []string
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
			fileWatchdogPaths = cfg.WatchdogPaths
		}
	}

	envOverrides(&cfg)

	if len(fileWatchdogPaths) > 0 {
		cfg.WatchdogPaths = fileWatchdogPaths
	}

	return cfg, nil
}
