package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config, without source metadata.
type FileConfig struct {
	PluginsDir      string `yaml:"plugins_dir,omitempty"`
	LogLevel        string `yaml:"log_level"`
	LogJSON         bool   `yaml:"log_json"`
	Debug           bool   `yaml:"debug"`
	LaunchTimeout   string `yaml:"launch_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	MaxLineBytes    int    `yaml:"max_line_bytes"`
	QueueSize       int    `yaml:"queue_size"`
	Watch           bool   `yaml:"watch"`
}

// ToFile converts the merged values into their on-disk form.
func (c *Config) ToFile() FileConfig {
	return FileConfig{
		PluginsDir:      c.PluginsDir,
		LogLevel:        c.LogLevel,
		LogJSON:         c.LogJSON,
		Debug:           c.Debug,
		LaunchTimeout:   c.LaunchTimeout.String(),
		ShutdownTimeout: c.ShutdownTimeout.String(),
		MaxLineBytes:    c.MaxLineBytes,
		QueueSize:       c.QueueSize,
		Watch:           c.Watch,
	}
}

// Save writes cfg as YAML to path, creating parent directories. An existing
// file is only replaced when overwrite is set.
func Save(cfg *Config, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(cfg.ToFile())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
