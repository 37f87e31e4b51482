package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. PLUGHOST_LOG_LEVEL.
	EnvPrefix = "PLUGHOST_"

	// EnvConfigPath names the config file when --config is not given.
	EnvConfigPath = "PLUGHOST_CONFIG"

	// DefaultFileName is read from the working directory when present.
	DefaultFileName = "plughost.yaml"
)

// LoadOptions controls Load.
type LoadOptions struct {
	// Path is an explicit config file; it must exist when set
	Path string

	// Overrides are values from command line flags keyed by field name
	Overrides map[string]interface{}

	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
}

// Load merges defaults, the config file, PLUGHOST_* variables and flag
// overrides, in increasing precedence, and validates the result.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg := Default()

	path, required := opts.Path, opts.Path != ""
	if path == "" {
		if p, ok := lookup(EnvConfigPath); ok && p != "" {
			path, required = p, true
		} else {
			path = DefaultFileName
		}
	}

	if err := loadFile(cfg, path, required); err != nil {
		return nil, err
	}
	if err := loadEnv(cfg, lookup); err != nil {
		return nil, err
	}
	for field, value := range opts.Overrides {
		if err := cfg.SetValue(field, "flag", "--"+strings.ReplaceAll(field, "_", "-"), value, PriorityFlag); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFile reads a YAML or JSON file. JSON is valid YAML, so one decoder
// serves both.
func loadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var kv map[string]interface{}
	if err := yaml.Unmarshal(data, &kv); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for field, value := range kv {
		if value == nil {
			continue
		}
		if err := cfg.SetValue(field, "file", path, value, PriorityFile); err != nil {
			return err
		}
	}
	return nil
}

func loadEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, field := range Fields() {
		key := EnvPrefix + strings.ToUpper(field)
		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		if err := cfg.SetValue(field, "env", key, value, PriorityEnv); err != nil {
			return err
		}
	}
	return nil
}
