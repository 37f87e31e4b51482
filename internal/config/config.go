package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Field names as they appear in config files and as PLUGHOST_* suffixes.
const (
	FieldPluginsDir      = "plugins_dir"
	FieldLogLevel        = "log_level"
	FieldLogJSON         = "log_json"
	FieldDebug           = "debug"
	FieldLaunchTimeout   = "launch_timeout"
	FieldShutdownTimeout = "shutdown_timeout"
	FieldMaxLineBytes    = "max_line_bytes"
	FieldQueueSize       = "queue_size"
	FieldWatch           = "watch"
)

// Source priorities; a lower number wins.
const (
	PriorityFlag    = 1
	PriorityEnv     = 2
	PriorityFile    = 3
	PriorityDefault = 4
)

// Source records where a configuration value came from.
type Source struct {
	Value      interface{} `json:"value"`
	Source     string      `json:"source"`      // "flag", "env", "file", "default"
	SourcePath string      `json:"source_path"` // file path, variable or flag name
	Priority   int         `json:"priority"`
}

// Config is the host configuration after all sources are merged.
type Config struct {
	// PluginsDir is the root scanned for descriptors; empty means search the
	// default locations next to the executable
	PluginsDir string `json:"plugins_dir"`

	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`
	Debug    bool   `json:"debug"`

	LaunchTimeout   time.Duration `json:"launch_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxLineBytes    int           `json:"max_line_bytes"`
	QueueSize       int           `json:"queue_size"`

	// Watch relaunches descriptors that appear or change while running
	Watch bool `json:"watch"`

	Sources  map[string]Source `json:"sources"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// Default returns the built-in configuration.
func Default() *Config {
	c := &Config{
		LogLevel:        "info",
		LaunchTimeout:   5 * time.Second,
		ShutdownTimeout: 3 * time.Second,
		MaxLineBytes:    1 << 20,
		QueueSize:       64,
		Sources:         make(map[string]Source),
		LoadedAt:        time.Now(),
	}
	for _, field := range Fields() {
		c.Sources[field] = Source{Value: c.value(field), Source: "default", Priority: PriorityDefault}
	}
	return c
}

// Fields lists every known field name in a stable order.
func Fields() []string {
	return []string{
		FieldPluginsDir,
		FieldLogLevel,
		FieldLogJSON,
		FieldDebug,
		FieldLaunchTimeout,
		FieldShutdownTimeout,
		FieldMaxLineBytes,
		FieldQueueSize,
		FieldWatch,
	}
}

// SetValue applies value for field unless a source with a better priority
// already set it. Strings are converted to the field's type.
func (c *Config) SetValue(field, source, sourcePath string, value interface{}, priority int) error {
	if existing, ok := c.Sources[field]; ok && existing.Priority < priority {
		return nil
	}

	var err error
	switch field {
	case FieldPluginsDir:
		c.PluginsDir, err = toString(value)
	case FieldLogLevel:
		c.LogLevel, err = toString(value)
	case FieldLogJSON:
		c.LogJSON, err = toBool(value)
	case FieldDebug:
		c.Debug, err = toBool(value)
	case FieldLaunchTimeout:
		c.LaunchTimeout, err = toDuration(value)
	case FieldShutdownTimeout:
		c.ShutdownTimeout, err = toDuration(value)
	case FieldMaxLineBytes:
		c.MaxLineBytes, err = toInt(value)
	case FieldQueueSize:
		c.QueueSize, err = toInt(value)
	case FieldWatch:
		c.Watch, err = toBool(value)
	default:
		return fmt.Errorf("unknown config field: %s", field)
	}
	if err != nil {
		return fmt.Errorf("config field %s from %s: %w", field, source, err)
	}

	c.Sources[field] = Source{Value: c.value(field), Source: source, SourcePath: sourcePath, Priority: priority}
	return nil
}

// SourceOf returns where field was set from.
func (c *Config) SourceOf(field string) (Source, bool) {
	s, ok := c.Sources[field]
	return s, ok
}

// Validate checks the merged values.
func (c *Config) Validate() error {
	var errs []error
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if c.LaunchTimeout <= 0 {
		errs = append(errs, errors.New("launch_timeout must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if c.MaxLineBytes < 0 {
		errs = append(errs, errors.New("max_line_bytes cannot be negative"))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, errors.New("queue_size must be positive"))
	}
	return errors.Join(errs...)
}

// EffectiveLevel returns the log level, forced to debug by the debug flag.
func (c *Config) EffectiveLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

// Describe renders every field with its source, sorted by field name.
func (c *Config) Describe() []string {
	fields := Fields()
	sort.Strings(fields)

	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		src := c.Sources[field]
		origin := src.Source
		if src.SourcePath != "" {
			origin += " " + src.SourcePath
		}
		lines = append(lines, fmt.Sprintf("%s = %v (%s)", field, c.value(field), origin))
	}
	return lines
}

func (c *Config) value(field string) interface{} {
	switch field {
	case FieldPluginsDir:
		return c.PluginsDir
	case FieldLogLevel:
		return c.LogLevel
	case FieldLogJSON:
		return c.LogJSON
	case FieldDebug:
		return c.Debug
	case FieldLaunchTimeout:
		return c.LaunchTimeout
	case FieldShutdownTimeout:
		return c.ShutdownTimeout
	case FieldMaxLineBytes:
		return c.MaxLineBytes
	case FieldQueueSize:
		return c.QueueSize
	case FieldWatch:
		return c.Watch
	default:
		return nil
	}
}

func toString(x interface{}) (string, error) {
	switch t := x.(type) {
	case string:
		return strings.TrimSpace(t), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", x)
	}
}

func toInt(x interface{}) (int, error) {
	switch t := x.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("expected an integer, got %T", x)
	}
}

func toBool(x interface{}) (bool, error) {
	switch t := x.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(t))
	default:
		return false, fmt.Errorf("expected a boolean, got %T", x)
	}
}

// toDuration accepts Go duration strings and plain numbers of seconds.
func toDuration(x interface{}) (time.Duration, error) {
	switch t := x.(type) {
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(t)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	default:
		return 0, fmt.Errorf("expected a duration, got %T", x)
	}
}
