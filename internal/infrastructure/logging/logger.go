package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options configures the host logger.
type Options struct {
	Name   string
	Level  string
	Debug  bool
	Output io.Writer
	JSON   bool
}

// NewLogger creates the structured logger shared by every component.
// Debug forces debug level regardless of Level.
func NewLogger(opts Options) hclog.Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	if opts.Debug {
		level = hclog.Debug
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	name := opts.Name
	if name == "" {
		name = "plughost"
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     output,
		JSONFormat: opts.JSON,
	})
}

// NewSilentLogger returns a logger that discards everything.
func NewSilentLogger() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Level:  hclog.Off,
		Output: io.Discard,
	})
}
