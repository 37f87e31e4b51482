package logging

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// ConsoleLine is one log line received from a plugin.
type ConsoleLine struct {
	Time   time.Time
	Plugin string
	Text   string
}

// ConsoleLogger implements ports.Console. Plugin log lines are written to
// the host logger and kept in a bounded history for display.
type ConsoleLogger struct {
	logger hclog.Logger

	mu      sync.RWMutex
	history []ConsoleLine
	limit   int
}

// NewConsoleLogger creates a console keeping at most limit lines.
func NewConsoleLogger(logger hclog.Logger, limit int) *ConsoleLogger {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if limit <= 0 {
		limit = 200
	}
	return &ConsoleLogger{
		logger: logger.Named("console"),
		limit:  limit,
	}
}

// PluginLog records a plugin's log line.
func (c *ConsoleLogger) PluginLog(plugin, text string) {
	c.logger.Info(text, "plugin", plugin)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, ConsoleLine{Time: time.Now(), Plugin: plugin, Text: text})
	if over := len(c.history) - c.limit; over > 0 {
		c.history = append([]ConsoleLine(nil), c.history[over:]...)
	}
}

// Recent returns up to n of the newest lines, oldest first.
func (c *ConsoleLogger) Recent(n int) []ConsoleLine {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || n > len(c.history) {
		n = len(c.history)
	}
	return append([]ConsoleLine(nil), c.history[len(c.history)-n:]...)
}
