package process

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrEmptyExecutable is returned when a command has no program to run.
var ErrEmptyExecutable = errors.New("executable cannot be empty")

// Command describes a plugin program to be started
type Command struct {
	executable string
	args       []string
	workingDir string
	env        map[string]string
}

// NewCommand creates a new Command value object
func NewCommand(executable string, args []string, workingDir string) (Command, error) {
	if strings.TrimSpace(executable) == "" {
		return Command{}, ErrEmptyExecutable
	}

	if workingDir != "" && !filepath.IsAbs(workingDir) {
		if absDir, err := filepath.Abs(workingDir); err == nil {
			workingDir = absDir
		}
	}

	return Command{
		executable: executable,
		args:       append([]string(nil), args...),
		workingDir: workingDir,
		env:        make(map[string]string),
	}, nil
}

// Executable returns the command executable
func (c Command) Executable() string {
	return c.executable
}

// Args returns a copy of the command arguments
func (c Command) Args() []string {
	return append([]string(nil), c.args...)
}

// WorkingDir returns the working directory for the command
func (c Command) WorkingDir() string {
	return c.workingDir
}

// Env returns a copy of the extra environment variables
func (c Command) Env() map[string]string {
	envCopy := make(map[string]string, len(c.env))
	for k, v := range c.env {
		envCopy[k] = v
	}
	return envCopy
}

// WithEnv returns a new Command with an additional environment variable
func (c Command) WithEnv(key, value string) Command {
	env := c.Env()
	env[key] = value

	return Command{
		executable: c.executable,
		args:       c.Args(),
		workingDir: c.workingDir,
		env:        env,
	}
}

// String returns a string representation of the command
func (c Command) String() string {
	if len(c.args) == 0 {
		return c.executable
	}
	return fmt.Sprintf("%s %s", c.executable, strings.Join(c.args, " "))
}
