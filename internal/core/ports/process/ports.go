package process

import (
	"context"
	"io"

	"plughost.dev/cli/internal/core/domain/process"
)

// Process is a started plugin child process. The supervisor owns it
// exclusively from Execute until teardown.
type Process interface {
	// PID returns the process ID
	PID() int

	// Stdin returns the writer connected to the plugin's standard input
	Stdin() io.WriteCloser

	// Stdout returns the reader carrying the plugin's command stream
	Stdout() io.ReadCloser

	// Stderr returns the reader for diagnostic output
	Stderr() io.ReadCloser

	// Wait blocks until the plugin exits; ExitCode is valid afterwards
	Wait() error

	// Signal asks the plugin to stop; SignalTerminate is sent first on unload
	Signal(signal process.ProcessSignal) error

	// Kill stops a plugin that ignored Signal
	Kill() error

	IsRunning() bool

	// ExitCode returns the exit code if the process has finished, -1 otherwise
	ExitCode() int
}

// Executor is responsible for starting commands.
// Execute returns once the process has started or failed to start.
type Executor interface {
	Execute(ctx context.Context, cmd process.Command) (Process, error)
}
