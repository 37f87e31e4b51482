package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunchTimeout is returned when a plugin did not start within the
	// launch timeout.
	ErrLaunchTimeout = errors.New("plugin did not start in time")

	// ErrUnknownPlugin is returned for an ID that is not registered.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrNotRunning is returned when writing to a plugin that has stopped.
	ErrNotRunning = errors.New("plugin is not running")

	// ErrClosed is returned once Shutdown has been called.
	ErrClosed = errors.New("supervisor is shut down")
)

// LaunchError reports a plugin that could not be started.
type LaunchError struct {
	Plugin     string
	SourcePath string
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch plugin %s (%s): %v", e.Plugin, e.SourcePath, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
