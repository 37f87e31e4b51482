package supervisor

import (
	"fmt"
	"time"
)

// State is the lifecycle position of a plugin handle.
type State int

const (
	StateLaunching State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Reason records why a handle reached StateTerminated.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonLaunchFailed
	ReasonExited
	ReasonUnloaded
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonLaunchFailed:
		return "launch failed"
	case ReasonExited:
		return "exited"
	case ReasonUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// HandleInfo is a point-in-time copy of a handle's observable state.
type HandleInfo struct {
	ID             string
	Name           string
	SourcePath     string
	PID            int
	State          State
	Reason         Reason
	ExitCode       int
	StartedAt      time.Time
	StoppedAt      time.Time
	BufferedBytes  int
	LinesDelivered int64
}

// Status renders state and reason for display.
func (i HandleInfo) Status() string {
	switch {
	case i.State != StateTerminated:
		return i.State.String()
	case i.Reason == ReasonExited:
		return fmt.Sprintf("exited (%d)", i.ExitCode)
	default:
		return i.Reason.String()
	}
}

// Uptime returns how long the handle ran, or has been running.
func (i HandleInfo) Uptime(now time.Time) time.Duration {
	if i.StartedAt.IsZero() {
		return 0
	}
	if !i.StoppedAt.IsZero() {
		return i.StoppedAt.Sub(i.StartedAt)
	}
	return now.Sub(i.StartedAt)
}
