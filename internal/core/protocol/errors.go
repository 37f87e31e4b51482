package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedCommand marks a recognized verb whose fields are unusable.
	ErrMalformedCommand = errors.New("malformed command")

	// ErrLineTooLong is returned when a partial line outgrows the decoder limit.
	ErrLineTooLong = errors.New("line exceeds maximum length")
)

// ProtocolError reports a command line that could not be parsed.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %q", e.Reason, e.Line)
}

func (e *ProtocolError) Unwrap() error {
	return ErrMalformedCommand
}

func malformed(line, format string, args ...interface{}) error {
	return &ProtocolError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
