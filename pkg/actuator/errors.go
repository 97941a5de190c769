package actuator

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrClosed is returned when commanding a sink after Close.
	ErrClosed = errors.New("actuator: sink closed")

	// ErrUnknownKind is returned by New for an unsupported sink kind.
	ErrUnknownKind = errors.New("actuator: unknown sink kind")

	// ErrNoVoice is returned by Say when no voice backend is configured.
	ErrNoVoice = errors.New("actuator: no voice configured")
)

// Error reports a sink that failed to execute a command.
type Error struct {
	// Sink is the sink name (log, maestro, http).
	Sink string

	// Op is the command that failed (drive, servo, say, stop).
	Op string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("actuator [%s]: %s failed: %v", e.Sink, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps err with sink and operation context.
func WrapError(sink, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Sink: sink, Op: op, Err: err}
}

// IsActuator reports whether err carries an actuator Error.
func IsActuator(err error) bool {
	var ae *Error
	return errors.As(err, &ae)
}
