package gateway

import (
	"errors"
	"strings"

	"github.com/teslashibe/go-rover/pkg/actuator"
	"github.com/teslashibe/go-rover/pkg/normalize"
)

// ErrUnknownOp is returned by Dispatch for an operation it does not know.
var ErrUnknownOp = errors.New("unknown command")

// HeadError carries the per-axis failures of a head command.
type HeadError struct {
	Axes  map[string]error
	order []string
}

func (e *HeadError) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, field := range e.order {
		parts = append(parts, e.Axes[field].Error())
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the axis errors to errors.Is and errors.As.
func (e *HeadError) Unwrap() []error {
	errs := make([]error, 0, len(e.order))
	for _, field := range e.order {
		errs = append(errs, e.Axes[field])
	}
	return errs
}

// Kind classifies a command error for transports.
type Kind string

const (
	KindNone       Kind = ""
	KindValidation Kind = "validation"
	KindActuator   Kind = "actuator"
	KindUnknown    Kind = "unknown"
)

// Classify reports whether err is a rejection or an actuator failure.
// A mixed head error counts as a rejection.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case normalize.IsValidation(err), errors.Is(err, ErrUnknownOp):
		return KindValidation
	case actuator.IsActuator(err):
		return KindActuator
	default:
		return KindUnknown
	}
}

// FieldErrors returns the failure reason per request field, or nil when
// err is not tied to specific fields.
func FieldErrors(err error) map[string]string {
	var herr *HeadError
	if errors.As(err, &herr) {
		out := make(map[string]string, len(herr.Axes))
		for field, e := range herr.Axes {
			out[field] = e.Error()
		}
		return out
	}
	var verr *normalize.ValidationError
	if errors.As(err, &verr) {
		return map[string]string{verr.Field: verr.Error()}
	}
	return nil
}
