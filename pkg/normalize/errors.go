package normalize

import (
	"errors"
	"fmt"
)

// Sentinel errors for common validation failures.
var (
	// ErrMissing is returned when a required field is absent or null.
	ErrMissing = errors.New("normalize: value missing")

	// ErrNotNumber is returned when a value is not a JSON number.
	ErrNotNumber = errors.New("normalize: value must be a number")

	// ErrNotInteger is returned when a value is not an integral JSON number.
	ErrNotInteger = errors.New("normalize: value must be an int")

	// ErrUnknownPhrase is returned when a phrase id is not in the table.
	ErrUnknownPhrase = errors.New("normalize: unknown phraseId")
)

// ValidationError reports operator input that violates the command contract.
// Callers translate it into a rejected command; nothing is actuated.
type ValidationError struct {
	// Field is the operator-facing field name (e.g. "l", "tilt", "phraseId").
	Field string

	// Err is one of the sentinel errors above.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownPhrase):
		return "unknown " + e.Field
	case errors.Is(e.Err, ErrNotInteger):
		return e.Field + " must be an int"
	case errors.Is(e.Err, ErrMissing):
		return e.Field + " is required"
	default:
		return fmt.Sprintf("%s must be a number", e.Field)
	}
}

// Unwrap returns the underlying sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}
