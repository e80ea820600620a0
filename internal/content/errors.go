package content

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidField is returned for an unsupported search field selector
	ErrInvalidField = errors.New("unsupported search field")
	// ErrEmptyTerm is returned when a search term is blank
	ErrEmptyTerm = errors.New("search term is empty")
	// ErrInvalidPage is returned for a negative page or non-positive size
	ErrInvalidPage = errors.New("invalid page request")
	// ErrUnknownList is returned for a list name outside ListNames
	ErrUnknownList = errors.New("unknown list")
)

// ValidationError marks a caller contract violation, as opposed to a runtime fault.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %q", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
