package api

import (
	"errors"
	"fmt"

	"github.com/rollingpaper/board/internal/content"
)

// Error represents an API error
type Error struct {
	Code    int
	Message string
}

// NewError creates a new API error
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// InvalidParams creates an API error for malformed or missing parameters
func InvalidParams(format string, args ...interface{}) *Error {
	return NewError(ErrInvalidParams, fmt.Sprintf(format, args...))
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Message)
}

// classify maps a handler error onto a JSON-RPC code and message.
func classify(err error) (int, string) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Code == ErrInvalidParams {
			return apiErr.Code, "Invalid params"
		}
		return apiErr.Code, apiErr.Message
	case content.IsValidation(err):
		return ErrInvalidParams, "Invalid params"
	default:
		return ErrServerError, "Server error"
	}
}
