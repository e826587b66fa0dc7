package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypeParsing         ErrorType = "parsing"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeFilesystem      ErrorType = "filesystem"
	ErrorTypeCorruptDatabase ErrorType = "corrupt_database"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error is a typed error shared by the API client, storage and database layers
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
	// RetryAfter is the pause the server asked for, zero if none
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound creates a not_found error
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Network wraps a transport failure
func Network(err error, format string, args ...interface{}) *Error {
	return Wrap(ErrorTypeNetwork, err, format, args...)
}

// Filesystem wraps a local I/O failure
func Filesystem(err error, format string, args ...interface{}) *Error {
	return Wrap(ErrorTypeFilesystem, err, format, args...)
}

// CorruptDatabase wraps a decode failure of the local pool database
func CorruptDatabase(err error, path string) *Error {
	return Wrap(ErrorTypeCorruptDatabase, err, "pool database %s is unreadable", path)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// RetryAfterOf returns the pause requested by the server for err
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// IsNotFound reports whether err is a not_found error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsNetwork reports whether err is a network error
func IsNetwork(err error) bool { return TypeOf(err) == ErrorTypeNetwork }

// IsFilesystem reports whether err is a filesystem error
func IsFilesystem(err error) bool { return TypeOf(err) == ErrorTypeFilesystem }

// IsCorruptDatabase reports whether err is a corrupt_database error
func IsCorruptDatabase(err error) bool { return TypeOf(err) == ErrorTypeCorruptDatabase }

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// FromStatusCode maps an HTTP status code to an error type
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 404 || statusCode == 410:
		return ErrorTypeNotFound
	case statusCode == 429 || statusCode == 503:
		// e621 answers 503 when the rate limit is exceeded
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
