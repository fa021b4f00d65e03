package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeConfig      ErrorType = "config"
	ErrorTypeDownload    ErrorType = "download"
	ErrorTypeFilesystem  ErrorType = "filesystem"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Process exit codes
const (
	ExitSuccess         = 0
	ExitAbort           = 1
	ExitAPIError        = 2
	ExitConfigError     = 3
	ExitDownloadError   = 4
	ExitUnexpected      = 5
	ExitSomeUsersFailed = 6
)

var (
	// ErrFFmpegNotFound is returned when the ffmpeg binary is not on PATH
	ErrFFmpegNotFound = &Error{Type: ErrorTypeConfig, Message: "ffmpeg not found in PATH"}
	// ErrAccountNotFound is returned when a creator lookup comes back empty
	ErrAccountNotFound = &Error{Type: ErrorTypeNotFound, Message: "account not found"}
	// ErrNoMessageGroup is returned when there is no conversation with the creator
	ErrNoMessageGroup = &Error{Type: ErrorTypeNotFound, Message: "no message group for creator"}
	// ErrSessionHandshake is returned when no session id could be obtained
	ErrSessionHandshake = &Error{Type: ErrorTypeAuth, Message: "session handshake failed"}
)

// Error represents a typed error with an optional HTTP status and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by type and message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, err error, message string) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// TypeOf returns the type of the first typed error in the chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeDownload:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// ExitCode maps an error to the process exit code category
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch TypeOf(err) {
	case ErrorTypeConfig:
		return ExitConfigError
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeAuth, ErrorTypeParsing,
		ErrorTypeNotFound, ErrorTypeServerError:
		return ExitAPIError
	case ErrorTypeDownload, ErrorTypeFilesystem:
		return ExitDownloadError
	default:
		return ExitUnexpected
	}
}
