package model

import (
	"errors"
	"fmt"
)

// UsageError reports a bad combination of options or a missing argument.
// It is always detected before any network call is made.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Usagef builds a UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError reports a malformed record in an input file.
type ValidationError struct {
	File     string
	TestPath TestPath
	Msg      string
}

func (e *ValidationError) Error() string {
	msg := e.Msg
	if len(e.TestPath) > 0 {
		msg = fmt.Sprintf("%s: %s", e.TestPath, msg)
	}
	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

// TransportError reports a failed request: connection failure, timeout or
// an unexpected HTTP status.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerValidationError is returned when the service rejects the request
// payload as invalid (HTTP 422). The reason is echoed to the user.
type ServerValidationError struct {
	Reason string
}

func (e *ServerValidationError) Error() string {
	return fmt.Sprintf("Error: %s", e.Reason)
}

// IsUsage reports whether err is (or wraps) a UsageError.
func IsUsage(err error) bool {
	var u *UsageError
	return errors.As(err, &u)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
