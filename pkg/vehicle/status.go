package vehicle

import (
	"errors"
	"fmt"
)

// StatusCode is the result code reported to HAL clients.
type StatusCode uint8

const (
	StatusOK            StatusCode = 0
	StatusTryAgain      StatusCode = 1
	StatusInvalidArg    StatusCode = 2
	StatusNotAvailable  StatusCode = 3
	StatusAccessDenied  StatusCode = 4
	StatusInternalError StatusCode = 5
	StatusNotFound      StatusCode = 6
	StatusIllegalState  StatusCode = 7
)

// String returns the status code name.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "OK"
	case StatusTryAgain:
		return "TRY_AGAIN"
	case StatusInvalidArg:
		return "INVALID_ARG"
	case StatusNotAvailable:
		return "NOT_AVAILABLE"
	case StatusAccessDenied:
		return "ACCESS_DENIED"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusIllegalState:
		return "ILLEGAL_STATE"
	default:
		return "UNKNOWN"
	}
}

// StatusError is an error carrying a StatusCode.
type StatusError struct {
	Code    StatusCode
	Message string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any StatusError with the same code, so
// errors.Is(err, &StatusError{Code: StatusInvalidArg}) works.
func (e *StatusError) Is(target error) bool {
	var se *StatusError
	if !errors.As(target, &se) {
		return false
	}
	return se.Code == e.Code
}

// Errorf builds a StatusError with a formatted message.
func Errorf(code StatusCode, format string, args ...any) error {
	return &StatusError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// StatusOf extracts the status code from err. A nil error is StatusOK and
// errors without a StatusError in their chain map to StatusInternalError.
func StatusOf(err error) StatusCode {
	if err == nil {
		return StatusOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusInternalError
}
