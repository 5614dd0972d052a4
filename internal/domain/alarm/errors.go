package alarm

import (
	"errors"
	"fmt"
)

// Code classifies alarm failures for callers that react differently to them: the bot
// picks its reply by code, the engine decides between retrying and giving up.
type Code string

const (
	ErrInternal         Code = "internal"
	ErrInvalid          Code = "invalid"
	ErrNotAuthorized    Code = "not_authorized"
	ErrUnknownAlarm     Code = "unknown_alarm"
	ErrStoreUnavailable Code = "store_unavailable"

	// Timer facility refused the registration, e.g. no permission for exact wake-ups.
	ErrSchedulingDenied Code = "scheduling_denied"
	// Timer facility did not answer in time or is not running.
	ErrSchedulingUnavailable Code = "scheduling_unavailable"
)

func (c Code) scheduling() bool {
	return c == ErrSchedulingDenied || c == ErrSchedulingUnavailable
}

type Error struct {
	Code        Code
	Description string
	cause       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("alarm %s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.cause }

// Errorf builds an *Error. A %w verb in format keeps the wrapped error reachable through
// errors.Is and errors.As.
func Errorf(code Code, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &Error{Code: code, Description: err.Error(), cause: errors.Unwrap(err)}
}

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns the code carried by err. Foreign errors are ErrInternal, nil has no code.
func ErrorCode(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != "" {
		return e.Code
	}
	return ErrInternal
}

// ErrorDescription is the text shown to the owner for err.
func ErrorDescription(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Description != "" {
		return e.Description
	}
	return "internal error"
}

// IsSchedulingError reports whether the timer facility rejected or missed a registration.
func IsSchedulingError(err error) bool {
	return ErrorCode(err).scheduling()
}
