package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUnavailable  ErrorCode = "UNAVAILABLE"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorDelivery     ErrorCode = "DELIVERY_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified bridge failure. Reason is a stable snake_case token
// safe to expose to admin clients; Err is for logs only.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// Classify returns the code and reason carried by err. Unclassified errors
// are reported as ErrorInternal with an empty reason.
func Classify(err error) (ErrorCode, string) {
	var ucErr *Error
	if errors.As(err, &ucErr) && ucErr != nil {
		return ucErr.Code, ucErr.Reason
	}
	return ErrorInternal, ""
}
