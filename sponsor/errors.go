package sponsor

import (
	"errors"
	"fmt"
)

// ErrorCode classifies sponsorship failures. Codes are part of the public
// contract and stable across releases.
type ErrorCode string

const (
	ErrCodeNotInitialized    ErrorCode = "NotInitialized"
	ErrCodePoolExhausted     ErrorCode = "PoolExhausted"
	ErrCodePolicyViolation   ErrorCode = "PolicyViolation"
	ErrCodeBuildFailed       ErrorCode = "BuildFailed"
	ErrCodeSignFailed        ErrorCode = "SignFailed"
	ErrCodeInvalidEffects    ErrorCode = "InvalidEffects"
	ErrCodeInsufficientFunds ErrorCode = "InsufficientFunds"
)

// Error is the single error type every public operation returns. Details
// carries structured context (sender, coin id, offending target) for the
// caller's own logging or response mapping.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// newError builds an Error from alternating key/value detail pairs.
func newError(code ErrorCode, cause error, message string, details ...any) *Error {
	e := &Error{Code: code, Message: message, cause: cause}
	if len(details) > 0 {
		e.Details = make(map[string]any, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			e.Details[fmt.Sprint(details[i])] = details[i+1]
		}
	}
	return e
}

// IsCode reports whether err is a sponsorship Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
