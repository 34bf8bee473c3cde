package core

import (
	"errors"
	"fmt"
	"maps"
)

// Error is a coded error carrying structured details for logs and callers.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	err     error
}

// NewError wraps err with a code and optional details.
func NewError(err error, code string, details map[string]any) *Error {
	msg := code
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    code,
		Message: msg,
		Details: maps.Clone(details),
		err:     err,
	}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// AsMap renders the error as a plain map, suitable for JSON tool responses.
func (e *Error) AsMap() map[string]any {
	if e == nil {
		return nil
	}
	out := map[string]any{
		"code":    e.Code,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		out["details"] = maps.Clone(e.Details)
	}
	return out
}

// ErrorCode returns the code of the first *Error in err's chain.
func ErrorCode(err error) (string, bool) {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Code, true
	}
	return "", false
}
