package llmadapter

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies LLM transport failures.
type ErrorCode string

const (
	ErrCodeAuthentication     ErrorCode = "AUTHENTICATION"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeTransport          ErrorCode = "TRANSPORT"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeInternalServer     ErrorCode = "INTERNAL_SERVER"
	ErrCodeInvalidModel       ErrorCode = "INVALID_MODEL"
	ErrCodeContentPolicy      ErrorCode = "CONTENT_POLICY"
	ErrCodeEmptyResponse      ErrorCode = "EMPTY_RESPONSE"
)

// Error is the typed failure every LLMClient returns.
type Error struct {
	Code       ErrorCode
	HTTPStatus int
	Provider   string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s llm error (%s, http %d): %s", e.Provider, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s llm error (%s): %s", e.Provider, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Code {
	case ErrCodeRateLimit, ErrCodeTransport, ErrCodeTimeout, ErrCodeServiceUnavailable, ErrCodeInternalServer:
		return true
	default:
		return false
	}
}

// NewError classifies an HTTP status into an Error.
func NewError(status int, message, provider string, err error) *Error {
	return &Error{
		Code:       codeForStatus(status),
		HTTPStatus: status,
		Provider:   provider,
		Message:    message,
		Err:        err,
	}
}

// NewErrorWithCode builds an Error with an explicit code.
func NewErrorWithCode(code ErrorCode, message, provider string, err error) *Error {
	return &Error{Code: code, Provider: provider, Message: message, Err: err}
}

// IsLLMError unwraps err into *Error.
func IsLLMError(err error) (*Error, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr, true
	}
	return nil, false
}

func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeAuthentication
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrCodeTimeout
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return ErrCodeServiceUnavailable
	case status >= 500:
		return ErrCodeInternalServer
	case status >= 400:
		return ErrCodeBadRequest
	default:
		return ErrCodeTransport
	}
}
