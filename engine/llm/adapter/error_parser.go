package llmadapter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorParser handles the extraction and classification of errors from various LLM providers
type ErrorParser struct {
	provider string
}

// NewErrorParser creates a new error parser for the given provider
func NewErrorParser(provider string) *ErrorParser {
	return &ErrorParser{provider: provider}
}

var statusCodeRe = regexp.MustCompile(`(?i)(?:status code:?|http|status|error)\s*(\d{3})\b`)

var (
	rateLimitPatterns = []string{
		"rate limit", "rate-limit", "ratelimit", "too many requests",
		"throttled", "throttling", "quota exceeded", "insufficient_quota", "rate_limit_error",
	}
	unavailablePatterns = []string{
		"service unavailable", "temporarily unavailable", "overloaded", "try again later",
	}
	authPatterns = []string{
		"unauthorized", "invalid api key", "invalid_api_key", "incorrect api key",
		"authentication", "permission denied", "forbidden",
	}
	badRequestPatterns = []string{
		"invalid_request_error", "bad request", "malformed", "invalid request",
		"context length", "maximum context",
	}
	timeoutPatterns = []string{
		"timeout", "timed out", "deadline exceeded",
	}
)

// Parse converts any provider failure into a typed *Error. Unclassified
// failures become ErrCodeTransport.
func (p *ErrorParser) Parse(err error) *Error {
	if err == nil {
		return nil
	}
	if llmErr, ok := IsLLMError(err); ok {
		return llmErr
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if errors.Is(err, context.DeadlineExceeded) {
		return NewErrorWithCode(ErrCodeTimeout, msg, p.provider, err)
	}
	if status := extractHTTPStatusCode(lower); status > 0 {
		return NewError(status, msg, p.provider, err)
	}
	switch {
	case containsAny(lower, rateLimitPatterns):
		return NewError(http.StatusTooManyRequests, msg, p.provider, err)
	case containsAny(lower, unavailablePatterns):
		return NewError(http.StatusServiceUnavailable, msg, p.provider, err)
	case containsAny(lower, authPatterns):
		return NewError(http.StatusUnauthorized, msg, p.provider, err)
	case strings.Contains(lower, "invalid model") || strings.Contains(lower, "model not found"):
		return NewErrorWithCode(ErrCodeInvalidModel, msg, p.provider, err)
	case strings.Contains(lower, "content policy"):
		return NewErrorWithCode(ErrCodeContentPolicy, msg, p.provider, err)
	case containsAny(lower, badRequestPatterns):
		return NewError(http.StatusBadRequest, msg, p.provider, err)
	case containsAny(lower, timeoutPatterns):
		return NewErrorWithCode(ErrCodeTimeout, msg, p.provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewErrorWithCode(ErrCodeTimeout, msg, p.provider, err)
	}
	// connection failures and anything unrecognised are transport errors
	return NewErrorWithCode(ErrCodeTransport, msg, p.provider, err)
}

func extractHTTPStatusCode(lower string) int {
	m := statusCodeRe.FindStringSubmatch(lower)
	if len(m) < 2 {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil || code < 400 || code >= 600 {
		return 0
	}
	return code
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
