package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorParser_Parse(t *testing.T) {
	parser := NewErrorParser(ProviderOpenAI)

	t.Run("Should distinguish the transport error classes", func(t *testing.T) {
		cases := []struct {
			input     string
			code      ErrorCode
			retryable bool
		}{
			{"error, status code: 401, message: Incorrect API key provided", ErrCodeAuthentication, false},
			{"invalid api key supplied", ErrCodeAuthentication, false},
			{"Rate limit reached for requests", ErrCodeRateLimit, true},
			{"HTTP 429 Too Many Requests", ErrCodeRateLimit, true},
			{"invalid_request_error: messages must alternate", ErrCodeBadRequest, false},
			{"status code: 400", ErrCodeBadRequest, false},
			{"status code: 503", ErrCodeServiceUnavailable, true},
			{"status code: 500", ErrCodeInternalServer, true},
			{"dial tcp: connection refused", ErrCodeTransport, true},
			{"request timed out", ErrCodeTimeout, true},
			{"something unexpected", ErrCodeTransport, true},
		}
		for _, tc := range cases {
			llmErr := parser.Parse(errors.New(tc.input))
			require.NotNil(t, llmErr, tc.input)
			assert.Equal(t, tc.code, llmErr.Code, tc.input)
			assert.Equal(t, tc.retryable, llmErr.Retryable(), tc.input)
		}
	})

	t.Run("Should keep already typed errors", func(t *testing.T) {
		typed := NewErrorWithCode(ErrCodeContentPolicy, "blocked", ProviderOpenAI, nil)
		assert.Same(t, typed, parser.Parse(fmt.Errorf("wrapped: %w", typed)))
	})

	t.Run("Should treat deadline exceeded as timeout", func(t *testing.T) {
		llmErr := parser.Parse(fmt.Errorf("call: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeTimeout, llmErr.Code)
	})

	t.Run("Should return nil for nil", func(t *testing.T) {
		assert.Nil(t, parser.Parse(nil))
	})
}
