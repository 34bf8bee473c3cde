package llmadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	errs   []error
	calls  int
	chunk  string
	closed bool
}

func (c *scriptedClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	idx := c.calls
	c.calls++
	if c.chunk != "" && req.Options.Stream != nil {
		if err := req.Options.Stream(ctx, c.chunk); err != nil {
			return nil, err
		}
	}
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return &LLMResponse{Content: "ok"}, nil
}

func (c *scriptedClient) Close() error {
	c.closed = true
	return nil
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{Attempts: attempts, BackoffBase: time.Millisecond, BackoffMax: 2 * time.Millisecond}
}

func TestRetryingClient(t *testing.T) {
	rateLimited := NewErrorWithCode(ErrCodeRateLimit, "slow down", ProviderOpenAI, nil)

	t.Run("Should retry retryable failures until success", func(t *testing.T) {
		next := &scriptedClient{errs: []error{rateLimited, rateLimited}}
		client := NewRetryingClient(next, fastRetry(3))
		resp, err := client.GenerateContent(t.Context(), &LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, 3, next.calls)
	})

	t.Run("Should not retry bad requests", func(t *testing.T) {
		badRequest := NewErrorWithCode(ErrCodeBadRequest, "bad", ProviderOpenAI, nil)
		next := &scriptedClient{errs: []error{badRequest}}
		client := NewRetryingClient(next, fastRetry(3))
		_, err := client.GenerateContent(t.Context(), &LLMRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, badRequest)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("Should stop after the configured attempts", func(t *testing.T) {
		next := &scriptedClient{errs: []error{rateLimited, rateLimited, rateLimited}}
		client := NewRetryingClient(next, fastRetry(1))
		_, err := client.GenerateContent(t.Context(), &LLMRequest{})
		require.Error(t, err)
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeRateLimit, llmErr.Code)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("Should not retry once a chunk was streamed", func(t *testing.T) {
		next := &scriptedClient{errs: []error{rateLimited}, chunk: "partial"}
		client := NewRetryingClient(next, fastRetry(3))
		var chunks []string
		_, err := client.GenerateContent(t.Context(), &LLMRequest{Options: CallOptions{
			Stream: func(_ context.Context, chunk string) error {
				chunks = append(chunks, chunk)
				return nil
			},
		}})
		require.Error(t, err)
		assert.Equal(t, 1, next.calls)
		assert.Equal(t, []string{"partial"}, chunks)
	})

	t.Run("Should delegate Close", func(t *testing.T) {
		next := &scriptedClient{}
		require.NoError(t, NewRetryingClient(next, fastRetry(0)).Close())
		assert.True(t, next.closed)
	})
}

func TestRateLimitedClient(t *testing.T) {
	t.Run("Should pass through when unlimited", func(t *testing.T) {
		next := &scriptedClient{}
		client := NewRateLimitedClient(next, ProviderOpenAI, 0, 1)
		for range 5 {
			_, err := client.GenerateContent(t.Context(), &LLMRequest{})
			require.NoError(t, err)
		}
		assert.Equal(t, 5, next.calls)
	})

	t.Run("Should return the context error when canceled while waiting", func(t *testing.T) {
		next := &scriptedClient{}
		client := NewRateLimitedClient(next, ProviderOpenAI, 1, 1)
		_, err := client.GenerateContent(t.Context(), &LLMRequest{})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err = client.GenerateContent(ctx, &LLMRequest{})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, next.calls)
	})
}
