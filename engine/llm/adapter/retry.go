package llmadapter

import (
	"context"
	"time"

	"github.com/compozy/logscout/engine/core"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/sethvargo/go-retry"
)

const (
	defaultRetryBackoffBase = 250 * time.Millisecond
	defaultRetryBackoffMax  = 10 * time.Second
)

// RetryConfig tunes transport-level retries.
type RetryConfig struct {
	Attempts    int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      bool
}

// RetryingClient retries retryable transport failures of the wrapped client.
// Streaming requests are never retried once a chunk has been delivered.
type RetryingClient struct {
	next LLMClient
	cfg  RetryConfig
}

func NewRetryingClient(next LLMClient, cfg RetryConfig) *RetryingClient {
	if cfg.Attempts < 0 {
		cfg.Attempts = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultRetryBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultRetryBackoffMax
	}
	return &RetryingClient{next: next, cfg: cfg}
}

func (c *RetryingClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	log := logger.FromContext(ctx)
	exponential := retry.WithCappedDuration(c.cfg.BackoffMax, retry.NewExponential(c.cfg.BackoffBase))
	maxRetries := uint64(c.cfg.Attempts) // #nosec G115 -- clamped to >= 0 above
	var backoff retry.Backoff
	if c.cfg.Jitter {
		backoff = retry.WithMaxRetries(maxRetries, retry.WithJitter(50*time.Millisecond, exponential))
	} else {
		backoff = retry.WithMaxRetries(maxRetries, exponential)
	}

	streamed := false
	attemptReq := req
	if req != nil && req.Options.Stream != nil {
		copied := *req
		inner := req.Options.Stream
		copied.Options.Stream = func(ctx context.Context, chunk string) error {
			streamed = true
			return inner(ctx, chunk)
		}
		attemptReq = &copied
	}

	attempt := 0
	var response *LLMResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var callErr error
		response, callErr = c.next.GenerateContent(ctx, attemptReq)
		if callErr == nil {
			return nil
		}
		if llmErr, ok := IsLLMError(callErr); ok && llmErr.Retryable() && !streamed {
			log.Debug("Retrying LLM call", "attempt", attempt, "code", string(llmErr.Code),
				"error", core.RedactError(callErr))
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (c *RetryingClient) Close() error { return c.next.Close() }
