package llmadapter

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// RateLimitedClient paces outgoing LLM requests with a token bucket.
type RateLimitedClient struct {
	next     LLMClient
	limiter  *rate.Limiter
	provider string
}

// NewRateLimitedClient limits the wrapped client to requestsPerMinute.
// A non-positive rate disables limiting.
func NewRateLimitedClient(next LLMClient, provider string, requestsPerMinute float64, burst int) *RateLimitedClient {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(requestsPerMinute / 60)
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedClient{
		next:     next,
		limiter:  rate.NewLimiter(limit, burst),
		provider: provider,
	}
}

func (c *RateLimitedClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, NewErrorWithCode(ErrCodeRateLimit, "local rate limit wait failed: "+err.Error(), c.provider, err)
	}
	return c.next.GenerateContent(ctx, req)
}

func (c *RateLimitedClient) Close() error { return c.next.Close() }
