package llmadapter

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// ProviderConfig describes how to reach one LLM provider.
type ProviderConfig struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	RequestsPerMinute float64
	// Timeout bounds each HTTP exchange with the provider, streaming included.
	Timeout time.Duration
	Retry   RetryConfig
}

// NewClient builds the provider model and wraps it with rate limiting and
// transport retries.
func NewClient(cfg *ProviderConfig) (LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model, err := createModel(provider, cfg)
	if err != nil {
		return nil, err
	}
	var client LLMClient = NewLangChainAdapter(model, provider)
	client = NewRateLimitedClient(client, provider, cfg.RequestsPerMinute, 1)
	return NewRetryingClient(client, cfg.Retry), nil
}

func createModel(provider string, p *ProviderConfig) (llms.Model, error) {
	httpClient := &http.Client{Timeout: p.Timeout}
	switch provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(p.Model), openai.WithHTTPClient(httpClient)}
		if p.APIKey != "" {
			opts = append(opts, openai.WithToken(p.APIKey))
		}
		if p.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(p.BaseURL))
		}
		return openai.New(opts...)
	case ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithModel(p.Model), anthropic.WithHTTPClient(httpClient)}
		if p.APIKey != "" {
			opts = append(opts, anthropic.WithToken(p.APIKey))
		}
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		return anthropic.New(opts...)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(p.Model), ollama.WithHTTPClient(httpClient)}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(p.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", p.Provider)
	}
}
