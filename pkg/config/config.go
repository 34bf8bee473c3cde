package config

import (
	"context"
	"encoding/json"
	"time"
)

// Config is the complete logscout configuration.
type Config struct {
	LLM          LLMConfig          `koanf:"llm"          json:"llm"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator" json:"orchestrator"`
	Store        StoreConfig        `koanf:"store"        json:"store"`
	Tools        ToolsConfig        `koanf:"tools"        json:"tools"`
	Log          LogConfig          `koanf:"log"          json:"log"`
}

// LLMConfig selects the model provider and tunes transport behavior.
type LLMConfig struct {
	Provider          string          `koanf:"provider"            json:"provider"            env:"LOGSCOUT_LLM_PROVIDER"            validate:"required,oneof=openai anthropic ollama"`
	Model             string          `koanf:"model"               json:"model"               env:"LOGSCOUT_LLM_MODEL"               validate:"required"`
	APIKey            SensitiveString `koanf:"api_key"             json:"api_key"             env:"LOGSCOUT_LLM_API_KEY"             sensitive:"true"`
	BaseURL           string          `koanf:"base_url"            json:"base_url"            env:"LOGSCOUT_LLM_BASE_URL"            validate:"omitempty,url"`
	Temperature       float64         `koanf:"temperature"         json:"temperature"         env:"LOGSCOUT_LLM_TEMPERATURE"         validate:"gte=0,lte=2"`
	MaxTokens         int             `koanf:"max_tokens"          json:"max_tokens"          env:"LOGSCOUT_LLM_MAX_TOKENS"          validate:"gte=0,lte=1000000"`
	Timeout           time.Duration   `koanf:"timeout"             json:"timeout"             env:"LOGSCOUT_LLM_TIMEOUT"             validate:"gt=0"`
	RetryAttempts     int             `koanf:"retry_attempts"      json:"retry_attempts"      env:"LOGSCOUT_LLM_RETRY_ATTEMPTS"      validate:"gte=0,lte=10"`
	RetryBackoff      time.Duration   `koanf:"retry_backoff"       json:"retry_backoff"       env:"LOGSCOUT_LLM_RETRY_BACKOFF"       validate:"gt=0"`
	RetryMaxBackoff   time.Duration   `koanf:"retry_max_backoff"   json:"retry_max_backoff"   env:"LOGSCOUT_LLM_RETRY_MAX_BACKOFF"   validate:"gtefield=RetryBackoff"`
	RequestsPerMinute float64         `koanf:"requests_per_minute" json:"requests_per_minute" env:"LOGSCOUT_LLM_REQUESTS_PER_MINUTE" validate:"gte=0"`
}

// OrchestratorConfig mirrors the tunables of the conversation loop.
type OrchestratorConfig struct {
	MaxToolIterations         int     `koanf:"max_tool_iterations"         json:"max_tool_iterations"         validate:"min=1,max=100"`
	MaxRetryAttempts          int     `koanf:"max_retry_attempts"          json:"max_retry_attempts"          validate:"min=0,max=10"`
	AutoRetryEnabled          bool    `koanf:"auto_retry_enabled"          json:"auto_retry_enabled"`
	IntentDetectionEnabled    bool    `koanf:"intent_detection_enabled"    json:"intent_detection_enabled"`
	TimeExpansionFactor       float64 `koanf:"time_expansion_factor"       json:"time_expansion_factor"       validate:"gte=1,lte=100"`
	IntentConfidenceThreshold float64 `koanf:"intent_confidence_threshold" json:"intent_confidence_threshold" validate:"gt=0,lte=1"`
	MaxConcurrentTools        int     `koanf:"max_concurrent_tools"        json:"max_concurrent_tools"        validate:"min=1,max=64"`
	SystemPrompt              string  `koanf:"system_prompt"               json:"system_prompt"`
}

type StoreConfig struct {
	Path string `koanf:"path" json:"path" env:"LOGSCOUT_DB_PATH" validate:"required"`
}

// ToolsConfig tunes the log tools exposed to the model.
type ToolsConfig struct {
	CacheSize    int           `koanf:"cache_size"    json:"cache_size"    validate:"gte=0"`
	CacheTTL     time.Duration `koanf:"cache_ttl"     json:"cache_ttl"     validate:"gte=0"`
	DefaultLimit int           `koanf:"default_limit" json:"default_limit" validate:"min=1"`
	MaxLimit     int           `koanf:"max_limit"     json:"max_limit"     validate:"gtefield=DefaultLimit"`
	Redact       bool          `koanf:"redact"        json:"redact"`
}

type LogConfig struct {
	Level  string `koanf:"level"  json:"level"  env:"LOGSCOUT_LOG_LEVEL" validate:"oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json"   json:"json"   env:"LOGSCOUT_LOG_JSON"`
	Source bool   `koanf:"source" json:"source"`
}

// Default returns the built-in configuration every other source overrides.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:        "openai",
			Model:           "gpt-4o-mini",
			Temperature:     0.2,
			Timeout:         2 * time.Minute,
			RetryAttempts:   3,
			RetryBackoff:    500 * time.Millisecond,
			RetryMaxBackoff: 10 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			MaxToolIterations:         10,
			MaxRetryAttempts:          3,
			AutoRetryEnabled:          true,
			IntentDetectionEnabled:    true,
			TimeExpansionFactor:       4,
			IntentConfidenceThreshold: 0.8,
			MaxConcurrentTools:        4,
		},
		Store: StoreConfig{
			Path: "logscout.db",
		},
		Tools: ToolsConfig{
			CacheSize:    256,
			CacheTTL:     time.Minute,
			DefaultLimit: 100,
			MaxLimit:     1000,
			Redact:       true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SensitiveString holds a secret that must never be printed.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the raw secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Service loads and validates configuration.
type Service interface {
	// Load applies defaults, then sources in order, then the environment,
	// then any CLI sources. Later layers win.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	// GetSource reports which layer supplied key.
	GetSource(key string) SourceType
}

// Source is one configuration layer.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata records where each key came from.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}
