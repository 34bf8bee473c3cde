package orchestrator

import "errors"

const (
	defaultMaxToolIterations         = 10
	minToolIterations                = 1
	maxToolIterationsLimit           = 100
	defaultMaxRetryAttempts          = 3
	maxRetryAttemptsLimit            = 10
	defaultTimeExpansionFactor       = 4.0
	maxTimeExpansionFactor           = 100.0
	defaultIntentConfidenceThreshold = 0.8
	defaultMaxConcurrentTools        = 4
	maxConcurrentToolsLimit          = 64
)

// Config configures a ConversationOrchestrator. Start from DefaultConfig;
// zero values are not defaulted because several of them are meaningful.
type Config struct {
	SystemPrompt              string
	MaxToolIterations         int
	MaxRetryAttempts          int
	AutoRetryEnabled          bool
	IntentDetectionEnabled    bool
	TimeExpansionFactor       float64
	IntentConfidenceThreshold float64
	MaxConcurrentTools        int
	Temperature               float64
	MaxTokens                 int32
}

func DefaultConfig() Config {
	return Config{
		MaxToolIterations:         defaultMaxToolIterations,
		MaxRetryAttempts:          defaultMaxRetryAttempts,
		AutoRetryEnabled:          true,
		IntentDetectionEnabled:    true,
		TimeExpansionFactor:       defaultTimeExpansionFactor,
		IntentConfidenceThreshold: defaultIntentConfidenceThreshold,
		MaxConcurrentTools:        defaultMaxConcurrentTools,
	}
}

// Validate checks every bound and reports all violations at once.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxToolIterations < minToolIterations || c.MaxToolIterations > maxToolIterationsLimit {
		errs = append(errs, newConfigError("max_tool_iterations", c.MaxToolIterations, "must be between 1 and 100"))
	}
	if c.MaxRetryAttempts < 0 || c.MaxRetryAttempts > maxRetryAttemptsLimit {
		errs = append(errs, newConfigError("max_retry_attempts", c.MaxRetryAttempts, "must be between 0 and 10"))
	}
	if c.TimeExpansionFactor < 1 || c.TimeExpansionFactor > maxTimeExpansionFactor {
		errs = append(errs, newConfigError("time_expansion_factor", c.TimeExpansionFactor, "must be between 1 and 100"))
	}
	if c.IntentConfidenceThreshold <= 0 || c.IntentConfidenceThreshold > 1 {
		errs = append(errs, newConfigError(
			"intent_confidence_threshold", c.IntentConfidenceThreshold, "must be in (0, 1]",
		))
	}
	if c.MaxConcurrentTools < 1 || c.MaxConcurrentTools > maxConcurrentToolsLimit {
		errs = append(errs, newConfigError("max_concurrent_tools", c.MaxConcurrentTools, "must be between 1 and 64"))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, newConfigError("temperature", c.Temperature, "must be between 0 and 2"))
	}
	if c.MaxTokens < 0 {
		errs = append(errs, newConfigError("max_tokens", c.MaxTokens, "must not be negative"))
	}
	return errors.Join(errs...)
}
