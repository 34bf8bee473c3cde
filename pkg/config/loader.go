package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes the environment variables read by the loader.
const EnvPrefix = "LOGSCOUT_"

// loader implements Service on top of koanf.
type loader struct {
	koanf      *koanf.Koanf
	validator  *validator.Validate
	metadata   Metadata
	metadataMu sync.RWMutex
}

// sensitiveStringDecodeHook converts strings to SensitiveString.
func sensitiveStringDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(SensitiveString("")) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	default:
		return data, nil
	}
}

func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		metadata: Metadata{
			Sources: make(map[string]SourceType),
		},
	}
}

// Load builds a Config from defaults, the given sources and the environment.
// CLI sources are applied after the environment so flags always win.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.reset()
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	var cli []Source
	for _, source := range sources {
		if source == nil || source.Type() == SourceEnv {
			continue
		}
		if source.Type() == SourceCLI {
			cli = append(cli, source)
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	for _, source := range cli {
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	return l.unmarshalAndValidate()
}

func (l *loader) reset() {
	l.koanf = koanf.New(".")
	l.metadataMu.Lock()
	l.metadata.Sources = make(map[string]SourceType)
	l.metadata.LoadedAt = time.Now()
	l.metadataMu.Unlock()
}

func (l *loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, key := range l.koanf.Keys() {
		l.trackSource(key, SourceDefault)
	}
	return nil
}

// transformEnvKey converts an unprefixed variable name to a koanf path.
// For example: ORCHESTRATOR_MAX_TOOL_ITERATIONS -> orchestrator.max_tool_iterations
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *loader) loadEnvironment() error {
	before := l.snapshot()
	envToPath := GenerateEnvToConfigMap()
	if err := l.koanf.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key string, value string) (string, any) {
			if path, ok := envToPath[key]; ok {
				return path, value
			}
			return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	l.trackChanges(before, SourceEnv)
	return nil
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	before := l.snapshot()
	// Set key by key so a partial file keeps the values beneath it.
	for key, value := range flattenMap("", data) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
	}
	l.trackChanges(before, source.Type())
	return nil
}

func (l *loader) snapshot() map[string]any {
	keys := l.koanf.Keys()
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = l.koanf.Get(key)
	}
	return out
}

func (l *loader) trackChanges(before map[string]any, source SourceType) {
	for _, key := range l.koanf.Keys() {
		prev, existed := before[key]
		if !existed || !reflect.DeepEqual(prev, l.koanf.Get(key)) {
			l.trackSource(key, source)
		}
	}
}

// flattenMap flattens a nested map into dot-notation keys
func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		result[key] = v
	}
	return result
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var config Config
	if err := l.koanf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &config,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				sensitiveStringDecodeHook,
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (l *loader) Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(config); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := validateCustom(config); err != nil {
		return fmt.Errorf("custom validation failed: %w", err)
	}
	return nil
}

func (l *loader) GetSource(key string) SourceType {
	l.metadataMu.RLock()
	defer l.metadataMu.RUnlock()
	if source, ok := l.metadata.Sources[key]; ok {
		return source
	}
	return SourceDefault
}

func (l *loader) trackSource(key string, source SourceType) {
	l.metadataMu.Lock()
	defer l.metadataMu.Unlock()
	l.metadata.Sources[key] = source
}

func validateCustom(config *Config) error {
	if config.Tools.CacheSize > 0 && config.Tools.CacheTTL <= 0 {
		return fmt.Errorf("tools.cache_ttl must be positive when tools.cache_size is set")
	}
	if config.LLM.Provider == "ollama" && config.LLM.APIKey.Value() != "" {
		return fmt.Errorf("llm.api_key is not used by provider %q", config.LLM.Provider)
	}
	return nil
}
