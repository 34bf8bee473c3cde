package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// cliFlagPaths maps CLI flag names to configuration paths.
var cliFlagPaths = map[string]string{
	"provider":         "llm.provider",
	"model":            "llm.model",
	"base-url":         "llm.base_url",
	"temperature":      "llm.temperature",
	"db":               "store.path",
	"log-level":        "log.level",
	"log-json":         "log.json",
	"log-source":       "log.source",
	"max-iterations":   "orchestrator.max_tool_iterations",
	"max-retries":      "orchestrator.max_retry_attempts",
	"auto-retry":       "orchestrator.auto_retry_enabled",
	"intent-detection": "orchestrator.intent_detection_enabled",
	"expansion-factor": "orchestrator.time_expansion_factor",
	"redact":           "tools.redact",
}

// CLIFlagPath returns the configuration path a flag overrides.
func CLIFlagPath(flag string) (string, bool) {
	path, ok := cliFlagPaths[flag]
	return path, ok
}

type cliProvider struct {
	flags map[string]any
}

// NewCLIProvider wraps explicitly set flags. Unknown flag names are ignored.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{flags: flags}
}

func (c *cliProvider) Load() (map[string]any, error) {
	config := make(map[string]any)
	for key, value := range c.flags {
		path, ok := cliFlagPaths[key]
		if !ok {
			continue
		}
		if err := setNested(config, path, value); err != nil {
			return nil, fmt.Errorf("failed to set CLI flag %s: %w", key, err)
		}
	}
	return config, nil
}

func (c *cliProvider) Type() SourceType {
	return SourceCLI
}

// setNested sets a value in a nested map using dot notation
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	current := m
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(parts[:i+1], "."))
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
	return nil
}

type yamlProvider struct {
	path string
}

// NewYAMLProvider reads a YAML file. A missing file yields no values.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Load() (map[string]any, error) {
	if y.path == "" {
		return make(map[string]any), nil
	}
	data, err := os.ReadFile(y.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return filterNilValues(config), nil
}

func (y *yamlProvider) Type() SourceType {
	return SourceYAML
}

// filterNilValues drops nil leaves so they do not erase lower layers.
func filterNilValues(m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		if v == nil {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			if filtered := filterNilValues(nested); len(filtered) > 0 {
				result[k] = filtered
			}
			continue
		}
		result[k] = v
	}
	return result
}
