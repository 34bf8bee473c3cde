package config

import (
	"reflect"
	"strings"
	"sync"
)

// EnvMapping links an explicitly named environment variable to a config path.
type EnvMapping struct {
	EnvVar     string
	ConfigPath string
}

var (
	cachedMappings []EnvMapping
	mappingsOnce   sync.Once
)

// GenerateEnvMappings collects the env struct tags of Config.
func GenerateEnvMappings() []EnvMapping {
	mappingsOnce.Do(func() {
		cachedMappings = extractMappings(reflect.TypeOf(Config{}), "")
	})
	return cachedMappings
}

func extractMappings(t reflect.Type, prefix string) []EnvMapping {
	var mappings []EnvMapping
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		koanfTag := field.Tag.Get("koanf")
		if !field.IsExported() || koanfTag == "" || koanfTag == "-" {
			continue
		}
		configPath := koanfTag
		if prefix != "" {
			configPath = prefix + "." + koanfTag
		}
		if envTag := field.Tag.Get("env"); envTag != "" && envTag != "-" {
			mappings = append(mappings, EnvMapping{EnvVar: envTag, ConfigPath: configPath})
		}
		if field.Type.Kind() == reflect.Struct && field.Type.PkgPath() != "time" {
			mappings = append(mappings, extractMappings(field.Type, configPath)...)
		}
	}
	return mappings
}

func GenerateEnvToConfigMap() map[string]string {
	mappings := GenerateEnvMappings()
	result := make(map[string]string, len(mappings))
	for _, m := range mappings {
		result[m.EnvVar] = m.ConfigPath
	}
	return result
}

// IsSensitiveConfigPath reports whether a dotted path holds a secret.
func IsSensitiveConfigPath(configPath string) bool {
	return checkSensitiveField(reflect.TypeOf(Config{}), strings.Split(configPath, "."))
}

func checkSensitiveField(t reflect.Type, pathParts []string) bool {
	if len(pathParts) == 0 || t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("koanf") != pathParts[0] {
			continue
		}
		if len(pathParts) == 1 {
			return field.Type == reflect.TypeOf(SensitiveString("")) || field.Tag.Get("sensitive") == "true"
		}
		return checkSensitiveField(field.Type, pathParts[1:])
	}
	return false
}
