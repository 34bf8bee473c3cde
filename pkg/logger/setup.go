package logger

import (
	"os"
	"strings"
)

// SetupLogger initializes the default logger from CLI-level settings.
func SetupLogger(logLevel string, logJSON, logSource bool) {
	level := LogLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	switch level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel, DisabledLevel:
	default:
		level = InfoLevel
	}
	Init(&Config{
		Level:      level,
		Output:     os.Stderr,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}
