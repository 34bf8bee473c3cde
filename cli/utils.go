package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// extractCLIFlags collects the flags the user set explicitly, keyed by flag
// name. Flags left at their defaults never override other sources.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) {
	addFlag := func(flagName string, getter func(string) (any, error)) {
		if cmd.Flags().Changed(flagName) {
			if value, err := getter(flagName); err == nil {
				flags[flagName] = value
			}
		}
	}
	getString := func(name string) (any, error) { return cmd.Flags().GetString(name) }
	getInt := func(name string) (any, error) { return cmd.Flags().GetInt(name) }
	getBool := func(name string) (any, error) { return cmd.Flags().GetBool(name) }
	getFloat := func(name string) (any, error) { return cmd.Flags().GetFloat64(name) }

	flagDefs := []struct {
		flagName string
		getter   func(string) (any, error)
	}{
		{"log-level", getString},
		{"log-json", getBool},
		{"log-source", getBool},
		{"db", getString},

		{"provider", getString},
		{"model", getString},
		{"base-url", getString},
		{"temperature", getFloat},

		{"max-iterations", getInt},
		{"max-retries", getInt},
		{"auto-retry", getBool},
		{"intent-detection", getBool},
		{"expansion-factor", getFloat},
		{"redact", getBool},
	}
	for _, def := range flagDefs {
		addFlag(def.flagName, def.getter)
	}
}

// loadEnvFile loads environment variables from a file inside the working
// directory. A missing file is not an error.
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return "", nil
	}
	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	if !filepath.IsAbs(envFile) {
		envFile = filepath.Join(pwd, envFile)
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if !isPathWithinDirectory(absPath, pwd) {
		return "", fmt.Errorf("env file path '%s' is outside the working directory", envFile)
	}
	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return absPath, nil
		}
		return "", fmt.Errorf("failed to stat env file: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return "", fmt.Errorf("env file path '%s' is not a regular file", envFile)
	}
	if err := godotenv.Load(absPath); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
	}
	return absPath, nil
}

func isPathWithinDirectory(path, dir string) bool {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return false
	}
	if !strings.HasSuffix(absDir, string(filepath.Separator)) {
		absDir += string(filepath.Separator)
	}
	return strings.HasPrefix(absPath, absDir) || absPath == strings.TrimSuffix(absDir, string(filepath.Separator))
}
