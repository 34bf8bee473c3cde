package cli

import (
	"context"
	"fmt"

	"github.com/compozy/logscout/pkg/config"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "logscout.yaml"

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "logscout",
		Short:         "Ask questions about your logs",
		Long:          "logscout answers questions about stored logs by letting an LLM query them with read-only tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	addGlobalFlags(root)
	root.AddCommand(
		AskCmd(),
		ChatCmd(),
		LogsCmd(),
		ConfigCmd(),
	)
	return root
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the YAML configuration file")
	flags.String("env-file", ".env", "Path to an environment file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Emit logs as JSON")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.String("db", "", "Path to the SQLite log database")
	flags.String("provider", "", "LLM provider (openai, anthropic, ollama)")
	flags.String("model", "", "LLM model name")
	flags.String("base-url", "", "Override the provider endpoint")
	flags.Float64("temperature", 0, "Sampling temperature")
	flags.Int("max-iterations", 0, "Maximum LLM/tool round trips per question")
	flags.Int("max-retries", 0, "Maximum automatic retry prompts per question")
	flags.Bool("auto-retry", true, "Nudge the model to retry empty or failed tool results")
	flags.Bool("intent-detection", true, "Nudge the model when it announces a tool call without making one")
	flags.Float64("expansion-factor", 0, "Multiplier applied when widening time windows on retry")
	flags.Bool("redact", true, "Scrub secrets from returned log messages")
}

// SetupGlobalConfig loads the env file and configuration, configures the
// logger and attaches both to the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := loadConfig(ctx, cmd, configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetupLogger(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Source)
	ctx = logger.ContextWithLogger(ctx, logger.GetDefault())
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	return nil
}

func loadConfig(ctx context.Context, cmd *cobra.Command, configFile string) (*config.Config, config.Service, error) {
	service := config.NewService()
	sources := []config.Source{config.NewYAMLProvider(configFile)}
	flags := make(map[string]any)
	extractCLIFlags(cmd, flags)
	if len(flags) > 0 {
		sources = append(sources, config.NewCLIProvider(flags))
	}
	cfg, err := service.Load(ctx, sources...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, service, nil
}
