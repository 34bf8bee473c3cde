package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/compozy/logscout/pkg/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the configuration",
	}
	cmd.AddCommand(configShowCmd(), configValidateCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	var (
		format      string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration and where each value came from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, service, err := loadConfig(cmd.Context(), cmd, configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			sources := collectSources(service, cfg)
			return formatConfigOutput(cmd.OutOrStdout(), cfg, sources, format, showSources)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, table)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Show configuration sources")
	return cmd
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// PersistentPreRunE already loaded and validated it.
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Configuration is valid"))
			return nil
		},
	}
}

func formatConfigOutput(
	out io.Writer,
	cfg *config.Config,
	sources map[string]config.SourceType,
	format string,
	showSources bool,
) error {
	switch format {
	case "json":
		return outputJSON(out, cfg, sources, showSources)
	case "yaml":
		return outputYAML(out, cfg, sources, showSources)
	case "table":
		return outputTable(out, cfg, sources, showSources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// collectSources asks the loader for the origin of every leaf key.
func collectSources(service config.Service, cfg *config.Config) map[string]config.SourceType {
	sources := make(map[string]config.SourceType)
	for key := range flattenConfig(cfg) {
		sources[key] = service.GetSource(key)
	}
	return sources
}

func outputJSON(out io.Writer, cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	output := map[string]any{"config": cfg}
	if showSources {
		output["sources"] = sources
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func outputYAML(out io.Writer, cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	// Round-trip through JSON so keys follow the json tags and secrets stay redacted.
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	output := map[string]any{"config": tree}
	if showSources {
		output["sources"] = sources
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(output)
}

func outputTable(out io.Writer, cfg *config.Config, sources map[string]config.SourceType, showSources bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	flat := flattenConfig(cfg)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	header := lipgloss.NewStyle().Bold(true)
	if showSources {
		fmt.Fprintln(w, header.Render("KEY")+"\t"+header.Render("VALUE")+"\t"+header.Render("SOURCE"))
	} else {
		fmt.Fprintln(w, header.Render("KEY")+"\t"+header.Render("VALUE"))
	}
	for _, key := range keys {
		if showSources {
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, flat[key], sources[key])
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", key, flat[key])
	}
	return w.Flush()
}

// flattenConfig renders every leaf as a dotted koanf key. Sensitive values
// are redacted.
func flattenConfig(cfg *config.Config) map[string]string {
	result := make(map[string]string)
	flattenValue("", reflect.ValueOf(cfg).Elem(), result)
	return result
}

func flattenValue(prefix string, val reflect.Value, result map[string]string) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fieldVal := val.Field(i)
		if fieldVal.Kind() == reflect.Struct {
			flattenValue(key, fieldVal, result)
			continue
		}
		if config.IsSensitiveConfigPath(key) {
			result[key] = config.SensitiveString(fieldVal.String()).String()
			continue
		}
		result[key] = fmt.Sprint(fieldVal.Interface())
	}
}
