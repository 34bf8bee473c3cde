package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/compozy/logscout/engine/infra/sqlite"
	"github.com/compozy/logscout/engine/logs"
	"github.com/compozy/logscout/pkg/config"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/spf13/cobra"
)

func LogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Manage the stored log events",
	}
	cmd.AddCommand(logsImportCmd(), logsGroupsCmd(), logsMigrateCmd())
	return cmd
}

func logsImportCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "import <file.jsonl|->",
		Short: "Import JSON-lines log events",
		Long: `Import one JSON object per line. Recognized keys are timestamp (or @timestamp, time, ts),
message (or msg, log), level (or severity) and log_group. Events without a log_group
are stored under --group.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogsImport(cmd, args[0], group)
		},
	}
	cmd.Flags().StringVarP(&group, "group", "g", "", "Log group for events that do not name one")
	return cmd
}

func runLogsImport(cmd *cobra.Command, path, group string) error {
	ctx := cmd.Context()
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	events, err := logs.ParseJSONL(r, group)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	store, err := openStore(ctx, config.FromContext(ctx))
	if err != nil {
		return err
	}
	defer store.Close(ctx)
	n, err := sqlite.NewLogRepo(store.DB()).Append(ctx, events)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Imported log events", "count", n, "path", path, "db", store.Path())
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Imported %d event(s)", n)))
	return nil
}

func logsGroupsCmd() *cobra.Command {
	var filter logs.GroupFilter
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List stored log groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, config.FromContext(ctx))
			if err != nil {
				return err
			}
			defer store.Close(ctx)
			groups, err := sqlite.NewLogRepo(store.DB()).ListGroups(ctx, filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderGroups(groups))
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Prefix, "prefix", "", "Only list groups starting with this prefix")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of groups to list")
	return cmd
}

func logsMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the log database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			path := config.FromContext(ctx).Store.Path
			if err := sqlite.ApplyMigrations(ctx, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Schema is up to date: "+path))
			return nil
		},
	}
}
