package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/compozy/logscout/engine/llm/orchestrator"
	"github.com/compozy/logscout/pkg/config"
	"github.com/spf13/cobra"
)

type askOptions struct {
	noStream    bool
	asJSON      bool
	contexts    []string
	metricsAddr string
}

func AskCmd() *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question about the stored logs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), opts, defaultDeps)
		},
	}
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "Print the answer only once it is complete")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the turn result as JSON")
	cmd.Flags().StringArrayVar(&opts.contexts, "context", nil, "Extra system context for this question (repeatable)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts *askOptions, deps appDeps) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	a, err := newApp(ctx, cfg, opts.metricsAddr, deps)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	for _, c := range opts.contexts {
		a.orch.InjectContext(c)
	}
	out := cmd.OutOrStdout()
	streaming := !opts.noStream && !opts.asJSON
	result, err := respond(ctx, a.orch, question, nil, out, streaming)
	if err != nil {
		return err
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printTurn(out, result, streaming)
	return nil
}

// respond runs one turn, streaming assistant text to out when requested.
func respond(
	ctx context.Context,
	orch *orchestrator.Orchestrator,
	question string,
	history []orchestrator.Message,
	out io.Writer,
	streaming bool,
) (*orchestrator.TurnResult, error) {
	if !streaming {
		return orch.Respond(ctx, question, history)
	}
	return orch.RespondStream(ctx, question, history, func(_ context.Context, chunk string) error {
		_, err := io.WriteString(out, chunk)
		return err
	})
}

func printTurn(out io.Writer, result *orchestrator.TurnResult, streamed bool) {
	if streamed {
		fmt.Fprintln(out)
	}
	// The limit notice is produced locally, so it was never streamed.
	if !streamed || result.LimitReached {
		fmt.Fprintln(out, result.Text)
	}
	if history := renderToolHistory(result.ToolCalls); history != "" {
		fmt.Fprintln(out, history)
	}
	fmt.Fprintln(out, renderTurnFooter(result))
}
