package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/compozy/logscout/engine/llm/orchestrator"
	"github.com/compozy/logscout/pkg/config"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /inject <text>  add system context to the next question only
  /history        show the tool calls of this session
  /tools          list the tools offered to the model
  /reset          forget the conversation
  /quit           leave`

func ChatCmd() *cobra.Command {
	var (
		noStream    bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation about the stored logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, config.FromContext(ctx), metricsAddr, defaultDeps)
			if err != nil {
				return err
			}
			defer a.close(ctx)
			s := newChatSession(a.orch, cmd.InOrStdin(), cmd.OutOrStdout(), !noStream)
			return s.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Print answers only once they are complete")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return cmd
}

// chatSession is a line-oriented REPL over one orchestrator. The
// conversation history lives here; the orchestrator itself is stateless
// between turns.
type chatSession struct {
	orch      *orchestrator.Orchestrator
	in        *bufio.Scanner
	out       io.Writer
	outMu     sync.Mutex
	streaming bool
	history   []orchestrator.Message
	calls     []orchestrator.ToolCallRecord
}

func newChatSession(orch *orchestrator.Orchestrator, in io.Reader, out io.Writer, streaming bool) *chatSession {
	return &chatSession{
		orch:      orch,
		in:        bufio.NewScanner(in),
		out:       out,
		streaming: streaming,
	}
}

func (s *chatSession) run(ctx context.Context) error {
	live := orchestrator.NewChannelObserver(32)
	s.orch.AddObserver(live)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.watchToolCalls(live.Records())
	}()
	defer func() {
		s.orch.RemoveObserver(live)
		live.Close()
		wg.Wait()
		if n := live.Dropped(); n > 0 {
			logger.FromContext(ctx).Warn("Dropped live tool call updates", "count", n)
		}
	}()

	s.println(mutedStyle.Render("Ask about your logs. Type /help for commands."))
	for {
		s.print("> ")
		if !s.in.Scan() {
			s.println()
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}
		if err := s.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.println(errorStyle.Render(err.Error()))
		}
	}
}

func (s *chatSession) ask(ctx context.Context, question string) error {
	w := &lockedWriter{mu: &s.outMu, w: s.out}
	result, err := respond(ctx, s.orch, question, s.history, w, s.streaming)
	if err != nil {
		var failure *orchestrator.LLMFailure
		if errors.As(err, &failure) {
			return fmt.Errorf("the model could not be reached: %w", failure.Err)
		}
		return err
	}
	s.history = withoutSystem(result.Messages)
	s.calls = append(s.calls, result.ToolCalls...)
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.streaming {
		fmt.Fprintln(s.out)
	}
	if !s.streaming || result.LimitReached {
		fmt.Fprintln(s.out, result.Text)
	}
	fmt.Fprintln(s.out, renderTurnFooter(result))
	return nil
}

// command handles a slash command and reports whether to quit.
func (s *chatSession) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		s.println(chatHelp)
	case "/inject":
		if arg == "" {
			s.println(errorStyle.Render("usage: /inject <text>"))
			return false
		}
		s.orch.InjectContext(arg)
		s.println(mutedStyle.Render("Context queued for the next question."))
	case "/history":
		if len(s.calls) == 0 {
			s.println(mutedStyle.Render("No tool calls yet."))
			return false
		}
		s.println(renderToolHistory(s.calls))
	case "/tools":
		for _, def := range s.orch.ToolDefinitions() {
			s.println(headerStyle.Render(def.Name) + "  " + def.Description)
		}
	case "/reset":
		s.history = nil
		s.calls = nil
		s.println(mutedStyle.Render("Conversation cleared."))
	default:
		logger.FromContext(ctx).Debug("Unknown chat command", "command", name)
		s.println(errorStyle.Render("unknown command " + name + "; type /help"))
	}
	return false
}

// watchToolCalls prints a status line whenever a tool call finishes.
func (s *chatSession) watchToolCalls(records <-chan orchestrator.ToolCallRecord) {
	for record := range records {
		if !record.Terminal() {
			continue
		}
		s.println(renderToolCall(record))
	}
}

func (s *chatSession) print(a ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprint(s.out, a...)
}

func (s *chatSession) println(a ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintln(s.out, a...)
}

// withoutSystem drops injected context and corrective prompts, which only
// apply to the turn that produced them.
func withoutSystem(messages []orchestrator.Message) []orchestrator.Message {
	out := make([]orchestrator.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == llmadapter.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
