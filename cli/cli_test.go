package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/compozy/logscout/engine/infra/sqlite"
	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/compozy/logscout/engine/logs"
	"github.com/compozy/logscout/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	mu       sync.Mutex
	script   func(call int, req *llmadapter.LLMRequest) *llmadapter.LLMResponse
	requests []*llmadapter.LLMRequest
}

func (f *fakeLLM) GenerateContent(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	f.mu.Lock()
	call := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	resp := f.script(call, req)
	if req.Options.Stream != nil && resp.Content != "" {
		if err := req.Options.Stream(ctx, resp.Content); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) request(i int) *llmadapter.LLMRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

// fetchThenAnswer calls fetch_logs once per question, then answers.
func fetchThenAnswer(answer string) func(int, *llmadapter.LLMRequest) *llmadapter.LLMResponse {
	return func(_ int, req *llmadapter.LLMRequest) *llmadapter.LLMResponse {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == llmadapter.RoleTool {
			return &llmadapter.LLMResponse{Content: answer}
		}
		return &llmadapter.LLMResponse{ToolCalls: []llmadapter.ToolCall{{
			ID:        "call-" + last.Content[:1],
			Name:      logs.ToolFetchLogs,
			Arguments: `{"log_group":"api","lookback_minutes":60}`,
		}}}
	}
}

func fakeDeps(llm *fakeLLM) appDeps {
	return appDeps{newClient: func(*llmadapter.ProviderConfig) (llmadapter.LLMClient, error) {
		return llm, nil
	}}
}

// seededConfig returns a config whose database holds two recent api events.
func seededConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "logs.db")
	cfg.Log.Level = "disabled"
	ctx := t.Context()
	store, err := sqlite.NewStore(ctx, &sqlite.Config{Path: cfg.Store.Path})
	require.NoError(t, err)
	defer store.Close(ctx)
	now := time.Now().UTC()
	_, err = sqlite.NewLogRepo(store.DB()).Append(ctx, []logs.Event{
		{Timestamp: now.Add(-5 * time.Minute), LogGroup: "api", Level: "ERROR", Message: "connection timeout"},
		{Timestamp: now.Add(-10 * time.Minute), LogGroup: "api", Level: "INFO", Message: "request served"},
	})
	require.NoError(t, err)
	return cfg
}

func TestRunAsk(t *testing.T) {
	t.Run("Should answer with the tool call history", func(t *testing.T) {
		cfg := seededConfig(t)
		llm := &fakeLLM{script: fetchThenAnswer("One timeout in the last hour.")}
		cmd := AskCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetContext(config.ContextWithConfig(t.Context(), cfg))

		err := runAsk(cmd, "why errors?", &askOptions{noStream: true}, fakeDeps(llm))
		require.NoError(t, err)
		text := out.String()
		assert.Contains(t, text, "One timeout in the last hour.")
		assert.Contains(t, text, "Tool calls (1)")
		assert.Contains(t, text, "fetch_logs")
		assert.Contains(t, text, "SUCCESS")
		assert.Contains(t, text, "2 iteration(s)")
	})

	t.Run("Should stream the answer and inject context", func(t *testing.T) {
		cfg := seededConfig(t)
		llm := &fakeLLM{script: fetchThenAnswer("streamed answer")}
		cmd := AskCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetContext(config.ContextWithConfig(t.Context(), cfg))

		err := runAsk(cmd, "why?", &askOptions{contexts: []string{"Deploy at 10:00"}}, fakeDeps(llm))
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out.String(), "streamed answer"))
		first := llm.request(0)
		assert.Equal(t, llmadapter.RoleSystem, first.Messages[1].Role)
		assert.Equal(t, "Deploy at 10:00", first.Messages[1].Content)
	})

	t.Run("Should print the turn as JSON", func(t *testing.T) {
		cfg := seededConfig(t)
		llm := &fakeLLM{script: fetchThenAnswer("json answer")}
		cmd := AskCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetContext(config.ContextWithConfig(t.Context(), cfg))

		require.NoError(t, runAsk(cmd, "q", &askOptions{asJSON: true}, fakeDeps(llm)))
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, "json answer", decoded["Text"])
		assert.Len(t, decoded["ToolCalls"], 1)
	})
}

func TestChatSession(t *testing.T) {
	t.Run("Should keep history and handle commands", func(t *testing.T) {
		cfg := seededConfig(t)
		llm := &fakeLLM{script: fetchThenAnswer("chat answer")}
		ctx := t.Context()
		a, err := newApp(ctx, cfg, "", fakeDeps(llm))
		require.NoError(t, err)
		defer a.close(ctx)

		input := strings.Join([]string{
			"/inject Focus on the api group",
			"first question",
			"/history",
			"second question",
			"/bogus",
			"/reset",
			"/quit",
		}, "\n")
		var out bytes.Buffer
		s := newChatSession(a.orch, strings.NewReader(input), &out, false)
		require.NoError(t, s.run(ctx))

		text := out.String()
		assert.Contains(t, text, "Context queued for the next question.")
		assert.Contains(t, text, "chat answer")
		assert.Contains(t, text, "Tool calls (1)")
		assert.Contains(t, text, "unknown command /bogus")
		assert.Contains(t, text, "Conversation cleared.")
		assert.Nil(t, s.history)

		// Second question replays the first exchange without the injected context.
		second := llm.request(2)
		var systems, users int
		for _, m := range second.Messages {
			switch m.Role {
			case llmadapter.RoleSystem:
				systems++
			case llmadapter.RoleUser:
				users++
			}
		}
		assert.Equal(t, 1, systems)
		assert.Equal(t, 2, users)
	})
}

func TestRootCmd_Logs(t *testing.T) {
	t.Run("Should import JSON lines and list groups", func(t *testing.T) {
		dir := t.TempDir()
		dbPath := filepath.Join(dir, "logs.db")
		file := filepath.Join(dir, "events.jsonl")
		lines := `{"timestamp":"2026-03-10T11:59:00Z","level":"error","message":"boom"}
{"timestamp":"2026-03-10T11:58:00Z","message":"ok","log_group":"worker"}
`
		require.NoError(t, os.WriteFile(file, []byte(lines), 0o600))

		run := func(args ...string) string {
			root := RootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetArgs(append([]string{"--env-file", "", "--db", dbPath, "--log-level", "disabled"}, args...))
			require.NoError(t, root.ExecuteContext(t.Context()))
			return out.String()
		}

		assert.Contains(t, run("logs", "import", file, "--group", "payments"), "Imported 2 event(s)")
		groups := run("logs", "groups")
		assert.Contains(t, groups, "payments")
		assert.Contains(t, groups, "worker")
		filtered := run("logs", "groups", "--prefix", "work")
		assert.NotContains(t, filtered, "payments")
	})

	t.Run("Should migrate an empty database", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "fresh.db")
		root := RootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{"--env-file", "", "--db", dbPath, "--log-level", "disabled", "logs", "migrate"})
		require.NoError(t, root.ExecuteContext(t.Context()))
		assert.Contains(t, out.String(), "Schema is up to date")
		assert.FileExists(t, dbPath)
	})

	t.Run("Should fail on malformed input", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "bad.jsonl")
		require.NoError(t, os.WriteFile(file, []byte("{not json}\n"), 0o600))
		root := RootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetArgs([]string{
			"--env-file", "", "--db", filepath.Join(dir, "logs.db"), "--log-level", "disabled",
			"logs", "import", file, "--group", "api",
		})
		err := root.ExecuteContext(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
	})
}

func TestRootCmd_ConfigShow(t *testing.T) {
	t.Run("Should report CLI overrides as their source", func(t *testing.T) {
		root := RootCmd()
		var out bytes.Buffer
		root.SetOut(&out)
		root.SetArgs([]string{
			"--env-file", "", "--log-level", "disabled", "--max-iterations", "7",
			"config", "show", "--format", "json", "--sources",
		})
		require.NoError(t, root.ExecuteContext(t.Context()))

		var decoded struct {
			Config  config.Config                `json:"config"`
			Sources map[string]config.SourceType `json:"sources"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
		assert.Equal(t, 7, decoded.Config.Orchestrator.MaxToolIterations)
		assert.Equal(t, config.SourceCLI, decoded.Sources["orchestrator.max_tool_iterations"])
		assert.Equal(t, config.SourceDefault, decoded.Sources["orchestrator.max_retry_attempts"])
	})

	t.Run("Should render a redacted table", func(t *testing.T) {
		cfg := config.Default()
		cfg.LLM.APIKey = "sk-secret"
		var out bytes.Buffer
		require.NoError(t, formatConfigOutput(&out, cfg, nil, "table", false))
		assert.Contains(t, out.String(), "llm.api_key")
		assert.Contains(t, out.String(), "[REDACTED]")
		assert.NotContains(t, out.String(), "sk-secret")
	})
}

func TestOrchestratorConfig(t *testing.T) {
	t.Run("Should carry loop and sampling settings", func(t *testing.T) {
		cfg := config.Default()
		cfg.Orchestrator.MaxRetryAttempts = 0
		cfg.Orchestrator.IntentDetectionEnabled = false
		cfg.LLM.Temperature = 0.7
		cfg.LLM.MaxTokens = 512
		oc := orchestratorConfig(cfg)
		assert.Equal(t, 0, oc.MaxRetryAttempts)
		assert.False(t, oc.IntentDetectionEnabled)
		assert.Equal(t, 0.7, oc.Temperature)
		assert.Equal(t, int32(512), oc.MaxTokens)
		require.NoError(t, oc.Validate())
	})
}

func TestIsPathWithinDirectory(t *testing.T) {
	t.Run("Should accept nested paths and reject escapes", func(t *testing.T) {
		dir := t.TempDir()
		assert.True(t, isPathWithinDirectory(filepath.Join(dir, ".env"), dir))
		assert.True(t, isPathWithinDirectory(dir, dir))
		assert.False(t, isPathWithinDirectory(filepath.Join(dir, "..", ".env"), dir))
	})
}
