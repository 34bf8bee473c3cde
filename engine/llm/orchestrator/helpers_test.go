package orchestrator

import (
	"context"
	"sync"
	"testing"

	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/stretchr/testify/require"
)

type stubToolRegistry struct {
	tools map[string]RegistryTool
	order []string
}

func newStubToolRegistry(tools ...RegistryTool) *stubToolRegistry {
	r := &stubToolRegistry{tools: make(map[string]RegistryTool)}
	for _, t := range tools {
		r.register(t)
	}
	return r
}

func (s *stubToolRegistry) Find(_ context.Context, name string) (RegistryTool, bool) {
	t, ok := s.tools[name]
	return t, ok
}

func (s *stubToolRegistry) ListAll(context.Context) ([]RegistryTool, error) {
	values := make([]RegistryTool, 0, len(s.order))
	for _, name := range s.order {
		values = append(values, s.tools[name])
	}
	return values, nil
}

func (s *stubToolRegistry) register(t RegistryTool) {
	if _, ok := s.tools[t.Name()]; !ok {
		s.order = append(s.order, t.Name())
	}
	s.tools[t.Name()] = t
}

type fnTool struct {
	name   string
	call   func(ctx context.Context, args map[string]any) (any, error)
	params map[string]any
}

func (f *fnTool) Name() string                    { return f.name }
func (f *fnTool) Description() string             { return "test tool " + f.name }
func (f *fnTool) ParameterSchema() map[string]any { return f.params }
func (f *fnTool) Call(ctx context.Context, args map[string]any) (any, error) {
	return f.call(ctx, args)
}

type scriptedLLM struct {
	mu        sync.Mutex
	responses []*llmadapter.LLMResponse
	handler   func(call int, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error)
	requests  []*llmadapter.LLMRequest
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *llmadapter.LLMRequest) (*llmadapter.LLMResponse, error) {
	s.mu.Lock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	var (
		resp *llmadapter.LLMResponse
		err  error
	)
	switch {
	case s.handler != nil:
		resp, err = s.handler(idx, req)
	case idx < len(s.responses):
		resp = s.responses[idx]
	default:
		resp = textResponse("done")
	}
	if err != nil {
		return nil, err
	}
	if req.Options.Stream != nil && resp.Content != "" {
		if err := req.Options.Stream(ctx, resp.Content); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedLLM) request(i int) *llmadapter.LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func textResponse(text string) *llmadapter.LLMResponse {
	return &llmadapter.LLMResponse{Content: text}
}

func toolResponse(calls ...llmadapter.ToolCall) *llmadapter.LLMResponse {
	return &llmadapter.LLMResponse{ToolCalls: calls}
}

func toolCall(id, name, args string) llmadapter.ToolCall {
	return llmadapter.ToolCall{ID: id, Name: name, Arguments: args}
}

type recordingObserver struct {
	mu      sync.Mutex
	records []ToolCallRecord
}

func (r *recordingObserver) OnToolCall(_ context.Context, record ToolCallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *recordingObserver) statuses(id string) []ToolCallStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ToolCallStatus
	for _, rec := range r.records {
		if rec.ID == id {
			out = append(out, rec.Status)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrentTools = 2
	return cfg
}

func newTestOrchestrator(
	t *testing.T,
	client llmadapter.LLMClient,
	registry ToolRegistry,
	cfg Config,
	opts ...Option,
) *Orchestrator {
	t.Helper()
	o, err := New(t.Context(), client, registry, cfg, opts...)
	require.NoError(t, err)
	return o
}

func lastMessage(req *llmadapter.LLMRequest) Message {
	return req.Messages[len(req.Messages)-1]
}

func systemMessages(msgs []Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Role == llmadapter.RoleSystem {
			out = append(out, m.Content)
		}
	}
	return out
}
