package orchestrator

import (
	"context"
	"encoding/json"

	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
)

// Message is one entry of the conversation history.
type Message = llmadapter.Message

// RegistryTool is a callable read-only tool.
type RegistryTool interface {
	Name() string
	Description() string
	ParameterSchema() map[string]any
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolRegistry resolves tools by name and exposes the schema catalogue.
type ToolRegistry interface {
	Find(ctx context.Context, name string) (RegistryTool, bool)
	ListAll(ctx context.Context) ([]RegistryTool, error)
}

// ToolCallResult is the outcome of one tool-call request. Exactly one is
// produced per request.
type ToolCallResult struct {
	RequestID string
	ToolName  string
	Arguments map[string]any
	Success   bool
	Payload   json.RawMessage
	Error     string
}

// TurnResult is everything one Respond call produced.
type TurnResult struct {
	// Text is the final answer handed to the user.
	Text string
	// Messages is the conversation after the turn, without the system prompt.
	Messages     []Message
	ToolCalls    []ToolCallRecord
	Iterations   int
	RetryPrompts int
	Nudges       int
	LimitReached bool
	// Usage sums the token counts the provider reported for this turn.
	Usage llmadapter.Usage
}

func (r *TurnResult) addUsage(u *llmadapter.Usage) {
	if u == nil {
		return
	}
	r.Usage.PromptTokens += u.PromptTokens
	r.Usage.CompletionTokens += u.CompletionTokens
	r.Usage.TotalTokens += u.TotalTokens
}
