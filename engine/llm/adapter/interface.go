package llmadapter

import (
	"context"
	"fmt"
)

// Role constants for message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// LLMRequest represents a request to the LLM, independent of provider.
type LLMRequest struct {
	Messages []Message
	Tools    []ToolDefinition
	Options  CallOptions
}

// Message represents a conversation message
type Message struct {
	Role    string
	Content string
	// ToolCallID correlates a tool message with the request that produced it.
	ToolCallID string
	// ToolName is the tool that produced a tool message.
	ToolName string
	// ToolCalls carries the tool calls emitted by the assistant.
	// Constraint: only messages with Role == "assistant" may contain ToolCalls.
	ToolCalls []ToolCall
}

// ToolDefinition represents a tool available to the LLM
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// StreamFunc receives assistant text as it is generated.
type StreamFunc func(ctx context.Context, chunk string) error

// CallOptions represents options for the LLM call
type CallOptions struct {
	Temperature float64
	MaxTokens   int32
	ToolChoice  string // "auto", "none", or specific tool name
	// Stream, when set, switches the call to streaming mode.
	Stream StreamFunc
}

// LLMResponse represents the response from the LLM
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// HasToolCalls reports whether the model requested at least one tool call.
func (r *LLMResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ToolCall represents a tool invocation request from the LLM.
// Arguments is the raw text emitted by the model and may not be valid JSON.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the main interface for LLM interactions
type LLMClient interface {
	// GenerateContent sends a request to the LLM and returns a response.
	// Failures must be reported as *Error so callers can tell them apart.
	GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error)
	// Close cleans up any resources held by the client
	Close() error
}

// ValidateConversation asserts role-specific constraints for messages:
// only assistant messages may contain ToolCalls and every tool message must
// reference a tool call id.
func ValidateConversation(messages []Message) error {
	for i, m := range messages {
		if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
			return fmt.Errorf("message[%d] role %q cannot contain ToolCalls", i, m.Role)
		}
		if m.Role == RoleTool && m.ToolCallID == "" {
			return fmt.Errorf("message[%d] tool message is missing tool_call_id", i)
		}
	}
	return nil
}
