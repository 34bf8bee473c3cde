package llmadapter

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts langchaingo to our LLMClient interface
type LangChainAdapter struct {
	model    llms.Model
	provider string
	parser   *ErrorParser
}

// NewLangChainAdapter wraps an already constructed langchaingo model.
func NewLangChainAdapter(model llms.Model, provider string) *LangChainAdapter {
	return &LangChainAdapter{
		model:    model,
		provider: provider,
		parser:   NewErrorParser(provider),
	}
}

// GenerateContent implements LLMClient interface
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if req == nil {
		return nil, NewErrorWithCode(ErrCodeBadRequest, "request must not be nil", a.provider, nil)
	}
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, NewErrorWithCode(ErrCodeBadRequest, err.Error(), a.provider, err)
	}
	messages := a.convertMessages(req)
	options := a.buildCallOptions(req)
	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, a.parser.Parse(err)
	}
	return a.convertResponse(response)
}

// Close implements LLMClient; langchaingo models hold no resources.
func (a *LangChainAdapter) Close() error { return nil }

func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			parts := make([]llms.ContentPart, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
		case RoleTool:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.ToolName,
					Content:    msg.Content,
				}},
			})
		default:
			messages = append(messages, llms.TextParts(mapMessageRole(msg.Role), msg.Content))
		}
	}
	return messages
}

func mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	case RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	var options []llms.CallOption
	if req.Options.Temperature > 0 {
		options = append(options, llms.WithTemperature(req.Options.Temperature))
	}
	if req.Options.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(int(req.Options.MaxTokens)))
	}
	if len(req.Tools) > 0 {
		options = append(options, llms.WithTools(convertTools(req.Tools)))
		if req.Options.ToolChoice != "" {
			options = append(options, llms.WithToolChoice(req.Options.ToolChoice))
		}
	}
	if stream := req.Options.Stream; stream != nil {
		options = append(options, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			return stream(ctx, string(chunk))
		}))
	}
	return options
}

func convertTools(tools []ToolDefinition) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return out
}

// convertResponse merges every choice: some providers return text and each
// tool_use block as separate choices.
func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, NewErrorWithCode(ErrCodeEmptyResponse, "empty response from LLM", a.provider, nil)
	}
	var text strings.Builder
	out := &LLMResponse{}
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		text.WriteString(choice.Content)
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			})
		}
		if len(choice.ToolCalls) == 0 && choice.FuncCall != nil {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				Name:      choice.FuncCall.Name,
				Arguments: choice.FuncCall.Arguments,
			})
		}
		if usage := usageFromGenerationInfo(choice.GenerationInfo); usage != nil {
			out.Usage = usage
		}
	}
	out.Content = text.String()
	return out, nil
}

func usageFromGenerationInfo(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	prompt, okPrompt := firstInt(info, "PromptTokens", "InputTokens")
	completion, okCompletion := firstInt(info, "CompletionTokens", "OutputTokens")
	if !okPrompt && !okCompletion {
		return nil
	}
	total, ok := asInt(info["TotalTokens"])
	if !ok {
		total = prompt + completion
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

// firstInt reads the first present key; providers name token counters differently.
func firstInt(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if n, ok := asInt(info[k]); ok {
			return n, true
		}
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
