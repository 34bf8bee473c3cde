package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/compozy/logscout/engine/core"
	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
)

const (
	ErrCodeInvalidConfig  = "INVALID_CONFIGURATION"
	ErrCodeLLMGeneration  = "LLM_GENERATION_ERROR"
	ErrCodeToolNotFound   = "TOOL_NOT_FOUND"
	ErrCodeToolInput      = "TOOL_INVALID_INPUT"
	ErrCodeToolExecution  = "TOOL_EXECUTION_ERROR"
	ErrCodeSelfDirection  = "SELF_DIRECTION_ERROR"
	ErrCodeToolDefinition = "TOOL_DEFINITIONS_ERROR"
)

// LLMFailure is the typed turn failure returned when the LLM collaborator
// errors. The turn is aborted; no retry happens at this level.
type LLMFailure struct {
	Iteration int
	Err       error
}

func (f *LLMFailure) Error() string {
	return fmt.Sprintf("llm call failed on iteration %d: %v", f.Iteration, f.Err)
}

func (f *LLMFailure) Unwrap() error { return f.Err }

// Code returns the adapter error code when the failure carries one.
func (f *LLMFailure) Code() llmadapter.ErrorCode {
	if llmErr, ok := llmadapter.IsLLMError(f.Err); ok {
		return llmErr.Code
	}
	return llmadapter.ErrCodeTransport
}

// IsLLMFailure unwraps err into *LLMFailure.
func IsLLMFailure(err error) (*LLMFailure, bool) {
	var failure *LLMFailure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

// ToolError is the payload reported back to the LLM when a tool call fails.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type toolErrorEnvelope struct {
	Success bool      `json:"success"`
	Error   ToolError `json:"error"`
}

func toolErrorContent(code, message string) string {
	b, err := json.Marshal(toolErrorEnvelope{Error: ToolError{Code: code, Message: message}})
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":{"code":%q}}`, code)
	}
	return string(b)
}

func newConfigError(field string, value any, reason string) error {
	return core.NewError(
		fmt.Errorf("invalid %s: %s", field, reason),
		ErrCodeInvalidConfig,
		map[string]any{"field": field, "value": value},
	)
}

func newSelfDirectionError(stage string, recovered any) error {
	return core.NewError(
		fmt.Errorf("%s panicked: %v", stage, recovered),
		ErrCodeSelfDirection,
		map[string]any{"stage": stage},
	)
}
