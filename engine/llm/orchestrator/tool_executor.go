package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/compozy/logscout/engine/core"
	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/compozy/logscout/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// toolOutcome bundles everything one dispatch produced.
type toolOutcome struct {
	result  ToolCallResult
	record  ToolCallRecord
	message Message
}

type toolExecutor struct {
	registry      ToolRegistry
	maxConcurrent int
	notifier      *notifier
	now           func() time.Time
}

func newToolExecutor(registry ToolRegistry, maxConcurrent int, n *notifier, now func() time.Time) *toolExecutor {
	return &toolExecutor{
		registry:      registry,
		maxConcurrent: max(maxConcurrent, 1),
		notifier:      n,
		now:           now,
	}
}

// Execute dispatches calls concurrently and returns outcomes in request
// order regardless of completion order. It never fails: every problem is
// reported through the outcome of the affected call.
func (e *toolExecutor) Execute(ctx context.Context, calls []llmadapter.ToolCall) []toolOutcome {
	if len(calls) == 0 {
		return nil
	}
	log := logger.FromContext(ctx)
	log.Debug("Executing tool calls", "tool_calls_count", len(calls), "tools", extractToolNames(calls))

	trackers := make([]*toolCallTracker, len(calls))
	for i, call := range calls {
		trackers[i] = newToolCallTracker(ctx, call.ID, call.Name, call.Arguments, e.notifier, e.now)
	}

	outcomes := make([]toolOutcome, len(calls))
	var g errgroup.Group
	g.SetLimit(e.maxConcurrent)
	for i := range calls {
		g.Go(func() error {
			outcomes[i] = e.executeSingle(ctx, calls[i], trackers[i])
			return nil
		})
	}
	_ = g.Wait() // executeSingle never returns an error

	log.Debug("All tool calls completed", "results_count", len(outcomes),
		"successful_count", countSuccessful(outcomes))
	return outcomes
}

func (e *toolExecutor) executeSingle(
	ctx context.Context,
	call llmadapter.ToolCall,
	tracker *toolCallTracker,
) toolOutcome {
	log := logger.FromContext(ctx).With("tool_name", call.Name, "tool_call_id", call.ID)
	result := ToolCallResult{RequestID: call.ID, ToolName: call.Name}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		log.Debug("Malformed tool arguments", "error", err)
		msg := fmt.Sprintf("invalid arguments for tool %s: %v", call.Name, err)
		return e.failed(ctx, tracker, result, ErrCodeToolInput, msg)
	}
	result.Arguments = args
	tracker.setArguments(args)

	tool, found := e.registry.Find(ctx, call.Name)
	if !found || tool == nil {
		log.Debug("Tool not found")
		return e.failed(ctx, tracker, result, ErrCodeToolNotFound, fmt.Sprintf("tool not found: %s", call.Name))
	}
	if err := ctx.Err(); err != nil {
		return e.failed(ctx, tracker, result, ErrCodeToolExecution, fmt.Sprintf("tool call canceled: %v", err))
	}
	if err := tracker.start(ctx); err != nil {
		log.Error("Tool call lifecycle error", "error", err)
	}

	payload, err := invokeTool(ctx, tool, args)
	if err != nil {
		log.Debug("Tool execution failed", "error", core.RedactError(err))
		return e.failed(ctx, tracker, result, ErrCodeToolExecution, core.RedactText(err.Error()))
	}
	result.Success = true
	result.Payload = payload
	if err := tracker.succeed(ctx, payload); err != nil {
		log.Error("Tool call lifecycle error", "error", err)
	}
	log.Debug("Tool execution succeeded")
	return toolOutcome{
		result: result,
		record: tracker.snapshot(),
		message: Message{
			Role:       llmadapter.RoleTool,
			Content:    string(payload),
			ToolCallID: call.ID,
			ToolName:   call.Name,
		},
	}
}

func (e *toolExecutor) failed(
	ctx context.Context,
	tracker *toolCallTracker,
	result ToolCallResult,
	code, message string,
) toolOutcome {
	result.Success = false
	result.Error = message
	if err := tracker.fail(ctx, message); err != nil {
		logger.FromContext(ctx).Error("Tool call lifecycle error", "tool_call_id", result.RequestID, "error", err)
	}
	return toolOutcome{
		result: result,
		record: tracker.snapshot(),
		message: Message{
			Role:       llmadapter.RoleTool,
			Content:    toolErrorContent(code, message),
			ToolCallID: result.RequestID,
			ToolName:   result.ToolName,
		},
	}
}

// invokeTool calls the tool and encodes its payload, turning a panic into
// an error.
func invokeTool(ctx context.Context, tool RegistryTool, args map[string]any) (payload json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			payload, err = nil, fmt.Errorf("tool %s panicked: %v", tool.Name(), r)
		}
	}()
	out, err := tool.Call(ctx, args)
	if err != nil {
		return nil, err
	}
	return encodePayload(out)
}

func encodePayload(out any) (json.RawMessage, error) {
	switch v := out.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if json.Valid(v) {
			return v, nil
		}
		return json.Marshal(string(v))
	case []byte:
		if json.Valid(v) {
			return json.RawMessage(v), nil
		}
		return json.Marshal(string(v))
	case string:
		if json.Valid([]byte(v)) {
			return json.RawMessage(v), nil
		}
		return json.Marshal(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode tool output: %w", err)
		}
		return b, nil
	}
}

// parseArguments decodes the raw argument text. Blank input and JSON null
// mean "no arguments"; anything other than a JSON object is rejected.
func parseArguments(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// ensureToolCallIDs assigns ids to requests that arrived without one so
// tool messages can always be correlated.
func ensureToolCallIDs(calls []llmadapter.ToolCall) []llmadapter.ToolCall {
	out := make([]llmadapter.ToolCall, len(calls))
	seen := make(map[string]struct{}, len(calls))
	for i, call := range calls {
		if _, dup := seen[call.ID]; call.ID == "" || dup {
			call.ID = "call_" + uuid.NewString()
		}
		seen[call.ID] = struct{}{}
		out[i] = call
	}
	return out
}

func extractToolNames(calls []llmadapter.ToolCall) []string {
	names := make([]string, len(calls))
	for i, call := range calls {
		names[i] = call.Name
	}
	return names
}

func countSuccessful(outcomes []toolOutcome) int {
	n := 0
	for i := range outcomes {
		if outcomes[i].result.Success {
			n++
		}
	}
	return n
}
