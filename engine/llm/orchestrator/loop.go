package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/compozy/logscout/engine/core"
	llmadapter "github.com/compozy/logscout/engine/llm/adapter"
	"github.com/compozy/logscout/pkg/logger"
)

const (
	nudgeIntent   = "intent"
	nudgeGivingUp = "giving_up"

	outcomeAnswered     = "answered"
	outcomeLimitReached = "limit_reached"
	outcomeLLMError     = "llm_error"
)

// turn holds the state scoped to a single Respond call.
type turn struct {
	state    *RetryState
	messages []Message
	result   *TurnResult
	stream   llmadapter.StreamFunc
}

// correction is a corrective system message chosen by self-direction.
type correction struct {
	text      string
	reason    string
	toolName  string
	arguments map[string]any
	signature string
	empty     bool
}

func (o *Orchestrator) run(
	ctx context.Context,
	userMessage string,
	history []Message,
	stream llmadapter.StreamFunc,
) (*TurnResult, error) {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	log := logger.FromContext(ctx)
	t := o.newTurn(userMessage, history, stream)
	maxIterations := o.cfg.MaxToolIterations
	for iteration := 1; iteration <= maxIterations; iteration++ {
		t.result.Iterations = iteration
		stream, pending := o.streamFor(t)
		resp, err := o.client.GenerateContent(ctx, &llmadapter.LLMRequest{
			Messages: slices.Clone(t.messages),
			Tools:    o.catalog,
			Options: llmadapter.CallOptions{
				Temperature: o.cfg.Temperature,
				MaxTokens:   o.cfg.MaxTokens,
				Stream:      stream,
			},
		})
		o.metrics.observeLLMCall(err)
		if err != nil {
			log.Error("LLM call failed", "iteration", iteration, "error", core.RedactError(err))
			o.metrics.observeTurn(outcomeLLMError, iteration)
			return nil, &LLMFailure{Iteration: iteration, Err: err}
		}
		t.result.addUsage(resp.Usage)
		o.metrics.observeUsage(resp.Usage)
		if !resp.HasToolCalls() {
			t.messages = append(t.messages, Message{Role: llmadapter.RoleAssistant, Content: resp.Content})
			if c := o.reviewAnswer(ctx, t, resp.Content); c != nil {
				o.applyNudge(ctx, t, c)
				continue
			}
			if err := pending.flush(ctx, t.stream); err != nil {
				return nil, fmt.Errorf("deliver streamed answer: %w", err)
			}
			log.Debug("Turn answered", "iterations", iteration, "retry_prompts", t.result.RetryPrompts,
				"nudges", t.result.Nudges)
			return o.finish(t, resp.Content, outcomeAnswered), nil
		}
		o.processToolCalls(ctx, t, resp)
	}

	log.Warn("Tool iteration limit reached", "max_tool_iterations", maxIterations)
	text := fmt.Sprintf(
		"I reached the limit of %d iterations before finishing this answer. "+
			"Try a narrower question or ask me to continue.",
		maxIterations,
	)
	t.messages = append(t.messages, Message{Role: llmadapter.RoleAssistant, Content: text})
	t.result.LimitReached = true
	return o.finish(t, text, outcomeLimitReached), nil
}

// streamFor picks the stream for one LLM call. While a nudge is still
// possible the chunks are held back, so text that self-direction rejects
// never reaches the caller; the buffer is flushed only for the accepted
// answer and dropped otherwise, tool-call preambles included.
func (o *Orchestrator) streamFor(t *turn) (llmadapter.StreamFunc, *streamBuffer) {
	if t.stream == nil {
		return nil, nil
	}
	if !o.cfg.IntentDetectionEnabled || !t.state.ShouldRetry(o.cfg.MaxRetryAttempts) {
		return t.stream, nil
	}
	buf := &streamBuffer{}
	return buf.write, buf
}

// streamBuffer collects chunks of a single LLM call.
type streamBuffer struct {
	chunks strings.Builder
}

func (b *streamBuffer) write(_ context.Context, chunk string) error {
	b.chunks.WriteString(chunk)
	return nil
}

// flush is a no-op on a nil buffer, which means the chunks went out live.
func (b *streamBuffer) flush(ctx context.Context, stream llmadapter.StreamFunc) error {
	if b == nil || stream == nil || b.chunks.Len() == 0 {
		return nil
	}
	return stream(ctx, b.chunks.String())
}

// newTurn lays out the prompt: system prompt, queued context injections,
// prior history, then the new user message.
func (o *Orchestrator) newTurn(userMessage string, history []Message, stream llmadapter.StreamFunc) *turn {
	injected := o.takeInjected()
	messages := make([]Message, 0, len(history)+len(injected)+2)
	messages = append(messages, Message{Role: llmadapter.RoleSystem, Content: o.systemPrompt})
	for _, text := range injected {
		messages = append(messages, Message{Role: llmadapter.RoleSystem, Content: text})
	}
	messages = append(messages, history...)
	messages = append(messages, Message{Role: llmadapter.RoleUser, Content: userMessage})
	return &turn{
		state:    NewRetryState(),
		messages: messages,
		result:   &TurnResult{},
		stream:   stream,
	}
}

func (o *Orchestrator) finish(t *turn, text, outcome string) *TurnResult {
	t.result.Text = text
	t.result.Messages = slices.Clone(t.messages[1:])
	o.metrics.observeTurn(outcome, t.result.Iterations)
	return t.result
}

func (o *Orchestrator) processToolCalls(ctx context.Context, t *turn, resp *llmadapter.LLMResponse) {
	calls := ensureToolCallIDs(resp.ToolCalls)
	t.messages = append(t.messages, Message{
		Role:      llmadapter.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: calls,
	})
	outcomes := o.executor.Execute(ctx, calls)
	results := make([]ToolCallResult, len(outcomes))
	for i := range outcomes {
		out := &outcomes[i]
		t.messages = append(t.messages, out.message)
		t.result.ToolCalls = append(t.result.ToolCalls, out.record)
		results[i] = out.result
		if out.result.Arguments != nil {
			t.state.ObserveCall(out.result.ToolName, out.result.Arguments)
		}
	}
	if c := o.reviewResults(ctx, t, results); c != nil {
		o.applyRetry(ctx, t, c)
	}
}

// reviewAnswer decides whether a text-only response must be sent back:
// first for stated-but-unexecuted intent, then for premature giving-up.
func (o *Orchestrator) reviewAnswer(ctx context.Context, t *turn, text string) *correction {
	return o.guard(ctx, "answer_review", func() (*correction, error) {
		if !o.cfg.IntentDetectionEnabled || !t.state.ShouldRetry(o.cfg.MaxRetryAttempts) {
			return nil, nil
		}
		intent := o.detector.DetectIntent(text)
		if intent.Actionable(o.cfg.IntentConfidenceThreshold) {
			prompt, err := o.prompts.Generate(t.state, RetryRequest{Trigger: TriggerIntent, Intent: intent})
			if err != nil {
				return nil, err
			}
			return newCorrection(prompt, nudgeIntent), nil
		}
		if !o.detector.DetectGivingUp(text) {
			return nil, nil
		}
		prompt, err := o.prompts.Generate(t.state, RetryRequest{Trigger: TriggerGivingUp})
		if err != nil {
			return nil, err
		}
		if prompt.Exhausted {
			return nil, nil
		}
		return newCorrection(prompt, nudgeGivingUp), nil
	})
}

// reviewResults asks for a retry prompt when the batch came back empty or
// hit a not-found error and attempts remain.
func (o *Orchestrator) reviewResults(ctx context.Context, t *turn, results []ToolCallResult) *correction {
	return o.guard(ctx, "result_review", func() (*correction, error) {
		if !o.cfg.AutoRetryEnabled || !t.state.ShouldRetry(o.cfg.MaxRetryAttempts) {
			return nil, nil
		}
		analysis := o.analyzer.Analyze(results)
		if !analysis.ShouldRetry || analysis.TriggerIndex < 0 || analysis.TriggerIndex >= len(results) {
			return nil, nil
		}
		trigger := results[analysis.TriggerIndex]
		prompt, err := o.prompts.Generate(t.state, RetryRequest{
			Trigger:   triggerFor(analysis.Reason),
			ToolName:  trigger.ToolName,
			Arguments: trigger.Arguments,
			Detail:    trigger.Error,
		})
		if err != nil {
			return nil, err
		}
		c := newCorrection(prompt, string(analysis.Reason))
		c.toolName = trigger.ToolName
		c.arguments = trigger.Arguments
		c.empty = analysis.Reason == ReasonEmpty || analysis.Reason == ReasonPartial
		return c, nil
	})
}

func newCorrection(prompt RetryPrompt, reason string) *correction {
	c := &correction{text: prompt.Text, reason: reason}
	if prompt.Suggestion != nil {
		c.signature = prompt.Suggestion.Signature()
	}
	return c
}

func triggerFor(reason ResultReason) RetryTrigger {
	switch reason {
	case ReasonNotFound:
		return TriggerNotFound
	case ReasonPartial:
		return TriggerPartial
	default:
		return TriggerEmpty
	}
}

func (o *Orchestrator) applyNudge(ctx context.Context, t *turn, c *correction) {
	t.messages = append(t.messages, Message{Role: llmadapter.RoleSystem, Content: c.text})
	t.state.RecordAttempt("", nil, c.signature)
	t.result.Nudges++
	o.metrics.observeNudge(c.reason)
	logger.FromContext(ctx).Info("Nudging LLM", "kind", c.reason, "attempt", t.state.Attempts,
		"max_retry_attempts", o.cfg.MaxRetryAttempts)
}

func (o *Orchestrator) applyRetry(ctx context.Context, t *turn, c *correction) {
	t.messages = append(t.messages, Message{Role: llmadapter.RoleSystem, Content: c.text})
	t.state.RecordAttempt(c.toolName, c.arguments, c.signature)
	if c.empty {
		t.state.EmptyResultCount++
	}
	t.result.RetryPrompts++
	o.metrics.observeRetryPrompt(c.reason)
	logger.FromContext(ctx).Info("Injected retry prompt", "reason", c.reason, "tool_name", c.toolName,
		"attempt", t.state.Attempts, "max_retry_attempts", o.cfg.MaxRetryAttempts)
}

// guard runs a self-direction step. Errors and panics are logged and
// treated as "no correction".
func (o *Orchestrator) guard(ctx context.Context, stage string, fn func() (*correction, error)) (c *correction) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Self-direction failed", "stage", stage, "error", newSelfDirectionError(stage, r))
			c = nil
		}
	}()
	var err error
	c, err = fn()
	if err != nil {
		log.Warn("Self-direction failed", "stage", stage, "error", core.RedactError(err))
		return nil
	}
	return c
}
