package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/looplab/fsm"
	"github.com/tidwall/gjson"
)

// ToolCallStatus is the lifecycle state of a tool call.
type ToolCallStatus string

const (
	StatusPending ToolCallStatus = "pending"
	StatusRunning ToolCallStatus = "running"
	StatusSuccess ToolCallStatus = "success"
	StatusError   ToolCallStatus = "error"
)

const (
	eventStart   = "start"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

const maxSummaryLength = 120

// ToolCallRecord describes one tool invocation. Observers receive copies;
// a record is never changed after it has been published.
type ToolCallRecord struct {
	ID            string
	ToolName      string
	Arguments     map[string]any
	RawArguments  string
	Status        ToolCallStatus
	ResultSummary string
	StartedAt     time.Time
	CompletedAt   *time.Time
	Error         string
}

func (r ToolCallRecord) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusError
}

// Duration is zero until the record reaches a terminal state.
func (r ToolCallRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r ToolCallRecord) clone() ToolCallRecord {
	out := r
	out.Arguments = maps.Clone(r.Arguments)
	if r.CompletedAt != nil {
		completed := *r.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// toolCallTracker owns a single record and drives it through
// PENDING -> RUNNING -> {SUCCESS | ERROR}. Parse and lookup failures move
// straight from PENDING to ERROR.
type toolCallTracker struct {
	machine  *fsm.FSM
	record   ToolCallRecord
	notifier *notifier
	now      func() time.Time
}

func newToolCallTracker(
	ctx context.Context,
	id, toolName, rawArgs string,
	n *notifier,
	now func() time.Time,
) *toolCallTracker {
	t := &toolCallTracker{
		record: ToolCallRecord{
			ID:           id,
			ToolName:     toolName,
			RawArguments: rawArgs,
			Status:       StatusPending,
			StartedAt:    now(),
		},
		notifier: n,
		now:      now,
	}
	t.machine = fsm.NewFSM(
		string(StatusPending),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StatusPending)}, Dst: string(StatusRunning)},
			{Name: eventSucceed, Src: []string{string(StatusRunning)}, Dst: string(StatusSuccess)},
			{Name: eventFail, Src: []string{string(StatusPending), string(StatusRunning)}, Dst: string(StatusError)},
		},
		fsm.Callbacks{
			"enter_state": func(cbCtx context.Context, e *fsm.Event) {
				t.record.Status = ToolCallStatus(e.Dst)
				if t.record.Terminal() {
					completed := t.now()
					t.record.CompletedAt = &completed
				}
				t.publish(cbCtx)
			},
		},
	)
	t.publish(ctx)
	return t
}

func (t *toolCallTracker) setArguments(args map[string]any) {
	t.record.Arguments = maps.Clone(args)
}

func (t *toolCallTracker) start(ctx context.Context) error {
	t.record.StartedAt = t.now()
	return t.fire(ctx, eventStart)
}

func (t *toolCallTracker) succeed(ctx context.Context, payload json.RawMessage) error {
	t.record.ResultSummary = summarizePayload(payload)
	return t.fire(ctx, eventSucceed)
}

func (t *toolCallTracker) fail(ctx context.Context, message string) error {
	t.record.Error = message
	t.record.ResultSummary = truncate(message, maxSummaryLength)
	return t.fire(ctx, eventFail)
}

// fire detaches from cancellation: a call that already ran must still reach
// a terminal state after the turn context is canceled.
func (t *toolCallTracker) fire(ctx context.Context, event string) error {
	if err := t.machine.Event(context.WithoutCancel(ctx), event); err != nil {
		return fmt.Errorf("tool call %s: %w", t.record.ID, err)
	}
	return nil
}

func (t *toolCallTracker) snapshot() ToolCallRecord {
	return t.record.clone()
}

func (t *toolCallTracker) publish(ctx context.Context) {
	if t.notifier == nil {
		return
	}
	t.notifier.publish(ctx, t.record.clone())
}

func summarizePayload(payload json.RawMessage) string {
	if len(payload) == 0 {
		return "no payload"
	}
	parsed := gjson.ParseBytes(payload)
	if parsed.IsObject() {
		if count := parsed.Get("count"); count.Exists() {
			return fmt.Sprintf("count=%d", count.Int())
		}
	}
	if parsed.IsArray() {
		return fmt.Sprintf("%d items", len(parsed.Array()))
	}
	return truncate(string(payload), maxSummaryLength)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
