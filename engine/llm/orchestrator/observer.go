package orchestrator

import (
	"context"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/compozy/logscout/engine/core"
	"github.com/compozy/logscout/pkg/logger"
)

// ToolCallObserver is notified after every tool-call state transition.
// Returned errors are logged and never abort the turn.
type ToolCallObserver interface {
	OnToolCall(ctx context.Context, record ToolCallRecord) error
}

type funcObserver struct {
	fn func(ctx context.Context, record ToolCallRecord) error
}

func (f *funcObserver) OnToolCall(ctx context.Context, record ToolCallRecord) error {
	return f.fn(ctx, record)
}

// ObserverFunc adapts a function. Keep the returned value to remove it later.
func ObserverFunc(fn func(ctx context.Context, record ToolCallRecord) error) ToolCallObserver {
	return &funcObserver{fn: fn}
}

// notifier broadcasts records to registered observers. Deliveries are
// serialized so an observer never sees two calls at once, even while tools
// run concurrently.
type notifier struct {
	mu        sync.Mutex
	deliverMu sync.Mutex
	observers []ToolCallObserver
}

func (n *notifier) add(o ToolCallObserver) {
	if o == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if slices.ContainsFunc(n.observers, func(existing ToolCallObserver) bool { return sameObserver(existing, o) }) {
		return
	}
	n.observers = append(n.observers, o)
}

func (n *notifier) remove(o ToolCallObserver) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	idx := slices.IndexFunc(n.observers, func(existing ToolCallObserver) bool { return sameObserver(existing, o) })
	if idx < 0 {
		return false
	}
	n.observers = slices.Delete(n.observers, idx, idx+1)
	return true
}

// sameObserver compares by identity. Values of non-comparable dynamic types
// never match, so each registration of one is kept and cannot be removed.
func sameObserver(a, b ToolCallObserver) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func (n *notifier) snapshot() []ToolCallObserver {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.observers)
}

func (n *notifier) publish(ctx context.Context, record ToolCallRecord) {
	observers := n.snapshot()
	if len(observers) == 0 {
		return
	}
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()
	for _, o := range observers {
		deliver(ctx, o, record)
	}
}

func deliver(ctx context.Context, o ToolCallObserver, record ToolCallRecord) {
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool call observer panicked", "tool_call_id", record.ID, "status", string(record.Status),
				"panic", r)
		}
	}()
	if err := o.OnToolCall(ctx, record); err != nil {
		log.Warn("Tool call observer failed", "tool_call_id", record.ID, "status", string(record.Status),
			"error", core.RedactError(err))
	}
}

// ChannelObserver forwards records onto a buffered channel so a consumer in
// another goroutine (a UI event loop, for instance) receives them without
// being called directly. Sends never block: when the buffer is full the
// record is dropped and counted in Dropped, so a slow consumer can miss
// transitions, including terminal ones. Size the buffer for the expected
// number of transitions per turn (three per tool call), or register an
// observer that blocks when every record must be seen.
type ChannelObserver struct {
	mu      sync.RWMutex
	ch      chan ToolCallRecord
	closed  bool
	dropped atomic.Int64
}

func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelObserver{ch: make(chan ToolCallRecord, buffer)}
}

func (c *ChannelObserver) OnToolCall(_ context.Context, record ToolCallRecord) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- record:
	default:
		c.dropped.Add(1)
	}
	return nil
}

// Records returns the receive side. It is closed by Close.
func (c *ChannelObserver) Records() <-chan ToolCallRecord { return c.ch }

func (c *ChannelObserver) Dropped() int64 { return c.dropped.Load() }

func (c *ChannelObserver) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
