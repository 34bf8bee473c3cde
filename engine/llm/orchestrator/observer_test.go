package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCallTracker(t *testing.T) {
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	t.Run("Should publish every transition", func(t *testing.T) {
		obs := &recordingObserver{}
		n := &notifier{}
		n.add(obs)
		tracker := newToolCallTracker(t.Context(), "c1", "fetch_logs", `{}`, n, now)
		require.NoError(t, tracker.start(t.Context()))
		require.NoError(t, tracker.succeed(t.Context(), []byte(`{"count":5}`)))

		assert.Equal(t, []ToolCallStatus{StatusPending, StatusRunning, StatusSuccess}, obs.statuses("c1"))
		final := tracker.snapshot()
		assert.True(t, final.Terminal())
		assert.Equal(t, "count=5", final.ResultSummary)
		assert.Equal(t, time.Second, final.Duration())
	})

	t.Run("Should refuse transitions out of a terminal state", func(t *testing.T) {
		tracker := newToolCallTracker(t.Context(), "c2", "fetch_logs", `{}`, nil, now)
		require.NoError(t, tracker.fail(t.Context(), "bad input"))
		assert.Error(t, tracker.start(t.Context()))
		assert.Equal(t, StatusError, tracker.snapshot().Status)
	})

	t.Run("Should reach a terminal state on a canceled context", func(t *testing.T) {
		obs := &recordingObserver{}
		n := &notifier{}
		n.add(obs)
		ctx, cancel := context.WithCancel(t.Context())
		tracker := newToolCallTracker(ctx, "c4", "fetch_logs", `{}`, n, now)
		require.NoError(t, tracker.start(ctx))
		cancel()
		require.NoError(t, tracker.succeed(ctx, []byte(`{"count":1}`)))
		assert.Equal(t, []ToolCallStatus{StatusPending, StatusRunning, StatusSuccess}, obs.statuses("c4"))

		failed := newToolCallTracker(ctx, "c5", "fetch_logs", `{}`, n, now)
		require.NoError(t, failed.fail(ctx, "tool call canceled"))
		assert.Equal(t, []ToolCallStatus{StatusPending, StatusError}, obs.statuses("c5"))
	})

	t.Run("Should hand observers independent copies", func(t *testing.T) {
		obs := &recordingObserver{}
		n := &notifier{}
		n.add(obs)
		tracker := newToolCallTracker(t.Context(), "c3", "fetch_logs", `{}`, n, now)
		tracker.setArguments(map[string]any{"log_group": "api"})
		require.NoError(t, tracker.start(t.Context()))
		obs.records[1].Arguments["log_group"] = "changed"
		assert.Equal(t, "api", tracker.snapshot().Arguments["log_group"])
	})
}

type failingObserver struct {
	panics bool
}

func (f *failingObserver) OnToolCall(context.Context, ToolCallRecord) error {
	if f.panics {
		panic("observer exploded")
	}
	return errors.New("observer failed")
}

// sliceObserver has a slice field, so its values cannot be compared with ==.
type sliceObserver struct {
	seen *[]string
	tags []string
}

func (s sliceObserver) OnToolCall(_ context.Context, record ToolCallRecord) error {
	*s.seen = append(*s.seen, record.ID)
	return nil
}

func TestNotifier(t *testing.T) {
	t.Run("Should keep delivering after observer failures", func(t *testing.T) {
		n := &notifier{}
		obs := &recordingObserver{}
		n.add(&failingObserver{})
		n.add(&failingObserver{panics: true})
		n.add(obs)
		n.publish(t.Context(), ToolCallRecord{ID: "x", Status: StatusPending})
		assert.Equal(t, []ToolCallStatus{StatusPending}, obs.statuses("x"))
	})

	t.Run("Should register by reference", func(t *testing.T) {
		n := &notifier{}
		obs := &recordingObserver{}
		n.add(obs)
		n.add(obs)
		assert.Len(t, n.snapshot(), 1)
		assert.True(t, n.remove(obs))
		assert.False(t, n.remove(obs))
		n.publish(t.Context(), ToolCallRecord{ID: "y"})
		assert.Empty(t, obs.statuses("y"))
	})

	t.Run("Should accept observers of non-comparable types", func(t *testing.T) {
		n := &notifier{}
		var seen []string
		obs := sliceObserver{seen: &seen, tags: []string{"a"}}
		require.NotPanics(t, func() {
			n.add(obs)
			n.add(obs)
			assert.False(t, n.remove(obs))
		})
		assert.Len(t, n.snapshot(), 2)
		n.publish(t.Context(), ToolCallRecord{ID: "v"})
		assert.Equal(t, []string{"v", "v"}, seen)
	})

	t.Run("Should support removable function observers", func(t *testing.T) {
		n := &notifier{}
		calls := 0
		fn := ObserverFunc(func(context.Context, ToolCallRecord) error {
			calls++
			return nil
		})
		n.add(fn)
		n.publish(t.Context(), ToolCallRecord{ID: "z"})
		assert.True(t, n.remove(fn))
		n.publish(t.Context(), ToolCallRecord{ID: "z"})
		assert.Equal(t, 1, calls)
	})
}

func TestChannelObserver(t *testing.T) {
	t.Run("Should forward records without blocking", func(t *testing.T) {
		ch := NewChannelObserver(1)
		require.NoError(t, ch.OnToolCall(t.Context(), ToolCallRecord{ID: "1"}))
		require.NoError(t, ch.OnToolCall(t.Context(), ToolCallRecord{ID: "2"}))
		assert.Equal(t, int64(1), ch.Dropped())
		got := <-ch.Records()
		assert.Equal(t, "1", got.ID)
	})

	t.Run("Should close the channel once", func(t *testing.T) {
		ch := NewChannelObserver(4)
		ch.Close()
		ch.Close()
		require.NoError(t, ch.OnToolCall(t.Context(), ToolCallRecord{ID: "late"}))
		_, open := <-ch.Records()
		assert.False(t, open)
	})

	t.Run("Should deliver to a consumer goroutine", func(t *testing.T) {
		ch := NewChannelObserver(8)
		done := make(chan []string)
		go func() {
			var ids []string
			for rec := range ch.Records() {
				ids = append(ids, rec.ID+":"+string(rec.Status))
			}
			done <- ids
		}()
		n := &notifier{}
		n.add(ch)
		tracker := newToolCallTracker(t.Context(), "c", "fetch_logs", `{}`, n, time.Now)
		require.NoError(t, tracker.start(t.Context()))
		require.NoError(t, tracker.succeed(t.Context(), []byte(`{}`)))
		ch.Close()
		assert.Equal(t, []string{"c:pending", "c:running", "c:success"}, <-done)
	})
}
