package logs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONL(t *testing.T) {
	t.Run("Should read common field spellings", func(t *testing.T) {
		input := strings.Join([]string{
			`{"timestamp":"2026-03-10T11:50:00Z","level":"error","message":"db timeout","log_group":"api"}`,
			``,
			`{"@timestamp":"2026-03-10T11:51:00.5Z","severity":"warn","msg":"slow query"}`,
			`{"ts":1773143460,"log":"started","group":"worker"}`,
			`{"time":1773143460123,"message":"tick"}`,
		}, "\n")
		events, err := ParseJSONL(strings.NewReader(input), "default")
		require.NoError(t, err)
		require.Len(t, events, 4)

		assert.Equal(t, "api", events[0].LogGroup)
		assert.Equal(t, "ERROR", events[0].Level)
		assert.Equal(t, "db timeout", events[0].Message)

		assert.Equal(t, "default", events[1].LogGroup)
		assert.Equal(t, "WARN", events[1].Level)
		assert.Equal(t, 500*time.Millisecond, time.Duration(events[1].Timestamp.Nanosecond()))

		assert.Equal(t, "worker", events[2].LogGroup)
		assert.Equal(t, time.Unix(1773143460, 0).UTC(), events[2].Timestamp)
		assert.Equal(t, time.UnixMilli(1773143460123).UTC(), events[3].Timestamp)
	})

	t.Run("Should report the failing line", func(t *testing.T) {
		input := "{\"timestamp\":\"2026-03-10T11:50:00Z\",\"message\":\"ok\"}\nnot json\n"
		_, err := ParseJSONL(strings.NewReader(input), "api")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("Should require a timestamp and a group", func(t *testing.T) {
		_, err := ParseJSONL(strings.NewReader(`{"message":"x","log_group":"api"}`), "")
		require.ErrorContains(t, err, "missing timestamp")
		_, err = ParseJSONL(strings.NewReader(`{"timestamp":"2026-03-10T11:50:00Z","message":"x"}`), "")
		require.ErrorContains(t, err, "no log group")
	})
}

func TestResolveWindow(t *testing.T) {
	t.Run("Should default to one hour", func(t *testing.T) {
		start, end, err := resolveWindow(testNow, 0, "", "")
		require.NoError(t, err)
		assert.Equal(t, testNow, end)
		assert.Equal(t, time.Hour, end.Sub(start))
	})

	t.Run("Should cap the lookback at thirty days", func(t *testing.T) {
		start, _, err := resolveWindow(testNow, 1e9, "", "")
		require.NoError(t, err)
		assert.Equal(t, 30*24*time.Hour, testNow.Sub(start))
	})

	t.Run("Should anchor a lookback on an explicit end", func(t *testing.T) {
		start, end, err := resolveWindow(testNow, 30, "", "2026-03-10T10:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), end)
	})

	t.Run("Should reject malformed timestamps", func(t *testing.T) {
		_, _, err := resolveWindow(testNow, 0, "yesterday", "")
		require.ErrorContains(t, err, "start_time_iso")
	})
}

func TestClampLimit(t *testing.T) {
	t.Run("Should default and cap limits", func(t *testing.T) {
		assert.Equal(t, 100, clampLimit(0, 100, 1000))
		assert.Equal(t, 50, clampLimit(50, 100, 1000))
		assert.Equal(t, 1000, clampLimit(5000, 100, 1000))
	})
}
