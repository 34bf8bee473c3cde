package logs

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultLookbackMinutes = 60
	// MaxLookbackMinutes is 30 days.
	MaxLookbackMinutes = 43200
)

// resolveWindow turns the tool's time arguments into an absolute range.
// start/end ISO strings win over the lookback; a missing end means now.
func resolveWindow(now time.Time, lookback float64, startISO, endISO string) (time.Time, time.Time, error) {
	startISO, endISO = strings.TrimSpace(startISO), strings.TrimSpace(endISO)
	if startISO == "" && endISO == "" {
		return now.Add(-lookbackDuration(lookback)), now, nil
	}
	end := now
	if endISO != "" {
		parsed, err := parseTimestamp(endISO)
		if err != nil {
			return time.Time{}, time.Time{}, invalidArgument(
				fmt.Errorf("end_time_iso: %w", err),
				map[string]any{"field": "end_time_iso"},
			)
		}
		end = parsed
	}
	start := end.Add(-lookbackDuration(lookback))
	if startISO != "" {
		parsed, err := parseTimestamp(startISO)
		if err != nil {
			return time.Time{}, time.Time{}, invalidArgument(
				fmt.Errorf("start_time_iso: %w", err),
				map[string]any{"field": "start_time_iso"},
			)
		}
		start = parsed
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, invalidArgument(
			errors.New("start_time_iso must not be after end_time_iso"),
			map[string]any{"start_time_iso": startISO, "end_time_iso": endISO},
		)
	}
	return start, end, nil
}

func lookbackDuration(minutes float64) time.Duration {
	if minutes <= 0 || math.IsNaN(minutes) {
		minutes = DefaultLookbackMinutes
	}
	minutes = math.Min(minutes, MaxLookbackMinutes)
	return time.Duration(minutes * float64(time.Minute))
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected an RFC 3339 timestamp, got %q", value)
	}
	return t.UTC(), nil
}

func clampLimit(limit, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		limit = defaultLimit
	}
	return min(limit, maxLimit)
}
