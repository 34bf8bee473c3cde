package logs

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const maxLineBytes = 1 << 20

var (
	timestampKeys = []string{"timestamp", "@timestamp", "time", "ts"}
	messageKeys   = []string{"message", "msg", "log"}
	levelKeys     = []string{"level", "severity", "lvl"}
	groupKeys     = []string{"log_group", "logGroup", "group"}
)

// ParseJSONL reads one JSON object per line. Lines without a group fall back
// to defaultGroup; numeric timestamps are epoch seconds or milliseconds.
func ParseJSONL(r io.Reader, defaultGroup string) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var events []Event
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		event, err := parseLine(text, defaultGroup)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log lines: %w", err)
	}
	return events, nil
}

func parseLine(text, defaultGroup string) (Event, error) {
	if !gjson.Valid(text) {
		return Event{}, fmt.Errorf("invalid JSON")
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return Event{}, fmt.Errorf("expected a JSON object")
	}
	ts, err := parseEventTime(firstOf(doc, timestampKeys))
	if err != nil {
		return Event{}, err
	}
	group := firstOf(doc, groupKeys).String()
	if group == "" {
		group = defaultGroup
	}
	if group == "" {
		return Event{}, fmt.Errorf("no log group and no default group given")
	}
	return Event{
		Timestamp: ts,
		LogGroup:  group,
		Level:     strings.ToUpper(firstOf(doc, levelKeys).String()),
		Message:   firstOf(doc, messageKeys).String(),
	}, nil
}

func firstOf(doc gjson.Result, keys []string) gjson.Result {
	for _, key := range keys {
		if v := doc.Get(gjson.Escape(key)); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

func parseEventTime(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Number:
		n := v.Int()
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	case gjson.String:
		return parseTimestamp(v.String())
	default:
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
}
