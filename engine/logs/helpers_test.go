package logs

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory LogStore with call counters.
type memStore struct {
	mu      sync.Mutex
	events  []Event
	queries []EventQuery
	err     error
}

func newMemStore(events ...Event) *memStore {
	return &memStore{events: events}
}

func (m *memStore) ListGroups(_ context.Context, filter GroupFilter) ([]LogGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	byName := map[string]*LogGroup{}
	var names []string
	for _, e := range m.events {
		if !strings.HasPrefix(e.LogGroup, filter.Prefix) {
			continue
		}
		g, ok := byName[e.LogGroup]
		if !ok {
			g = &LogGroup{Name: e.LogGroup, FirstEvent: e.Timestamp, LastEvent: e.Timestamp}
			byName[e.LogGroup] = g
			names = append(names, e.LogGroup)
		}
		g.EventCount++
		if e.Timestamp.Before(g.FirstEvent) {
			g.FirstEvent = e.Timestamp
		}
		if e.Timestamp.After(g.LastEvent) {
			g.LastEvent = e.Timestamp
		}
	}
	slices.Sort(names)
	var out []LogGroup
	for _, name := range names {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		out = append(out, *byName[name])
	}
	return out, nil
}

func (m *memStore) HasGroup(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, e := range m.events {
		if e.LogGroup == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) QueryEvents(_ context.Context, q EventQuery) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	var out []Event
	for _, e := range m.events {
		if q.LogGroup != "" && e.LogGroup != q.LogGroup {
			continue
		}
		if e.Timestamp.Before(q.Start) || e.Timestamp.After(q.End) {
			continue
		}
		if q.Pattern != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(q.Pattern)) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Event) int { return b.Timestamp.Compare(a.Timestamp) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func event(group string, ago time.Duration, level, msg string) Event {
	return Event{Timestamp: testNow.Add(-ago), LogGroup: group, Level: level, Message: msg}
}

func sampleStore() *memStore {
	return newMemStore(
		event("api", 10*time.Minute, "ERROR", "connection timeout to db"),
		event("api", 30*time.Minute, "INFO", "request served"),
		event("api", 3*time.Hour, "ERROR", "upstream reset password=hunter2"),
		event("worker", 5*time.Minute, "WARN", "job retry scheduled"),
	)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return testNow }
	return opts
}
