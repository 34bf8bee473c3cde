// Package logs implements the read-only log tools the orchestrator exposes to
// the LLM: list_log_groups, fetch_logs and search_logs.
package logs

import (
	"context"
	"time"
)

// LogGroup summarizes one named stream of log events.
type LogGroup struct {
	Name       string    `json:"name"`
	EventCount int       `json:"event_count"`
	FirstEvent time.Time `json:"first_event,omitzero"`
	LastEvent  time.Time `json:"last_event,omitzero"`
}

// Event is a single log line.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	LogGroup  string    `json:"log_group"`
	Level     string    `json:"level,omitempty"`
	Message   string    `json:"message"`
}

type GroupFilter struct {
	Prefix string
	Limit  int
}

// EventQuery selects events inside [Start, End]. An empty LogGroup spans all
// groups; Pattern is a case-insensitive substring match on the message.
type EventQuery struct {
	LogGroup string
	Pattern  string
	Start    time.Time
	End      time.Time
	Limit    int
}

// LogStore is the read side the tools query. Events come back newest first.
type LogStore interface {
	ListGroups(ctx context.Context, filter GroupFilter) ([]LogGroup, error)
	HasGroup(ctx context.Context, name string) (bool, error)
	QueryEvents(ctx context.Context, query EventQuery) ([]Event, error)
}
