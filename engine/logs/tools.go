package logs

import (
	"context"
	"time"

	"github.com/compozy/logscout/engine/core"
	"github.com/compozy/logscout/pkg/logger"
)

const (
	ToolListLogGroups = "list_log_groups"
	ToolFetchLogs     = "fetch_logs"
	ToolSearchLogs    = "search_logs"
)

// toolset binds the handlers to one store and option set.
type toolset struct {
	store LogStore
	opts  Options
}

func (ts *toolset) definitions() []Definition {
	return []Definition{
		{
			Name: ToolListLogGroups,
			Description: "List the available log groups with their event counts and time span. " +
				"Use it to discover or verify exact log group names.",
			ArgsPrototype: ListGroupsArgs{},
			Handler:       ts.listGroups,
		},
		{
			Name: ToolFetchLogs,
			Description: "Read the most recent events of one log group inside a time window " +
				"(lookback_minutes, or start_time_iso/end_time_iso).",
			ArgsPrototype: FetchLogsArgs{},
			Handler:       ts.fetchLogs,
		},
		{
			Name: ToolSearchLogs,
			Description: "Find events whose message contains a pattern, in one log group or across all of them, " +
				"inside a time window.",
			ArgsPrototype: SearchLogsArgs{},
			Handler:       ts.searchLogs,
		},
	}
}

func (ts *toolset) listGroups(ctx context.Context, payload map[string]any) (any, error) {
	args, err := decodeArgs[ListGroupsArgs](payload)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(args.Limit, ts.opts.DefaultLimit, ts.opts.MaxLimit)
	groups, err := ts.store.ListGroups(ctx, GroupFilter{Prefix: args.Prefix, Limit: limit})
	if err != nil {
		return nil, storeFailure("list log groups", err)
	}
	if groups == nil {
		groups = []LogGroup{}
	}
	logger.FromContext(ctx).Debug("Listed log groups", "prefix", args.Prefix, "count", len(groups))
	return core.Output{
		"count":      len(groups),
		"log_groups": groups,
		"truncated":  len(groups) == limit,
	}, nil
}

func (ts *toolset) fetchLogs(ctx context.Context, payload map[string]any) (any, error) {
	args, err := decodeArgs[FetchLogsArgs](payload)
	if err != nil {
		return nil, err
	}
	if err := ts.requireGroup(ctx, args.LogGroup); err != nil {
		return nil, err
	}
	start, end, err := resolveWindow(ts.opts.now(), args.LookbackMinutes, args.StartTimeISO, args.EndTimeISO)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(args.Limit, ts.opts.DefaultLimit, ts.opts.MaxLimit)
	events, err := ts.store.QueryEvents(ctx, EventQuery{LogGroup: args.LogGroup, Start: start, End: end, Limit: limit})
	if err != nil {
		return nil, storeFailure("fetch logs", err)
	}
	events = ts.redact(events)
	logger.FromContext(ctx).Debug("Fetched log events", "log_group", args.LogGroup, "count", len(events))
	return core.Output{
		"log_group":  args.LogGroup,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
		"count":      len(events),
		"events":     events,
		"truncated":  len(events) == limit,
	}, nil
}

func (ts *toolset) searchLogs(ctx context.Context, payload map[string]any) (any, error) {
	args, err := decodeArgs[SearchLogsArgs](payload)
	if err != nil {
		return nil, err
	}
	if args.LogGroup != "" {
		if err := ts.requireGroup(ctx, args.LogGroup); err != nil {
			return nil, err
		}
	}
	start, end, err := resolveWindow(ts.opts.now(), args.LookbackMinutes, args.StartTimeISO, args.EndTimeISO)
	if err != nil {
		return nil, err
	}
	limit := clampLimit(args.Limit, ts.opts.DefaultLimit, ts.opts.MaxLimit)
	matches, err := ts.store.QueryEvents(ctx, EventQuery{
		LogGroup: args.LogGroup,
		Pattern:  args.Pattern,
		Start:    start,
		End:      end,
		Limit:    limit,
	})
	if err != nil {
		return nil, storeFailure("search logs", err)
	}
	matches = ts.redact(matches)
	logger.FromContext(ctx).Debug("Searched log events",
		"log_group", args.LogGroup, "pattern", args.Pattern, "count", len(matches))
	out := core.Output{
		"pattern":    args.Pattern,
		"start_time": start.Format(time.RFC3339),
		"end_time":   end.Format(time.RFC3339),
		"count":      len(matches),
		"matches":    matches,
		"truncated":  len(matches) == limit,
	}
	if args.LogGroup != "" {
		out["log_group"] = args.LogGroup
	}
	return out, nil
}

func (ts *toolset) requireGroup(ctx context.Context, name string) error {
	ok, err := ts.store.HasGroup(ctx, name)
	if err != nil {
		return storeFailure("look up log group", err)
	}
	if !ok {
		return groupNotFound(name)
	}
	return nil
}

// redact scrubs secrets from messages and guarantees a non-nil slice so the
// payload always carries an explicit empty list.
func (ts *toolset) redact(events []Event) []Event {
	if events == nil {
		return []Event{}
	}
	if !ts.opts.Redact {
		return events
	}
	for i := range events {
		events[i].Message = core.RedactText(events[i].Message)
	}
	return events
}
