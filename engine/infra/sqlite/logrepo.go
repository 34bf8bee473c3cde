package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Masterminds/squirrel"
	"github.com/compozy/logscout/engine/logs"
	"github.com/compozy/logscout/pkg/logger"
)

const logEventsTable = "log_events"

// LogRepo implements logs.LogStore on top of a SQLite *sql.DB.
type LogRepo struct{ db *sql.DB }

var _ logs.LogStore = (*LogRepo)(nil)

func NewLogRepo(db *sql.DB) *LogRepo { return &LogRepo{db: db} }

// Append inserts events in one transaction and returns how many were written.
func (r *LogRepo) Append(ctx context.Context, events []logs.Event) (n int, err error) {
	if len(events) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rb := tx.Rollback(); rb != nil && !errors.Is(rb, sql.ErrTxDone) {
				logger.FromContext(ctx).Warn("sqlite: rollback failed", "error", rb)
			}
		}
	}()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO log_events (log_group, ts_ms, level, message) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()
	for i := range events {
		e := &events[i]
		if strings.TrimSpace(e.LogGroup) == "" {
			return 0, fmt.Errorf("sqlite: event %d has no log group", i)
		}
		if _, err = stmt.ExecContext(ctx, e.LogGroup, e.Timestamp.UnixMilli(), e.Level, e.Message); err != nil {
			return 0, fmt.Errorf("sqlite: insert event %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit events: %w", err)
	}
	return len(events), nil
}

func (r *LogRepo) ListGroups(ctx context.Context, filter logs.GroupFilter) ([]logs.LogGroup, error) {
	sb := squirrel.Select("log_group", "COUNT(*)", "MIN(ts_ms)", "MAX(ts_ms)").
		From(logEventsTable).
		GroupBy("log_group").
		OrderBy("log_group")
	if filter.Prefix != "" {
		sb = sb.Where(squirrel.Expr("substr(log_group, 1, ?) = ?", utf8.RuneCountInString(filter.Prefix), filter.Prefix))
	}
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build list groups query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list groups: %w", err)
	}
	defer rows.Close()
	var out []logs.LogGroup
	for rows.Next() {
		var (
			g             logs.LogGroup
			first, latest int64
		)
		if err := rows.Scan(&g.Name, &g.EventCount, &first, &latest); err != nil {
			return nil, fmt.Errorf("sqlite: scan group: %w", err)
		}
		g.FirstEvent = fromMillis(first)
		g.LastEvent = fromMillis(latest)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter groups: %w", err)
	}
	return out, nil
}

func (r *LogRepo) HasGroup(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM log_events WHERE log_group = ?)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("sqlite: check group: %w", err)
	}
	return exists, nil
}

func (r *LogRepo) QueryEvents(ctx context.Context, query logs.EventQuery) ([]logs.Event, error) {
	sb := squirrel.Select("ts_ms", "log_group", "level", "message").
		From(logEventsTable).
		Where(squirrel.GtOrEq{"ts_ms": query.Start.UnixMilli()}).
		Where(squirrel.LtOrEq{"ts_ms": query.End.UnixMilli()}).
		OrderBy("ts_ms DESC", "id DESC")
	if query.LogGroup != "" {
		sb = sb.Where(squirrel.Eq{"log_group": query.LogGroup})
	}
	if query.Pattern != "" {
		sb = sb.Where(squirrel.Expr("instr(lower(message), lower(?)) > 0", query.Pattern))
	}
	if query.Limit > 0 {
		sb = sb.Limit(uint64(query.Limit))
	}
	sqlText, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build events query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query events: %w", err)
	}
	defer rows.Close()
	var out []logs.Event
	for rows.Next() {
		var (
			e  logs.Event
			ts int64
		)
		if err := rows.Scan(&ts, &e.LogGroup, &e.Level, &e.Message); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter events: %w", err)
	}
	return out, nil
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
