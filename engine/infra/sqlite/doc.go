// Package sqlite provides the modernc.org/sqlite backed log store.
//
// Events are kept in a single log_events table managed by embedded goose
// migrations; timestamps are stored as epoch milliseconds.
package sqlite
