package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/compozy/logscout/pkg/logger"
)

const memoryPath = ":memory:"

// Store owns the database handle and keeps the schema migrated.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database described by cfg and applies pending migrations.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("sqlite: config is required")
	}
	dsn, inMemory, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	configurePool(db, cfg, inMemory)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping database: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.FromContext(ctx).Debug("SQLite store ready", "path", cfg.Path)
	return &Store{db: db, path: cfg.Path}, nil
}

// DB exposes the underlying handle for repositories.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Path() string { return s.path }

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close database: %w", err)
	}
	logger.FromContext(ctx).Debug("SQLite store closed", "path", s.path)
	return nil
}

// buildDSN renders a modernc DSN with connection pragmas. The second return
// value reports whether the database lives in memory.
func buildDSN(cfg *Config) (string, bool, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return "", false, errors.New("sqlite: database path is required")
	}
	pragmas := []string{
		"_pragma=foreign_keys(ON)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.busyTimeout().Milliseconds()),
	}
	if path == memoryPath {
		return "file::memory:?" + strings.Join(pragmas, "&"), true, nil
	}
	pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	return "file:" + path + "?" + strings.Join(pragmas, "&"), false, nil
}

// configurePool pins in-memory databases to a single connection; every new
// connection to file::memory: would otherwise see an empty database.
func configurePool(db *sql.DB, cfg *Config, inMemory bool) {
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}
