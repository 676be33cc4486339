package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open establishes a connection to the database and creates the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if err := ensureDataDir(dsn); err != nil {
			return nil, err
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, wrapErr(err, "connect to database")
	}

	if driver == DriverSQLite {
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, wrapErr(err, "enable foreign keys")
		}
	}

	s := newStore(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func ensureDataDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.Contains(path, ":memory:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return wrapErr(s.db.PingContext(ctx), "ping database")
}

var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			points INTEGER NOT NULL DEFAULT 0,
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`},
	{"user_settings", `
		CREATE TABLE IF NOT EXISTS user_settings (
			user_id BIGINT PRIMARY KEY,
			remind_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			remind_hour INTEGER,
			daily_limit INTEGER NOT NULL DEFAULT 0,
			updated_at {{ts}} NOT NULL
		)`},
	{"word_groups", `
		CREATE TABLE IF NOT EXISTS word_groups (
			id {{pk}},
			owner_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			created_at {{ts}} NOT NULL,
			UNIQUE(owner_id, name)
		)`},
	{"words", `
		CREATE TABLE IF NOT EXISTS words (
			id {{pk}},
			owner_id BIGINT NOT NULL DEFAULT 0,
			group_id BIGINT REFERENCES word_groups(id) ON DELETE SET NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			example TEXT NOT NULL DEFAULT '',
			variants TEXT NOT NULL DEFAULT '[]',
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL
		)`},
	{"words owner index", `CREATE INDEX IF NOT EXISTS idx_words_owner ON words(owner_id, group_id)`},
	{"user_progress", `
		CREATE TABLE IF NOT EXISTS user_progress (
			user_id BIGINT NOT NULL,
			word_id BIGINT NOT NULL REFERENCES words(id) ON DELETE CASCADE,
			streak INTEGER NOT NULL DEFAULT 0,
			incorrect INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 0,
			last_reviewed {{ts}},
			next_due {{ts}} NOT NULL,
			mastered_at {{ts}},
			created_at {{ts}} NOT NULL,
			updated_at {{ts}} NOT NULL,
			PRIMARY KEY (user_id, word_id)
		)`},
	{"user_progress due index", `CREATE INDEX IF NOT EXISTS idx_user_progress_due ON user_progress(next_due, user_id)`},
	{"answer_log", `
		CREATE TABLE IF NOT EXISTS answer_log (
			id {{pk}},
			session_id TEXT NOT NULL,
			prompt_index INTEGER NOT NULL,
			user_id BIGINT NOT NULL,
			word_id BIGINT NOT NULL,
			correct BOOLEAN NOT NULL,
			timed_out BOOLEAN NOT NULL DEFAULT FALSE,
			points INTEGER NOT NULL,
			answered_at {{ts}} NOT NULL,
			UNIQUE(session_id, prompt_index)
		)`},
	{"answer_log time index", `CREATE INDEX IF NOT EXISTS idx_answer_log_time ON answer_log(answered_at, user_id)`},
	{"session_results", `
		CREATE TABLE IF NOT EXISTS session_results (
			session_id TEXT PRIMARY KEY,
			user_id BIGINT NOT NULL,
			mode TEXT NOT NULL,
			total INTEGER NOT NULL,
			answered INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			score INTEGER NOT NULL,
			started_at {{ts}} NOT NULL,
			finished_at {{ts}} NOT NULL,
			outcome TEXT NOT NULL
		)`},
	{"session_results user index", `CREATE INDEX IF NOT EXISTS idx_session_results_user ON session_results(user_id)`},
}

// Migrate creates necessary tables if they don't exist
func (s *Store) Migrate(ctx context.Context) error {
	r := strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{ts}}", "TIMESTAMP")
	if s.driver == DriverPostgres {
		r = strings.NewReplacer("{{pk}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ")
	}
	for _, t := range schema {
		if _, err := s.q.ExecContext(ctx, r.Replace(t.ddl)); err != nil {
			return wrapErr(err, "create "+t.name)
		}
	}
	return nil
}
