package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/wordbot/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrDuplicate is returned when an insert hits a unique key.
var ErrDuplicate = errors.New("duplicate record")

// Store groups the repositories over one connection or transaction
type Store struct {
	db     *sqlx.DB // nil inside a transaction
	q      sqlx.ExtContext
	driver string

	Users      *UserRepository
	Settings   *SettingsRepository
	Groups     *GroupRepository
	Words      *WordRepository
	Progress   *UserProgressRepository
	Answers    *AnswerLogRepository
	Results    *SessionResultRepository
	Statistics *StatisticsRepository
}

// NewStore wraps an existing connection. The schema is not touched.
func NewStore(db *sqlx.DB) *Store {
	return newStore(db)
}

func newStore(db *sqlx.DB) *Store {
	s := withQuerier(db, db.DriverName())
	s.db = db
	return s
}

func withQuerier(q sqlx.ExtContext, driver string) *Store {
	c := &conn{q: q, driver: driver}
	return &Store{
		q:          q,
		driver:     driver,
		Users:      &UserRepository{c},
		Settings:   &SettingsRepository{c},
		Groups:     &GroupRepository{c},
		Words:      &WordRepository{c},
		Progress:   &UserProgressRepository{c},
		Answers:    &AnswerLogRepository{c},
		Results:    &SessionResultRepository{c},
		Statistics: &StatisticsRepository{c},
	}
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// WithinTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(withQuerier(tx, s.driver)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr(err, "commit transaction")
	}
	return nil
}

// conn is shared by the repositories of one Store
type conn struct {
	q      sqlx.ExtContext
	driver string
}

func (c *conn) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, c.q, dest, c.q.Rebind(query), args...)
}

func (c *conn) sel(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, c.q, dest, c.q.Rebind(query), args...)
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.q.Rebind(query), args...)
}

// forUpdate returns a row-lock suffix. SQLite serializes writers on its own.
func (c *conn) forUpdate() string {
	if c.driver == DriverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// greatest returns the scalar max function of the dialect.
func (c *conn) greatest() string {
	if c.driver == DriverPostgres {
		return "GREATEST"
	}
	return "MAX"
}

// wrapErr maps driver errors onto the models error taxonomy.
func wrapErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, models.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}

// NullTime scans timestamps produced by aggregates, which SQLite returns as text.
type NullTime struct {
	Time  time.Time
	Valid bool
}

func (n *NullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("scan time: unsupported type %T", src)
}

func (n *NullTime) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("scan time: cannot parse %q", s)
}

// Ptr returns nil when the value is NULL.
func (n NullTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
