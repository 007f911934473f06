/*
Package sqlite provides a SQLite-backed implementation of liaison.Store.

PURPOSE:

	The embedded default datastore. One file (or ":memory:") holds the
	directory the engine reads (departments, users, persons, leave periods,
	contact events, reminder settings) and what it writes (reminders, leave
	status, batch runs).

KEY TABLES:

	persons, leave_periods, contact_events: read by the generators and reports
	reminders:         daily output, plus one system row per completed day
	reminder_settings: per-user thresholds
	batch_runs:        run history for the admin UI

DATES:

	Calendar days are stored as TEXT 'YYYY-MM-DD'. Instants are stored as
	fixed-width UTC text, so string comparison in SQL is chronological.

CONCURRENCY:

	The pool is capped at one connection: SQLite has a single writer anyway,
	and database/sql queues callers for the connection. WithTx holds that
	connection for the whole transaction, so code running inside fn must only
	use the tx-bound store it receives.

INDEXES:
  - idx_leave_status_end:  lifecycle sweep and active-leave listing
  - idx_contacts_person_at: per-person contact history (hot path)
  - idx_reminders_date_type: daily delete and completion marker lookups

USAGE:

	store, err := sqlite.New("./data/liaison.db")
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

MIGRATION:

	Schema is auto-migrated on New(). The Postgres store uses versioned goose
	migrations instead.

SEE ALSO:
  - liaison/store.go: interface definitions
  - store/postgres: production implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

var (
	_ liaison.Store = (*Store)(nil)
	_ liaison.Store = (*txStore)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements every data method against a querier, so the pool-backed
// Store and the tx-bound txStore share one implementation.
type conn struct {
	q querier
}

// Store implements liaison.Store using SQLite.
type Store struct {
	conn
	db *sql.DB
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL
	);

	-- department_id '' marks an orphaned person
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		department_id TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		last_contact_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_persons_department
		ON persons(department_id);

	CREATE TABLE IF NOT EXISTS leave_periods (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL REFERENCES persons(id),
		kind TEXT NOT NULL DEFAULT 'leave',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_status_end
		ON leave_periods(status, end_date);
	CREATE INDEX IF NOT EXISTS idx_leave_person
		ON leave_periods(person_id);

	CREATE TABLE IF NOT EXISTS contact_events (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL REFERENCES persons(id),
		leave_period_id TEXT NOT NULL DEFAULT '',
		contacted_at TEXT NOT NULL,
		contact_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contacts_person_at
		ON contact_events(person_id, contacted_at);

	-- person_id is NULL for system (completion marker) rows
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		person_id TEXT,
		leave_period_id TEXT NOT NULL DEFAULT '',
		reminder_type TEXT NOT NULL,
		reminder_date TEXT NOT NULL,
		priority TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		is_handled INTEGER NOT NULL DEFAULT 0,
		handled_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_date_type
		ON reminders(reminder_date, reminder_type);
	CREATE INDEX IF NOT EXISTS idx_reminders_person
		ON reminders(person_id);

	CREATE TABLE IF NOT EXISTS reminder_settings (
		user_id TEXT PRIMARY KEY,
		urgent_threshold INTEGER NOT NULL,
		suggest_threshold INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS batch_runs (
		id TEXT PRIMARY KEY,
		run_date TEXT NOT NULL,
		run_trigger TEXT NOT NULL,
		status TEXT NOT NULL,
		leaves_completed INTEGER NOT NULL DEFAULT 0,
		reminders_created INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_batch_runs_started
		ON batch_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx liaison.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{conn: conn{q: sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	conn
}

// WithTx on a tx-bound store joins the enclosing transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(tx liaison.Store) error) error {
	return fn(ts)
}

// AcquireRunLock is a no-op: the single connection already serializes
// writers, and the runner holds an in-process lock.
func (c conn) AcquireRunLock(ctx context.Context) error {
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (c conn) Reset(ctx context.Context) error {
	tables := []string{
		"reminders", "contact_events", "leave_periods", "reminder_settings",
		"persons", "users", "departments", "batch_runs",
	}
	for _, table := range tables {
		if _, err := c.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// builder returns a squirrel builder using SQLite placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

func (c conn) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return c.q.QueryContext(ctx, query, args...)
}

func (c conn) exec(ctx context.Context, b sq.Sqlizer) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build statement: %w", err)
	}
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// instantLayout is fixed width so TEXT comparison orders chronologically.
const instantLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullInstant(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatInstant(*t), Valid: true}
}

func parseNullInstant(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseInstant(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullDate(d *calendar.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}
