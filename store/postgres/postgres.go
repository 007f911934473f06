/*
Package postgres provides the production implementation of liaison.Store.

PURPOSE:

	Same contract as store/sqlite, backed by PostgreSQL through pgx. Dynamic
	filters are built with squirrel; the schema is versioned with goose and
	embedded in the binary.

TRANSACTIONS:

	WithTx begins a pgx transaction and hands fn a store bound to it. The
	batch runner calls AcquireRunLock first thing inside the transaction:
	pg_advisory_xact_lock blocks a second process running the same batch
	until the first commits or rolls back.

TESTING:

	Store depends on the DB interface rather than *pgxpool.Pool so
	pgxmock.PgxPoolIface can stand in for the pool.

SEE ALSO:
  - liaison/store.go: interface definitions
  - migrations/: goose migrations
*/
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runLockKey identifies the daily batch in pg_advisory_xact_lock.
const runLockKey int64 = 0x6c6961697330

var (
	_ liaison.Store = (*Store)(nil)
	_ liaison.Store = (*txStore)(nil)
)

// Querier is the common interface implemented by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is a Querier that can begin transactions and check its connection.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PoolConfig holds the pool settings NewPool applies.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPool parses the DSN, applies pool settings, and pings the database so
// a bad DSN fails at startup.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the embedded goose migrations. goose needs a *sql.DB, so
// the pool is wrapped through pgx's stdlib adapter.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations dir: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, dir)
	if err != nil {
		return fmt.Errorf("goose new provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// conn implements the data methods against a Querier.
type conn struct {
	q Querier
}

// Store implements liaison.Store on PostgreSQL.
type Store struct {
	conn
	db DB
}

// New wraps an open pool (or a mock).
func New(db DB) *Store {
	return &Store{conn: conn{q: db}, db: db}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// WithTx executes fn within a database transaction.
// On error from fn: rolls back and returns the error.
// On panic from fn: rolls back and re-panics.
func (s *Store) WithTx(ctx context.Context, fn func(tx liaison.Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(&txStore{conn: conn{q: tx}}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	conn
}

// WithTx on a tx-bound store joins the enclosing transaction.
func (ts *txStore) WithTx(ctx context.Context, fn func(tx liaison.Store) error) error {
	return fn(ts)
}

// AcquireRunLock takes the batch advisory lock for the current transaction.
// Outside a transaction the lock would be released immediately.
func (c conn) AcquireRunLock(ctx context.Context) error {
	if _, err := c.q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", runLockKey); err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// builder returns a squirrel builder using Postgres placeholders.
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

func (c conn) query(ctx context.Context, b sq.Sqlizer) (pgx.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return c.q.Query(ctx, query, args...)
}

func (c conn) exec(ctx context.Context, b sq.Sqlizer) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := c.q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// mapError converts pgx/pgconn errors to liaison errors.
// context.DeadlineExceeded and context.Canceled pass through wrapped.
func mapError(err error, entity string, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, liaison.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
		return fmt.Errorf("%s %s: %w", entity, id, liaison.ErrNotFound)
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}

// pgDate encodes a calendar day for a DATE column.
func pgDate(d calendar.Date) time.Time {
	return d.Time()
}

// fromPGDate converts a scanned DATE back to a calendar day.
func fromPGDate(t time.Time) calendar.Date {
	return calendar.NewDate(t.Year(), t.Month(), t.Day())
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
