// Package postgres implements the repository contract on PostgreSQL using
// pgx directly (no ORM).
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/ecopoints/internal/database"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository/postgres/migrations"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries implements repository.Queries over any querier.
type queries struct {
	db querier
}

// Store persists state in PostgreSQL.
type Store struct {
	queries
	pool *pgxpool.Pool
}

// New wraps an existing pool. Migrations must already be applied.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// Open wraps pool and applies the embedded migrations.
func Open(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := database.ApplyMigrations(ctx, pool, migrations.FS); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(pool), nil
}

// WithTx runs fn inside a transaction. Row locks taken through LockEvent and
// LockUser are held until fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(queries{db: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ repository.Store = (*Store)(nil)
