// Package sqlite is the single-node Task Store. It enforces the same
// constraints as the PostgreSQL store and publishes change events itself
// after each committed write.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Publisher receives change events for committed writes.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TaskEvent)
}

// Store provides the SQLite implementation of the task store and catalog.
type Store struct {
	db        *sql.DB
	q         querier
	publisher Publisher
}

// Compile-time verification that Store implements the collaborator interfaces.
var (
	_ task.Repository     = (*Store)(nil)
	_ booking.Store       = (*Store)(nil)
	_ booking.RoomCatalog = (*Store)(nil)
	_ booking.LimitLookup = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithPublisher sends a TaskEvent for every committed task write.
func WithPublisher(p Publisher) Option {
	return func(s *Store) {
		s.publisher = p
	}
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, q: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) publish(ctx context.Context, ev domain.TaskEvent) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, ev)
}

// finalizeTx rolls back on error and commits on success.
func finalizeTx(ctx context.Context, tx *sql.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed",
				"original_error", *err,
				"rollback_error", rbErr)
			*err = fmt.Errorf("transaction failed: %w (rollback error: %v)", *err, rbErr)
		}
	} else {
		*err = tx.Commit()
		if *err != nil {
			slog.ErrorContext(ctx, "transaction commit failed",
				"error", *err)
		}
	}
}

// executeInTransaction runs fn with a store bound to a single transaction.
func (s *Store) executeInTransaction(ctx context.Context, operationName string, fn func(txStore *Store) error) (err error) {
	start := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction",
			"operation", operationName,
			"error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "transaction panic, rolling back",
				"operation", operationName,
				"panic", p)
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "rollback after panic failed",
					"operation", operationName,
					"rollback_error", rbErr)
			}
			panic(p)
		}

		finalizeTx(ctx, tx, &err)
		if err == nil {
			slog.DebugContext(ctx, "transaction completed",
				"operation", operationName,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	err = fn(&Store{db: s.db, q: tx})
	return
}
