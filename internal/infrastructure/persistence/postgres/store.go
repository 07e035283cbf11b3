package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/task"
)

var tracer = otel.Tracer("github.com/rezkam/housekeeping/internal/infrastructure/persistence/postgres")

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides the PostgreSQL implementation of the task store and the room,
// staff and time limit catalog. Change notifications are produced by a database
// trigger and consumed by Listener.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// Compile-time verification that Store implements the collaborator interfaces.
var (
	_ task.Repository     = (*Store)(nil)
	_ booking.Store       = (*Store)(nil)
	_ booking.RoomCatalog = (*Store)(nil)
	_ booking.LimitLookup = (*Store)(nil)
)

// NewStore creates a new PostgreSQL store with the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   pool,
	}
}

// Pool exposes the connection pool for maintenance queries such as test resets.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// finishTx commits when *err is nil and rolls back otherwise. A failed
// rollback is folded into *err so the caller sees both failures.
func finishTx(ctx context.Context, tx pgx.Tx, operation string, err *error) {
	if *err == nil {
		if *err = tx.Commit(ctx); *err != nil {
			slog.ErrorContext(ctx, "commit failed", "operation", operation, "error", *err)
			*err = fmt.Errorf("commit %s: %w", operation, *err)
		}
		return
	}
	if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
		slog.ErrorContext(ctx, "rollback failed",
			"operation", operation,
			"cause", *err,
			"rollback_error", rbErr)
		*err = fmt.Errorf("%s: %w (rollback: %v)", operation, *err, rbErr)
	}
}

// executeInTransaction runs fn against a store bound to one transaction and
// traces it as postgres.<operation>. A panic in fn rolls back and re-panics.
func (s *Store) executeInTransaction(ctx context.Context, operation string, fn func(txStore *Store) error) (err error) {
	ctx, span := tracer.Start(ctx, "postgres."+operation)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	started := time.Now().UTC()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", operation, err)
	}

	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "panic in transaction", "operation", operation, "panic", p)
			_ = tx.Rollback(ctx)
			panic(p)
		}
		finishTx(ctx, tx, operation, &err)
		slog.DebugContext(ctx, "transaction finished",
			"operation", operation,
			"ok", err == nil,
			"duration_ms", time.Since(started).Milliseconds())
	}()

	return fn(&Store{pool: s.pool, db: tx})
}
