package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for migrations
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Pool defaults applied to zero DBConfig fields.
const (
	DefaultMaxConns        = 25
	DefaultMinConns        = 5
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultConnMaxIdleTime = time.Minute
)

// applicationName tags server sessions in pg_stat_activity.
const applicationName = "housekeeping"

// DBConfig holds PostgreSQL database connection configuration.
type DBConfig struct {
	DSN             string // PostgreSQL connection string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// poolConfig parses the DSN and applies pool limits. The change listener pins
// one connection for as long as it runs, so the pool never goes below two.
func (c DBConfig) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pc.MaxConns = int32(positiveOr(c.MaxOpenConns, DefaultMaxConns))
	if pc.MaxConns < 2 {
		pc.MaxConns = 2
	}
	pc.MinConns = int32(min(positiveOr(c.MaxIdleConns, DefaultMinConns), int(pc.MaxConns)))
	pc.MaxConnLifetime = positiveOr(c.ConnMaxLifetime, DefaultConnMaxLifetime)
	pc.MaxConnIdleTime = positiveOr(c.ConnMaxIdleTime, DefaultConnMaxIdleTime)

	if _, ok := pc.ConnConfig.RuntimeParams["application_name"]; !ok {
		pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	// Task dates and timestamps are compared in UTC.
	pc.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET TIMEZONE='UTC'")
		return err
	}
	return pc, nil
}

func positiveOr[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// NewStoreWithConfig migrates the schema to the latest version and opens a pooled store.
func NewStoreWithConfig(ctx context.Context, cfg DBConfig) (*Store, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}

	// goose needs database/sql, so migrations run on a short-lived connection first.
	if err := migrate(ctx, cfg.DSN); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.InfoContext(ctx, "postgres store ready",
		"max_conns", pc.MaxConns,
		"min_conns", pc.MinConns)
	return NewStore(pool), nil
}

// migrate applies the embedded goose migrations.
func migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close migration connection", "error", err)
		}
	}()

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.InfoContext(ctx, "applied migration",
			"version", r.Source.Version,
			"duration_ms", r.Duration.Milliseconds())
	}
	return nil
}
