package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/config"
	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
	"github.com/rezkam/housekeeping/internal/infrastructure/blob/fs"
	"github.com/rezkam/housekeeping/internal/infrastructure/blob/gcs"
	apihttp "github.com/rezkam/housekeeping/internal/infrastructure/http"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/handler"
	"github.com/rezkam/housekeeping/internal/infrastructure/notify"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/postgres"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/seed"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/sqlite"
)

// taskStore is what the server needs from either database backend.
type taskStore interface {
	task.Repository
	handler.Catalog
	seed.Saver
	apihttp.HealthChecker
}

var (
	_ taskStore = (*postgres.Store)(nil)
	_ taskStore = (*sqlite.Store)(nil)
)

// backend is an open task store and, for Postgres, the change listener feeding the broker.
type backend struct {
	store    taskStore
	listener *postgres.Listener
	close    func() error
}

// Close releases the store.
func (b *backend) Close() error {
	return b.close()
}

func openBackend(ctx context.Context, db config.DatabaseConfig, nc config.NotifyConfig, broker *notify.Broker) (*backend, error) {
	switch db.Driver {
	case config.DriverPostgres:
		store, err := postgres.NewStoreWithConfig(ctx, postgres.DBConfig{
			DSN:             db.DSN,
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		listener := postgres.NewListener(store, broker, postgres.WithRetryDelay(nc.RetryDelay))
		return &backend{
			store:    store,
			listener: listener,
			close:    store.Close,
		}, nil

	case config.DriverSQLite:
		store, err := sqlite.NewStoreWithConfig(ctx, sqlite.DBConfig{DSN: db.DSN}, sqlite.WithPublisher(broker))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		slog.InfoContext(ctx, "sqlite store is single node; run one server per database file")
		return &backend{store: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", db.Driver)
	}
}

// openPhotos returns the configured photo store and its release function.
func openPhotos(ctx context.Context, cfg config.BlobConfig) (blob.Store, func() error, error) {
	switch cfg.Backend {
	case config.BlobFS:
		store, err := fs.NewStore(cfg.FSDir, cfg.BaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open photo directory: %w", err)
		}
		return store, func() error { return nil }, nil

	case config.BlobGCS:
		var store *gcs.Store
		var err error
		if cfg.GCSEndpoint != "" {
			store, err = gcs.NewStore(ctx, cfg.GCSBucket, cfg.BaseURL, gcs.EmulatorOptions(cfg.GCSEndpoint)...)
		} else {
			store, err = gcs.NewStore(ctx, cfg.GCSBucket, cfg.BaseURL)
		}
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported blob backend %q", cfg.Backend)
	}
}

var _ io.Closer = (*backend)(nil)
