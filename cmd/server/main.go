package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rezkam/housekeeping/internal/config"
	apihttp "github.com/rezkam/housekeeping/internal/infrastructure/http"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/handler"
	"github.com/rezkam/housekeeping/internal/infrastructure/notify"
	"github.com/rezkam/housekeeping/internal/infrastructure/observability"
	"github.com/rezkam/housekeeping/internal/infrastructure/persistence/seed"
)

func main() {
	if err := run(); err != nil {
		// slog may not be initialized if config fails
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}

	// Root context for all normal operations; cancelled on SIGTERM/SIGINT.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Configuration via OTEL_* env vars (endpoint, headers, resource attributes)
	shutdownTelemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		// Use a timeout to prevent hanging if collector is unreachable
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shut down telemetry: %v\n", err)
		}
	}()

	slog.InfoContext(ctx, "starting housekeeping server",
		"db_driver", cfg.Database.Driver,
		"db", maskPassword(cfg.Database.DSN),
		"blob_backend", cfg.Blob.Backend)

	broker := notify.NewBroker(cfg.Notify.BufferSize)

	db, err := openBackend(ctx, cfg.Database, cfg.Notify, broker)
	if err != nil {
		return err
	}

	if err := seed.Apply(ctx, db.store, cfg.Database.SeedFile); err != nil {
		db.Close()
		return err
	}

	photos, closePhotos, err := openPhotos(ctx, cfg.Blob)
	if err != nil {
		db.Close()
		return err
	}

	h := handler.New(db.store, db.store, broker, handler.WithPhotos(photos))
	server := apihttp.NewAPIServer(h, db.store, apihttp.ServerConfig{
		Host:              cfg.HTTP.Host,
		Port:              cfg.HTTP.Port,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.HTTP.MaxHeaderBytes,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		TLSCertFile:       tlsFile(cfg.HTTP.TLSEnabled, cfg.HTTP.TLSCertFile),
		TLSKeyFile:        tlsFile(cfg.HTTP.TLSEnabled, cfg.HTTP.TLSKeyFile),
	})

	cleanup := newCleanup(server, broker, closePhotos, db)

	g, gctx := errgroup.WithContext(ctx)
	if db.listener != nil {
		g.Go(func() error {
			return db.listener.Run(gctx)
		})
	}
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve HTTP: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(gctx, "shutting down")

		// Fresh context: gctx is already cancelled but shutdown still needs a window.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		cleanup(shutdownCtx)
		return nil
	})

	return g.Wait()
}

func tlsFile(enabled bool, path string) string {
	if !enabled {
		return ""
	}
	return path
}

// maskPassword masks the password in a connection string for logging.
func maskPassword(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		// If parsing fails, fall back to full redaction to be safe
		return "[REDACTED]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "xxxxxx")
		}
	}
	return u.String()
}
