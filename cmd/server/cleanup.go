package main

import (
	"context"
	"io"
	"log/slog"
)

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type closer interface {
	Close()
}

// newCleanup returns the shutdown sequence: stop accepting requests, end the
// change feeds, then release photo and task storage.
func newCleanup(server shutdowner, broker closer, closePhotos func() error, store io.Closer) func(ctx context.Context) {
	return func(ctx context.Context) {
		if err := server.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "HTTP server shutdown error", "error", err)
		}
		// Open websocket feeds are hijacked connections that Shutdown does not wait for.
		broker.Close()
		if err := closePhotos(); err != nil {
			slog.ErrorContext(ctx, "failed to close photo store", "error", err)
		}
		if err := store.Close(); err != nil {
			slog.ErrorContext(ctx, "failed to close task store", "error", err)
		}
	}
}
