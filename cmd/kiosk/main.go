package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/reconcile"
	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/config"
	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/observability"
	"github.com/rezkam/housekeeping/internal/infrastructure/remote"
)

// reconnectDelay is the wait before resubscribing after the change feed drops.
const reconnectDelay = 2 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "kiosk: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadKioskConfig()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("kiosk", pflag.ContinueOnError)
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "housekeeping server base URL")
	flags.StringVar(&cfg.StaffID, "staff", cfg.StaffID, "signed-in staff member ID")
	date := flags.String("date", "", "day to show, YYYY-MM-DD (default today)")
	allDates := flags.Bool("all-dates", false, "show the staff member's tasks across every day")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr so they do not interleave with the command output.
	shutdownTelemetry, err := observability.Setup(ctx, observability.Config{
		Enabled:     cfg.Observability.OTelEnabled,
		ServiceName: cfg.Observability.ServiceName,
		Output:      os.Stderr,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shut down telemetry: %v\n", err)
		}
	}()

	client, err := remote.NewClient(cfg.ServerURL, remote.WithTimeout(cfg.RequestTimeout))
	if err != nil {
		return err
	}

	scope, err := sessionScope(cfg.StaffID, *date, *allDates, time.Now().UTC())
	if err != nil {
		return err
	}

	cache := reconcile.NewCache(client, scope)
	defer cache.Close()

	sh := &shell{
		out:     os.Stdout,
		staffID: cfg.StaffID,
		cache:   cache,
		machine: task.NewMachine(client, cache, task.WithUploader(client)),
		guard:   booking.NewGuard(client, client, client),
		now:     func() time.Time { return time.Now().UTC() },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		syncCache(gctx, cache, client)
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return sh.loop(gctx, os.Stdin)
	})
	return g.Wait()
}

// sessionScope builds the task filter the kiosk session watches.
func sessionScope(staffID, date string, allDates bool, now time.Time) (domain.TaskFilter, error) {
	var scope domain.TaskFilter
	if staffID != "" {
		scope.StaffID = &staffID
	}
	if allDates {
		return scope, nil
	}
	day := domain.DateOf(now)
	if date != "" {
		var err error
		if day, err = domain.ParseDate(date); err != nil {
			return domain.TaskFilter{}, err
		}
	}
	scope.Date = &day
	return scope, nil
}

// syncCache keeps the cache subscribed, resubscribing whenever the feed drops.
func syncCache(ctx context.Context, cache *reconcile.Cache, sub reconcile.Subscriber) {
	for {
		err := cache.Run(ctx, sub)
		if ctx.Err() != nil {
			return
		}
		slog.WarnContext(ctx, "change feed lost, reconnecting",
			"error", err,
			"retry_in", reconnectDelay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}
