package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rezkam/housekeeping/internal/domain"
)

// ChangeChannel is the NOTIFY channel the tasks trigger publishes on.
const ChangeChannel = "task_changes"

// Publisher receives decoded change events.
type Publisher interface {
	Publish(ctx context.Context, ev domain.TaskEvent)
}

// Listener turns trigger notifications into TaskEvents.
// It holds one pooled connection in LISTEN mode and reconnects on failure.
type Listener struct {
	store      *Store
	publisher  Publisher
	retryDelay time.Duration
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithRetryDelay sets the wait between reconnect attempts. Defaults to one second.
func WithRetryDelay(d time.Duration) ListenerOption {
	return func(l *Listener) {
		l.retryDelay = d
	}
}

// NewListener creates a listener publishing the store's row changes.
func NewListener(store *Store, publisher Publisher, opts ...ListenerOption) *Listener {
	l := &Listener{
		store:      store,
		publisher:  publisher,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run listens until ctx ends. Connection failures are logged and retried.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.WarnContext(ctx, "task change listener disconnected, retrying",
			"error", err,
			"retry_in", l.retryDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.store.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}
	slog.InfoContext(ctx, "listening for task changes", "channel", ChangeChannel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("failed waiting for notification: %w", err)
		}

		ev, err := decodeChange(n.Payload)
		if err != nil {
			slog.ErrorContext(ctx, "discarding malformed task change",
				"payload", n.Payload,
				"error", err)
			continue
		}
		l.enrich(ctx, &ev)
		l.publisher.Publish(ctx, ev)
	}
}

// enrich replaces the partial new row with the full joined row when it still exists.
func (l *Listener) enrich(ctx context.Context, ev *domain.TaskEvent) {
	if ev.New == nil {
		return
	}
	full, err := l.store.FindTaskByID(ctx, ev.New.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrTaskNotFound) {
			slog.WarnContext(ctx, "failed to load changed task", "task_id", ev.New.ID, "error", err)
		}
		return
	}
	// A later write may already be visible. Keep the notified row unless the
	// loaded one agrees on every field subscriptions filter by.
	if full.Status != ev.New.Status ||
		full.StaffID() != ev.New.StaffID() ||
		full.Room.ID != ev.New.Room.ID ||
		!full.Date.Equal(ev.New.Date) {
		return
	}
	ev.New = full
}

type changePayload struct {
	Type string     `json:"type"`
	Old  *changeRow `json:"old"`
	New  *changeRow `json:"new"`
}

type changeRow struct {
	ID      string  `json:"id"`
	Date    string  `json:"date"`
	Status  string  `json:"status"`
	RoomID  string  `json:"room_id"`
	StaffID *string `json:"staff_id"`
}

// decodeChange parses a trigger payload into a partial TaskEvent.
func decodeChange(payload string) (domain.TaskEvent, error) {
	var p changePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return domain.TaskEvent{}, fmt.Errorf("invalid change payload: %w", err)
	}

	ev := domain.TaskEvent{Type: domain.EventType(p.Type)}
	switch ev.Type {
	case domain.EventInsert, domain.EventUpdate, domain.EventDelete:
	default:
		return domain.TaskEvent{}, fmt.Errorf("unknown change type %q", p.Type)
	}

	var err error
	if ev.Old, err = p.Old.toDomain(); err != nil {
		return domain.TaskEvent{}, err
	}
	if ev.New, err = p.New.toDomain(); err != nil {
		return domain.TaskEvent{}, err
	}
	if ev.Old == nil && ev.New == nil {
		return domain.TaskEvent{}, errors.New("change payload has no rows")
	}
	return ev, nil
}

func (r *changeRow) toDomain() (*domain.Task, error) {
	if r == nil {
		return nil, nil
	}
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	status, err := domain.NewTaskStatus(r.Status)
	if err != nil {
		return nil, err
	}
	t := &domain.Task{
		ID:     r.ID,
		Date:   date,
		Status: status,
		Room:   domain.Room{ID: r.RoomID},
	}
	if r.StaffID != nil {
		t.Staff = &domain.Staff{ID: *r.StaffID}
	}
	return t, nil
}
