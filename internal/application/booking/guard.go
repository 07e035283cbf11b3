// Package booking prevents two open tasks from targeting the same room on the same date.
//
// The guard runs two reads: an advisory one while the creation form is open,
// and a final one immediately before the insert. Neither is a lock. The store's
// unique index on (room, date) among open tasks is the last line of defense;
// the guard turns its violation into the same ErrRoomConflict the final check returns.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/housekeeping/internal/domain"
)

// Store is the subset of the task store the guard reads and writes.
type Store interface {
	FindTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)
}

// RoomCatalog lists the rooms tasks can be created for.
type RoomCatalog interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
}

// LimitLookup resolves the minutes budgeted for a cleaning type and guest capacity.
// Returns nil when no limit is configured.
type LimitLookup interface {
	TimeLimit(ctx context.Context, cleaningType string, guestCapacityID *string) (*int, error)
}

// CreateTaskParams describes a task reception wants to schedule.
type CreateTaskParams struct {
	Date            time.Time
	RoomID          string
	StaffID         *string // nil leaves the task unassigned
	CleaningType    string
	GuestCapacityID *string
	ReceptionNotes  string
}

// Guard performs the advisory and final room availability checks.
type Guard struct {
	store  Store
	rooms  RoomCatalog
	limits LimitLookup
	now    func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock sets the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard creates a guard. limits may be nil, in which case tasks are created without a time limit.
func NewGuard(store Store, rooms RoomCatalog, limits LimitLookup, opts ...Option) *Guard {
	g := &Guard{
		store:  store,
		rooms:  rooms,
		limits: limits,
		now:    func() time.Time { return time.Now().UTC() }, //nolint:clocknow
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// OccupiedRooms returns the IDs of rooms with an open task on date.
func (g *Guard) OccupiedRooms(ctx context.Context, date time.Time) (map[string]struct{}, error) {
	if date.IsZero() {
		return nil, domain.ErrDateRequired
	}
	day := domain.DateOf(date)
	tasks, err := g.store.FindTasks(ctx, domain.TaskFilter{
		Date:     &day,
		Statuses: domain.OpenStatuses(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks for %s: %w", domain.FormatDate(day), err)
	}

	occupied := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t.IsOpen() {
			occupied[t.Room.ID] = struct{}{}
		}
	}
	return occupied, nil
}

// AvailableRooms is the advisory check: the room catalog minus rooms already
// referenced by an open task on date, in catalog order.
func (g *Guard) AvailableRooms(ctx context.Context, date time.Time) ([]domain.Room, error) {
	occupied, err := g.OccupiedRooms(ctx, date)
	if err != nil {
		return nil, err
	}
	rooms, err := g.rooms.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	available := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if _, taken := occupied[r.ID]; !taken {
			available = append(available, r)
		}
	}
	return available, nil
}

// CreateTask performs the final check and inserts the task with status todo.
// Returns domain.ErrRoomConflict if the room already has an open task on the date,
// whether the final read or the store's unique index detected it.
func (g *Guard) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	roomID := strings.TrimSpace(params.RoomID)
	if roomID == "" {
		return nil, domain.ErrRoomRequired
	}
	if params.Date.IsZero() {
		return nil, domain.ErrDateRequired
	}
	day := domain.DateOf(params.Date)

	existing, err := g.store.FindTasks(ctx, domain.TaskFilter{
		RoomID:   &roomID,
		Date:     &day,
		Statuses: domain.OpenStatuses(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check room availability: %w", err)
	}
	if len(existing) > 0 {
		slog.InfoContext(ctx, "room already booked",
			"room_id", roomID,
			"date", domain.FormatDate(day),
			"existing_task_id", existing[0].ID)
		return nil, domain.ErrRoomConflict
	}

	var limit *int
	if g.limits != nil {
		limit, err = g.limits.TimeLimit(ctx, params.CleaningType, params.GuestCapacityID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve time limit: %w", err)
		}
	}

	idObj, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate id: %w", err)
	}

	now := g.now()
	task := &domain.Task{
		ID:              idObj.String(),
		Date:            day,
		Status:          domain.TaskStatusTodo,
		Room:            domain.Room{ID: roomID},
		CleaningType:    params.CleaningType,
		GuestCapacityID: params.GuestCapacityID,
		TimeLimit:       limit,
		ReceptionNotes:  params.ReceptionNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if params.StaffID != nil && *params.StaffID != "" {
		task.Staff = &domain.Staff{ID: *params.StaffID}
	}

	created, err := g.store.CreateTask(ctx, task)
	if err != nil {
		if errors.Is(err, domain.ErrRoomConflict) {
			slog.InfoContext(ctx, "room booked concurrently",
				"room_id", roomID,
				"date", domain.FormatDate(day))
			return nil, domain.ErrRoomConflict
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return created, nil
}
