// Package storetest holds the behavior every Task Store implementation must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/application/booking"
	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
)

// Store is the surface the suite exercises.
type Store interface {
	task.Repository
	booking.RoomCatalog
	booking.LimitLookup
	SaveCatalog(ctx context.Context, catalog domain.Catalog) error
}

// Catalog is the fixture every subtest starts from.
var Catalog = domain.Catalog{
	Rooms: []domain.Room{
		{ID: "101", Name: "Room 101", Group: "floor 1", Color: "#ff0000"},
		{ID: "102", Name: "Room 102", Group: "floor 1", Color: "#00ff00"},
		{ID: "201", Name: "Suite 201", Group: "suite", Color: "#0000ff"},
	},
	Staff: []domain.Staff{
		{ID: "maria", Name: "Maria"},
		{ID: "jonas", Name: "Jonas"},
	},
	TimeLimits: []domain.TimeLimit{
		{CleaningType: "departure", Minutes: 30},
		{CleaningType: "departure", GuestCapacityID: ptr.To("4p"), Minutes: 45},
		{CleaningType: "stayover", GuestCapacityID: ptr.To("2p"), Minutes: 15},
	},
}

// Day is the date fixture tasks are scheduled on.
var Day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// NewTask builds an unsaved todo task for room on date.
func NewTask(roomID string, date time.Time, staffID string) *domain.Task {
	t := &domain.Task{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Date:         date,
		Status:       domain.TaskStatusTodo,
		Room:         domain.Room{ID: roomID},
		CleaningType: "departure",
		TimeLimit:    ptr.To(30),
	}
	if staffID != "" {
		t.Staff = &domain.Staff{ID: staffID}
	}
	return t
}

// RunTaskStoreSuite runs the shared Task Store behaviors.
// setup returns a fresh, empty store and a teardown function.
func RunTaskStoreSuite(t *testing.T, setup func(t *testing.T) (Store, func())) {
	fresh := func(t *testing.T) (Store, context.Context) {
		t.Helper()
		store, teardown := setup(t)
		t.Cleanup(teardown)
		ctx := context.Background()
		require.NoError(t, store.SaveCatalog(ctx, Catalog))
		return store, ctx
	}

	t.Run("CreateAndFindByID", func(t *testing.T) {
		store, ctx := fresh(t)

		in := NewTask("201", Day, "maria")
		in.GuestCapacityID = ptr.To("4p")
		in.ReceptionNotes = "late checkout"

		created, err := store.CreateTask(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in.ID, created.ID)
		assert.Equal(t, domain.TaskStatusTodo, created.Status)
		assert.Equal(t, "Suite 201", created.Room.Name)
		assert.Equal(t, "suite", created.Room.Group)
		require.NotNil(t, created.Staff)
		assert.Equal(t, "Maria", created.Staff.Name)
		assert.True(t, created.Date.Equal(Day))
		assert.Equal(t, ptr.To("4p"), created.GuestCapacityID)
		assert.Equal(t, ptr.To(30), created.TimeLimit)
		assert.Equal(t, "late checkout", created.ReceptionNotes)
		assert.Nil(t, created.StartTime)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := store.FindTaskByID(ctx, in.ID)
		require.NoError(t, err)
		assert.Equal(t, created, found)
	})

	t.Run("FindTaskByIDNotFound", func(t *testing.T) {
		store, ctx := fresh(t)

		_, err := store.FindTaskByID(ctx, uuid.Must(uuid.NewV7()).String())
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("CreateUnassigned", func(t *testing.T) {
		store, ctx := fresh(t)

		created, err := store.CreateTask(ctx, NewTask("101", Day, ""))
		require.NoError(t, err)
		assert.Nil(t, created.Staff)
	})

	t.Run("CreateUnknownRoom", func(t *testing.T) {
		store, ctx := fresh(t)

		_, err := store.CreateTask(ctx, NewTask("999", Day, ""))
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})

	t.Run("CreateUnknownStaff", func(t *testing.T) {
		store, ctx := fresh(t)

		_, err := store.CreateTask(ctx, NewTask("101", Day, "ghost"))
		assert.ErrorIs(t, err, domain.ErrStaffNotFound)
	})

	t.Run("FindTasksFilterAndOrder", func(t *testing.T) {
		store, ctx := fresh(t)
		next := Day.AddDate(0, 0, 1)

		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		mk := func(room string, date time.Time, staff string, offset time.Duration) *domain.Task {
			tk := NewTask(room, date, staff)
			tk.CreatedAt = base.Add(offset)
			created, err := store.CreateTask(ctx, tk)
			require.NoError(t, err)
			return created
		}
		late := mk("101", Day, "maria", 2*time.Minute)
		early := mk("102", Day, "maria", time.Minute)
		tomorrow := mk("201", next, "maria", 0)
		other := mk("201", Day, "jonas", 0)

		all, err := store.FindTasks(ctx, domain.TaskFilter{StaffID: ptr.To("maria")})
		require.NoError(t, err)
		assert.Equal(t, []string{early.ID, late.ID, tomorrow.ID}, ids(all))

		day, err := store.FindTasks(ctx, domain.TaskFilter{Date: &Day})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{early.ID, late.ID, other.ID}, ids(day))
		assert.Equal(t, other.ID, day[0].ID)

		room, err := store.FindTasks(ctx, domain.TaskFilter{RoomID: ptr.To("201"), Date: &next})
		require.NoError(t, err)
		assert.Equal(t, []string{tomorrow.ID}, ids(room))

		none, err := store.FindTasks(ctx, domain.TaskFilter{StaffID: ptr.To("nobody")})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("FindTasksByStatus", func(t *testing.T) {
		store, ctx := fresh(t)

		open, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)
		closed := NewTask("102", Day, "maria")
		closed.Status = domain.TaskStatusDone
		_, err = store.CreateTask(ctx, closed)
		require.NoError(t, err)

		got, err := store.FindTasks(ctx, domain.TaskFilter{Statuses: domain.OpenStatuses()})
		require.NoError(t, err)
		assert.Equal(t, []string{open.ID}, ids(got))
	})

	t.Run("UpdateWritesOnlyMaskedFields", func(t *testing.T) {
		store, ctx := fresh(t)

		in := NewTask("101", Day, "maria")
		in.ReceptionNotes = "keep me"
		created, err := store.CreateTask(ctx, in)
		require.NoError(t, err)

		start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		updated, err := store.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:     created.ID,
			UpdateMask: []string{domain.FieldStatus, domain.FieldStartTime, domain.FieldPauseStop},
			Status:     ptr.To(domain.TaskStatusInProgress),
			StartTime:  &start,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusInProgress, updated.Status)
		require.NotNil(t, updated.StartTime)
		assert.True(t, updated.StartTime.Equal(start))
		assert.Nil(t, updated.PauseStop)
		assert.Equal(t, "keep me", updated.ReceptionNotes)
		assert.Equal(t, "Room 101", updated.Room.Name)
		require.NotNil(t, updated.Staff)
		assert.Equal(t, "Maria", updated.Staff.Name)
	})

	t.Run("UpdateClearsNullableField", func(t *testing.T) {
		store, ctx := fresh(t)

		created, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)

		updated, err := store.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:     created.ID,
			UpdateMask: []string{domain.FieldTimeLimit, domain.FieldStaffID},
		})
		require.NoError(t, err)
		assert.Nil(t, updated.TimeLimit)
		assert.Nil(t, updated.Staff)
	})

	t.Run("ConditionalUpdate", func(t *testing.T) {
		store, ctx := fresh(t)

		created, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)

		_, err = store.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:         created.ID,
			ExpectedStatus: ptr.To(domain.TaskStatusTodo),
			UpdateMask:     []string{domain.FieldStatus},
			Status:         ptr.To(domain.TaskStatusInProgress),
		})
		require.NoError(t, err)

		// Same precondition again: the row moved on, so the write must miss.
		_, err = store.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:         created.ID,
			ExpectedStatus: ptr.To(domain.TaskStatusTodo),
			UpdateMask:     []string{domain.FieldStatus},
			Status:         ptr.To(domain.TaskStatusPaused),
		})
		assert.ErrorIs(t, err, domain.ErrStaleTask)
		assert.True(t, domain.IsConflict(err))

		current, err := store.FindTaskByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusInProgress, current.Status)
	})

	t.Run("UpdateNotFound", func(t *testing.T) {
		store, ctx := fresh(t)

		_, err := store.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:         uuid.Must(uuid.NewV7()).String(),
			ExpectedStatus: ptr.To(domain.TaskStatusTodo),
			UpdateMask:     []string{domain.FieldStatus},
			Status:         ptr.To(domain.TaskStatusInProgress),
		})
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("UpdateRejectsInvalidParams", func(t *testing.T) {
		store, ctx := fresh(t)

		created, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)

		_, err = store.UpdateTask(ctx, domain.UpdateTaskParams{TaskID: created.ID})
		assert.ErrorIs(t, err, domain.ErrEmptyUpdateMask)

		_, err = store.UpdateTask(ctx, domain.UpdateTaskParams{TaskID: created.ID, UpdateMask: []string{"room_id"}})
		assert.ErrorIs(t, err, domain.ErrUnknownField)

		_, err = store.UpdateTask(ctx, domain.UpdateTaskParams{TaskID: "not-a-uuid", UpdateMask: []string{domain.FieldStatus}, Status: ptr.To(domain.TaskStatusDone)})
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("RoomConflictOnOpenTask", func(t *testing.T) {
		store, ctx := fresh(t)

		_, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)

		_, err = store.CreateTask(ctx, NewTask("101", Day, "jonas"))
		assert.ErrorIs(t, err, domain.ErrRoomConflict)

		// Another date is fine.
		_, err = store.CreateTask(ctx, NewTask("101", Day.AddDate(0, 0, 1), "jonas"))
		assert.NoError(t, err)
	})

	t.Run("DoneTaskFreesRoom", func(t *testing.T) {
		store, ctx := fresh(t)

		created, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)
		_, err = store.UpdateTask(ctx, domain.UpdateTaskParams{
			TaskID:     created.ID,
			UpdateMask: []string{domain.FieldStatus},
			Status:     ptr.To(domain.TaskStatusDone),
		})
		require.NoError(t, err)

		_, err = store.CreateTask(ctx, NewTask("101", Day, "jonas"))
		assert.NoError(t, err)
	})

	t.Run("SingleActiveTaskPerStaff", func(t *testing.T) {
		store, ctx := fresh(t)

		first, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)
		second, err := store.CreateTask(ctx, NewTask("102", Day, "maria"))
		require.NoError(t, err)

		start := func(id string) error {
			_, err := store.UpdateTask(ctx, domain.UpdateTaskParams{
				TaskID:         id,
				ExpectedStatus: ptr.To(domain.TaskStatusTodo),
				UpdateMask:     []string{domain.FieldStatus},
				Status:         ptr.To(domain.TaskStatusInProgress),
			})
			return err
		}
		require.NoError(t, start(first.ID))
		err = start(second.ID)
		assert.ErrorIs(t, err, domain.ErrActiveTaskConflict)

		current, err := store.FindTaskByID(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatusTodo, current.Status)
	})

	t.Run("DeleteTask", func(t *testing.T) {
		store, ctx := fresh(t)

		created, err := store.CreateTask(ctx, NewTask("101", Day, "maria"))
		require.NoError(t, err)

		require.NoError(t, store.DeleteTask(ctx, created.ID))
		_, err = store.FindTaskByID(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		err = store.DeleteTask(ctx, created.ID)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("ListRoomsInCatalogOrder", func(t *testing.T) {
		store, ctx := fresh(t)

		rooms, err := store.ListRooms(ctx)
		require.NoError(t, err)
		assert.Equal(t, Catalog.Rooms, rooms)
	})

	t.Run("SaveCatalogIsIdempotent", func(t *testing.T) {
		store, ctx := fresh(t)

		renamed := domain.Catalog{Rooms: []domain.Room{{ID: "101", Name: "Room 101a", Group: "floor 1", Color: "#ff0000"}}}
		require.NoError(t, store.SaveCatalog(ctx, renamed))

		rooms, err := store.ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, len(Catalog.Rooms))
		assert.Equal(t, "Room 101a", rooms[0].Name)
	})

	t.Run("TimeLimitLookup", func(t *testing.T) {
		store, ctx := fresh(t)

		tests := []struct {
			name         string
			cleaningType string
			capacity     *string
			want         *int
		}{
			{"exact capacity", "departure", ptr.To("4p"), ptr.To(45)},
			{"falls back to default", "departure", ptr.To("2p"), ptr.To(30)},
			{"no capacity uses default", "departure", nil, ptr.To(30)},
			{"no default configured", "stayover", ptr.To("4p"), nil},
			{"unknown type", "deep-clean", nil, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := store.TimeLimit(ctx, tt.cleaningType, tt.capacity)
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			})
		}
	})
}

func ids(tasks []*domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
