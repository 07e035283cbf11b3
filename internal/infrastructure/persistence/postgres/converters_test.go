package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
)

func TestDbTaskToDomain(t *testing.T) {
	id := uuid.Must(uuid.NewV7())
	start := time.Date(2025, 6, 1, 9, 5, 0, 0, time.FixedZone("CEST", 2*60*60))

	row := taskRow{
		ID:              uuidToPgtype(id),
		Date:            pgtype.Date{Time: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		Status:          "in_progress",
		RoomID:          "101",
		RoomName:        "Room 101",
		RoomGroup:       "floor 1",
		RoomColor:       "#ff0000",
		StaffID:         pgtype.Text{String: "staff-a", Valid: true},
		StaffName:       pgtype.Text{String: "Alex", Valid: true},
		CleaningType:    "departure",
		GuestCapacityID: pgtype.Text{String: "2", Valid: true},
		TimeLimit:       pgtype.Int4{Int32: 30, Valid: true},
		StartTime:       pgtype.Timestamptz{Time: start, Valid: true},
		TotalPause:      5,
		CreatedAt:       pgtype.Timestamptz{Time: start, Valid: true},
		UpdatedAt:       pgtype.Timestamptz{Time: start, Valid: true},
	}

	task, err := dbTaskToDomain(row)
	require.NoError(t, err)

	assert.Equal(t, id.String(), task.ID)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	assert.Equal(t, domain.Room{ID: "101", Name: "Room 101", Group: "floor 1", Color: "#ff0000"}, task.Room)
	require.NotNil(t, task.Staff)
	assert.Equal(t, domain.Staff{ID: "staff-a", Name: "Alex"}, *task.Staff)
	assert.Equal(t, ptr.To("2"), task.GuestCapacityID)
	assert.Equal(t, ptr.To(30), task.TimeLimit)
	require.NotNil(t, task.StartTime)
	assert.Equal(t, time.UTC, task.StartTime.Location(), "timestamps are normalized to UTC")
	assert.True(t, start.Equal(*task.StartTime))
	assert.Nil(t, task.PauseStart)
	assert.Nil(t, task.ActualTime)
	assert.Equal(t, 5, task.TotalPause)
}

func TestDbTaskToDomain_Unassigned(t *testing.T) {
	row := taskRow{
		ID:     uuidToPgtype(uuid.Must(uuid.NewV7())),
		Date:   pgtype.Date{Time: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		Status: "todo",
	}

	task, err := dbTaskToDomain(row)
	require.NoError(t, err)
	assert.Nil(t, task.Staff)
	assert.Nil(t, task.GuestCapacityID)
}

func TestDbTaskToDomain_InvalidStatus(t *testing.T) {
	_, err := dbTaskToDomain(taskRow{Status: "archived"})
	require.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
}

func TestUpdateValue_NullsClearColumns(t *testing.T) {
	params := domain.UpdateTaskParams{TaskID: "x", UpdateMask: []string{domain.FieldPauseStart}}

	v, err := updateValue(domain.FieldPauseStart, params)
	require.NoError(t, err)
	assert.Equal(t, pgtype.Timestamptz{Valid: false}, v)

	v, err = updateValue(domain.FieldActualTime, params)
	require.NoError(t, err)
	assert.Equal(t, pgtype.Int4{Valid: false}, v)

	_, err = updateValue("title", params)
	require.ErrorIs(t, err, domain.ErrUnknownField)
}

func TestParseTaskID(t *testing.T) {
	_, err := parseTaskID("not-a-uuid")
	require.ErrorIs(t, err, domain.ErrInvalidID)

	id := uuid.Must(uuid.NewV7())
	got, err := parseTaskID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id.String(), pgtypeToUUIDString(got))
}
