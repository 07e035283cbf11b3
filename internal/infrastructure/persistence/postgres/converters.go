package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rezkam/housekeeping/internal/domain"
)

// === pgtype Conversion Helpers ===

// uuidToPgtype converts google/uuid.UUID to pgtype.UUID.
func uuidToPgtype(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// pgtypeToUUIDString converts pgtype.UUID to string (empty if invalid).
func pgtypeToUUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// parseTaskID validates a task ID. Task IDs are UUIDs in this store.
func parseTaskID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	return uuidToPgtype(parsed), nil
}

// timeToPgtype converts time.Time to pgtype.Timestamptz.
func timeToPgtype(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// pgtypeToTime converts pgtype.Timestamptz to time.Time (zero if invalid).
// Always returns time in UTC location for consistent timezone handling.
func pgtypeToTime(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// pgtypeToTimePtr converts pgtype.Timestamptz to *time.Time (nil if invalid).
func pgtypeToTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	utcTime := t.Time.UTC()
	return &utcTime
}

// timePtrToPgtype converts *time.Time to pgtype.Timestamptz.
// For nil pointers, returns NULL (Valid: false) to store NULL in the database.
func timePtrToPgtype(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// dateToPgtype converts a task date to pgtype.Date.
func dateToPgtype(t time.Time) pgtype.Date {
	return pgtype.Date{Time: domain.DateOf(t), Valid: true}
}

// pgtypeToDate converts pgtype.Date to UTC midnight (zero if invalid).
func pgtypeToDate(d pgtype.Date) time.Time {
	if !d.Valid {
		return time.Time{}
	}
	return domain.DateOf(d.Time)
}

// intPtrToPgtype converts *int to pgtype.Int4 (NULL for nil).
func intPtrToPgtype(v *int) pgtype.Int4 {
	if v == nil {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(*v), Valid: true}
}

// pgtypeToIntPtr converts pgtype.Int4 to *int (nil if NULL).
func pgtypeToIntPtr(v pgtype.Int4) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int32)
	return &i
}

// stringPtrToPgtype converts *string to pgtype.Text (NULL for nil).
func stringPtrToPgtype(v *string) pgtype.Text {
	if v == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *v, Valid: true}
}

// pgtypeToStringPtr converts pgtype.Text to *string (nil if NULL).
func pgtypeToStringPtr(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// domainStatusesToStrings converts domain TaskStatus slice to string slice for SQL queries.
func domainStatusesToStrings(statuses []domain.TaskStatus) []string {
	result := make([]string, len(statuses))
	for i, s := range statuses {
		result[i] = string(s)
	}
	return result
}

// === Task Conversions ===

// taskColumns is the select list matching taskRow.scan, joined with rooms (r) and staff (s).
const taskColumns = `t.id, t.date, t.status,
	t.room_id, r.name, r.room_group, r.color,
	t.staff_id, s.name,
	t.cleaning_type, t.guest_capacity_id, t.time_limit,
	t.start_time, t.pause_start, t.pause_stop, t.stop_time,
	t.total_pause, t.actual_time, t.difference,
	t.housekeeping_notes, t.reception_notes,
	t.issue_flag, t.issue_description, t.issue_photo,
	t.created_at, t.updated_at`

// taskRow mirrors one row of taskColumns.
type taskRow struct {
	ID                pgtype.UUID
	Date              pgtype.Date
	Status            string
	RoomID            string
	RoomName          string
	RoomGroup         string
	RoomColor         string
	StaffID           pgtype.Text
	StaffName         pgtype.Text
	CleaningType      string
	GuestCapacityID   pgtype.Text
	TimeLimit         pgtype.Int4
	StartTime         pgtype.Timestamptz
	PauseStart        pgtype.Timestamptz
	PauseStop         pgtype.Timestamptz
	StopTime          pgtype.Timestamptz
	TotalPause        int32
	ActualTime        pgtype.Int4
	Difference        pgtype.Int4
	HousekeepingNotes string
	ReceptionNotes    string
	IssueFlag         bool
	IssueDescription  pgtype.Text
	IssuePhoto        pgtype.Text
	CreatedAt         pgtype.Timestamptz
	UpdatedAt         pgtype.Timestamptz
}

func (r *taskRow) scan(row pgx.Row) error {
	return row.Scan(
		&r.ID, &r.Date, &r.Status,
		&r.RoomID, &r.RoomName, &r.RoomGroup, &r.RoomColor,
		&r.StaffID, &r.StaffName,
		&r.CleaningType, &r.GuestCapacityID, &r.TimeLimit,
		&r.StartTime, &r.PauseStart, &r.PauseStop, &r.StopTime,
		&r.TotalPause, &r.ActualTime, &r.Difference,
		&r.HousekeepingNotes, &r.ReceptionNotes,
		&r.IssueFlag, &r.IssueDescription, &r.IssuePhoto,
		&r.CreatedAt, &r.UpdatedAt,
	)
}

func dbTaskToDomain(r taskRow) (*domain.Task, error) {
	status, err := domain.NewTaskStatus(r.Status)
	if err != nil {
		return nil, fmt.Errorf("invalid status for task %s: %w", pgtypeToUUIDString(r.ID), err)
	}

	t := &domain.Task{
		ID:     pgtypeToUUIDString(r.ID),
		Date:   pgtypeToDate(r.Date),
		Status: status,
		Room: domain.Room{
			ID:    r.RoomID,
			Name:  r.RoomName,
			Group: r.RoomGroup,
			Color: r.RoomColor,
		},
		CleaningType:      r.CleaningType,
		GuestCapacityID:   pgtypeToStringPtr(r.GuestCapacityID),
		TimeLimit:         pgtypeToIntPtr(r.TimeLimit),
		StartTime:         pgtypeToTimePtr(r.StartTime),
		PauseStart:        pgtypeToTimePtr(r.PauseStart),
		PauseStop:         pgtypeToTimePtr(r.PauseStop),
		StopTime:          pgtypeToTimePtr(r.StopTime),
		TotalPause:        int(r.TotalPause),
		ActualTime:        pgtypeToIntPtr(r.ActualTime),
		Difference:        pgtypeToIntPtr(r.Difference),
		HousekeepingNotes: r.HousekeepingNotes,
		ReceptionNotes:    r.ReceptionNotes,
		IssueFlag:         r.IssueFlag,
		IssueDescription:  pgtypeToStringPtr(r.IssueDescription),
		IssuePhoto:        pgtypeToStringPtr(r.IssuePhoto),
		CreatedAt:         pgtypeToTime(r.CreatedAt),
		UpdatedAt:         pgtypeToTime(r.UpdatedAt),
	}
	if r.StaffID.Valid {
		t.Staff = &domain.Staff{ID: r.StaffID.String, Name: r.StaffName.String}
	}
	return t, nil
}

// updateValue returns the column value for a masked field of params.
func updateValue(field string, p domain.UpdateTaskParams) (any, error) {
	switch field {
	case domain.FieldStatus:
		return string(*p.Status), nil
	case domain.FieldStaffID:
		return stringPtrToPgtype(p.StaffID), nil
	case domain.FieldStartTime:
		return timePtrToPgtype(p.StartTime), nil
	case domain.FieldPauseStart:
		return timePtrToPgtype(p.PauseStart), nil
	case domain.FieldPauseStop:
		return timePtrToPgtype(p.PauseStop), nil
	case domain.FieldStopTime:
		return timePtrToPgtype(p.StopTime), nil
	case domain.FieldTotalPause:
		return int32(*p.TotalPause), nil
	case domain.FieldActualTime:
		return intPtrToPgtype(p.ActualTime), nil
	case domain.FieldDifference:
		return intPtrToPgtype(p.Difference), nil
	case domain.FieldHousekeepingNotes:
		return *p.HousekeepingNotes, nil
	case domain.FieldReceptionNotes:
		return *p.ReceptionNotes, nil
	case domain.FieldIssueFlag:
		return *p.IssueFlag, nil
	case domain.FieldIssueDescription:
		return stringPtrToPgtype(p.IssueDescription), nil
	case domain.FieldIssuePhoto:
		return stringPtrToPgtype(p.IssuePhoto), nil
	case domain.FieldTimeLimit:
		return intPtrToPgtype(p.TimeLimit), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}
}
