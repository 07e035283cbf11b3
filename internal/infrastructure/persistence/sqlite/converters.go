package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rezkam/housekeeping/internal/domain"
)

// timeLayout is fixed width so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func timePtrToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullToTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return domain.FormatDate(domain.DateOf(t))
}

func intPtrToNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullToIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func stringPtrToNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullToStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// parseTaskID validates a task ID and returns its canonical form.
func parseTaskID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidID, err)
	}
	return parsed.String(), nil
}

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

type taskRow struct {
	ID                string
	Date              string
	Status            string
	RoomID            string
	RoomName          string
	RoomGroup         string
	RoomColor         string
	StaffID           sql.NullString
	StaffName         sql.NullString
	CleaningType      string
	GuestCapacityID   sql.NullString
	TimeLimit         sql.NullInt64
	StartTime         sql.NullString
	PauseStart        sql.NullString
	PauseStop         sql.NullString
	StopTime          sql.NullString
	TotalPause        int64
	ActualTime        sql.NullInt64
	Difference        sql.NullInt64
	HousekeepingNotes string
	ReceptionNotes    string
	IssueFlag         bool
	IssueDescription  sql.NullString
	IssuePhoto        sql.NullString
	CreatedAt         string
	UpdatedAt         string
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *taskRow) scan(row scanner) error {
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
		return nil, fmt.Errorf("invalid status for task %s: %w", r.ID, err)
	}
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("invalid date for task %s: %w", r.ID, err)
	}

	t := &domain.Task{
		ID:     r.ID,
		Date:   date,
		Status: status,
		Room: domain.Room{
			ID:    r.RoomID,
			Name:  r.RoomName,
			Group: r.RoomGroup,
			Color: r.RoomColor,
		},
		CleaningType:      r.CleaningType,
		GuestCapacityID:   nullToStringPtr(r.GuestCapacityID),
		TimeLimit:         nullToIntPtr(r.TimeLimit),
		TotalPause:        int(r.TotalPause),
		ActualTime:        nullToIntPtr(r.ActualTime),
		Difference:        nullToIntPtr(r.Difference),
		HousekeepingNotes: r.HousekeepingNotes,
		ReceptionNotes:    r.ReceptionNotes,
		IssueFlag:         r.IssueFlag,
		IssueDescription:  nullToStringPtr(r.IssueDescription),
		IssuePhoto:        nullToStringPtr(r.IssuePhoto),
	}
	if r.StaffID.Valid {
		t.Staff = &domain.Staff{ID: r.StaffID.String, Name: r.StaffName.String}
	}

	for _, f := range []struct {
		dst **time.Time
		src sql.NullString
	}{
		{&t.StartTime, r.StartTime},
		{&t.PauseStart, r.PauseStart},
		{&t.PauseStop, r.PauseStop},
		{&t.StopTime, r.StopTime},
	} {
		if *f.dst, err = nullToTimePtr(f.src); err != nil {
			return nil, err
		}
	}
	if t.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(r.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// updateValue returns the column value for a masked field of params.
func updateValue(field string, p domain.UpdateTaskParams) (any, error) {
	switch field {
	case domain.FieldStatus:
		return string(*p.Status), nil
	case domain.FieldStaffID:
		return stringPtrToNull(p.StaffID), nil
	case domain.FieldStartTime:
		return timePtrToNull(p.StartTime), nil
	case domain.FieldPauseStart:
		return timePtrToNull(p.PauseStart), nil
	case domain.FieldPauseStop:
		return timePtrToNull(p.PauseStop), nil
	case domain.FieldStopTime:
		return timePtrToNull(p.StopTime), nil
	case domain.FieldTotalPause:
		return int64(*p.TotalPause), nil
	case domain.FieldActualTime:
		return intPtrToNull(p.ActualTime), nil
	case domain.FieldDifference:
		return intPtrToNull(p.Difference), nil
	case domain.FieldHousekeepingNotes:
		return *p.HousekeepingNotes, nil
	case domain.FieldReceptionNotes:
		return *p.ReceptionNotes, nil
	case domain.FieldIssueFlag:
		return *p.IssueFlag, nil
	case domain.FieldIssueDescription:
		return stringPtrToNull(p.IssueDescription), nil
	case domain.FieldIssuePhoto:
		return stringPtrToNull(p.IssuePhoto), nil
	case domain.FieldTimeLimit:
		return intPtrToNull(p.TimeLimit), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}
}
