package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rezkam/housekeeping/internal/domain"
)

// Constraint names from the migrations, mapped to domain errors on violation.
const (
	constraintOpenRoomDate = "tasks_open_room_date_key"
	constraintActiveStaff  = "tasks_active_staff_key"
	constraintRoomFK       = "tasks_room_id_fkey"
	constraintStaffFK      = "tasks_staff_id_fkey"
)

const taskFrom = ` FROM tasks t
	JOIN rooms r ON r.id = t.room_id
	LEFT JOIN staff s ON s.id = t.staff_id`

const taskOrder = ` ORDER BY t.date ASC, t.created_at ASC, t.id ASC`

// mapWriteError translates constraint violations into domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case constraintOpenRoomDate:
			return fmt.Errorf("%w: %w", domain.ErrRoomConflict, err)
		case constraintActiveStaff:
			return fmt.Errorf("%w: %w", domain.ErrActiveTaskConflict, err)
		}
	case "23503": // foreign_key_violation
		switch pgErr.ConstraintName {
		case constraintRoomFK:
			return fmt.Errorf("%w: %w", domain.ErrRoomNotFound, err)
		case constraintStaffFK:
			return fmt.Errorf("%w: %w", domain.ErrStaffNotFound, err)
		}
	}
	return err
}

// FindTasks returns the tasks matching filter ordered by (date, created_at).
func (s *Store) FindTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.StaffID != nil {
		where = append(where, "t.staff_id = "+arg(*filter.StaffID))
	}
	if filter.Date != nil {
		where = append(where, "t.date = "+arg(dateToPgtype(*filter.Date)))
	}
	if filter.RoomID != nil {
		where = append(where, "t.room_id = "+arg(*filter.RoomID))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "t.status = ANY("+arg(domainStatusesToStrings(filter.Statuses))+")")
	}

	query := "SELECT " + taskColumns + taskFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += taskOrder

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var r taskRow
		if err := r.scan(rows); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t, err := dbTaskToDomain(r)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

// FindTaskByID retrieves a task with its room and staff display data.
func (s *Store) FindTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	taskID, err := parseTaskID(id)
	if err != nil {
		return nil, err
	}

	var r taskRow
	err = r.scan(s.db.QueryRow(ctx, "SELECT "+taskColumns+taskFrom+" WHERE t.id = $1", taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return dbTaskToDomain(r)
}

// UpdateTask writes only the masked fields in a single statement.
// With ExpectedStatus set the statement is conditional on the stored status;
// a miss is reported as ErrStaleTask, or ErrTaskNotFound if the row is gone.
func (s *Store) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	taskID, err := parseTaskID(params.TaskID)
	if err != nil {
		return nil, err
	}

	args := []any{taskID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sets := make([]string, 0, len(params.UpdateMask)+1)
	for _, field := range params.UpdateMask {
		v, err := updateValue(field, params)
		if err != nil {
			return nil, err
		}
		sets = append(sets, field+" = "+arg(v))
	}
	sets = append(sets, "updated_at = now()")

	cond := "id = $1"
	if params.ExpectedStatus != nil {
		cond += " AND status = " + arg(string(*params.ExpectedStatus))
	}

	query := `WITH t AS (UPDATE tasks SET ` + strings.Join(sets, ", ") + ` WHERE ` + cond + ` RETURNING *)
		SELECT ` + taskColumns + ` FROM t
		JOIN rooms r ON r.id = t.room_id
		LEFT JOIN staff s ON s.id = t.staff_id`

	var r taskRow
	err = r.scan(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyMiss(ctx, taskID, params)
		}
		return nil, fmt.Errorf("failed to update task: %w", mapWriteError(err))
	}
	return dbTaskToDomain(r)
}

// classifyMiss distinguishes a missing row from a failed status condition.
func (s *Store) classifyMiss(ctx context.Context, taskID any, params domain.UpdateTaskParams) error {
	var current string
	err := s.db.QueryRow(ctx, "SELECT status FROM tasks WHERE id = $1", taskID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, params.TaskID)
		}
		return fmt.Errorf("failed to check task existence: %w", err)
	}
	if params.ExpectedStatus != nil {
		return fmt.Errorf("%w: expected status %s, current status %s",
			domain.ErrStaleTask, *params.ExpectedStatus, current)
	}
	return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, params.TaskID)
}

// CreateTask inserts a task and returns it with joined display data.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	taskID, err := parseTaskID(t.ID)
	if err != nil {
		return nil, err
	}
	if t.Room.ID == "" {
		return nil, domain.ErrRoomRequired
	}
	status := t.Status
	if status == "" {
		status = domain.TaskStatusTodo
	}

	var staffID *string
	if t.Staff != nil {
		staffID = &t.Staff.ID
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := t.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.db.Exec(ctx, `INSERT INTO tasks (
			id, date, status, room_id, staff_id,
			cleaning_type, guest_capacity_id, time_limit,
			housekeeping_notes, reception_notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		taskID,
		dateToPgtype(t.Date),
		string(status),
		t.Room.ID,
		stringPtrToPgtype(staffID),
		t.CleaningType,
		stringPtrToPgtype(t.GuestCapacityID),
		intPtrToPgtype(t.TimeLimit),
		t.HousekeepingNotes,
		t.ReceptionNotes,
		timeToPgtype(createdAt),
		timeToPgtype(updatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", mapWriteError(err))
	}

	return s.FindTaskByID(ctx, t.ID)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	taskID, err := parseTaskID(id)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, "DELETE FROM tasks WHERE id = $1", taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return nil
}
