package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rezkam/housekeeping/internal/domain"
)

const taskFrom = ` FROM tasks t
	JOIN rooms r ON r.id = t.room_id
	LEFT JOIN staff s ON s.id = t.staff_id`

const taskOrder = ` ORDER BY t.date ASC, t.created_at ASC, t.id ASC`

// FindTasks returns the tasks matching filter ordered by (date, created_at).
func (s *Store) FindTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.StaffID != nil {
		where = append(where, "t.staff_id = ?")
		args = append(args, *filter.StaffID)
	}
	if filter.Date != nil {
		where = append(where, "t.date = ?")
		args = append(args, formatDate(*filter.Date))
	}
	if filter.RoomID != nil {
		where = append(where, "t.room_id = ?")
		args = append(args, *filter.RoomID)
	}
	if len(filter.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		where = append(where, "t.status IN ("+marks+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}

	query := "SELECT " + taskColumns + taskFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += taskOrder

	rows, err := s.q.QueryContext(ctx, query, args...)
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
	return s.findTask(ctx, taskID)
}

func (s *Store) findTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var r taskRow
	err := r.scan(s.q.QueryRowContext(ctx, "SELECT "+taskColumns+taskFrom+" WHERE t.id = ?", taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return dbTaskToDomain(r)
}

// UpdateTask writes only the masked fields inside one transaction.
// With ExpectedStatus set the write is conditional on the stored status;
// a miss is reported as ErrStaleTask, or ErrTaskNotFound if the row is gone.
func (s *Store) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	taskID, err := parseTaskID(params.TaskID)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(params.UpdateMask)+1)
	args := make([]any, 0, len(params.UpdateMask)+3)
	for _, field := range params.UpdateMask {
		v, err := updateValue(field, params)
		if err != nil {
			return nil, err
		}
		sets = append(sets, field+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()))

	var ev domain.TaskEvent
	err = s.executeInTransaction(ctx, "update_task", func(tx *Store) error {
		old, err := tx.findTask(ctx, taskID)
		if err != nil {
			return err
		}
		if params.ExpectedStatus != nil && old.Status != *params.ExpectedStatus {
			return fmt.Errorf("%w: expected status %s, current status %s",
				domain.ErrStaleTask, *params.ExpectedStatus, old.Status)
		}

		query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := tx.q.ExecContext(ctx, query, append(args, taskID)...); err != nil {
			err = mapWriteError(err)
			if errors.Is(err, errForeignKey) {
				err = tx.classifyForeignKey(ctx, old.Room.ID, params.StaffID)
			}
			return fmt.Errorf("failed to update task: %w", err)
		}

		updated, err := tx.findTask(ctx, taskID)
		if err != nil {
			return err
		}
		ev = domain.TaskEvent{Type: domain.EventUpdate, Old: old, New: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ev)
	return ev.New.Clone(), nil
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

	var created *domain.Task
	err = s.executeInTransaction(ctx, "create_task", func(tx *Store) error {
		_, err := tx.q.ExecContext(ctx, `INSERT INTO tasks (
				id, date, status, room_id, staff_id,
				cleaning_type, guest_capacity_id, time_limit,
				housekeeping_notes, reception_notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			taskID,
			formatDate(t.Date),
			string(status),
			t.Room.ID,
			stringPtrToNull(staffID),
			t.CleaningType,
			stringPtrToNull(t.GuestCapacityID),
			intPtrToNull(t.TimeLimit),
			t.HousekeepingNotes,
			t.ReceptionNotes,
			formatTime(createdAt),
			formatTime(updatedAt),
		)
		if err != nil {
			err = mapWriteError(err)
			if errors.Is(err, errForeignKey) {
				err = tx.classifyForeignKey(ctx, t.Room.ID, staffID)
			}
			return fmt.Errorf("failed to create task: %w", err)
		}

		created, err = tx.findTask(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TaskEvent{Type: domain.EventInsert, New: created})
	return created.Clone(), nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	taskID, err := parseTaskID(id)
	if err != nil {
		return err
	}

	var old *domain.Task
	err = s.executeInTransaction(ctx, "delete_task", func(tx *Store) error {
		var err error
		if old, err = tx.findTask(ctx, taskID); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.TaskEvent{Type: domain.EventDelete, Old: old})
	return nil
}

// classifyForeignKey reports which referenced row is missing.
func (s *Store) classifyForeignKey(ctx context.Context, roomID string, staffID *string) error {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT count(*) FROM rooms WHERE id = ?", roomID).Scan(&n); err != nil {
		return fmt.Errorf("failed to check room: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	if staffID != nil {
		if err := s.q.QueryRowContext(ctx, "SELECT count(*) FROM staff WHERE id = ?", *staffID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check staff: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrStaffNotFound, *staffID)
		}
	}
	return errForeignKey
}
