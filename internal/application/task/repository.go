package task

import (
	"context"

	"github.com/rezkam/housekeeping/internal/domain"
)

// Repository is the Task Store contract: the single source of truth for tasks,
// shared by every client. All returned tasks carry joined room and staff display data.
type Repository interface {
	// FindTasks returns the tasks matching filter ordered by (date asc, created_at asc).
	FindTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)

	// FindTaskByID retrieves a single task.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	FindTaskByID(ctx context.Context, id string) (*domain.Task, error)

	// UpdateTask writes only the fields named in params.UpdateMask and returns the stored row.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	// Returns domain.ErrStaleTask if params.ExpectedStatus is set and doesn't match the stored status.
	// Returns domain.ErrActiveTaskConflict if the write would give a staff member a second in-progress task.
	UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error)

	// CreateTask inserts a new task and returns it as persisted.
	// Returns domain.ErrRoomConflict if the room already has an open task on the date.
	CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error)

	// DeleteTask removes a task.
	// Returns domain.ErrTaskNotFound if the task doesn't exist.
	DeleteTask(ctx context.Context, id string) error
}
