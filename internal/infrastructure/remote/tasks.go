package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
)

func filterQuery(f domain.TaskFilter) url.Values {
	q := url.Values{}
	for k, v := range dto.FilterValues(f) {
		q.Set(k, v)
	}
	return q
}

// FindTasks returns the tasks matching filter ordered by (date, created_at).
func (c *Client) FindTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	var list dto.TaskList
	if err := c.do(ctx, http.MethodGet, "/tasks", filterQuery(filter), nil, &list); err != nil {
		return nil, err
	}
	return list.ToTasks()
}

// FindTaskByID retrieves one task.
func (c *Client) FindTaskByID(ctx context.Context, id string) (*domain.Task, error) {
	var t dto.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return t.ToTask()
}

// UpdateTask sends a masked update; ExpectedStatus is enforced by the server's store.
func (c *Client) UpdateTask(ctx context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var t dto.Task
	err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(params.TaskID), nil, dto.FromUpdate(params), &t)
	if err != nil {
		return nil, err
	}
	return t.ToTask()
}

// CreateTask inserts a task as given.
func (c *Client) CreateTask(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	var t dto.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, dto.FromCreate(task), &t); err != nil {
		return nil, err
	}
	return t.ToTask()
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}
