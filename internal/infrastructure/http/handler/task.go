package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

// ListTasks returns the tasks matching the query filter.
// GET /tasks?staff_id=&date=&room_id=&status=a,b
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := dto.ParseFilter(r.URL.Query().Get)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	tasks, err := h.tasks.FindTasks(r.Context(), filter)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, dto.FromTasks(tasks))
}

// GetTask returns one task.
// GET /tasks/{task_id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.FindTaskByID(r.Context(), chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, dto.FromTask(t))
}

// CreateTask inserts a task. A missing ID is generated.
// POST /tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := req.ToTask()
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if t.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			response.InternalError(w, r, err)
			return
		}
		t.ID = id.String()
	}

	created, err := h.tasks.CreateTask(r.Context(), t)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.Created(w, dto.FromTask(created))
}

// UpdateTask applies a masked, optionally status-conditional update.
// PATCH /tasks/{task_id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params, err := req.ToParams(chi.URLParam(r, "task_id"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	updated, err := h.tasks.UpdateTask(r.Context(), params)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, dto.FromTask(updated))
}

// DeleteTask removes a task.
// DELETE /tasks/{task_id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.DeleteTask(r.Context(), chi.URLParam(r, "task_id")); err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.NoContent(w)
}
