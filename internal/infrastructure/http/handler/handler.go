// Package handler adapts HTTP requests to the task store, catalog, change feed and photo store.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/housekeeping/internal/application/task"
	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/blob"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

// Catalog serves the read-only room, staff and time limit data.
type Catalog interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ListStaff(ctx context.Context) ([]domain.Staff, error)
	ListTimeLimits(ctx context.Context) ([]domain.TimeLimit, error)
	TimeLimit(ctx context.Context, cleaningType string, guestCapacityID *string) (*int, error)
}

// Subscriber opens task change feeds.
type Subscriber interface {
	Subscribe(ctx context.Context, filter domain.TaskFilter) (*domain.Subscription, error)
}

// Handler serves the housekeeping API.
type Handler struct {
	tasks   task.Repository
	catalog Catalog
	events  Subscriber
	photos  blob.Store
	feed    FeedConfig
}

// Option configures a Handler.
type Option func(*Handler)

// WithPhotos enables photo upload and serving. Without it those routes answer 503.
func WithPhotos(store blob.Store) Option {
	return func(h *Handler) {
		h.photos = store
	}
}

// WithFeedConfig overrides the websocket keepalive settings.
func WithFeedConfig(cfg FeedConfig) Option {
	return func(h *Handler) {
		h.feed = cfg
	}
}

// New creates a handler.
func New(tasks task.Repository, catalog Catalog, events Subscriber, opts ...Option) *Handler {
	h := &Handler{
		tasks:   tasks,
		catalog: catalog,
		events:  events,
		feed:    DefaultFeedConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API router, to be mounted under /api/v1.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Get("/events", h.TaskEvents)
		r.Get("/{task_id}", h.GetTask)
		r.Patch("/{task_id}", h.UpdateTask)
		r.Delete("/{task_id}", h.DeleteTask)
	})

	r.Get("/rooms", h.ListRooms)
	r.Get("/staff", h.ListStaff)
	r.Get("/time-limits", h.ListTimeLimits)
	r.Get("/time-limits/lookup", h.LookupTimeLimit)

	r.Post("/photos", h.UploadPhoto)

	return r
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		response.BadRequest(w, "invalid JSON")
		return false
	}
	return true
}
