package handler

import (
	"net/http"

	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/response"
)

// ListRooms returns the room catalog in display order.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.catalog.ListRooms(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	out := make([]dto.Room, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, dto.FromRoom(room))
	}
	response.OK(w, map[string][]dto.Room{"rooms": out})
}

// ListStaff returns the staff directory.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.catalog.ListStaff(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	out := make([]dto.Staff, 0, len(staff))
	for _, m := range staff {
		out = append(out, dto.Staff{ID: m.ID, Name: m.Name})
	}
	response.OK(w, map[string][]dto.Staff{"staff": out})
}

// ListTimeLimits returns every configured time limit.
func (h *Handler) ListTimeLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := h.catalog.ListTimeLimits(r.Context())
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	out := make([]dto.TimeLimit, 0, len(limits))
	for _, l := range limits {
		out = append(out, dto.TimeLimit{
			CleaningType:    l.CleaningType,
			GuestCapacityID: l.GuestCapacityID,
			Minutes:         l.Minutes,
		})
	}
	response.OK(w, map[string][]dto.TimeLimit{"time_limits": out})
}

// LookupTimeLimit resolves one budget.
// GET /time-limits/lookup?cleaning_type=&guest_capacity_id=
func (h *Handler) LookupTimeLimit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cleaningType := q.Get("cleaning_type")
	if cleaningType == "" {
		response.ValidationError(w, "cleaning_type", "required field missing")
		return
	}
	var capacity *string
	if v := q.Get("guest_capacity_id"); v != "" {
		capacity = &v
	}

	minutes, err := h.catalog.TimeLimit(r.Context(), cleaningType, capacity)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, dto.TimeLimitLookup{Minutes: minutes})
}
