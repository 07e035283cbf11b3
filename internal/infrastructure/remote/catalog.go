package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/infrastructure/http/dto"
)

// ListRooms returns the room catalog in display order.
func (c *Client) ListRooms(ctx context.Context) ([]domain.Room, error) {
	var body struct {
		Rooms []dto.Room `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, nil, &body); err != nil {
		return nil, err
	}
	rooms := make([]domain.Room, 0, len(body.Rooms))
	for _, r := range body.Rooms {
		rooms = append(rooms, r.ToRoom())
	}
	return rooms, nil
}

// ListStaff returns the staff directory.
func (c *Client) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	var body struct {
		Staff []dto.Staff `json:"staff"`
	}
	if err := c.do(ctx, http.MethodGet, "/staff", nil, nil, &body); err != nil {
		return nil, err
	}
	staff := make([]domain.Staff, 0, len(body.Staff))
	for _, m := range body.Staff {
		staff = append(staff, domain.Staff{ID: m.ID, Name: m.Name})
	}
	return staff, nil
}

// ListTimeLimits returns every configured time limit.
func (c *Client) ListTimeLimits(ctx context.Context) ([]domain.TimeLimit, error) {
	var body struct {
		TimeLimits []dto.TimeLimit `json:"time_limits"`
	}
	if err := c.do(ctx, http.MethodGet, "/time-limits", nil, nil, &body); err != nil {
		return nil, err
	}
	limits := make([]domain.TimeLimit, 0, len(body.TimeLimits))
	for _, l := range body.TimeLimits {
		limits = append(limits, domain.TimeLimit{
			CleaningType:    l.CleaningType,
			GuestCapacityID: l.GuestCapacityID,
			Minutes:         l.Minutes,
		})
	}
	return limits, nil
}

// TimeLimit resolves one budget. Returns nil when none is configured.
func (c *Client) TimeLimit(ctx context.Context, cleaningType string, guestCapacityID *string) (*int, error) {
	q := url.Values{"cleaning_type": {cleaningType}}
	if guestCapacityID != nil && *guestCapacityID != "" {
		q.Set("guest_capacity_id", *guestCapacityID)
	}
	var out dto.TimeLimitLookup
	if err := c.do(ctx, http.MethodGet, "/time-limits/lookup", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Minutes, nil
}
