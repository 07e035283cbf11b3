package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
)

// === Room / Staff / Time limit catalog ===

// ListRooms returns every room in display order.
func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name, room_group, color FROM rooms ORDER BY sort_order, name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Room, error) {
		var r domain.Room
		err := row.Scan(&r.ID, &r.Name, &r.Group, &r.Color)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms: %w", err)
	}
	return rooms, nil
}

// ListStaff returns every staff member ordered by name.
func (s *Store) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	rows, err := s.db.Query(ctx, "SELECT id, name FROM staff ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	staff, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Staff, error) {
		var m domain.Staff
		err := row.Scan(&m.ID, &m.Name)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read staff: %w", err)
	}
	return staff, nil
}

// ListTimeLimits returns every configured time limit.
func (s *Store) ListTimeLimits(ctx context.Context) ([]domain.TimeLimit, error) {
	rows, err := s.db.Query(ctx,
		"SELECT cleaning_type, guest_capacity_id, minutes FROM time_limits ORDER BY cleaning_type, guest_capacity_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query time limits: %w", err)
	}
	limits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TimeLimit, error) {
		var (
			l        domain.TimeLimit
			capacity string
			minutes  int32
		)
		err := row.Scan(&l.CleaningType, &capacity, &minutes)
		l.GuestCapacityID = ptr.FromString[string](capacity)
		l.Minutes = int(minutes)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read time limits: %w", err)
	}
	return limits, nil
}

// TimeLimit resolves the budget for a cleaning type and guest capacity, falling
// back to the cleaning type's default. Returns nil when neither is configured.
func (s *Store) TimeLimit(ctx context.Context, cleaningType string, guestCapacityID *string) (*int, error) {
	var minutes int32
	err := s.db.QueryRow(ctx, `SELECT minutes FROM time_limits
		WHERE cleaning_type = $1 AND guest_capacity_id IN ($2, '')
		ORDER BY guest_capacity_id DESC
		LIMIT 1`,
		cleaningType, ptr.Deref(guestCapacityID, ""),
	).Scan(&minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up time limit: %w", err)
	}
	return ptr.To(int(minutes)), nil
}

// SaveRoom inserts or replaces a room.
func (s *Store) SaveRoom(ctx context.Context, room domain.Room, sortOrder int) error {
	if room.ID == "" {
		return domain.ErrRoomRequired
	}
	_, err := s.db.Exec(ctx, `INSERT INTO rooms (id, name, room_group, color, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			room_group = EXCLUDED.room_group,
			color = EXCLUDED.color,
			sort_order = EXCLUDED.sort_order`,
		room.ID, room.Name, room.Group, room.Color, int32(sortOrder))
	if err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// SaveStaff inserts or replaces a staff member.
func (s *Store) SaveStaff(ctx context.Context, staff domain.Staff) error {
	if staff.ID == "" {
		return domain.ErrStaffRequired
	}
	_, err := s.db.Exec(ctx, `INSERT INTO staff (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		staff.ID, staff.Name)
	if err != nil {
		return fmt.Errorf("failed to save staff: %w", err)
	}
	return nil
}

// SaveTimeLimit inserts or replaces a time limit.
func (s *Store) SaveTimeLimit(ctx context.Context, limit domain.TimeLimit) error {
	_, err := s.db.Exec(ctx, `INSERT INTO time_limits (cleaning_type, guest_capacity_id, minutes)
		VALUES ($1, $2, $3)
		ON CONFLICT (cleaning_type, guest_capacity_id) DO UPDATE SET minutes = EXCLUDED.minutes`,
		limit.CleaningType, ptr.Deref(limit.GuestCapacityID, ""), int32(limit.Minutes))
	if err != nil {
		return fmt.Errorf("failed to save time limit: %w", err)
	}
	return nil
}

// SaveCatalog writes rooms, staff and time limits in one transaction.
func (s *Store) SaveCatalog(ctx context.Context, catalog domain.Catalog) error {
	return s.executeInTransaction(ctx, "save_catalog", func(tx *Store) error {
		for i, room := range catalog.Rooms {
			if err := tx.SaveRoom(ctx, room, i); err != nil {
				return err
			}
		}
		for _, member := range catalog.Staff {
			if err := tx.SaveStaff(ctx, member); err != nil {
				return err
			}
		}
		for _, limit := range catalog.TimeLimits {
			if err := tx.SaveTimeLimit(ctx, limit); err != nil {
				return err
			}
		}
		return nil
	})
}
