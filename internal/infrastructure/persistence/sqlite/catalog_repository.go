package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
)

// ListRooms returns every room in display order.
func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, room_group, color FROM rooms ORDER BY sort_order, name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var r domain.Room
		if err := rows.Scan(&r.ID, &r.Name, &r.Group, &r.Color); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rooms: %w", err)
	}
	return rooms, nil
}

// ListStaff returns every staff member ordered by name.
func (s *Store) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name FROM staff ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	var staff []domain.Staff
	for rows.Next() {
		var m domain.Staff
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan staff: %w", err)
		}
		staff = append(staff, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read staff: %w", err)
	}
	return staff, nil
}

// ListTimeLimits returns every configured time limit.
func (s *Store) ListTimeLimits(ctx context.Context) ([]domain.TimeLimit, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT cleaning_type, guest_capacity_id, minutes FROM time_limits ORDER BY cleaning_type, guest_capacity_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query time limits: %w", err)
	}
	defer rows.Close()

	var limits []domain.TimeLimit
	for rows.Next() {
		var (
			l        domain.TimeLimit
			capacity string
		)
		if err := rows.Scan(&l.CleaningType, &capacity, &l.Minutes); err != nil {
			return nil, fmt.Errorf("failed to scan time limit: %w", err)
		}
		l.GuestCapacityID = ptr.FromString[string](capacity)
		limits = append(limits, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read time limits: %w", err)
	}
	return limits, nil
}

// TimeLimit resolves the budget for a cleaning type and guest capacity, falling
// back to the cleaning type's default. Returns nil when neither is configured.
func (s *Store) TimeLimit(ctx context.Context, cleaningType string, guestCapacityID *string) (*int, error) {
	var minutes int
	err := s.q.QueryRowContext(ctx, `SELECT minutes FROM time_limits
		WHERE cleaning_type = ? AND guest_capacity_id IN (?, '')
		ORDER BY guest_capacity_id DESC
		LIMIT 1`,
		cleaningType, ptr.Deref(guestCapacityID, ""),
	).Scan(&minutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up time limit: %w", err)
	}
	return &minutes, nil
}

// SaveRoom inserts or replaces a room.
func (s *Store) SaveRoom(ctx context.Context, room domain.Room, sortOrder int) error {
	if room.ID == "" {
		return domain.ErrRoomRequired
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO rooms (id, name, room_group, color, sort_order)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			room_group = excluded.room_group,
			color = excluded.color,
			sort_order = excluded.sort_order`,
		room.ID, room.Name, room.Group, room.Color, sortOrder)
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
	_, err := s.q.ExecContext(ctx, `INSERT INTO staff (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		staff.ID, staff.Name)
	if err != nil {
		return fmt.Errorf("failed to save staff: %w", err)
	}
	return nil
}

// SaveTimeLimit inserts or replaces a time limit.
func (s *Store) SaveTimeLimit(ctx context.Context, limit domain.TimeLimit) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO time_limits (cleaning_type, guest_capacity_id, minutes)
		VALUES (?, ?, ?)
		ON CONFLICT (cleaning_type, guest_capacity_id) DO UPDATE SET minutes = excluded.minutes`,
		limit.CleaningType, ptr.Deref(limit.GuestCapacityID, ""), limit.Minutes)
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
