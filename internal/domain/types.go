package domain

import (
	"slices"
	"time"
)

// TaskFilter selects the tasks a read or subscription covers.
// Nil fields apply no restriction. Reads are always ordered by (date asc, created_at asc).
//
// Common scopes:
//   - Kiosk, one staff member's day: StaffID=X, Date=D
//   - Reception, one staff member across days: StaffID=X
//   - Conflict check for a room: RoomID=R, Date=D, Statuses=OpenStatuses()
type TaskFilter struct {
	StaffID  *string
	Date     *time.Time
	RoomID   *string
	Statuses []TaskStatus
}

// Matches reports whether task falls inside the filter.
func (f TaskFilter) Matches(task *Task) bool {
	if task == nil {
		return false
	}
	if f.StaffID != nil && task.StaffID() != *f.StaffID {
		return false
	}
	if f.Date != nil && !DateOf(task.Date).Equal(DateOf(*f.Date)) {
		return false
	}
	if f.RoomID != nil && task.Room.ID != *f.RoomID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, task.Status) {
		return false
	}
	return true
}

// SortTasks orders tasks by (date asc, created_at asc, id asc), the order every read returns.
func SortTasks(tasks []*Task) {
	slices.SortStableFunc(tasks, func(a, b *Task) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
