package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of task dates.
const DateLayout = "2006-01-02"

// NewTaskStatus validates and creates a TaskStatus.
func NewTaskStatus(s string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(s)))

	switch status {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusPaused,
		TaskStatusDone, TaskStatusRepairNeeded:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidTaskStatus, s)
	}
}

// ParseDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrDateRequired
	}
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, s)
	}
	return d, nil
}

// DateOf truncates t to the calendar date it falls on in its own location,
// returned as UTC midnight.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a task date in DateLayout.
func FormatDate(d time.Time) string {
	return d.UTC().Format(DateLayout)
}
