package sqlite

import (
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rezkam/housekeeping/internal/domain"
)

// errForeignKey marks a foreign key violation. SQLite does not name the
// failing constraint, so callers resolve it to a domain error.
var errForeignKey = errors.New("foreign key constraint failed")

// Unique index violations report the indexed columns.
const (
	openRoomDateColumns = "tasks.room_id, tasks.date"
	activeStaffColumns  = "tasks.staff_id"
)

// mapWriteError translates constraint violations into domain errors.
func mapWriteError(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return mapUniqueViolation(sqliteErr.Error(), err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", errForeignKey, err)
	}
	return err
}

func mapUniqueViolation(msg string, err error) error {
	switch {
	case strings.Contains(msg, openRoomDateColumns):
		return fmt.Errorf("%w: %w", domain.ErrRoomConflict, err)
	case strings.Contains(msg, activeStaffColumns):
		return fmt.Errorf("%w: %w", domain.ErrActiveTaskConflict, err)
	}
	return err
}
