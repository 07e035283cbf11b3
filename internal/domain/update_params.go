package domain

import (
	"fmt"
	"slices"
	"time"
)

// Field names for UpdateTaskParams update masks.
// They double as column names in the task stores and keys in the HTTP API.
const (
	FieldStatus            = "status"
	FieldStaffID           = "staff_id"
	FieldStartTime         = "start_time"
	FieldPauseStart        = "pause_start"
	FieldPauseStop         = "pause_stop"
	FieldStopTime          = "stop_time"
	FieldTotalPause        = "total_pause"
	FieldActualTime        = "actual_time"
	FieldDifference        = "difference"
	FieldHousekeepingNotes = "housekeeping_notes"
	FieldReceptionNotes    = "reception_notes"
	FieldIssueFlag         = "issue_flag"
	FieldIssueDescription  = "issue_description"
	FieldIssuePhoto        = "issue_photo"
	FieldTimeLimit         = "time_limit"
)

// UpdatableFields lists every field an update mask may name, in a stable order.
var UpdatableFields = []string{
	FieldStatus,
	FieldStaffID,
	FieldStartTime,
	FieldPauseStart,
	FieldPauseStop,
	FieldStopTime,
	FieldTotalPause,
	FieldActualTime,
	FieldDifference,
	FieldHousekeepingNotes,
	FieldReceptionNotes,
	FieldIssueFlag,
	FieldIssueDescription,
	FieldIssuePhoto,
	FieldTimeLimit,
}

var updateTaskValidFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(UpdatableFields))
	for _, f := range UpdatableFields {
		m[f] = struct{}{}
	}
	return m
}()

// UpdateTaskParams is a partial update of a task.
//
// Only fields named in UpdateMask are written; everything else is left as stored.
// A nil pointer for a field in the mask clears a nullable column (writes NULL).
// Non-nullable fields (status, total_pause, issue_flag, notes) must be non-nil when masked.
//
// ExpectedStatus makes the update conditional: the store applies it only if the
// row's current status equals ExpectedStatus, and returns ErrStaleTask otherwise.
type UpdateTaskParams struct {
	TaskID         string
	ExpectedStatus *TaskStatus

	UpdateMask []string

	Status            *TaskStatus
	StaffID           *string
	StartTime         *time.Time
	PauseStart        *time.Time
	PauseStop         *time.Time
	StopTime          *time.Time
	TotalPause        *int
	ActualTime        *int
	Difference        *int
	HousekeepingNotes *string
	ReceptionNotes    *string
	IssueFlag         *bool
	IssueDescription  *string
	IssuePhoto        *string
	TimeLimit         *int
}

// Validate checks that UpdateMask contains only known fields and that
// required fields have non-nil values when included in the mask.
func (p UpdateTaskParams) Validate() error {
	if p.TaskID == "" {
		return ErrInvalidID
	}
	if len(p.UpdateMask) == 0 {
		return ErrEmptyUpdateMask
	}

	maskSet := make(map[string]bool, len(p.UpdateMask))
	for _, field := range p.UpdateMask {
		if _, ok := updateTaskValidFields[field]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		maskSet[field] = true
	}

	if maskSet[FieldStatus] && p.Status == nil {
		return ErrStatusRequired
	}
	if maskSet[FieldTotalPause] && p.TotalPause == nil {
		return fmt.Errorf("%w: %s cannot be cleared", ErrValidation, FieldTotalPause)
	}
	if maskSet[FieldIssueFlag] && p.IssueFlag == nil {
		return fmt.Errorf("%w: %s cannot be cleared", ErrValidation, FieldIssueFlag)
	}
	if maskSet[FieldHousekeepingNotes] && p.HousekeepingNotes == nil {
		return fmt.Errorf("%w: %s cannot be cleared", ErrValidation, FieldHousekeepingNotes)
	}
	if maskSet[FieldReceptionNotes] && p.ReceptionNotes == nil {
		return fmt.Errorf("%w: %s cannot be cleared", ErrValidation, FieldReceptionNotes)
	}
	if p.Status != nil && maskSet[FieldStatus] {
		if _, err := NewTaskStatus(string(*p.Status)); err != nil {
			return err
		}
	}

	return nil
}

// Has reports whether field is named in the update mask.
func (p UpdateTaskParams) Has(field string) bool {
	return slices.Contains(p.UpdateMask, field)
}

// Apply writes the masked fields onto task. Stores use it to build the returned row
// and tests use it to emulate a store.
func (p UpdateTaskParams) Apply(task *Task) {
	for _, field := range p.UpdateMask {
		switch field {
		case FieldStatus:
			task.Status = *p.Status
		case FieldStaffID:
			if p.StaffID == nil {
				task.Staff = nil
			} else if task.Staff == nil || task.Staff.ID != *p.StaffID {
				task.Staff = &Staff{ID: *p.StaffID}
			}
		case FieldStartTime:
			task.StartTime = cloneValue(p.StartTime)
		case FieldPauseStart:
			task.PauseStart = cloneValue(p.PauseStart)
		case FieldPauseStop:
			task.PauseStop = cloneValue(p.PauseStop)
		case FieldStopTime:
			task.StopTime = cloneValue(p.StopTime)
		case FieldTotalPause:
			task.TotalPause = *p.TotalPause
		case FieldActualTime:
			task.ActualTime = cloneValue(p.ActualTime)
		case FieldDifference:
			task.Difference = cloneValue(p.Difference)
		case FieldHousekeepingNotes:
			task.HousekeepingNotes = *p.HousekeepingNotes
		case FieldReceptionNotes:
			task.ReceptionNotes = *p.ReceptionNotes
		case FieldIssueFlag:
			task.IssueFlag = *p.IssueFlag
		case FieldIssueDescription:
			task.IssueDescription = cloneValue(p.IssueDescription)
		case FieldIssuePhoto:
			task.IssuePhoto = cloneValue(p.IssuePhoto)
		case FieldTimeLimit:
			task.TimeLimit = cloneValue(p.TimeLimit)
		}
	}
}
