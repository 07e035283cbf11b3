package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    TaskStatus
		wantErr bool
	}{
		{"todo", TaskStatusTodo, false},
		{"IN_PROGRESS", TaskStatusInProgress, false},
		{" paused ", TaskStatusPaused, false},
		{"done", TaskStatusDone, false},
		{"repair_needed", TaskStatusRepairNeeded, false},
		{"blocked", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NewTaskStatus(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTaskStatus)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTaskStatus_IsOpen(t *testing.T) {
	for _, s := range OpenStatuses() {
		assert.True(t, s.IsOpen(), s)
	}
	assert.False(t, TaskStatusDone.IsOpen())
	assert.NotContains(t, OpenStatuses(), TaskStatusDone)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), d)
	assert.Equal(t, "2025-06-01", FormatDate(d))

	_, err = ParseDate("")
	assert.ErrorIs(t, err, ErrDateRequired)

	_, err = ParseDate("01/06/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), DateOf(ts))
}

func TestErrorClasses(t *testing.T) {
	assert.True(t, IsValidation(ErrAnotherTaskActive))
	assert.True(t, IsValidation(ErrIssueDescriptionRequired))
	assert.False(t, IsConflict(ErrAnotherTaskActive))

	assert.True(t, IsConflict(ErrRoomConflict))
	assert.True(t, IsConflict(ErrStaleTask))
	assert.False(t, IsValidation(ErrRoomConflict))

	assert.ErrorIs(t, ErrTaskNotFound, ErrNotFound)
}
