package domain

// TaskStatus represents the current state of a task in the cleaning lifecycle.
// Value object - immutable string enum.
type TaskStatus string

const (
	TaskStatusTodo         TaskStatus = "todo"
	TaskStatusInProgress   TaskStatus = "in_progress"
	TaskStatusPaused       TaskStatus = "paused"
	TaskStatusDone         TaskStatus = "done"
	TaskStatusRepairNeeded TaskStatus = "repair_needed"
)

// OpenStatuses returns the statuses of tasks that still occupy their room for the day.
// Every status except done is open.
func OpenStatuses() []TaskStatus {
	return []TaskStatus{
		TaskStatusTodo,
		TaskStatusInProgress,
		TaskStatusPaused,
		TaskStatusRepairNeeded,
	}
}

// IsOpen reports whether the status is not terminal.
func (s TaskStatus) IsOpen() bool {
	return s != TaskStatusDone && s != ""
}

// EventType identifies the kind of row change carried by a TaskEvent.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)
