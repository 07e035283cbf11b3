package domain

import "time"

// Room is a location that housekeeping staff clean.
// Read-only from the task's perspective; rooms are administered elsewhere.
type Room struct {
	ID    string
	Name  string
	Group string // Classification used for grouping on screens (e.g. "suite", "floor 2")
	Color string // Display color, hex string
}

// Staff is a housekeeping staff member tasks can be assigned to.
type Staff struct {
	ID   string
	Name string
}

// Task is the aggregate root for a single timed cleaning job.
//
// A task is created by reception with status todo and moves through the
// lifecycle exclusively via the five staff actions (start, pause, resume,
// stop, report issue). It becomes terminal at done.
//
// Time accounting fields are written by the state machine only:
//   - StartTime is set once, at the first start.
//   - TotalPause only grows; it accumulates every completed pause interval in minutes.
//   - ActualTime and Difference are computed once, at stop.
type Task struct {
	ID   string
	Date time.Time // Calendar date (UTC midnight) the task is scheduled for

	Status TaskStatus

	Room  Room
	Staff *Staff // nil = unassigned

	// Classification fields that determine TimeLimit via the limit lookup.
	CleaningType    string
	GuestCapacityID *string

	TimeLimit *int // Minutes budgeted for the task

	// Time accounting
	StartTime  *time.Time
	PauseStart *time.Time // Set while paused
	PauseStop  *time.Time // When the most recent pause ended
	StopTime   *time.Time
	TotalPause int  // Cumulative paused minutes
	ActualTime *int // Minutes of effective work, computed at stop
	Difference *int // ActualTime - TimeLimit, computed at stop when TimeLimit is known

	// Notes, independent of the lifecycle
	HousekeepingNotes string
	ReceptionNotes    string

	// Maintenance issue metadata. IssueFlag forces status repair_needed.
	IssueFlag        bool
	IssueDescription *string
	IssuePhoto       *string // Durable URL returned by the photo uploader

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the task still occupies its room for the day.
func (t *Task) IsOpen() bool {
	return t.Status.IsOpen()
}

// StaffID returns the assigned staff member ID, or "" when unassigned.
func (t *Task) StaffID() string {
	if t.Staff == nil {
		return ""
	}
	return t.Staff.ID
}

// Clone returns a deep copy so cached tasks can be handed out without sharing pointers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Staff != nil {
		staff := *t.Staff
		c.Staff = &staff
	}
	c.GuestCapacityID = cloneValue(t.GuestCapacityID)
	c.TimeLimit = cloneValue(t.TimeLimit)
	c.StartTime = cloneValue(t.StartTime)
	c.PauseStart = cloneValue(t.PauseStart)
	c.PauseStop = cloneValue(t.PauseStop)
	c.StopTime = cloneValue(t.StopTime)
	c.ActualTime = cloneValue(t.ActualTime)
	c.Difference = cloneValue(t.Difference)
	c.IssueDescription = cloneValue(t.IssueDescription)
	c.IssuePhoto = cloneValue(t.IssuePhoto)
	return &c
}

func cloneValue[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// TimeLimit is the minutes budgeted for a cleaning type, optionally narrowed
// to a guest capacity. A nil GuestCapacityID is the default for the cleaning type.
type TimeLimit struct {
	CleaningType    string
	GuestCapacityID *string
	Minutes         int
}

// Catalog is the reference data tasks point at. Stores load it from a seed file;
// administering it is outside this module.
type Catalog struct {
	Rooms      []Room
	Staff      []Staff
	TimeLimits []TimeLimit
}
