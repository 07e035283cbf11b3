// Package dto defines the JSON wire format shared by the HTTP handlers and the remote client.
package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/rezkam/housekeeping/internal/domain"
)

// Room is the wire form of domain.Room.
type Room struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
	Color string `json:"color"`
}

// Staff is the wire form of domain.Staff.
type Staff struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TimeLimit is the wire form of domain.TimeLimit.
type TimeLimit struct {
	CleaningType    string  `json:"cleaning_type"`
	GuestCapacityID *string `json:"guest_capacity_id,omitempty"`
	Minutes         int     `json:"minutes"`
}

// Task is the wire form of domain.Task. Dates are YYYY-MM-DD, timestamps RFC 3339.
type Task struct {
	ID                string     `json:"id"`
	Date              string     `json:"date"`
	Status            string     `json:"status"`
	Room              Room       `json:"room"`
	Staff             *Staff     `json:"staff,omitempty"`
	CleaningType      string     `json:"cleaning_type"`
	GuestCapacityID   *string    `json:"guest_capacity_id,omitempty"`
	TimeLimit         *int       `json:"time_limit,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	PauseStart        *time.Time `json:"pause_start,omitempty"`
	PauseStop         *time.Time `json:"pause_stop,omitempty"`
	StopTime          *time.Time `json:"stop_time,omitempty"`
	TotalPause        int        `json:"total_pause"`
	ActualTime        *int       `json:"actual_time,omitempty"`
	Difference        *int       `json:"difference,omitempty"`
	HousekeepingNotes string     `json:"housekeeping_notes"`
	ReceptionNotes    string     `json:"reception_notes"`
	IssueFlag         bool       `json:"issue_flag"`
	IssueDescription  *string    `json:"issue_description,omitempty"`
	IssuePhoto        *string    `json:"issue_photo,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TaskList wraps a task read.
type TaskList struct {
	Tasks []Task `json:"tasks"`
}

// CreateTaskRequest inserts a task as given. ID, Status and CreatedAt are
// optional; the store stamps CreatedAt when it is absent.
type CreateTaskRequest struct {
	ID                string     `json:"id,omitempty"`
	Date              string     `json:"date"`
	Status            string     `json:"status,omitempty"`
	RoomID            string     `json:"room_id"`
	StaffID           *string    `json:"staff_id,omitempty"`
	CleaningType      string     `json:"cleaning_type"`
	GuestCapacityID   *string    `json:"guest_capacity_id,omitempty"`
	TimeLimit         *int       `json:"time_limit,omitempty"`
	HousekeepingNotes string     `json:"housekeeping_notes,omitempty"`
	ReceptionNotes    string     `json:"reception_notes,omitempty"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
}

// UpdateTaskRequest is a partial update. Fields named in UpdateMask are written;
// an absent or null value clears the column.
type UpdateTaskRequest struct {
	UpdateMask     []string `json:"update_mask"`
	ExpectedStatus *string  `json:"expected_status,omitempty"`

	Status            *string    `json:"status,omitempty"`
	StaffID           *string    `json:"staff_id,omitempty"`
	StartTime         *time.Time `json:"start_time,omitempty"`
	PauseStart        *time.Time `json:"pause_start,omitempty"`
	PauseStop         *time.Time `json:"pause_stop,omitempty"`
	StopTime          *time.Time `json:"stop_time,omitempty"`
	TotalPause        *int       `json:"total_pause,omitempty"`
	ActualTime        *int       `json:"actual_time,omitempty"`
	Difference        *int       `json:"difference,omitempty"`
	HousekeepingNotes *string    `json:"housekeeping_notes,omitempty"`
	ReceptionNotes    *string    `json:"reception_notes,omitempty"`
	IssueFlag         *bool      `json:"issue_flag,omitempty"`
	IssueDescription  *string    `json:"issue_description,omitempty"`
	IssuePhoto        *string    `json:"issue_photo,omitempty"`
	TimeLimit         *int       `json:"time_limit,omitempty"`
}

// TaskEvent is one change on the events stream.
type TaskEvent struct {
	Type string `json:"type"`
	Old  *Task  `json:"old,omitempty"`
	New  *Task  `json:"new,omitempty"`
}

// TimeLimitLookup answers a time limit query. Minutes is null when none is configured.
type TimeLimitLookup struct {
	Minutes *int `json:"minutes"`
}

// PhotoUpload is returned after storing a photo.
type PhotoUpload struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// === Mapping ===

// FromRoom converts a domain room.
func FromRoom(r domain.Room) Room {
	return Room{ID: r.ID, Name: r.Name, Group: r.Group, Color: r.Color}
}

// ToRoom converts back to a domain room.
func (r Room) ToRoom() domain.Room {
	return domain.Room{ID: r.ID, Name: r.Name, Group: r.Group, Color: r.Color}
}

// FromTask converts a domain task. A nil task yields nil.
func FromTask(t *domain.Task) *Task {
	if t == nil {
		return nil
	}
	out := &Task{
		ID:                t.ID,
		Date:              domain.FormatDate(t.Date),
		Status:            string(t.Status),
		Room:              FromRoom(t.Room),
		CleaningType:      t.CleaningType,
		GuestCapacityID:   t.GuestCapacityID,
		TimeLimit:         t.TimeLimit,
		StartTime:         t.StartTime,
		PauseStart:        t.PauseStart,
		PauseStop:         t.PauseStop,
		StopTime:          t.StopTime,
		TotalPause:        t.TotalPause,
		ActualTime:        t.ActualTime,
		Difference:        t.Difference,
		HousekeepingNotes: t.HousekeepingNotes,
		ReceptionNotes:    t.ReceptionNotes,
		IssueFlag:         t.IssueFlag,
		IssueDescription:  t.IssueDescription,
		IssuePhoto:        t.IssuePhoto,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if t.Staff != nil {
		out.Staff = &Staff{ID: t.Staff.ID, Name: t.Staff.Name}
	}
	return out
}

// FromTasks converts a task read. The result is never nil.
func FromTasks(tasks []*domain.Task) TaskList {
	out := TaskList{Tasks: make([]Task, 0, len(tasks))}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, *FromTask(t))
	}
	return out
}

// ToTask converts back to a domain task.
func (t *Task) ToTask() (*domain.Task, error) {
	if t == nil {
		return nil, nil
	}
	date, err := domain.ParseDate(t.Date)
	if err != nil {
		return nil, err
	}
	status, err := domain.NewTaskStatus(t.Status)
	if err != nil {
		return nil, err
	}
	out := &domain.Task{
		ID:                t.ID,
		Date:              date,
		Status:            status,
		Room:              t.Room.ToRoom(),
		CleaningType:      t.CleaningType,
		GuestCapacityID:   t.GuestCapacityID,
		TimeLimit:         t.TimeLimit,
		StartTime:         utc(t.StartTime),
		PauseStart:        utc(t.PauseStart),
		PauseStop:         utc(t.PauseStop),
		StopTime:          utc(t.StopTime),
		TotalPause:        t.TotalPause,
		ActualTime:        t.ActualTime,
		Difference:        t.Difference,
		HousekeepingNotes: t.HousekeepingNotes,
		ReceptionNotes:    t.ReceptionNotes,
		IssueFlag:         t.IssueFlag,
		IssueDescription:  t.IssueDescription,
		IssuePhoto:        t.IssuePhoto,
		CreatedAt:         t.CreatedAt.UTC(),
		UpdatedAt:         t.UpdatedAt.UTC(),
	}
	if t.Staff != nil {
		out.Staff = &domain.Staff{ID: t.Staff.ID, Name: t.Staff.Name}
	}
	return out, nil
}

// ToTasks converts a task read back to domain tasks.
func (l TaskList) ToTasks() ([]*domain.Task, error) {
	out := make([]*domain.Task, 0, len(l.Tasks))
	for i := range l.Tasks {
		t, err := l.Tasks[i].ToTask()
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", l.Tasks[i].ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// FromCreate builds a request from a task about to be inserted.
func FromCreate(t *domain.Task) CreateTaskRequest {
	req := CreateTaskRequest{
		ID:                t.ID,
		Date:              domain.FormatDate(t.Date),
		Status:            string(t.Status),
		RoomID:            t.Room.ID,
		CleaningType:      t.CleaningType,
		GuestCapacityID:   t.GuestCapacityID,
		TimeLimit:         t.TimeLimit,
		HousekeepingNotes: t.HousekeepingNotes,
		ReceptionNotes:    t.ReceptionNotes,
	}
	if t.Staff != nil {
		req.StaffID = &t.Staff.ID
	}
	if !t.CreatedAt.IsZero() {
		req.CreatedAt = utc(&t.CreatedAt)
	}
	return req
}

// ToTask converts the request into an unsaved domain task.
func (r CreateTaskRequest) ToTask() (*domain.Task, error) {
	date, err := domain.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.RoomID) == "" {
		return nil, domain.ErrRoomRequired
	}
	status := domain.TaskStatusTodo
	if r.Status != "" {
		if status, err = domain.NewTaskStatus(r.Status); err != nil {
			return nil, err
		}
	}
	t := &domain.Task{
		ID:                r.ID,
		Date:              date,
		Status:            status,
		Room:              domain.Room{ID: r.RoomID},
		CleaningType:      r.CleaningType,
		GuestCapacityID:   r.GuestCapacityID,
		TimeLimit:         r.TimeLimit,
		HousekeepingNotes: r.HousekeepingNotes,
		ReceptionNotes:    r.ReceptionNotes,
	}
	if r.StaffID != nil {
		t.Staff = &domain.Staff{ID: *r.StaffID}
	}
	if r.CreatedAt != nil {
		t.CreatedAt = r.CreatedAt.UTC()
	}
	return t, nil
}

// FromUpdate builds the wire form of a partial update. Only masked fields are carried.
func FromUpdate(p domain.UpdateTaskParams) UpdateTaskRequest {
	req := UpdateTaskRequest{UpdateMask: p.UpdateMask}
	if p.ExpectedStatus != nil {
		s := string(*p.ExpectedStatus)
		req.ExpectedStatus = &s
	}
	for _, field := range p.UpdateMask {
		switch field {
		case domain.FieldStatus:
			if p.Status != nil {
				s := string(*p.Status)
				req.Status = &s
			}
		case domain.FieldStaffID:
			req.StaffID = p.StaffID
		case domain.FieldStartTime:
			req.StartTime = p.StartTime
		case domain.FieldPauseStart:
			req.PauseStart = p.PauseStart
		case domain.FieldPauseStop:
			req.PauseStop = p.PauseStop
		case domain.FieldStopTime:
			req.StopTime = p.StopTime
		case domain.FieldTotalPause:
			req.TotalPause = p.TotalPause
		case domain.FieldActualTime:
			req.ActualTime = p.ActualTime
		case domain.FieldDifference:
			req.Difference = p.Difference
		case domain.FieldHousekeepingNotes:
			req.HousekeepingNotes = p.HousekeepingNotes
		case domain.FieldReceptionNotes:
			req.ReceptionNotes = p.ReceptionNotes
		case domain.FieldIssueFlag:
			req.IssueFlag = p.IssueFlag
		case domain.FieldIssueDescription:
			req.IssueDescription = p.IssueDescription
		case domain.FieldIssuePhoto:
			req.IssuePhoto = p.IssuePhoto
		case domain.FieldTimeLimit:
			req.TimeLimit = p.TimeLimit
		}
	}
	return req
}

// ToParams converts the request for the task with the given ID.
func (r UpdateTaskRequest) ToParams(taskID string) (domain.UpdateTaskParams, error) {
	p := domain.UpdateTaskParams{
		TaskID:            taskID,
		UpdateMask:        r.UpdateMask,
		StaffID:           r.StaffID,
		StartTime:         utc(r.StartTime),
		PauseStart:        utc(r.PauseStart),
		PauseStop:         utc(r.PauseStop),
		StopTime:          utc(r.StopTime),
		TotalPause:        r.TotalPause,
		ActualTime:        r.ActualTime,
		Difference:        r.Difference,
		HousekeepingNotes: r.HousekeepingNotes,
		ReceptionNotes:    r.ReceptionNotes,
		IssueFlag:         r.IssueFlag,
		IssueDescription:  r.IssueDescription,
		IssuePhoto:        r.IssuePhoto,
		TimeLimit:         r.TimeLimit,
	}
	if r.ExpectedStatus != nil {
		s, err := domain.NewTaskStatus(*r.ExpectedStatus)
		if err != nil {
			return domain.UpdateTaskParams{}, err
		}
		p.ExpectedStatus = &s
	}
	if r.Status != nil {
		s, err := domain.NewTaskStatus(*r.Status)
		if err != nil {
			return domain.UpdateTaskParams{}, err
		}
		p.Status = &s
	}
	return p, p.Validate()
}

// FromEvent converts a change event.
func FromEvent(ev domain.TaskEvent) TaskEvent {
	return TaskEvent{Type: string(ev.Type), Old: FromTask(ev.Old), New: FromTask(ev.New)}
}

// ToEvent converts back to a domain event.
func (e TaskEvent) ToEvent() (domain.TaskEvent, error) {
	ev := domain.TaskEvent{Type: domain.EventType(e.Type)}
	switch ev.Type {
	case domain.EventInsert, domain.EventUpdate, domain.EventDelete:
	default:
		return domain.TaskEvent{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	var err error
	if ev.Old, err = e.Old.ToTask(); err != nil {
		return domain.TaskEvent{}, err
	}
	if ev.New, err = e.New.ToTask(); err != nil {
		return domain.TaskEvent{}, err
	}
	return ev, nil
}

// === Filters ===

// Query parameter names for task filters.
const (
	ParamStaffID = "staff_id"
	ParamDate    = "date"
	ParamRoomID  = "room_id"
	ParamStatus  = "status"
)

// FilterValues maps a filter to query parameters.
func FilterValues(f domain.TaskFilter) map[string]string {
	out := make(map[string]string, 4)
	if f.StaffID != nil {
		out[ParamStaffID] = *f.StaffID
	}
	if f.Date != nil {
		out[ParamDate] = domain.FormatDate(*f.Date)
	}
	if f.RoomID != nil {
		out[ParamRoomID] = *f.RoomID
	}
	if len(f.Statuses) > 0 {
		parts := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			parts[i] = string(s)
		}
		out[ParamStatus] = strings.Join(parts, ",")
	}
	return out
}

// ParseFilter builds a filter from query parameters read with get.
func ParseFilter(get func(string) string) (domain.TaskFilter, error) {
	var f domain.TaskFilter
	if v := get(ParamStaffID); v != "" {
		f.StaffID = &v
	}
	if v := get(ParamDate); v != "" {
		d, err := domain.ParseDate(v)
		if err != nil {
			return domain.TaskFilter{}, err
		}
		f.Date = &d
	}
	if v := get(ParamRoomID); v != "" {
		f.RoomID = &v
	}
	if v := get(ParamStatus); v != "" {
		for _, part := range strings.Split(v, ",") {
			s, err := domain.NewTaskStatus(strings.TrimSpace(part))
			if err != nil {
				return domain.TaskFilter{}, err
			}
			f.Statuses = append(f.Statuses, s)
		}
	}
	return f, nil
}
