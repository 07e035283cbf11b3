package task

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
	"github.com/rezkam/housekeeping/internal/timeaccount"
)

const instrumentationName = "github.com/rezkam/housekeeping/internal/application/task"

// Action names, used in errors, spans and metrics.
const (
	ActionStart       = "start"
	ActionPause       = "pause"
	ActionResume      = "resume"
	ActionStop        = "stop"
	ActionReportIssue = "report_issue"
	ActionSetNotes    = "set_notes"
)

// View is the client-held state the machine evaluates preconditions against.
// The reconcile cache implements it; the active task it reports is re-derived
// from the store on every refetch, never from a client-set flag.
type View interface {
	// Task returns the cached copy of a task.
	Task(id string) (*domain.Task, bool)

	// ActiveTaskID returns the task currently in progress for the signed-in staff member.
	ActiveTaskID() (string, bool)

	// ApplyConfirmed records a row the store has confirmed after a write.
	ApplyConfirmed(task *domain.Task)
}

// PhotoUploader stores issue photos and returns a durable URL.
type PhotoUploader interface {
	Upload(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// IssueReport describes a maintenance issue found while cleaning.
type IssueReport struct {
	Description      string
	Photo            []byte // Optional
	PhotoContentType string // e.g. "image/jpeg"; defaults to application/octet-stream
}

// Notes carries free-text note updates. Nil fields are left unchanged.
type Notes struct {
	Housekeeping *string
	Reception    *string
}

// Machine executes the task lifecycle transitions.
//
// Each transition validates its precondition locally, computes every written
// field client-side and issues a single conditional update. A rejected
// precondition never reaches the store. A failed write leaves the view untouched.
type Machine struct {
	repo     Repository
	view     View
	uploader PhotoUploader
	now      func() time.Time

	tracer      trace.Tracer
	transitions metric.Int64Counter

	mu      sync.Mutex
	pending map[string]struct{} // task IDs with a transition in flight
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source. Defaults to the wall clock in UTC.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithUploader sets the photo uploader used by ReportIssue.
// Without one, reports carrying a photo fail with domain.ErrPhotoUpload.
func WithUploader(u PhotoUploader) Option {
	return func(m *Machine) {
		m.uploader = u
	}
}

// NewMachine creates a state machine over the given store and client view.
func NewMachine(repo Repository, view View, opts ...Option) *Machine {
	m := &Machine{
		repo:    repo,
		view:    view,
		now:     func() time.Time { return time.Now().UTC() }, //nolint:clocknow
		tracer:  otel.Tracer(instrumentationName),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"housekeeping.task.transitions",
		metric.WithDescription("Task lifecycle transitions by action and outcome"),
	)
	if err != nil {
		slog.Warn("failed to create transitions counter", "error", err)
	}
	m.transitions = counter

	return m
}

// planFunc computes the update for a transition from the current task.
// Returning nil params with a nil error means the transition is a no-op.
type planFunc func(ctx context.Context, task *domain.Task, now time.Time) (*domain.UpdateTaskParams, error)

// Start moves a todo or repair_needed task into progress.
// Starting the caller's own in-progress task is a no-op and never resets StartTime.
func (m *Machine) Start(ctx context.Context, staffID, taskID string) (*domain.Task, error) {
	return m.transition(ctx, ActionStart, staffID, taskID, func(_ context.Context, task *domain.Task, now time.Time) (*domain.UpdateTaskParams, error) {
		switch task.Status {
		case domain.TaskStatusInProgress:
			return nil, nil
		case domain.TaskStatusTodo, domain.TaskStatusRepairNeeded:
		default:
			return nil, domain.ErrInvalidTransition
		}

		if activeID, ok := m.view.ActiveTaskID(); ok && activeID != task.ID {
			return nil, domain.ErrAnotherTaskActive
		}

		params := &domain.UpdateTaskParams{
			UpdateMask: []string{domain.FieldStatus, domain.FieldPauseStart, domain.FieldPauseStop},
			Status:     ptr.To(domain.TaskStatusInProgress),
		}
		if task.StartTime == nil {
			params.UpdateMask = append(params.UpdateMask, domain.FieldStartTime)
			params.StartTime = &now
		}
		if task.Staff == nil {
			params.UpdateMask = append(params.UpdateMask, domain.FieldStaffID)
			params.StaffID = &staffID
		}
		// Downtime while waiting on a repair is not work time.
		if task.PauseStart != nil {
			params.UpdateMask = append(params.UpdateMask, domain.FieldTotalPause)
			params.TotalPause = ptr.To(timeaccount.AccumulatePause(task.TotalPause, timeaccount.PauseDelta(task.PauseStart, now)))
		}
		return params, nil
	})
}

// Pause suspends the caller's active task.
func (m *Machine) Pause(ctx context.Context, staffID, taskID string) (*domain.Task, error) {
	return m.transition(ctx, ActionPause, staffID, taskID, func(_ context.Context, task *domain.Task, now time.Time) (*domain.UpdateTaskParams, error) {
		if task.Status != domain.TaskStatusInProgress {
			return nil, domain.ErrInvalidTransition
		}
		if activeID, ok := m.view.ActiveTaskID(); !ok || activeID != task.ID {
			return nil, domain.ErrNotActiveTask
		}

		return &domain.UpdateTaskParams{
			UpdateMask: []string{domain.FieldStatus, domain.FieldPauseStart, domain.FieldPauseStop},
			Status:     ptr.To(domain.TaskStatusPaused),
			PauseStart: &now,
		}, nil
	})
}

// Resume returns a paused task to progress, folding the pause interval into TotalPause.
func (m *Machine) Resume(ctx context.Context, staffID, taskID string) (*domain.Task, error) {
	return m.transition(ctx, ActionResume, staffID, taskID, func(_ context.Context, task *domain.Task, now time.Time) (*domain.UpdateTaskParams, error) {
		if task.Status != domain.TaskStatusPaused {
			return nil, domain.ErrInvalidTransition
		}
		if activeID, ok := m.view.ActiveTaskID(); ok && activeID != task.ID {
			return nil, domain.ErrAnotherTaskActive
		}

		delta := timeaccount.PauseDelta(task.PauseStart, now)
		return &domain.UpdateTaskParams{
			UpdateMask: []string{domain.FieldStatus, domain.FieldTotalPause, domain.FieldPauseStart, domain.FieldPauseStop},
			Status:     ptr.To(domain.TaskStatusInProgress),
			TotalPause: ptr.To(timeaccount.AccumulatePause(task.TotalPause, delta)),
			PauseStop:  &now,
		}, nil
	})
}

// Stop completes an in-progress or paused task and records the final time facts.
// Stopping while paused folds the open pause interval first.
func (m *Machine) Stop(ctx context.Context, staffID, taskID string) (*domain.Task, error) {
	return m.transition(ctx, ActionStop, staffID, taskID, func(_ context.Context, task *domain.Task, now time.Time) (*domain.UpdateTaskParams, error) {
		if task.Status != domain.TaskStatusInProgress && task.Status != domain.TaskStatusPaused {
			return nil, domain.ErrInvalidTransition
		}

		params := &domain.UpdateTaskParams{
			UpdateMask: []string{
				domain.FieldStatus,
				domain.FieldStopTime,
				domain.FieldPauseStart,
				domain.FieldTotalPause,
				domain.FieldActualTime,
				domain.FieldDifference,
			},
			Status:   ptr.To(domain.TaskStatusDone),
			StopTime: &now,
		}

		totalPause := task.TotalPause
		if task.Status == domain.TaskStatusPaused {
			totalPause = timeaccount.AccumulatePause(totalPause, timeaccount.PauseDelta(task.PauseStart, now))
			params.UpdateMask = append(params.UpdateMask, domain.FieldPauseStop)
			params.PauseStop = &now
		}

		actual := timeaccount.ActualTime(task.StartTime, now, totalPause)
		params.TotalPause = &totalPause
		params.ActualTime = actual
		params.Difference = timeaccount.Difference(actual, task.TimeLimit)
		return params, nil
	})
}

// ReportIssue flags a maintenance issue and moves the task to repair_needed.
// The photo, if any, is uploaded before the write; an upload failure aborts the report.
func (m *Machine) ReportIssue(ctx context.Context, staffID, taskID string, report IssueReport) (*domain.Task, error) {
	return m.transition(ctx, ActionReportIssue, staffID, taskID, func(ctx context.Context, task *domain.Task, now time.Time) (*domain.UpdateTaskParams, error) {
		if task.Status == domain.TaskStatusDone {
			return nil, domain.ErrInvalidTransition
		}
		description := strings.TrimSpace(report.Description)
		if description == "" {
			return nil, domain.ErrIssueDescriptionRequired
		}

		params := &domain.UpdateTaskParams{
			UpdateMask:       []string{domain.FieldStatus, domain.FieldIssueFlag, domain.FieldIssueDescription},
			Status:           ptr.To(domain.TaskStatusRepairNeeded),
			IssueFlag:        ptr.To(true),
			IssueDescription: &description,
		}

		if task.Status == domain.TaskStatusInProgress {
			params.UpdateMask = append(params.UpdateMask, domain.FieldPauseStart)
			params.PauseStart = &now
		}

		if len(report.Photo) > 0 {
			url, err := m.uploadPhoto(ctx, task.ID, report)
			if err != nil {
				return nil, err
			}
			params.UpdateMask = append(params.UpdateMask, domain.FieldIssuePhoto)
			params.IssuePhoto = &url
		}
		return params, nil
	})
}

// SetNotes updates the free-text notes of a task. Notes never affect the lifecycle,
// so the write is not conditioned on status.
func (m *Machine) SetNotes(ctx context.Context, taskID string, notes Notes) (*domain.Task, error) {
	if notes.Housekeeping == nil && notes.Reception == nil {
		return nil, domain.ErrEmptyUpdateMask
	}
	if err := m.acquire(taskID); err != nil {
		return nil, err
	}
	defer m.release(taskID)

	params := domain.UpdateTaskParams{TaskID: taskID}
	if notes.Housekeeping != nil {
		params.UpdateMask = append(params.UpdateMask, domain.FieldHousekeepingNotes)
		params.HousekeepingNotes = notes.Housekeeping
	}
	if notes.Reception != nil {
		params.UpdateMask = append(params.UpdateMask, domain.FieldReceptionNotes)
		params.ReceptionNotes = notes.Reception
	}

	updated, err := m.repo.UpdateTask(ctx, params)
	if err != nil {
		m.record(ctx, ActionSetNotes, err)
		return nil, fmt.Errorf("failed to %s: %w", ActionSetNotes, err)
	}
	m.record(ctx, ActionSetNotes, nil)
	m.view.ApplyConfirmed(updated)
	return updated, nil
}

// transition runs the shared flow: guard against duplicate submissions, load,
// check assignment, plan, conditional write, confirm.
func (m *Machine) transition(ctx context.Context, action, staffID, taskID string, plan planFunc) (_ *domain.Task, err error) {
	ctx, span := m.tracer.Start(ctx, "task."+action, trace.WithAttributes(
		attribute.String("task.id", taskID),
		attribute.String("staff.id", staffID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		m.record(ctx, action, err)
	}()

	if staffID == "" {
		return nil, domain.ErrStaffRequired
	}
	if taskID == "" {
		return nil, domain.ErrInvalidID
	}

	if err := m.acquire(taskID); err != nil {
		return nil, err
	}
	defer m.release(taskID)

	current, err := m.load(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if current.Staff != nil && current.Staff.ID != staffID {
		return nil, domain.ErrTaskNotAssigned
	}

	now := m.now()
	params, err := plan(ctx, current, now)
	if err != nil {
		return nil, err
	}
	if params == nil {
		slog.DebugContext(ctx, "transition is a no-op", "action", action, "task_id", taskID)
		return current, nil
	}

	params.TaskID = current.ID
	params.ExpectedStatus = ptr.To(current.Status)

	updated, err := m.repo.UpdateTask(ctx, *params)
	if err != nil {
		slog.WarnContext(ctx, "task transition write failed",
			"action", action,
			"task_id", taskID,
			"staff_id", staffID,
			"error", err)
		return nil, fmt.Errorf("failed to %s task: %w", action, err)
	}

	slog.InfoContext(ctx, "task transition applied",
		"action", action,
		"task_id", taskID,
		"staff_id", staffID,
		"from", current.Status,
		"to", updated.Status)

	m.view.ApplyConfirmed(updated)
	return updated, nil
}

// load returns the view's copy of the task, reading the store only on a cache miss.
func (m *Machine) load(ctx context.Context, taskID string) (*domain.Task, error) {
	if cached, ok := m.view.Task(taskID); ok {
		return cached, nil
	}
	found, err := m.repo.FindTaskByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return found, nil
}

func (m *Machine) uploadPhoto(ctx context.Context, taskID string, report IssueReport) (string, error) {
	if m.uploader == nil {
		return "", fmt.Errorf("%w: no uploader configured", domain.ErrPhotoUpload)
	}

	contentType := report.PhotoContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate object name: %w", domain.ErrPhotoUpload, err)
	}
	name := "issues/" + taskID + "/" + id.String() + photoExtension(contentType)

	url, err := m.uploader.Upload(ctx, name, contentType, report.Photo)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrPhotoUpload, err)
	}
	return url, nil
}

func photoExtension(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}

func (m *Machine) acquire(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.pending[taskID]; busy {
		return domain.ErrActionPending
	}
	m.pending[taskID] = struct{}{}
	return nil
}

func (m *Machine) release(taskID string) {
	m.mu.Lock()
	delete(m.pending, taskID)
	m.mu.Unlock()
}

func (m *Machine) record(ctx context.Context, action string, err error) {
	if m.transitions == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case domain.IsValidation(err):
		outcome = "rejected"
	case domain.IsConflict(err):
		outcome = "conflict"
	default:
		outcome = "failed"
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}
