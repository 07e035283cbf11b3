package task

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
)

// memRepo is an in-memory task store enforcing the conditional update and the
// single-active-task constraint the real stores enforce.
type memRepo struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	updates int
	reads   int

	updateErr error         // returned by the next UpdateTask when set
	entered   chan struct{} // signalled when UpdateTask starts, if set
	release   chan struct{} // UpdateTask waits on it, if set
}

func newMemRepo(tasks ...*domain.Task) *memRepo {
	r := &memRepo{tasks: make(map[string]*domain.Task)}
	for _, t := range tasks {
		r.tasks[t.ID] = t.Clone()
	}
	return r
}

func (r *memRepo) FindTasks(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	var out []*domain.Task
	for _, t := range r.tasks {
		if filter.Matches(t) {
			out = append(out, t.Clone())
		}
	}
	domain.SortTasks(out)
	return out, nil
}

func (r *memRepo) FindTaskByID(_ context.Context, id string) (*domain.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (r *memRepo) UpdateTask(_ context.Context, params domain.UpdateTaskParams) (*domain.Task, error) {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++

	if r.updateErr != nil {
		err := r.updateErr
		r.updateErr = nil
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	t, ok := r.tasks[params.TaskID]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if params.ExpectedStatus != nil && t.Status != *params.ExpectedStatus {
		return nil, domain.ErrStaleTask
	}

	next := t.Clone()
	params.Apply(next)
	if next.Status == domain.TaskStatusInProgress {
		for id, other := range r.tasks {
			if id != next.ID && other.Status == domain.TaskStatusInProgress && other.StaffID() == next.StaffID() {
				return nil, domain.ErrActiveTaskConflict
			}
		}
	}
	r.tasks[next.ID] = next
	return next.Clone(), nil
}

func (r *memRepo) CreateTask(_ context.Context, task *domain.Task) (*domain.Task, error) {
	panic("not used in machine tests")
}

func (r *memRepo) DeleteTask(_ context.Context, id string) error {
	panic("not used in machine tests")
}

func (r *memRepo) stored(id string) *domain.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks[id].Clone()
}

// memView is a minimal client view deriving the active task from its rows.
type memView struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

func newMemView(tasks ...*domain.Task) *memView {
	v := &memView{tasks: make(map[string]*domain.Task)}
	for _, t := range tasks {
		v.tasks[t.ID] = t.Clone()
	}
	return v
}

func (v *memView) Task(id string) (*domain.Task, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	t, ok := v.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (v *memView) ActiveTaskID() (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, t := range v.tasks {
		if t.Status == domain.TaskStatusInProgress {
			return id, true
		}
	}
	return "", false
}

func (v *memView) ApplyConfirmed(task *domain.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tasks[task.ID] = task.Clone()
}

type stubUploader struct {
	names []string
	err   error
}

func (u *stubUploader) Upload(_ context.Context, name, _ string, _ []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.names = append(u.names, name)
	return "https://photos.example.com/" + name, nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

const staffA = "staff-a"

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2025-06-01 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func newTask(id string, status domain.TaskStatus) *domain.Task {
	return &domain.Task{
		ID:        id,
		Date:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:    status,
		Room:      domain.Room{ID: "room-" + id, Name: "Room " + id},
		Staff:     &domain.Staff{ID: staffA, Name: "Alex"},
		CreatedAt: at("08:00"),
	}
}

func setup(t *testing.T, tasks ...*domain.Task) (*Machine, *memRepo, *memView, *clock) {
	t.Helper()
	repo := newMemRepo(tasks...)
	view := newMemView(tasks...)
	clk := &clock{now: at("09:00")}
	m := NewMachine(repo, view, WithClock(clk.Now))
	return m, repo, view, clk
}

func TestMachine_FullLifecycle(t *testing.T) {
	task := newTask("x", domain.TaskStatusTodo)
	task.TimeLimit = ptr.To(30)
	m, _, view, clk := setup(t, task)
	ctx := context.Background()

	clk.Set(at("09:05"))
	got, err := m.Start(ctx, staffA, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	require.NotNil(t, got.StartTime)
	assert.Equal(t, at("09:05"), *got.StartTime)

	clk.Set(at("09:10"))
	got, err = m.Pause(ctx, staffA, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPaused, got.Status)
	require.NotNil(t, got.PauseStart)
	assert.Equal(t, at("09:10"), *got.PauseStart)
	assert.Nil(t, got.PauseStop)

	clk.Set(at("09:15"))
	got, err = m.Resume(ctx, staffA, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	assert.Equal(t, 5, got.TotalPause)
	assert.Nil(t, got.PauseStart)
	require.NotNil(t, got.PauseStop)
	assert.Equal(t, at("09:15"), *got.PauseStop)

	clk.Set(at("09:40"))
	got, err = m.Stop(ctx, staffA, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusDone, got.Status)
	require.NotNil(t, got.StopTime)
	assert.Equal(t, at("09:40"), *got.StopTime)
	require.NotNil(t, got.ActualTime)
	assert.Equal(t, 30, *got.ActualTime)
	require.NotNil(t, got.Difference)
	assert.Equal(t, 0, *got.Difference)
	assert.Equal(t, at("09:05"), *got.StartTime, "start time is set once")

	cached, ok := view.Task("x")
	require.True(t, ok)
	assert.Equal(t, domain.TaskStatusDone, cached.Status, "view receives the confirmed row")
}

func TestMachine_StartRejectedWhileAnotherTaskActive(t *testing.T) {
	active := newTask("x", domain.TaskStatusInProgress)
	active.StartTime = ptr.To(at("08:30"))
	other := newTask("y", domain.TaskStatusTodo)
	m, repo, _, _ := setup(t, active, other)

	_, err := m.Start(context.Background(), staffA, "y")

	require.ErrorIs(t, err, domain.ErrAnotherTaskActive)
	assert.True(t, domain.IsValidation(err))
	assert.Zero(t, repo.updates, "rejected precondition must not reach the store")
	assert.Equal(t, domain.TaskStatusTodo, repo.stored("y").Status)
	assert.Equal(t, domain.TaskStatusInProgress, repo.stored("x").Status)
}

func TestMachine_StartOwnActiveTaskIsNoop(t *testing.T) {
	active := newTask("x", domain.TaskStatusInProgress)
	active.StartTime = ptr.To(at("08:30"))
	m, repo, _, clk := setup(t, active)
	clk.Set(at("10:00"))

	got, err := m.Start(context.Background(), staffA, "x")

	require.NoError(t, err)
	assert.Zero(t, repo.updates)
	require.NotNil(t, got.StartTime)
	assert.Equal(t, at("08:30"), *got.StartTime)
}

func TestMachine_StartUnassignedTaskAssignsCaller(t *testing.T) {
	task := newTask("x", domain.TaskStatusTodo)
	task.Staff = nil
	m, repo, _, _ := setup(t, task)

	got, err := m.Start(context.Background(), staffA, "x")

	require.NoError(t, err)
	assert.Equal(t, staffA, got.StaffID())
	assert.Equal(t, staffA, repo.stored("x").StaffID())
}

func TestMachine_TaskAssignedToSomeoneElse(t *testing.T) {
	task := newTask("x", domain.TaskStatusTodo)
	m, repo, _, _ := setup(t, task)

	_, err := m.Start(context.Background(), "staff-b", "x")

	require.ErrorIs(t, err, domain.ErrTaskNotAssigned)
	assert.Zero(t, repo.updates)
}

func TestMachine_ResumeWithZeroElapsedAddsZero(t *testing.T) {
	task := newTask("x", domain.TaskStatusTodo)
	m, _, _, clk := setup(t, task)
	ctx := context.Background()

	_, err := m.Start(ctx, staffA, "x")
	require.NoError(t, err)

	clk.Advance(3 * time.Minute)
	_, err = m.Pause(ctx, staffA, "x")
	require.NoError(t, err)

	clk.Advance(59 * time.Second)
	got, err := m.Resume(ctx, staffA, "x")
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalPause)
}

func TestMachine_StopFromPausedFoldsOpenPause(t *testing.T) {
	task := newTask("x", domain.TaskStatusTodo)
	m, _, _, clk := setup(t, task)
	ctx := context.Background()

	clk.Set(at("09:00"))
	_, err := m.Start(ctx, staffA, "x")
	require.NoError(t, err)

	clk.Set(at("09:20"))
	_, err = m.Pause(ctx, staffA, "x")
	require.NoError(t, err)

	clk.Set(at("09:32"))
	got, err := m.Stop(ctx, staffA, "x")
	require.NoError(t, err)

	assert.Equal(t, 12, got.TotalPause)
	require.NotNil(t, got.ActualTime)
	assert.Equal(t, 20, *got.ActualTime)
	assert.Nil(t, got.Difference, "no time limit means no difference")
	assert.Nil(t, got.PauseStart)
	require.NotNil(t, got.PauseStop)
	assert.Equal(t, at("09:32"), *got.PauseStop)
}

func TestMachine_PauseRequiresActiveTask(t *testing.T) {
	tests := []struct {
		name    string
		status  domain.TaskStatus
		wantErr error
	}{
		{name: "todo", status: domain.TaskStatusTodo, wantErr: domain.ErrInvalidTransition},
		{name: "paused", status: domain.TaskStatusPaused, wantErr: domain.ErrInvalidTransition},
		{name: "done", status: domain.TaskStatusDone, wantErr: domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, repo, _, _ := setup(t, newTask("x", tt.status))
			_, err := m.Pause(context.Background(), staffA, "x")
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, repo.updates)
		})
	}
}

func TestMachine_InvalidTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("resume from todo", func(t *testing.T) {
		m, _, _, _ := setup(t, newTask("x", domain.TaskStatusTodo))
		_, err := m.Resume(ctx, staffA, "x")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("stop from todo", func(t *testing.T) {
		m, _, _, _ := setup(t, newTask("x", domain.TaskStatusTodo))
		_, err := m.Stop(ctx, staffA, "x")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("start from done", func(t *testing.T) {
		m, _, _, _ := setup(t, newTask("x", domain.TaskStatusDone))
		_, err := m.Start(ctx, staffA, "x")
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("report issue on done", func(t *testing.T) {
		m, _, _, _ := setup(t, newTask("x", domain.TaskStatusDone))
		_, err := m.ReportIssue(ctx, staffA, "x", IssueReport{Description: "leak"})
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("missing staff", func(t *testing.T) {
		m, _, _, _ := setup(t, newTask("x", domain.TaskStatusTodo))
		_, err := m.Start(ctx, "", "x")
		require.ErrorIs(t, err, domain.ErrStaffRequired)
	})
}

func TestMachine_ReportIssueThenRestart(t *testing.T) {
	task := newTask("x", domain.TaskStatusTodo)
	m, _, _, clk := setup(t, task)
	ctx := context.Background()

	clk.Set(at("09:00"))
	_, err := m.Start(ctx, staffA, "x")
	require.NoError(t, err)

	clk.Set(at("09:10"))
	got, err := m.ReportIssue(ctx, staffA, "x", IssueReport{Description: "  broken tap  "})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusRepairNeeded, got.Status)
	assert.True(t, got.IssueFlag)
	require.NotNil(t, got.IssueDescription)
	assert.Equal(t, "broken tap", *got.IssueDescription)
	assert.Nil(t, got.IssuePhoto)

	clk.Set(at("09:25"))
	got, err = m.Start(ctx, staffA, "x")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	assert.Equal(t, at("09:00"), *got.StartTime, "restart keeps the original start time")
	assert.Equal(t, 15, got.TotalPause, "repair downtime is not work time")
	assert.Nil(t, got.PauseStart)
}

func TestMachine_ReportIssueEmptyDescription(t *testing.T) {
	m, repo, _, _ := setup(t, newTask("x", domain.TaskStatusInProgress))

	_, err := m.ReportIssue(context.Background(), staffA, "x", IssueReport{Description: "   "})

	require.ErrorIs(t, err, domain.ErrIssueDescriptionRequired)
	assert.Zero(t, repo.updates)
}

func TestMachine_ReportIssueWithPhoto(t *testing.T) {
	repo := newMemRepo(newTask("x", domain.TaskStatusTodo))
	view := newMemView(newTask("x", domain.TaskStatusTodo))
	uploader := &stubUploader{}
	m := NewMachine(repo, view, WithUploader(uploader))

	got, err := m.ReportIssue(context.Background(), staffA, "x", IssueReport{
		Description:      "stained carpet",
		Photo:            []byte{0xff, 0xd8, 0xff},
		PhotoContentType: "image/png",
	})

	require.NoError(t, err)
	require.Len(t, uploader.names, 1)
	assert.Contains(t, uploader.names[0], "issues/x/")
	require.NotNil(t, got.IssuePhoto)
	assert.Equal(t, "https://photos.example.com/"+uploader.names[0], *got.IssuePhoto)
}

func TestMachine_ReportIssueUploadFailureAbortsWrite(t *testing.T) {
	repo := newMemRepo(newTask("x", domain.TaskStatusInProgress))
	view := newMemView(newTask("x", domain.TaskStatusInProgress))
	m := NewMachine(repo, view, WithUploader(&stubUploader{err: errors.New("bucket unavailable")}))

	_, err := m.ReportIssue(context.Background(), staffA, "x", IssueReport{
		Description: "broken window",
		Photo:       []byte("jpeg"),
	})

	require.ErrorIs(t, err, domain.ErrPhotoUpload)
	assert.Zero(t, repo.updates)
	assert.Equal(t, domain.TaskStatusInProgress, repo.stored("x").Status)
}

func TestMachine_WriteFailureLeavesViewUnchanged(t *testing.T) {
	m, repo, view, _ := setup(t, newTask("x", domain.TaskStatusTodo))
	repo.updateErr = errors.New("connection reset")

	_, err := m.Start(context.Background(), staffA, "x")

	require.Error(t, err)
	assert.False(t, domain.IsValidation(err))
	cached, ok := view.Task("x")
	require.True(t, ok)
	assert.Equal(t, domain.TaskStatusTodo, cached.Status)
	_, active := view.ActiveTaskID()
	assert.False(t, active)
}

func TestMachine_StaleViewSurfacesConflict(t *testing.T) {
	m, repo, view, _ := setup(t, newTask("x", domain.TaskStatusTodo))
	// Another session already finished the task; this view has not refetched yet.
	repo.tasks["x"].Status = domain.TaskStatusDone

	_, err := m.Start(context.Background(), staffA, "x")

	require.ErrorIs(t, err, domain.ErrStaleTask)
	assert.True(t, domain.IsConflict(err))
	cached, _ := view.Task("x")
	assert.Equal(t, domain.TaskStatusTodo, cached.Status)
}

func TestMachine_BackendActiveConstraint(t *testing.T) {
	// The view believes nothing is active, but the store already has an
	// in-progress task for this staff member from another session.
	other := newTask("y", domain.TaskStatusInProgress)
	repo := newMemRepo(newTask("x", domain.TaskStatusTodo), other)
	view := newMemView(newTask("x", domain.TaskStatusTodo))
	m := NewMachine(repo, view)

	_, err := m.Start(context.Background(), staffA, "x")

	require.ErrorIs(t, err, domain.ErrActiveTaskConflict)
}

func TestMachine_FallsBackToStoreOnCacheMiss(t *testing.T) {
	repo := newMemRepo(newTask("x", domain.TaskStatusTodo))
	view := newMemView()
	m := NewMachine(repo, view)

	got, err := m.Start(context.Background(), staffA, "x")

	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	assert.Equal(t, 1, repo.reads)
	_, ok := view.Task("x")
	assert.True(t, ok)
}

func TestMachine_DuplicateSubmissionRejected(t *testing.T) {
	m, repo, _, _ := setup(t, newTask("x", domain.TaskStatusTodo))
	repo.entered = make(chan struct{})
	repo.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := m.Start(context.Background(), staffA, "x")
		done <- err
	}()
	<-repo.entered

	_, err := m.Start(context.Background(), staffA, "x")
	require.ErrorIs(t, err, domain.ErrActionPending)

	close(repo.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, repo.updates)
}

func TestMachine_SetNotes(t *testing.T) {
	m, repo, view, _ := setup(t, newTask("x", domain.TaskStatusDone))

	got, err := m.SetNotes(context.Background(), "x", Notes{Housekeeping: ptr.To("extra towels")})
	require.NoError(t, err)
	assert.Equal(t, "extra towels", got.HousekeepingNotes)
	assert.Equal(t, domain.TaskStatusDone, repo.stored("x").Status)
	cached, _ := view.Task("x")
	assert.Equal(t, "extra towels", cached.HousekeepingNotes)

	_, err = m.SetNotes(context.Background(), "x", Notes{})
	require.ErrorIs(t, err, domain.ErrEmptyUpdateMask)
}

// TestMachine_RandomSequencesPreserveInvariants drives random actions for a single
// staff member and checks the lifecycle invariants after every step.
func TestMachine_RandomSequencesPreserveInvariants(t *testing.T) {
	actions := []func(m *Machine, ctx context.Context, id string) (*domain.Task, error){
		func(m *Machine, ctx context.Context, id string) (*domain.Task, error) {
			return m.Start(ctx, staffA, id)
		},
		func(m *Machine, ctx context.Context, id string) (*domain.Task, error) {
			return m.Pause(ctx, staffA, id)
		},
		func(m *Machine, ctx context.Context, id string) (*domain.Task, error) {
			return m.Resume(ctx, staffA, id)
		},
		func(m *Machine, ctx context.Context, id string) (*domain.Task, error) { return m.Stop(ctx, staffA, id) },
		func(m *Machine, ctx context.Context, id string) (*domain.Task, error) {
			return m.ReportIssue(ctx, staffA, id, IssueReport{Description: "issue"})
		},
	}
	ids := []string{"a", "b", "c"}

	for seed := uint64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		tasks := make([]*domain.Task, 0, len(ids))
		for _, id := range ids {
			tk := newTask(id, domain.TaskStatusTodo)
			tk.TimeLimit = ptr.To(rng.IntN(60))
			tasks = append(tasks, tk)
		}
		m, repo, _, clk := setup(t, tasks...)
		ctx := context.Background()

		lastPause := map[string]int{}
		for step := 0; step < 40; step++ {
			clk.Advance(time.Duration(rng.IntN(600)) * time.Second)
			id := ids[rng.IntN(len(ids))]
			before := repo.stored(id)

			_, _ = actions[rng.IntN(len(actions))](m, ctx, id)

			after := repo.stored(id)
			if before.StartTime != nil {
				require.NotNil(t, after.StartTime, "seed %d", seed)
				assert.Equal(t, *before.StartTime, *after.StartTime, "seed %d: start time changed", seed)
			}
			require.GreaterOrEqual(t, after.TotalPause, lastPause[id], "seed %d: total pause decreased", seed)
			lastPause[id] = after.TotalPause

			inProgress := 0
			for _, tid := range ids {
				stored := repo.stored(tid)
				if stored.Status == domain.TaskStatusInProgress {
					inProgress++
				}
				if stored.Status == domain.TaskStatusDone && stored.StartTime != nil {
					want := max(0, int(stored.StopTime.Sub(*stored.StartTime)/time.Minute)-stored.TotalPause)
					require.NotNil(t, stored.ActualTime)
					assert.Equal(t, want, *stored.ActualTime, "seed %d", seed)
					require.NotNil(t, stored.Difference)
					assert.Equal(t, *stored.ActualTime-*stored.TimeLimit, *stored.Difference, "seed %d", seed)
				}
			}
			require.LessOrEqual(t, inProgress, 1, "seed %d: more than one active task", seed)
		}
	}
}
