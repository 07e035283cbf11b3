package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/housekeeping/internal/domain"
	"github.com/rezkam/housekeeping/internal/ptr"
)

// scriptedReader answers FindTasks from a function of the call number (1-based).
// Calls listed in block wait for their channel to close; entered receives the call number first.
type scriptedReader struct {
	mu      sync.Mutex
	calls   int
	respond func(call int) ([]*domain.Task, error)
	block   map[int]chan struct{}
	entered chan int
}

func (r *scriptedReader) FindTasks(ctx context.Context, _ domain.TaskFilter) ([]*domain.Task, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	gate := r.block[call]
	r.mu.Unlock()

	if gate != nil {
		if r.entered != nil {
			r.entered <- call
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.respond(call)
}

func (r *scriptedReader) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func fixed(tasks ...*domain.Task) func(int) ([]*domain.Task, error) {
	return func(int) ([]*domain.Task, error) { return tasks, nil }
}

type chanSubscriber struct {
	events       chan domain.TaskEvent
	mu           sync.Mutex
	unsubscribed int
	err          error
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{events: make(chan domain.TaskEvent)}
}

func (s *chanSubscriber) Subscribe(context.Context, domain.TaskFilter) (*domain.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	return domain.NewSubscription(s.events, func() {
		s.mu.Lock()
		s.unsubscribed++
		s.mu.Unlock()
	}), nil
}

func (s *chanSubscriber) Unsubscribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

const staffA = "staff-a"

var (
	june1 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	scope = domain.TaskFilter{StaffID: ptr.To(staffA), Date: ptr.To(june1)}
)

func task(id string, status domain.TaskStatus, created time.Duration) *domain.Task {
	return &domain.Task{
		ID:        id,
		Date:      june1,
		Status:    status,
		Room:      domain.Room{ID: "room-" + id},
		Staff:     &domain.Staff{ID: staffA},
		CreatedAt: june1.Add(8*time.Hour + created),
	}
}

func ids(tasks []*domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCache_FirstFetchAcceptsEmpty(t *testing.T) {
	c := NewCache(&scriptedReader{respond: fixed()}, scope)
	assert.Equal(t, StateUninitialized, c.State())

	require.NoError(t, c.Refetch(context.Background()))

	assert.Equal(t, StateReady, c.State())
	assert.Empty(t, c.Get())
}

func TestCache_RefetchOrdersAndDerivesActive(t *testing.T) {
	reader := &scriptedReader{respond: fixed(
		task("c", domain.TaskStatusTodo, 3*time.Minute),
		task("a", domain.TaskStatusInProgress, time.Minute),
		task("b", domain.TaskStatusPaused, 2*time.Minute),
	)}
	c := NewCache(reader, scope)

	require.NoError(t, c.Refetch(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, ids(c.Get()))
	active, ok := c.ActiveTaskID()
	require.True(t, ok)
	assert.Equal(t, "a", active)
}

func TestCache_TransientEmptyReadKeepsTasks(t *testing.T) {
	three := []*domain.Task{
		task("a", domain.TaskStatusTodo, time.Minute),
		task("b", domain.TaskStatusTodo, 2*time.Minute),
		task("c", domain.TaskStatusTodo, 3*time.Minute),
	}
	reader := &scriptedReader{respond: func(call int) ([]*domain.Task, error) {
		if call == 1 {
			return three, nil
		}
		return nil, nil
	}}
	c := NewCache(reader, scope)
	ctx := context.Background()

	require.NoError(t, c.Refetch(ctx))
	require.NoError(t, c.Refetch(ctx), "suppression is not an error")

	assert.Equal(t, []string{"a", "b", "c"}, ids(c.Get()))
	assert.Equal(t, StateReady, c.State())

	// The next notification retries.
	err := c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventUpdate, Old: three[0], New: three[0]})
	require.NoError(t, err)
	assert.Equal(t, 3, reader.Calls())
	assert.Len(t, c.Get(), 3)
}

func TestCache_ReadErrorKeepsTasks(t *testing.T) {
	readErr := errors.New("connection refused")
	reader := &scriptedReader{respond: func(call int) ([]*domain.Task, error) {
		if call == 1 {
			return []*domain.Task{task("a", domain.TaskStatusTodo, 0)}, nil
		}
		return nil, readErr
	}}
	c := NewCache(reader, scope)
	ctx := context.Background()

	require.NoError(t, c.Refetch(ctx))
	err := c.Refetch(ctx)

	require.ErrorIs(t, err, readErr)
	assert.Equal(t, []string{"a"}, ids(c.Get()))
}

func TestCache_EmptyAcceptedWhenEveryTaskLeftScope(t *testing.T) {
	a := task("a", domain.TaskStatusTodo, time.Minute)
	b := task("b", domain.TaskStatusTodo, 2*time.Minute)

	var mu sync.Mutex
	current := []*domain.Task{a, b}
	reader := &scriptedReader{respond: func(int) ([]*domain.Task, error) {
		mu.Lock()
		defer mu.Unlock()
		return current, nil
	}}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))

	// a is deleted by another actor.
	mu.Lock()
	current = []*domain.Task{b}
	mu.Unlock()
	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventDelete, Old: a}))
	assert.Equal(t, []string{"b"}, ids(c.Get()))

	// b is reassigned to someone else.
	moved := b.Clone()
	moved.Staff = &domain.Staff{ID: "staff-b"}
	mu.Lock()
	current = nil
	mu.Unlock()
	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventUpdate, Old: b, New: moved}))

	assert.Empty(t, c.Get(), "every cached task was seen leaving scope")
}

func TestCache_EmptySuppressedWhenOnlySomeTasksLeft(t *testing.T) {
	a := task("a", domain.TaskStatusTodo, time.Minute)
	b := task("b", domain.TaskStatusTodo, 2*time.Minute)
	reader := &scriptedReader{respond: func(call int) ([]*domain.Task, error) {
		if call == 1 {
			return []*domain.Task{a, b}, nil
		}
		return nil, nil
	}}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))

	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventDelete, Old: a}))

	assert.Equal(t, []string{"a", "b"}, ids(c.Get()))
}

func TestCache_ReenteringTaskClearsDeparture(t *testing.T) {
	a := task("a", domain.TaskStatusTodo, time.Minute)
	elsewhere := a.Clone()
	elsewhere.Staff = &domain.Staff{ID: "staff-b"}

	reader := &scriptedReader{respond: func(call int) ([]*domain.Task, error) {
		if call <= 3 {
			return []*domain.Task{a}, nil
		}
		return nil, nil
	}}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))

	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventUpdate, Old: a, New: elsewhere}))
	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventUpdate, Old: elsewhere, New: a}))
	require.NoError(t, c.Refetch(ctx))

	assert.Equal(t, []string{"a"}, ids(c.Get()))
}

func TestCache_IgnoresOutOfScopeNotifications(t *testing.T) {
	reader := &scriptedReader{respond: fixed(task("a", domain.TaskStatusTodo, 0))}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))

	other := task("z", domain.TaskStatusTodo, 0)
	other.Staff = &domain.Staff{ID: "staff-b"}
	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventInsert, New: other}))

	otherDay := task("y", domain.TaskStatusTodo, 0)
	otherDay.Date = june1.AddDate(0, 0, 1)
	require.NoError(t, c.ApplyNotification(ctx, domain.TaskEvent{Type: domain.EventInsert, New: otherDay}))

	assert.Equal(t, 1, reader.Calls())
}

func TestCache_ApplyConfirmed(t *testing.T) {
	reader := &scriptedReader{respond: fixed(task("a", domain.TaskStatusTodo, 0))}
	c := NewCache(reader, scope)
	require.NoError(t, c.Refetch(context.Background()))

	started := task("a", domain.TaskStatusInProgress, 0)
	c.ApplyConfirmed(started)

	got, ok := c.Task("a")
	require.True(t, ok)
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)
	active, ok := c.ActiveTaskID()
	require.True(t, ok)
	assert.Equal(t, "a", active)

	outOfScope := task("b", domain.TaskStatusTodo, 0)
	outOfScope.Staff = &domain.Staff{ID: "staff-b"}
	c.ApplyConfirmed(outOfScope)
	_, ok = c.Task("b")
	assert.False(t, ok)
}

func TestCache_ClosedIgnoresLateResults(t *testing.T) {
	reader := &scriptedReader{respond: fixed(task("a", domain.TaskStatusTodo, 0))}
	c := NewCache(reader, scope)
	require.NoError(t, c.Refetch(context.Background()))

	c.Close()
	c.ApplyConfirmed(task("a", domain.TaskStatusInProgress, 0))

	got, _ := c.Task("a")
	assert.Equal(t, domain.TaskStatusTodo, got.Status)
}

func TestCache_GetReturnsCopies(t *testing.T) {
	c := NewCache(&scriptedReader{respond: fixed(task("a", domain.TaskStatusTodo, 0))}, scope)
	require.NoError(t, c.Refetch(context.Background()))

	c.Get()[0].Status = domain.TaskStatusDone

	got, _ := c.Task("a")
	assert.Equal(t, domain.TaskStatusTodo, got.Status)
}

func TestCache_RefetchKeepsWriteConfirmedDuringRead(t *testing.T) {
	stale := task("x", domain.TaskStatusTodo, 0)
	stale.UpdatedAt = june1.Add(8 * time.Hour)
	gate := make(chan struct{})
	reader := &scriptedReader{
		respond: fixed(stale),
		block:   map[int]chan struct{}{2: gate},
		entered: make(chan int, 1),
	}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Refetch(ctx) }()
	<-reader.entered // the read started before the write below

	started := task("x", domain.TaskStatusInProgress, 0)
	started.UpdatedAt = june1.Add(9 * time.Hour)
	c.ApplyConfirmed(started)

	close(gate)
	require.NoError(t, <-done)

	active, ok := c.ActiveTaskID()
	assert.True(t, ok)
	assert.Equal(t, "x", active)
	got, _ := c.Task("x")
	assert.Equal(t, domain.TaskStatusInProgress, got.Status)

	// A read that starts after the write settles it: the store's row wins again.
	require.NoError(t, c.Refetch(ctx))
	got, _ = c.Task("x")
	assert.Equal(t, domain.TaskStatusTodo, got.Status)
}

func TestCache_RefetchPrefersNewerRowOverConfirmedWrite(t *testing.T) {
	paused := task("x", domain.TaskStatusPaused, 0)
	paused.UpdatedAt = june1.Add(10 * time.Hour)
	gate := make(chan struct{})
	reader := &scriptedReader{
		respond: fixed(paused),
		block:   map[int]chan struct{}{2: gate},
		entered: make(chan int, 1),
	}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Refetch(ctx) }()
	<-reader.entered

	started := task("x", domain.TaskStatusInProgress, 0)
	started.UpdatedAt = june1.Add(9 * time.Hour)
	c.ApplyConfirmed(started)

	close(gate)
	require.NoError(t, <-done)

	got, _ := c.Task("x")
	assert.Equal(t, domain.TaskStatusPaused, got.Status)
	_, ok := c.ActiveTaskID()
	assert.False(t, ok)
}

func TestCache_StateTransitions(t *testing.T) {
	first := make(chan struct{})
	second := make(chan struct{})
	reader := &scriptedReader{
		respond: fixed(task("a", domain.TaskStatusTodo, 0)),
		block:   map[int]chan struct{}{1: first, 2: second},
		entered: make(chan int, 2),
	}
	c := NewCache(reader, scope)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Refetch(ctx) }()
	<-reader.entered
	assert.Equal(t, StateLoading, c.State())
	close(first)
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, c.State())

	go func() { done <- c.Refetch(ctx) }()
	<-reader.entered
	assert.Equal(t, StateReady, c.State(), "background refetch never shows loading")
	close(second)
	require.NoError(t, <-done)
}

func TestCache_RefreshShowsLoadingOnlyWhenEmpty(t *testing.T) {
	gate := make(chan struct{})
	reader := &scriptedReader{
		respond: fixed(),
		block:   map[int]chan struct{}{2: gate},
		entered: make(chan int, 1),
	}
	c := NewCache(reader, scope)
	ctx := context.Background()
	require.NoError(t, c.Refetch(ctx))
	require.Equal(t, StateReady, c.State())

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-reader.entered
	assert.Equal(t, StateLoading, c.State())
	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, c.State())
}

func TestCache_RunCoalescesBursts(t *testing.T) {
	a := task("a", domain.TaskStatusTodo, 0)
	gate := make(chan struct{})
	reader := &scriptedReader{
		respond: fixed(a),
		block:   map[int]chan struct{}{2: gate},
		entered: make(chan int, 1),
	}
	sub := newChanSubscriber()
	c := NewCache(reader, scope)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx, sub) }()

	ev := domain.TaskEvent{Type: domain.EventUpdate, Old: a, New: a}
	sub.events <- ev
	<-reader.entered // the first background refetch is in flight

	for range 5 {
		sub.events <- ev
	}
	// An out-of-scope event: once it is received, every burst event has been handled.
	other := task("z", domain.TaskStatusTodo, 0)
	other.Staff = &domain.Staff{ID: "staff-b"}
	sub.events <- domain.TaskEvent{Type: domain.EventInsert, New: other}

	close(gate)

	// Initial load, the blocked refetch, and a single trailing refetch.
	require.Eventually(t, func() bool { return reader.Calls() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, reader.Calls())

	cancel()
	require.NoError(t, <-runErr)
	assert.Equal(t, 1, sub.Unsubscribed())
}

func TestCache_RunReportsClosedFeed(t *testing.T) {
	sub := newChanSubscriber()
	c := NewCache(&scriptedReader{respond: fixed()}, scope)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background(), sub) }()
	close(sub.events)

	select {
	case err := <-runErr:
		require.ErrorIs(t, err, ErrFeedClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the feed closed")
	}
	assert.Equal(t, 1, sub.Unsubscribed())
}

func TestCache_RunSubscribeFailure(t *testing.T) {
	sub := newChanSubscriber()
	sub.err = errors.New("dial failed")
	c := NewCache(&scriptedReader{respond: fixed()}, scope)

	err := c.Run(context.Background(), sub)

	require.Error(t, err)
	assert.Equal(t, StateUninitialized, c.State())
}

// TestCache_NeverEmptiesWithoutEvidence drives random read results and checks that
// a non-empty cache only becomes empty on the first fetch.
func TestCache_NeverEmptiesWithoutEvidence(t *testing.T) {
	pool := []*domain.Task{
		task("a", domain.TaskStatusTodo, time.Minute),
		task("b", domain.TaskStatusInProgress, 2*time.Minute),
		task("c", domain.TaskStatusPaused, 3*time.Minute),
	}
	for seed := 0; seed < 20; seed++ {
		reader := &scriptedReader{respond: func(call int) ([]*domain.Task, error) {
			n := (call*7 + seed*3) % (len(pool) + 1)
			if (call+seed)%5 == 0 {
				return nil, errors.New("flaky")
			}
			return pool[:n], nil
		}}
		c := NewCache(reader, scope)
		ctx := context.Background()

		hadTasks := false
		for i := 0; i < 30; i++ {
			_ = c.Refetch(ctx)
			n := len(c.Get())
			if hadTasks {
				require.NotZero(t, n, "seed %d step %d: cache emptied without evidence", seed, i)
			}
			hadTasks = hadTasks || n > 0
		}
	}
}
