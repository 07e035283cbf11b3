// Package reconcile keeps a client's task list consistent with the shared store.
//
// The cache never patches rows from notification payloads. Every relevant
// notification triggers a full refetch of the cache scope, and the active task
// is re-derived from the refetched rows, so two sessions of the same staff
// member converge on the same state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/rezkam/housekeeping/internal/domain"
)

const instrumentationName = "github.com/rezkam/housekeeping/internal/application/reconcile"

// ErrFeedClosed is returned by Run when the notification feed ends while the context is still live.
var ErrFeedClosed = errors.New("notification feed closed")

// State is the lifecycle of the cache contents.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Reader performs the full reads the cache is rebuilt from.
type Reader interface {
	FindTasks(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, error)
}

// Subscriber opens a change feed scoped to a filter.
type Subscriber interface {
	Subscribe(ctx context.Context, filter domain.TaskFilter) (*domain.Subscription, error)
}

type confirmedWrite struct {
	task *domain.Task
	gen  uint64
}

// Cache holds the tasks visible to one client session.
// It is safe for concurrent use.
type Cache struct {
	reader Reader
	scope  domain.TaskFilter

	fetchMu sync.Mutex // serializes refetches so an older read never replaces a newer one

	mu       sync.RWMutex
	state    State
	tasks    []*domain.Task
	activeID string
	fetched  bool                // a refetch has succeeded this session
	departed map[string]struct{} // cached task IDs the feed reported leaving scope
	closed   bool

	// Confirmed writes by generation. A refetch whose read began before a
	// write keeps the confirmed row unless the read returned a newer one.
	writeGen  uint64
	confirmed map[string]confirmedWrite

	changes    chan struct{}
	suppressed metric.Int64Counter
}

// NewCache creates an empty cache over the given scope.
func NewCache(reader Reader, scope domain.TaskFilter) *Cache {
	c := &Cache{
		reader:    reader,
		scope:     scope,
		departed:  make(map[string]struct{}),
		confirmed: make(map[string]confirmedWrite),
		changes:   make(chan struct{}, 1),
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"housekeeping.cache.empty_suppressed",
		metric.WithDescription("Empty refetch results discarded in favor of the cached task list"),
	)
	if err != nil {
		slog.Warn("failed to create suppression counter", "error", err)
	}
	c.suppressed = counter

	return c
}

// Scope returns the filter the cache covers.
func (c *Cache) Scope() domain.TaskFilter {
	return c.scope
}

// State returns the current lifecycle state.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Get returns a copy of the cached tasks in (date, created_at) order.
func (c *Cache) Get() []*domain.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*domain.Task, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Task returns a copy of a cached task.
func (c *Cache) Task(id string) (*domain.Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return nil, false
}

// ActiveTaskID returns the in-progress task derived from the last refetch.
func (c *Cache) ActiveTaskID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeID, c.activeID != ""
}

// Changes signals after the cache contents change. Signals coalesce; readers call Get.
func (c *Cache) Changes() <-chan struct{} {
	return c.changes
}

// Close detaches the cache. Writes resolving after Close are not applied.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Refetch reads the whole scope and replaces the cache.
//
// After the first successful fetch of the session a non-empty cache is never
// replaced by an empty result, with one exception: every cached task was
// reported leaving scope on the feed. A suppressed result is not an error.
// Rows confirmed by ApplyConfirmed after the read began are kept over older
// fetched copies. Read errors leave the cache as is.
func (c *Cache) Refetch(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	c.mu.Lock()
	if c.state == StateUninitialized {
		c.state = StateLoading
	}
	startGen := c.writeGen
	c.mu.Unlock()

	tasks, err := c.reader.FindTasks(ctx, c.scope)
	if err != nil {
		slog.WarnContext(ctx, "task refetch failed, keeping cached tasks", "error", err)
		return fmt.Errorf("failed to refetch tasks: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	if len(tasks) == 0 && c.fetched && len(c.tasks) > 0 && !c.allDepartedLocked() {
		cached := len(c.tasks)
		c.mu.Unlock()

		slog.WarnContext(ctx, "ignoring empty refetch result after non-empty state", "cached_tasks", cached)
		if c.suppressed != nil {
			c.suppressed.Add(ctx, 1)
		}
		return nil
	}

	c.replaceLocked(c.overlayConfirmedLocked(tasks, startGen))
	c.mu.Unlock()

	c.notifyChanged()
	return nil
}

// overlayConfirmedLocked merges writes confirmed after generation since into
// fetched. Writes at or before since are settled by this read and forgotten.
func (c *Cache) overlayConfirmedLocked(fetched []*domain.Task, since uint64) []*domain.Task {
	out := append([]*domain.Task(nil), fetched...)
	for id, w := range c.confirmed {
		if w.gen <= since {
			delete(c.confirmed, id)
			continue
		}
		i := slices.IndexFunc(out, func(t *domain.Task) bool { return t.ID == id })
		switch {
		case i < 0:
			out = append(out, w.task)
		case !out[i].UpdatedAt.After(w.task.UpdatedAt):
			out[i] = w.task
		}
	}
	return out
}

// Refresh is the user-initiated refetch. It shows loading only while the cache is empty.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if len(c.tasks) == 0 && !c.closed {
		c.state = StateLoading
	}
	c.mu.Unlock()

	return c.Refetch(ctx)
}

// ApplyNotification handles a change event synchronously: events outside the
// scope are ignored, anything else triggers a refetch.
func (c *Cache) ApplyNotification(ctx context.Context, ev domain.TaskEvent) error {
	if !c.observe(ev) {
		return nil
	}
	return c.Refetch(ctx)
}

// ApplyConfirmed merges a row the store returned from a successful write.
// Rows outside the scope are left for the next refetch to settle.
func (c *Cache) ApplyConfirmed(task *domain.Task) {
	if task == nil || !c.scope.Matches(task) {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	replaced := false
	for i, t := range c.tasks {
		if t.ID == task.ID {
			c.tasks[i] = task.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		c.tasks = append(c.tasks, task.Clone())
		domain.SortTasks(c.tasks)
	}
	delete(c.departed, task.ID)
	c.writeGen++
	c.confirmed[task.ID] = confirmedWrite{task: task.Clone(), gen: c.writeGen}
	c.activeID = c.deriveActiveLocked()
	c.mu.Unlock()

	c.notifyChanged()
}

// Run keeps the cache in sync with the change feed until ctx ends or the feed closes.
//
// It subscribes before the initial load so no change between the two is missed.
// Bursts of events collapse into at most one refetch in flight plus one queued.
func (c *Cache) Run(ctx context.Context, sub Subscriber) error {
	subscription, err := sub.Subscribe(ctx, c.scope)
	if err != nil {
		return fmt.Errorf("failed to subscribe to task changes: %w", err)
	}
	defer subscription.Unsubscribe()

	if err := c.Refetch(ctx); err != nil {
		slog.WarnContext(ctx, "initial task load failed, waiting for next change", "error", err)
	}

	pending := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev, ok := <-subscription.Events():
				if !ok {
					if gctx.Err() != nil {
						return nil
					}
					return ErrFeedClosed
				}
				if !c.observe(ev) {
					continue
				}
				select {
				case pending <- struct{}{}:
				default:
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-pending:
				if err := c.Refetch(gctx); err != nil && gctx.Err() == nil {
					slog.WarnContext(gctx, "background refetch failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}

// observe records what an event says about scope membership and reports
// whether the event is relevant to this cache.
func (c *Cache) observe(ev domain.TaskEvent) bool {
	if !ev.Touches(c.scope) {
		return false
	}
	id := ev.TaskID()

	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Leaves(c.scope) {
		c.departed[id] = struct{}{}
	} else if c.scope.Matches(ev.New) {
		delete(c.departed, id)
	}
	return true
}

func (c *Cache) allDepartedLocked() bool {
	for _, t := range c.tasks {
		if _, ok := c.departed[t.ID]; !ok {
			return false
		}
	}
	return true
}

func (c *Cache) replaceLocked(tasks []*domain.Task) {
	next := make([]*domain.Task, len(tasks))
	ids := make(map[string]struct{}, len(tasks))
	for i, t := range tasks {
		next[i] = t.Clone()
		ids[t.ID] = struct{}{}
	}
	domain.SortTasks(next)

	// A departure only matters while the row may still be cached.
	for id := range c.departed {
		if _, ok := ids[id]; !ok {
			delete(c.departed, id)
		}
	}

	c.tasks = next
	c.fetched = true
	c.state = StateReady
	c.activeID = c.deriveActiveLocked()
}

// deriveActiveLocked returns the in-progress task of the scoped staff member,
// or of anyone when the scope spans staff.
func (c *Cache) deriveActiveLocked() string {
	for _, t := range c.tasks {
		if t.Status != domain.TaskStatusInProgress {
			continue
		}
		if c.scope.StaffID == nil || t.StaffID() == *c.scope.StaffID {
			return t.ID
		}
	}
	return ""
}

func (c *Cache) notifyChanged() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
