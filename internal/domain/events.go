package domain

import "sync"

// TaskEvent is a row-change notification from the change feed.
// Old is set for update and delete, New for insert and update.
// Rows may be partial (ID, date, status and staff only); consumers refetch for full data.
type TaskEvent struct {
	Type EventType
	Old  *Task
	New  *Task
}

// TaskID returns the ID of the changed row.
func (e TaskEvent) TaskID() string {
	if e.New != nil {
		return e.New.ID
	}
	if e.Old != nil {
		return e.Old.ID
	}
	return ""
}

// Touches reports whether either side of the change falls inside the filter.
func (e TaskEvent) Touches(f TaskFilter) bool {
	return f.Matches(e.Old) || f.Matches(e.New)
}

// Leaves reports whether the change moved the row out of the filter:
// a delete of a matching row, or an update whose new row no longer matches.
func (e TaskEvent) Leaves(f TaskFilter) bool {
	switch e.Type {
	case EventDelete:
		return true
	case EventUpdate:
		return e.New != nil && !f.Matches(e.New)
	default:
		return false
	}
}

// Subscription is a live handle on the change feed.
// Events is closed when the subscription ends, either by Unsubscribe or by
// the producer shutting down.
type Subscription struct {
	events <-chan TaskEvent
	stop   func()
	once   sync.Once
}

// NewSubscription wraps an event channel and the function that tears it down.
func NewSubscription(events <-chan TaskEvent, stop func()) *Subscription {
	return &Subscription{events: events, stop: stop}
}

// Events returns the event stream.
func (s *Subscription) Events() <-chan TaskEvent {
	return s.events
}

// Unsubscribe ends the subscription. Safe to call more than once and during teardown.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
