// Package timeaccount computes the elapsed-time facts recorded by task transitions.
//
// All functions are pure: callers pass the current task fields and "now".
// Durations are whole minutes, truncated toward the earlier minute, and never negative.
package timeaccount

import "time"

// PauseDelta returns the whole minutes elapsed since pauseStart, clamped at zero.
// A nil pauseStart (no open pause interval) yields zero.
func PauseDelta(pauseStart *time.Time, now time.Time) int {
	if pauseStart == nil {
		return 0
	}
	return wholeMinutes(now.Sub(*pauseStart))
}

// AccumulatePause adds a completed pause interval to the running total.
// Negative deltas are ignored so the total never decreases.
func AccumulatePause(total, delta int) int {
	if delta < 0 {
		return total
	}
	return total + delta
}

// ActualTime returns the effective work minutes between start and stop minus the
// accumulated pause, clamped at zero. Returns nil when the task never started.
func ActualTime(start *time.Time, stop time.Time, totalPause int) *int {
	if start == nil {
		return nil
	}
	actual := max(0, wholeMinutes(stop.Sub(*start))-totalPause)
	return &actual
}

// Difference returns actual - limit, or nil when either side is unknown.
// Positive values mean the task ran over its budget.
func Difference(actual, limit *int) *int {
	if actual == nil || limit == nil {
		return nil
	}
	diff := *actual - *limit
	return &diff
}

// wholeMinutes floors d to whole minutes, clamping negative durations to zero.
func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}
