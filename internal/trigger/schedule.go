package trigger

import (
	"time"

	"github.com/robfig/cron/v3"
)

// onceSchedule fires a single time at `at`
type onceSchedule struct {
	at time.Time
}

func (s onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

// anchoredEvery fires at start + k*every, strictly after the given time
type anchoredEvery struct {
	start time.Time
	every time.Duration
}

func (s anchoredEvery) Next(t time.Time) time.Time {
	if t.Before(s.start) {
		return s.start
	}
	n := t.Sub(s.start)/s.every + 1
	return s.start.Add(n * s.every)
}

// window clamps a schedule to [start, end]
type window struct {
	base  cron.Schedule
	start *time.Time
	end   *time.Time
}

func (w window) Next(t time.Time) time.Time {
	if w.start != nil && t.Before(*w.start) {
		// the base schedule returns times strictly after its argument
		t = w.start.Add(-time.Second)
	}
	next := w.base.Next(t)
	if next.IsZero() {
		return next
	}
	if w.end != nil && next.After(*w.end) {
		return time.Time{}
	}
	return next
}

func windowed(base cron.Schedule, start, end *time.Time) cron.Schedule {
	if start == nil && end == nil {
		return base
	}
	return window{base: base, start: start, end: end}
}
