package calendar

import "time"

// Clock pairs a time source with the zone "today" is evaluated in.
// Callers take Today() once per run and pass the Date down; loops never ask
// the clock again, so a run cannot straddle midnight.
type Clock struct {
	now  func() time.Time
	zone Zone
}

// NewClock returns a clock. A nil now func means time.Now.
func NewClock(now func() time.Time, zone Zone) Clock {
	if now == nil {
		now = time.Now
	}
	return Clock{now: now, zone: zone}
}

// FixedClock returns a clock frozen at the start of the given day, for tests
// and for operators re-running a past date.
func FixedClock(d Date, zone Zone) Clock {
	at := zone.StartOf(d)
	return NewClock(func() time.Time { return at }, zone)
}

// Now returns the current instant.
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Today returns the current calendar day in the clock's zone.
func (c Clock) Today() Date {
	return c.zone.DateOf(c.Now())
}

// Zone returns the clock's zone.
func (c Clock) Zone() Zone {
	return c.zone
}
