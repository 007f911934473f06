package calendar

import (
	"errors"
	"fmt"
)

// ErrInvalidPeriod is returned when a period ends before it starts.
var ErrInvalidPeriod = errors.New("invalid period: end before start")

// =============================================================================
// PERIOD - Inclusive range of days
// =============================================================================

// Period is the inclusive range [Start, End] a report is computed over.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod validates and builds a Period.
func NewPeriod(start, end Date) (Period, error) {
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, start, end)
	}
	return Period{Start: start, End: end}, nil
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps returns true if [start, end] shares at least one day with p.
func (p Period) Overlaps(start, end Date) bool {
	return start.BeforeOrEqual(p.End) && end.AfterOrEqual(p.Start)
}

// Length returns the number of days in the period, both ends included.
func (p Period) Length() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Previous returns the period of identical length ending the day before Start.
func (p Period) Previous() Period {
	span := DaysBetween(p.Start, p.End)
	end := p.Start.AddDays(-1)
	return Period{Start: end.AddDays(-span), End: end}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
