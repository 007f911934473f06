package scoring

import (
	"sort"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// IntervalKind tells where in the sequence an interval sits.
type IntervalKind string

const (
	IntervalFirst  IntervalKind = "first"
	IntervalMiddle IntervalKind = "middle"
	IntervalLast   IntervalKind = "last"
)

// Interval is the day-span between two contact-worthy boundaries.
type Interval struct {
	Kind    IntervalKind  `json:"kind"`
	From    calendar.Date `json:"from"`
	To      calendar.Date `json:"to"`
	Days    int           `json:"days"`
	Penalty int           `json:"penalty"`
}

// Negative reports a span that ends before it starts (clock skew, bad data).
func (i Interval) Negative() bool {
	return i.Days < 0
}

// Subject is one person's leave period with the calendar days of their
// qualifying contacts.
type Subject struct {
	PersonID     liaison.PersonID
	PersonName   string
	DepartmentID liaison.DepartmentID
	CreatedOn    calendar.Date // person record creation day; zero if unknown
	Leave        liaison.LeavePeriod
	ContactDays  []calendar.Date
}

// BuildIntervals returns the ordered interval sequence for s as of asOf:
//
//	first:  max(leave start, created) -> first contact (or the open end)
//	middle: contact -> next contact
//	last:   last contact -> asOf, only while asOf <= leave end
//
// Only contacts on or after the leave start and on or before asOf count.
// When there is no contact the first interval ends at asOf, clamped to the
// leave end so a finished leave stops accruing.
func BuildIntervals(s Subject, asOf calendar.Date) []Interval {
	start := s.Leave.StartDate
	if !s.CreatedOn.IsZero() {
		start = calendar.Max(start, s.CreatedOn)
	}

	contacts := contactsInWindow(s.ContactDays, s.Leave.StartDate, asOf)

	if len(contacts) == 0 {
		end := calendar.Min(asOf, s.Leave.EndDate)
		return []Interval{newInterval(IntervalFirst, start, end)}
	}

	intervals := make([]Interval, 0, len(contacts)+1)
	intervals = append(intervals, newInterval(IntervalFirst, start, contacts[0]))
	for i := 1; i < len(contacts); i++ {
		intervals = append(intervals, newInterval(IntervalMiddle, contacts[i-1], contacts[i]))
	}
	if asOf.BeforeOrEqual(s.Leave.EndDate) {
		intervals = append(intervals, newInterval(IntervalLast, contacts[len(contacts)-1], asOf))
	}
	return intervals
}

func newInterval(kind IntervalKind, from, to calendar.Date) Interval {
	days := calendar.DaysBetween(from, to)
	iv := Interval{Kind: kind, From: from, To: to, Days: days}
	if days >= 0 {
		iv.Penalty = Penalty(days)
	}
	return iv
}

func contactsInWindow(days []calendar.Date, from, to calendar.Date) []calendar.Date {
	out := make([]calendar.Date, 0, len(days))
	for _, d := range days {
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
