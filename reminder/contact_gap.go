package reminder

import (
	"fmt"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// CONTACT GAP
// =============================================================================

// contactGapReminders checks how long p has gone without liaison contact.
//
// Present persons (no active leave covering today) get an overdue reminder
// once the gap reaches their creator's thresholds:
//
//	gap >= urgent   overdue/high
//	gap >= suggest  overdue/medium
//
// Persons currently away are left to the during rule: one reminder while
// nobody contacted them since their current leave started.
func (g *Generator) contactGapReminders(p liaison.Person, leaves []liaison.LeavePeriod, contacts []liaison.ContactEvent, in GenerateInput) []liaison.Reminder {
	if current, away := currentLeave(leaves, in.Today); away {
		if !current.StartDate.Before(in.Today) {
			return nil
		}
		if contactedSince(contacts, current.StartDate, in.Today, in.Zone) {
			return nil
		}
		return []liaison.Reminder{{
			PersonID:      p.ID,
			LeavePeriodID: current.ID,
			Type:          liaison.ReminderDuring,
			Priority:      liaison.PriorityMedium,
			Message: fmt.Sprintf("%s has not been contacted since their %s started on %s",
				p.Name, kindLabel(current.Kind), current.StartDate),
		}}
	}

	th := g.ThresholdsFor(p, in.Settings)
	days, ok := DaysSinceContact(p, contacts, in.Today, in.Zone)

	var priority liaison.Priority
	switch {
	case !ok || days >= th.UrgentThreshold:
		priority = liaison.PriorityHigh
	case days >= th.SuggestThreshold:
		priority = liaison.PriorityMedium
	default:
		return nil
	}

	msg := fmt.Sprintf("%s was last contacted %d days ago", p.Name, days)
	if !ok {
		msg = fmt.Sprintf("%s has no recorded liaison contact", p.Name)
	}
	return []liaison.Reminder{{
		PersonID: p.ID,
		Type:     liaison.ReminderOverdue,
		Priority: priority,
		Message:  msg,
	}}
}

// DaysSinceContact returns the days between today and p's most recent
// qualifying contact on or before today. ok is false when there is none,
// which callers treat as an unbounded gap.
func DaysSinceContact(p liaison.Person, contacts []liaison.ContactEvent, today calendar.Date, zone calendar.Zone) (days int, ok bool) {
	var last calendar.Date
	for _, c := range contacts {
		if !liaison.QualifyingContact(p, c) {
			continue
		}
		d := zone.DateOf(c.ContactedAt)
		if d.After(today) {
			continue
		}
		if !ok || d.After(last) {
			last, ok = d, true
		}
	}
	if !ok {
		return 0, false
	}
	return calendar.DaysBetween(last, today), true
}

// currentLeave returns the most recently started active leave covering today.
func currentLeave(leaves []liaison.LeavePeriod, today calendar.Date) (liaison.LeavePeriod, bool) {
	covering := make([]liaison.LeavePeriod, 0, len(leaves))
	for _, l := range leaves {
		if l.Covers(today) {
			covering = append(covering, l)
		}
	}
	return liaison.DrivingLeave(covering, today)
}

func contactedSince(contacts []liaison.ContactEvent, from, today calendar.Date, zone calendar.Zone) bool {
	for _, c := range contacts {
		d := zone.DateOf(c.ContactedAt)
		if d.AfterOrEqual(from) && d.BeforeOrEqual(today) {
			return true
		}
	}
	return false
}
