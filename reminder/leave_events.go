package reminder

import (
	"fmt"
	"sort"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// LEAVE EVENTS
// =============================================================================

// leaveEventReminders fires on the leave boundaries of p:
//   - before: the day before a leave starts
//   - ending: the day before a leave ends
//   - during: a leave already started and p was never contacted at all
//
// leaves must already be filtered to active periods with EndDate >= today.
func leaveEventReminders(p liaison.Person, leaves []liaison.LeavePeriod, contacts []liaison.ContactEvent, today calendar.Date) []liaison.Reminder {
	if len(leaves) == 0 {
		return nil
	}

	ordered := make([]liaison.LeavePeriod, len(leaves))
	copy(ordered, leaves)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].StartDate.After(ordered[j].StartDate)
	})

	var out []liaison.Reminder
	for _, l := range ordered {
		if l.Status != liaison.LeaveActive || l.EndDate.Before(today) {
			continue
		}
		if today.Equal(l.StartDate.AddDays(-1)) {
			out = append(out, liaison.Reminder{
				PersonID:      p.ID,
				LeavePeriodID: l.ID,
				Type:          liaison.ReminderBefore,
				Priority:      liaison.PriorityMedium,
				Message:       fmt.Sprintf("%s's %s begins tomorrow (%s)", p.Name, kindLabel(l.Kind), l.StartDate),
			})
		}
		if today.Equal(l.EndDate.AddDays(-1)) {
			out = append(out, liaison.Reminder{
				PersonID:      p.ID,
				LeavePeriodID: l.ID,
				Type:          liaison.ReminderEnding,
				Priority:      liaison.PriorityMedium,
				Message:       fmt.Sprintf("%s's %s ends tomorrow (%s)", p.Name, kindLabel(l.Kind), l.EndDate),
			})
		}
		if l.StartDate.Before(today) && len(contacts) == 0 {
			out = append(out, liaison.Reminder{
				PersonID:      p.ID,
				LeavePeriodID: l.ID,
				Type:          liaison.ReminderDuring,
				Priority:      liaison.PriorityMedium,
				Message:       fmt.Sprintf("%s has been away since %s and was never contacted", p.Name, l.StartDate),
			})
		}
	}
	return out
}

func kindLabel(k liaison.LeaveKind) string {
	if k == "" {
		return string(liaison.KindLeave)
	}
	return string(k)
}
