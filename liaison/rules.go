package liaison

import (
	"sort"

	"github.com/warp/liaison-engine/calendar"
)

// QualifyingContact reports whether e counts as liaison contact for p: the
// author must not be an admin and must belong to p's department. Orphaned
// persons accept any non-admin author.
func QualifyingContact(p Person, e ContactEvent) bool {
	if e.AuthorRole == RoleAdmin {
		return false
	}
	if p.IsOrphan() {
		return true
	}
	return e.AuthorDepartmentID == p.DepartmentID
}

// DrivingLeave picks the leave period that drives reminders for a person on
// day: the most recently started active period with EndDate >= day.
func DrivingLeave(leaves []LeavePeriod, day calendar.Date) (LeavePeriod, bool) {
	var (
		best  LeavePeriod
		found bool
	)
	for _, l := range leaves {
		if l.Status != LeaveActive || l.EndDate.Before(day) {
			continue
		}
		if !found || l.StartDate.After(best.StartDate) ||
			(l.StartDate.Equal(best.StartDate) && l.CreatedAt.After(best.CreatedAt)) {
			best, found = l, true
		}
	}
	return best, found
}

// AwayOn reports whether any active leave covers day.
func AwayOn(leaves []LeavePeriod, day calendar.Date) bool {
	for _, l := range leaves {
		if l.Status == LeaveActive && l.Covers(day) {
			return true
		}
	}
	return false
}

// LeavesByPerson groups leave periods by person.
func LeavesByPerson(leaves []LeavePeriod) map[PersonID][]LeavePeriod {
	out := make(map[PersonID][]LeavePeriod)
	for _, l := range leaves {
		out[l.PersonID] = append(out[l.PersonID], l)
	}
	return out
}

// ContactsByPerson groups contacts by person, each group ordered by time.
func ContactsByPerson(contacts []ContactEvent) map[PersonID][]ContactEvent {
	out := make(map[PersonID][]ContactEvent)
	for _, c := range contacts {
		out[c.PersonID] = append(out[c.PersonID], c)
	}
	for id := range out {
		group := out[id]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].ContactedAt.Before(group[j].ContactedAt)
		})
	}
	return out
}
