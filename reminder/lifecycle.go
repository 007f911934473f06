package reminder

import (
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// ExpiredLeaves returns the ids of active leave periods that ended before
// today. These move to completed; completed periods never move back.
func ExpiredLeaves(leaves []liaison.LeavePeriod, today calendar.Date) []liaison.LeavePeriodID {
	var ids []liaison.LeavePeriodID
	for _, l := range leaves {
		if l.Status == liaison.LeaveActive && l.EndDate.Before(today) {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
