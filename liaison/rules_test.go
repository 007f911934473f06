package liaison_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

func day(s string) calendar.Date { return calendar.MustParseDate(s) }

func TestQualifyingContact(t *testing.T) {
	person := liaison.Person{ID: "p-1", DepartmentID: "ops"}

	tests := []struct {
		name   string
		event  liaison.ContactEvent
		orphan bool
		want   bool
	}{
		{"same department liaison", liaison.ContactEvent{AuthorDepartmentID: "ops", AuthorRole: liaison.RoleLiaison}, false, true},
		{"same department manager", liaison.ContactEvent{AuthorDepartmentID: "ops", AuthorRole: liaison.RoleManager}, false, true},
		{"admin never counts", liaison.ContactEvent{AuthorDepartmentID: "ops", AuthorRole: liaison.RoleAdmin}, false, false},
		{"other department", liaison.ContactEvent{AuthorDepartmentID: "hr", AuthorRole: liaison.RoleLiaison}, false, false},
		{"orphan accepts any liaison", liaison.ContactEvent{AuthorDepartmentID: "hr", AuthorRole: liaison.RoleLiaison}, true, true},
		{"orphan still rejects admin", liaison.ContactEvent{AuthorRole: liaison.RoleAdmin}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := person
			if tt.orphan {
				p.DepartmentID = ""
			}
			assert.Equal(t, tt.want, liaison.QualifyingContact(p, tt.event))
		})
	}
}

func TestDrivingLeave_PicksMostRecentlyStartedActive(t *testing.T) {
	today := day("2024-03-10")
	leaves := []liaison.LeavePeriod{
		{ID: "old", StartDate: day("2024-03-01"), EndDate: day("2024-03-20"), Status: liaison.LeaveActive},
		{ID: "next", StartDate: day("2024-03-05"), EndDate: day("2024-03-25"), Status: liaison.LeaveActive},
		{ID: "cancelled", StartDate: day("2024-03-08"), EndDate: day("2024-03-30"), Status: liaison.LeaveCancelled},
		{ID: "ended", StartDate: day("2024-03-09"), EndDate: day("2024-03-09"), Status: liaison.LeaveActive},
	}

	got, ok := liaison.DrivingLeave(leaves, today)

	assert.True(t, ok)
	assert.Equal(t, liaison.LeavePeriodID("next"), got.ID)
}

func TestDrivingLeave_None(t *testing.T) {
	_, ok := liaison.DrivingLeave(nil, day("2024-03-10"))
	assert.False(t, ok)
}

func TestAwayOn(t *testing.T) {
	leaves := []liaison.LeavePeriod{
		{StartDate: day("2024-03-05"), EndDate: day("2024-03-07"), Status: liaison.LeaveActive},
		{StartDate: day("2024-04-01"), EndDate: day("2024-04-07"), Status: liaison.LeaveCompleted},
	}

	assert.True(t, liaison.AwayOn(leaves, day("2024-03-05")))
	assert.True(t, liaison.AwayOn(leaves, day("2024-03-07")))
	assert.False(t, liaison.AwayOn(leaves, day("2024-03-08")))
	assert.False(t, liaison.AwayOn(leaves, day("2024-04-02")), "completed leave does not count")
}

func TestContactsByPerson_Ordered(t *testing.T) {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	grouped := liaison.ContactsByPerson([]liaison.ContactEvent{
		{ID: "c3", PersonID: "p", ContactedAt: base.AddDate(0, 0, 3)},
		{ID: "c1", PersonID: "p", ContactedAt: base},
		{ID: "c2", PersonID: "q", ContactedAt: base},
	})

	assert.Len(t, grouped["p"], 2)
	assert.Equal(t, liaison.ContactID("c1"), grouped["p"][0].ID)
	assert.Equal(t, liaison.ContactID("c3"), grouped["p"][1].ID)
}

func TestDepartmentError_Unwraps(t *testing.T) {
	err := &liaison.DepartmentError{DepartmentID: "ops", Err: liaison.ErrNotFound}
	assert.True(t, errors.Is(err, liaison.ErrNotFound))
	assert.True(t, liaison.IsNotFound(err))
	assert.Contains(t, err.Error(), "ops")
}

func TestSystemReminderID_IsPerDay(t *testing.T) {
	assert.Equal(t, liaison.ReminderID("system-2024-01-25"), liaison.SystemReminderID(day("2024-01-25")))
}
