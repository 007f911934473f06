package reminder_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/reminder"
)

var utc = calendar.NewZone(time.UTC)

func day(s string) calendar.Date { return calendar.MustParseDate(s) }

func at(s string) time.Time { return utc.StartOf(day(s)).Add(10 * time.Hour) }

func newGenerator(opts reminder.Options) *reminder.Generator {
	n := 0
	opts.NewID = func() liaison.ReminderID {
		n++
		return liaison.ReminderID(fmt.Sprintf("r-%d", n))
	}
	opts.Now = func() time.Time { return at("2024-03-10") }
	return reminder.NewGenerator(opts)
}

func person(id string) liaison.Person {
	return liaison.Person{ID: liaison.PersonID(id), Name: id, DepartmentID: "ops", CreatedBy: "u-liaison"}
}

func leave(personID, start, end string) liaison.LeavePeriod {
	return liaison.LeavePeriod{
		ID:        liaison.LeavePeriodID("lp-" + personID),
		PersonID:  liaison.PersonID(personID),
		Kind:      liaison.KindLeave,
		StartDate: day(start),
		EndDate:   day(end),
		Status:    liaison.LeaveActive,
	}
}

func contact(personID, on string, dept liaison.DepartmentID, role liaison.Role) liaison.ContactEvent {
	return liaison.ContactEvent{
		ID:                 liaison.ContactID("c-" + personID + "-" + on),
		PersonID:           liaison.PersonID(personID),
		ContactedAt:        at(on),
		ContactBy:          "u-liaison",
		AuthorDepartmentID: dept,
		AuthorRole:         role,
	}
}

type fixture struct {
	persons  []liaison.Person
	leaves   []liaison.LeavePeriod
	contacts []liaison.ContactEvent
	settings map[liaison.UserID]liaison.ReminderSettings
}

func (f fixture) input(today string) reminder.GenerateInput {
	return reminder.GenerateInput{
		Today:    day(today),
		Zone:     utc,
		Persons:  f.persons,
		Leaves:   liaison.LeavesByPerson(f.leaves),
		Contacts: liaison.ContactsByPerson(f.contacts),
		Settings: f.settings,
	}
}

func byPerson(out reminder.GenerateOutput, id string) []liaison.Reminder {
	var rs []liaison.Reminder
	for _, r := range out.Reminders {
		if r.PersonID == liaison.PersonID(id) {
			rs = append(rs, r)
		}
	}
	return rs
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestExpiredLeaves(t *testing.T) {
	today := day("2024-03-10")
	leaves := []liaison.LeavePeriod{
		leave("ended-yesterday", "2024-03-01", "2024-03-09"),
		leave("ends-today", "2024-03-01", "2024-03-10"),
		{ID: "done", EndDate: day("2024-02-01"), Status: liaison.LeaveCompleted},
		{ID: "cancelled", EndDate: day("2024-02-01"), Status: liaison.LeaveCancelled},
	}

	assert.Equal(t, []liaison.LeavePeriodID{"lp-ended-yesterday"}, reminder.ExpiredLeaves(leaves, today))
}

// =============================================================================
// LEAVE EVENTS
// =============================================================================

func TestGenerate_BeforeAndEnding(t *testing.T) {
	// GIVEN one leave starting tomorrow and one ending tomorrow
	f := fixture{
		persons: []liaison.Person{person("starts"), person("ends")},
		leaves: []liaison.LeavePeriod{
			leave("starts", "2024-03-11", "2024-03-20"),
			leave("ends", "2024-03-01", "2024-03-11"),
		},
		contacts: []liaison.ContactEvent{
			contact("starts", "2024-03-09", "ops", liaison.RoleLiaison),
			contact("ends", "2024-03-05", "ops", liaison.RoleLiaison),
		},
	}

	// WHEN generating for the 10th
	out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

	// THEN each gets exactly its boundary reminder
	starts := byPerson(out, "starts")
	require.Len(t, starts, 1)
	assert.Equal(t, liaison.ReminderBefore, starts[0].Type)
	assert.Equal(t, liaison.PriorityMedium, starts[0].Priority)
	assert.Equal(t, day("2024-03-10"), starts[0].Date)
	assert.Contains(t, starts[0].Message, "begins tomorrow")

	ends := byPerson(out, "ends")
	require.Len(t, ends, 1)
	assert.Equal(t, liaison.ReminderEnding, ends[0].Type)
	assert.Equal(t, liaison.LeavePeriodID("lp-ends"), ends[0].LeavePeriodID)
}

func TestGenerate_DuringNeverContactedIsEmittedOnce(t *testing.T) {
	f := fixture{
		persons: []liaison.Person{person("p")},
		leaves:  []liaison.LeavePeriod{leave("p", "2024-03-01", "2024-03-20")},
	}

	out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

	rs := byPerson(out, "p")
	require.Len(t, rs, 1)
	assert.Equal(t, liaison.ReminderDuring, rs[0].Type)
	assert.Equal(t, liaison.PriorityMedium, rs[0].Priority)
	assert.Contains(t, rs[0].Message, "never contacted")
	assert.Equal(t, 1, out.ByType[liaison.ReminderDuring])
}

func TestGenerate_DuringWhenLastContactPredatesLeave(t *testing.T) {
	// GIVEN a contact from before the current leave started
	f := fixture{
		persons:  []liaison.Person{person("p")},
		leaves:   []liaison.LeavePeriod{leave("p", "2024-03-05", "2024-03-20")},
		contacts: []liaison.ContactEvent{contact("p", "2024-02-20", "ops", liaison.RoleLiaison)},
	}

	out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

	// THEN the contact-recency during rule fires
	rs := byPerson(out, "p")
	require.Len(t, rs, 1)
	assert.Equal(t, liaison.ReminderDuring, rs[0].Type)
	assert.Contains(t, rs[0].Message, "not been contacted since")
}

func TestGenerate_NoDuringOnLeaveStartDay(t *testing.T) {
	f := fixture{
		persons: []liaison.Person{person("p")},
		leaves:  []liaison.LeavePeriod{leave("p", "2024-03-10", "2024-03-20")},
	}

	out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

	assert.Empty(t, byPerson(out, "p"))
}

// =============================================================================
// CONTACT GAP
// =============================================================================

func TestGenerate_OverdueTiers(t *testing.T) {
	tests := []struct {
		name     string
		contacts []liaison.ContactEvent
		want     liaison.Priority // empty means no reminder
	}{
		{"recent contact", []liaison.ContactEvent{contact("p", "2024-03-05", "ops", liaison.RoleLiaison)}, ""},
		{"exactly suggest threshold", []liaison.ContactEvent{contact("p", "2024-03-03", "ops", liaison.RoleLiaison)}, liaison.PriorityMedium},
		{"exactly urgent threshold", []liaison.ContactEvent{contact("p", "2024-02-29", "ops", liaison.RoleLiaison)}, liaison.PriorityHigh},
		{"never contacted", nil, liaison.PriorityHigh},
		{"admin contact ignored", []liaison.ContactEvent{contact("p", "2024-03-09", "ops", liaison.RoleAdmin)}, liaison.PriorityHigh},
		{"other department ignored", []liaison.ContactEvent{contact("p", "2024-03-09", "hr", liaison.RoleLiaison)}, liaison.PriorityHigh},
		{"future contact ignored", []liaison.ContactEvent{
			contact("p", "2024-03-01", "ops", liaison.RoleLiaison),
			contact("p", "2024-03-12", "ops", liaison.RoleLiaison),
		}, liaison.PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := fixture{persons: []liaison.Person{person("p")}, contacts: tt.contacts}

			out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

			rs := byPerson(out, "p")
			if tt.want == "" {
				assert.Empty(t, rs)
				return
			}
			require.Len(t, rs, 1)
			assert.Equal(t, liaison.ReminderOverdue, rs[0].Type)
			assert.Equal(t, tt.want, rs[0].Priority)
		})
	}
}

func TestGenerate_UsesCreatorThresholds(t *testing.T) {
	// GIVEN a creator with tighter thresholds than the defaults
	f := fixture{
		persons:  []liaison.Person{person("p")},
		contacts: []liaison.ContactEvent{contact("p", "2024-03-04", "ops", liaison.RoleLiaison)},
		settings: map[liaison.UserID]liaison.ReminderSettings{
			"u-liaison": {UserID: "u-liaison", UrgentThreshold: 5, SuggestThreshold: 3},
		},
	}

	out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

	// THEN six days is already urgent
	rs := byPerson(out, "p")
	require.Len(t, rs, 1)
	assert.Equal(t, liaison.PriorityHigh, rs[0].Priority)
}

func TestGenerate_AwayPersonsGetNoOverdue(t *testing.T) {
	f := fixture{
		persons: []liaison.Person{person("p")},
		leaves:  []liaison.LeavePeriod{leave("p", "2024-03-01", "2024-03-20")},
		contacts: []liaison.ContactEvent{
			contact("p", "2024-03-01", "ops", liaison.RoleLiaison),
		},
	}

	out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-15"))

	assert.Empty(t, byPerson(out, "p"))
}

func TestGenerate_Orphans(t *testing.T) {
	orphan := person("orphan")
	orphan.DepartmentID = ""
	f := fixture{
		persons:  []liaison.Person{orphan},
		contacts: []liaison.ContactEvent{contact("orphan", "2024-03-09", "hr", liaison.RoleLiaison)},
	}

	t.Run("skipped by default", func(t *testing.T) {
		out := newGenerator(reminder.Options{}).Generate(f.input("2024-03-20"))
		assert.Empty(t, out.Reminders)
		assert.Equal(t, 1, out.SkippedOrphans)
	})

	t.Run("included on request, any non-admin contact counts", func(t *testing.T) {
		out := newGenerator(reminder.Options{IncludeOrphans: true}).Generate(f.input("2024-03-20"))
		require.Len(t, out.Reminders, 1)
		assert.Equal(t, liaison.PriorityHigh, out.Reminders[0].Priority)
		assert.Contains(t, out.Reminders[0].Message, "11 days")
	})
}

func TestGenerate_IsDeterministic(t *testing.T) {
	f := fixture{
		persons: []liaison.Person{person("b"), person("a")},
		leaves:  []liaison.LeavePeriod{leave("b", "2024-03-11", "2024-03-20")},
	}

	first := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))
	second := newGenerator(reminder.Options{}).Generate(f.input("2024-03-10"))

	assert.Equal(t, first.Reminders, second.Reminders)
	require.NotEmpty(t, first.Reminders)
	assert.Equal(t, liaison.PersonID("a"), first.Reminders[0].PersonID)
}

func TestThresholdsFor(t *testing.T) {
	g := reminder.NewGenerator(reminder.Options{UrgentThreshold: 14, SuggestThreshold: 9})
	p := person("p")

	got := g.ThresholdsFor(p, nil)
	assert.Equal(t, 14, got.UrgentThreshold)
	assert.Equal(t, 9, got.SuggestThreshold)

	got = g.ThresholdsFor(p, map[liaison.UserID]liaison.ReminderSettings{
		"u-liaison": {UrgentThreshold: 4, SuggestThreshold: 6},
	})
	assert.Equal(t, 4, got.UrgentThreshold)
	assert.Equal(t, 4, got.SuggestThreshold, "suggest never exceeds urgent")
}

func TestDaysSinceContact_ZoneNormalized(t *testing.T) {
	tokyo, err := calendar.LoadZone("Asia/Tokyo")
	require.NoError(t, err)

	// 2024-03-09 20:00 UTC is already the 10th in Tokyo
	c := liaison.ContactEvent{
		PersonID:           "p",
		ContactedAt:        time.Date(2024, 3, 9, 20, 0, 0, 0, time.UTC),
		AuthorDepartmentID: "ops",
		AuthorRole:         liaison.RoleLiaison,
	}

	days, ok := reminder.DaysSinceContact(person("p"), []liaison.ContactEvent{c}, day("2024-03-10"), tokyo)

	assert.True(t, ok)
	assert.Equal(t, 0, days)
}
