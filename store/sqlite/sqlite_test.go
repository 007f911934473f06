package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/store/sqlite"
)

func day(s string) calendar.Date { return calendar.MustParseDate(s) }

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seed writes two departments, a liaison per department, an admin and one
// person in ops.
func seed(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveDepartment(ctx, liaison.Department{ID: "ops", Name: "Operations"}))
	require.NoError(t, store.SaveDepartment(ctx, liaison.Department{ID: "hr", Name: "Human Resources"}))
	require.NoError(t, store.SaveUser(ctx, liaison.User{ID: "u-ops", Name: "Olga", DepartmentID: "ops", Role: liaison.RoleLiaison}))
	require.NoError(t, store.SaveUser(ctx, liaison.User{ID: "u-hr", Name: "Hugo", DepartmentID: "hr", Role: liaison.RoleLiaison}))
	require.NoError(t, store.SaveUser(ctx, liaison.User{ID: "u-admin", Name: "Ada", DepartmentID: "ops", Role: liaison.RoleAdmin}))
	require.NoError(t, store.SavePerson(ctx, liaison.Person{
		ID: "p-1", Name: "Alice", DepartmentID: "ops", CreatedBy: "u-ops",
		CreatedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}))
}

func TestDirectory(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	ctx := context.Background()

	depts, err := store.ListDepartments(ctx)
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, "Human Resources", depts[0].Name)

	_, err = store.GetDepartment(ctx, "nope")
	assert.True(t, errors.Is(err, liaison.ErrNotFound))

	persons, err := store.ListPersons(ctx, liaison.PersonFilter{DepartmentIDs: []liaison.DepartmentID{"ops"}})
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, liaison.UserID("u-ops"), persons[0].CreatedBy)
	assert.Nil(t, persons[0].LastContactDate)

	persons, err = store.ListPersons(ctx, liaison.PersonFilter{DepartmentIDs: []liaison.DepartmentID{"hr"}})
	require.NoError(t, err)
	assert.Empty(t, persons)
}

func TestReminderSettings_MissingIsNil(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	got, err := store.GetReminderSettings(ctx, "u-ops")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.SaveReminderSettings(ctx, liaison.ReminderSettings{UserID: "u-ops", UrgentThreshold: 5, SuggestThreshold: 3}))
	got, err = store.GetReminderSettings(ctx, "u-ops")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.UrgentThreshold)
}

func TestMarkLeaveCompleted(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	ctx := context.Background()

	// GIVEN a leave that ended yesterday and one that ends today
	require.NoError(t, store.SaveLeavePeriod(ctx, liaison.LeavePeriod{
		ID: "lp-ended", PersonID: "p-1", StartDate: day("2024-03-01"), EndDate: day("2024-03-09"), Status: liaison.LeaveActive,
	}))
	require.NoError(t, store.SaveLeavePeriod(ctx, liaison.LeavePeriod{
		ID: "lp-today", PersonID: "p-1", StartDate: day("2024-03-05"), EndDate: day("2024-03-10"), Status: liaison.LeaveActive,
	}))

	// WHEN completing both as of the 10th
	n, err := store.MarkLeaveCompleted(ctx, []liaison.LeavePeriodID{"lp-ended", "lp-today"}, day("2024-03-10"))

	// THEN only the ended one moves
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	active, err := store.ListActiveLeavePeriods(ctx, day("2024-03-10"))
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, liaison.LeavePeriodID("lp-today"), active[0].ID)

	// AND a second pass is a no-op
	n, err = store.MarkLeaveCompleted(ctx, []liaison.LeavePeriodID{"lp-ended"}, day("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListContactEvents_Filters(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, by := range []liaison.UserID{"u-ops", "u-hr", "u-admin"} {
		require.NoError(t, store.SaveContactEvent(ctx, liaison.ContactEvent{
			ID: liaison.ContactID("c-" + string(by)), PersonID: "p-1", ContactBy: by,
			ContactedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	all, err := store.ListContactEvents(ctx, liaison.ContactFilter{PersonIDs: []liaison.PersonID{"p-1"}})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, liaison.RoleLiaison, all[0].AuthorRole)
	assert.Equal(t, liaison.DepartmentID("hr"), all[1].AuthorDepartmentID)

	qualifying, err := store.ListContactEvents(ctx, liaison.ContactFilter{ExcludeAdmin: true, SameDepartmentOnly: true})
	require.NoError(t, err)
	require.Len(t, qualifying, 1)
	assert.Equal(t, liaison.ContactID("c-u-ops"), qualifying[0].ID)

	from := base.Add(12 * time.Hour)
	later, err := store.ListContactEvents(ctx, liaison.ContactFilter{From: &from})
	require.NoError(t, err)
	assert.Len(t, later, 2)
}

func TestReminders_DeleteForDateKeepsSystemRows(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	today := day("2024-03-10")
	now := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertReminders(ctx, []liaison.Reminder{
		{ID: "r-1", PersonID: "p-1", Type: liaison.ReminderOverdue, Date: today, Priority: liaison.PriorityHigh, CreatedAt: now},
		{ID: "r-2", PersonID: "p-2", Type: liaison.ReminderBefore, Date: today, Priority: liaison.PriorityMedium, CreatedAt: now},
		{ID: "r-old", PersonID: "p-1", Type: liaison.ReminderOverdue, Date: today.AddDays(-1), Priority: liaison.PriorityHigh, CreatedAt: now},
	}))
	require.NoError(t, store.UpsertReminder(ctx, liaison.Reminder{
		ID: liaison.SystemReminderID(today), Type: liaison.ReminderSystem, Date: today,
		Priority: liaison.PriorityLow, IsHandled: true, HandledAt: &now, CreatedAt: now,
	}))

	n, err := store.DeleteRemindersForDate(ctx, today, liaison.ReminderSystem)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := store.HasCompletionMarker(ctx, today)
	require.NoError(t, err)
	assert.True(t, ok)

	rest, err := store.ListReminders(ctx, liaison.ReminderFilter{})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, liaison.ReminderSystem, rest[0].Type)
	assert.Equal(t, liaison.PersonID(""), rest[0].PersonID)
	assert.True(t, rest[0].IsHandled)
	require.NotNil(t, rest[0].HandledAt)
	assert.True(t, now.Equal(*rest[0].HandledAt))
}

func TestReminders_PruneSystemRows(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, d := range []string{"2024-03-01", "2024-03-02", "2024-03-03"} {
		require.NoError(t, store.UpsertReminder(ctx, liaison.Reminder{
			ID: liaison.SystemReminderID(day(d)), Type: liaison.ReminderSystem, Date: day(d),
			Priority: liaison.PriorityLow, IsHandled: true, CreatedAt: now,
		}))
	}

	n, err := store.DeleteSystemRemindersOlderThan(ctx, day("2024-03-03"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMarkReminderHandled(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertReminders(ctx, []liaison.Reminder{
		{ID: "r-1", PersonID: "p-1", Type: liaison.ReminderOverdue, Date: day("2024-03-10"), Priority: liaison.PriorityHigh, CreatedAt: now},
	}))

	require.NoError(t, store.MarkReminderHandled(ctx, "r-1", now))
	err := store.MarkReminderHandled(ctx, "missing", now)
	assert.True(t, liaison.IsNotFound(err))

	unhandled, err := store.ListReminders(ctx, liaison.ReminderFilter{
		UnhandledOnly: true,
		DepartmentIDs: []liaison.DepartmentID{"ops"},
	})
	require.NoError(t, err)
	assert.Empty(t, unhandled)

	handled, err := store.ListReminders(ctx, liaison.ReminderFilter{DepartmentIDs: []liaison.DepartmentID{"ops"}})
	require.NoError(t, err)
	require.Len(t, handled, 1)
	assert.True(t, handled[0].IsHandled)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx liaison.Store) error {
		require.NoError(t, tx.AcquireRunLock(ctx))
		require.NoError(t, tx.UpsertReminder(ctx, liaison.Reminder{
			ID: "r-1", Type: liaison.ReminderSystem, Date: day("2024-03-10"), Priority: liaison.PriorityLow, CreatedAt: time.Now(),
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := store.HasCompletionMarker(ctx, day("2024-03-10"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBatchRuns(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC)

	run := liaison.BatchRun{
		ID: "run-1", RunDate: day("2024-03-10"), Trigger: liaison.TriggerScheduled,
		Status: liaison.RunRunning, StartedAt: started,
	}
	require.NoError(t, store.SaveBatchRun(ctx, run))

	done := started.Add(time.Second)
	run.Status = liaison.RunCompleted
	run.RemindersCreated = 4
	run.CompletedAt = &done
	require.NoError(t, store.SaveBatchRun(ctx, run))

	require.NoError(t, store.SaveBatchRun(ctx, liaison.BatchRun{
		ID: "run-2", RunDate: day("2024-03-11"), Trigger: liaison.TriggerManual,
		Status: liaison.RunFailed, Error: "db down", StartedAt: started.Add(24 * time.Hour),
	}))

	runs, err := store.ListBatchRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, liaison.RunCompleted, runs[1].Status)
	assert.Equal(t, 4, runs[1].RemindersCreated)
	require.NotNil(t, runs[1].CompletedAt)

	limited, err := store.ListBatchRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReset(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx))

	persons, err := store.ListPersons(ctx, liaison.PersonFilter{})
	require.NoError(t, err)
	assert.Empty(t, persons)
}
