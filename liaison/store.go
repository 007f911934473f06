/*
store.go - Persistence interface between the engine and the datastore

PURPOSE:

	The engine never talks SQL. Generators and reports read through these
	interfaces; the batch runner writes reminders and leave status through
	them. Two implementations exist:
	- store/sqlite:   embedded default (mattn/go-sqlite3)
	- store/postgres: production (pgx + squirrel + goose)

TRANSACTIONS:

	WithTx runs fn against a Store bound to one database transaction. The
	batch runner executes a whole day inside WithTx, so a failure in any step
	rolls back leave transitions and reminders together and leaves no
	completion marker behind.

RUN LOCK:

	AcquireRunLock serializes daily runs across processes where the backend
	supports it (Postgres advisory transaction lock). It must be called inside
	WithTx and is released on commit/rollback.

DATES IN FILTERS:

	Calendar filters (leave dates, reminder dates) take calendar.Date.
	Contact filters take instants because contacts are stored as instants;
	callers convert day bounds with calendar.Zone.StartOf.
*/
package liaison

import (
	"context"
	"time"

	"github.com/warp/liaison-engine/calendar"
)

// =============================================================================
// FILTERS
// =============================================================================

// PersonFilter narrows person listings. Empty fields do not filter.
type PersonFilter struct {
	IDs           []PersonID
	DepartmentIDs []DepartmentID
}

// LeaveFilter narrows leave period listings. Empty fields do not filter.
type LeaveFilter struct {
	PersonIDs       []PersonID
	Statuses        []LeaveStatus
	EndBefore       *calendar.Date // end_date < value
	EndOnOrAfter    *calendar.Date // end_date >= value
	StartOnOrBefore *calendar.Date // start_date <= value
}

// ContactFilter narrows contact listings. Results are ordered by ContactedAt.
type ContactFilter struct {
	PersonIDs          []PersonID
	From               *time.Time // contacted_at >= value
	Until              *time.Time // contacted_at < value
	ExcludeAdmin       bool       // drop contacts authored by admins
	SameDepartmentOnly bool       // author department must equal the person's
}

// ReminderFilter narrows reminder listings. Empty fields do not filter.
type ReminderFilter struct {
	From          *calendar.Date
	To            *calendar.Date
	PersonIDs     []PersonID
	DepartmentIDs []DepartmentID // joins through the person
	Types         []ReminderType
	ExcludeSystem bool
	UnhandledOnly bool
	Limit         int
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

// DirectoryStore reads organization data.
type DirectoryStore interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, id DepartmentID) (Department, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListPersons(ctx context.Context, filter PersonFilter) ([]Person, error)
	// GetReminderSettings returns nil, nil when the user has no settings row.
	GetReminderSettings(ctx context.Context, userID UserID) (*ReminderSettings, error)
}

// LeaveStore reads leave periods and applies the one lifecycle transition the
// engine owns.
type LeaveStore interface {
	ListLeavePeriods(ctx context.Context, filter LeaveFilter) ([]LeavePeriod, error)
	// ListActiveLeavePeriods returns active periods with end_date >= asOf.
	ListActiveLeavePeriods(ctx context.Context, asOf calendar.Date) ([]LeavePeriod, error)
	// MarkLeaveCompleted sets status=completed for the given ids that are still
	// active and ended before asOf. Returns the number of rows changed.
	MarkLeaveCompleted(ctx context.Context, ids []LeavePeriodID, asOf calendar.Date) (int, error)
}

// ContactStore reads contact events.
type ContactStore interface {
	ListContactEvents(ctx context.Context, filter ContactFilter) ([]ContactEvent, error)
}

// ReminderStore persists generated reminders.
type ReminderStore interface {
	InsertReminders(ctx context.Context, reminders []Reminder) error
	UpsertReminder(ctx context.Context, r Reminder) error
	// DeleteRemindersForDate removes the day's reminders except excludeType.
	DeleteRemindersForDate(ctx context.Context, day calendar.Date, excludeType ReminderType) (int, error)
	// DeleteSystemRemindersOlderThan prunes completion markers before day.
	DeleteSystemRemindersOlderThan(ctx context.Context, day calendar.Date) (int, error)
	ListReminders(ctx context.Context, filter ReminderFilter) ([]Reminder, error)
	MarkReminderHandled(ctx context.Context, id ReminderID, at time.Time) error
	HasCompletionMarker(ctx context.Context, day calendar.Date) (bool, error)
}

// RunStore records batch run history.
type RunStore interface {
	SaveBatchRun(ctx context.Context, run BatchRun) error
	ListBatchRuns(ctx context.Context, limit int) ([]BatchRun, error)
}

// SeedStore writes the records the engine only reads. Used by demo
// scenarios and tests; production data arrives through the CRUD service.
type SeedStore interface {
	SaveDepartment(ctx context.Context, d Department) error
	SaveUser(ctx context.Context, u User) error
	SavePerson(ctx context.Context, p Person) error
	SaveLeavePeriod(ctx context.Context, l LeavePeriod) error
	SaveContactEvent(ctx context.Context, c ContactEvent) error
	SaveReminderSettings(ctx context.Context, s ReminderSettings) error
	Reset(ctx context.Context) error
}

// Store is the full datastore contract.
type Store interface {
	DirectoryStore
	LeaveStore
	ContactStore
	ReminderStore
	RunStore
	SeedStore

	AcquireRunLock(ctx context.Context) error
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
