/*
types.go - Core domain types for the liaison reminder engine

PURPOSE:

	Defines the records the engine reads (departments, users, persons, leave
	periods, contact events, reminder settings) and the records it writes
	(reminders, leave status, batch runs).

OWNERSHIP:

	People, leave periods, contacts, departments and users are owned by the
	CRUD side of the product. The engine only:
	- moves LeavePeriod.Status from active to completed
	- creates, deletes and prunes Reminders
	- records BatchRuns

DATES:

	Calendar fields use calendar.Date (zone-normalized day). Instants that a
	human entered with a clock time (ContactedAt, CreatedAt) stay time.Time and
	are truncated through calendar.Zone at the point of use.

SEE ALSO:
  - store.go: Store interface over these types
  - rules.go: Qualifying contacts and driving leave selection
*/
package liaison

import (
	"time"

	"github.com/warp/liaison-engine/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	DepartmentID  string
	UserID        string
	PersonID      string
	LeavePeriodID string
	ContactID     string
	ReminderID    string
)

// =============================================================================
// ORGANIZATION
// =============================================================================

// Department is a node in the organization tree.
type Department struct {
	ID       DepartmentID
	Name     string
	ParentID DepartmentID // empty for a root
}

// Role is a user's role. Admin-authored contacts never count as liaison contact.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleLiaison Role = "liaison"
)

// User is an account that records contacts and owns reminder settings.
type User struct {
	ID           UserID
	Name         string
	DepartmentID DepartmentID
	Role         Role
}

// Person is an employee who may be away from their post.
type Person struct {
	ID              PersonID
	Name            string
	DepartmentID    DepartmentID // empty when orphaned
	CreatedBy       UserID
	LastContactDate *calendar.Date // denormalized cache, informational only
	CreatedAt       time.Time
}

// IsOrphan reports whether the person has no department.
func (p Person) IsOrphan() bool {
	return p.DepartmentID == ""
}

// =============================================================================
// LEAVE
// =============================================================================

// LeaveStatus is the lifecycle state of a LeavePeriod.
type LeaveStatus string

const (
	LeaveActive    LeaveStatus = "active"
	LeaveCompleted LeaveStatus = "completed"
	LeaveCancelled LeaveStatus = "cancelled"
)

// LeaveKind is informational (leave, travel, hospitalization...).
type LeaveKind string

const (
	KindLeave           LeaveKind = "leave"
	KindTravel          LeaveKind = "travel"
	KindHospitalization LeaveKind = "hospitalization"
	KindTraining        LeaveKind = "training"
)

// LeavePeriod is a bounded interval during which a person is away.
type LeavePeriod struct {
	ID        LeavePeriodID
	PersonID  PersonID
	Kind      LeaveKind
	StartDate calendar.Date
	EndDate   calendar.Date
	Status    LeaveStatus
	CreatedAt time.Time
}

// Covers returns true if day falls inside [StartDate, EndDate].
func (l LeavePeriod) Covers(day calendar.Date) bool {
	return day.AfterOrEqual(l.StartDate) && day.BeforeOrEqual(l.EndDate)
}

// =============================================================================
// CONTACT
// =============================================================================

// ContactEvent is a logged instance of a liaison reaching a person.
// AuthorDepartmentID and AuthorRole are resolved from ContactBy by the store.
type ContactEvent struct {
	ID                 ContactID
	PersonID           PersonID
	LeavePeriodID      LeavePeriodID // optional
	ContactedAt        time.Time
	ContactBy          UserID
	AuthorDepartmentID DepartmentID
	AuthorRole         Role
}

// =============================================================================
// REMINDERS
// =============================================================================

// ReminderType classifies why a reminder exists.
type ReminderType string

const (
	ReminderBefore  ReminderType = "before"
	ReminderDuring  ReminderType = "during"
	ReminderEnding  ReminderType = "ending"
	ReminderOverdue ReminderType = "overdue"
	ReminderSystem  ReminderType = "system"
)

// Priority is a reminder's urgency tier.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Reminder is a generated task record. System reminders have no PersonID and
// mark a completed batch run for their Date.
type Reminder struct {
	ID            ReminderID
	PersonID      PersonID
	LeavePeriodID LeavePeriodID
	Type          ReminderType
	Date          calendar.Date
	Priority      Priority
	Message       string
	IsHandled     bool
	HandledAt     *time.Time
	CreatedAt     time.Time
}

// IsUrgent reports whether the reminder counts toward urgent totals.
func (r Reminder) IsUrgent() bool {
	return r.Type != ReminderSystem && r.Priority == PriorityHigh
}

// SystemReminderID is the deterministic ID of the completion marker for a day,
// so re-runs upsert the marker instead of stacking copies.
func SystemReminderID(day calendar.Date) ReminderID {
	return ReminderID("system-" + day.String())
}

// ReminderSettings are a liaison's contact-gap thresholds, in days.
type ReminderSettings struct {
	UserID           UserID
	UrgentThreshold  int
	SuggestThreshold int
}

// Default thresholds when a user has no settings row.
const (
	DefaultUrgentThreshold  = 10
	DefaultSuggestThreshold = 7
)

// DefaultReminderSettings returns the documented fallback thresholds.
func DefaultReminderSettings(userID UserID) ReminderSettings {
	return ReminderSettings{
		UserID:           userID,
		UrgentThreshold:  DefaultUrgentThreshold,
		SuggestThreshold: DefaultSuggestThreshold,
	}
}

// =============================================================================
// BATCH RUNS
// =============================================================================

// Trigger identifies who started a batch run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerStartup   Trigger = "startup"
)

// RunStatus is the outcome of a batch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
	RunFailed    RunStatus = "failed"
)

// BatchRun is one execution of the daily batch, kept for audit and the UI.
type BatchRun struct {
	ID               string
	RunDate          calendar.Date
	Trigger          Trigger
	Status           RunStatus
	LeavesCompleted  int
	RemindersCreated int
	Error            string
	StartedAt        time.Time
	CompletedAt      *time.Time
}
