package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// DIRECTORY
// =============================================================================

// ListDepartments returns every department ordered by name.
func (c conn) ListDepartments(ctx context.Context) ([]liaison.Department, error) {
	rows, err := c.q.Query(ctx, `SELECT id, name, parent_id FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	var out []liaison.Department
	for rows.Next() {
		var id, name, parent string
		if err := rows.Scan(&id, &name, &parent); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, liaison.Department{
			ID:       liaison.DepartmentID(id),
			Name:     name,
			ParentID: liaison.DepartmentID(parent),
		})
	}
	return out, rows.Err()
}

// GetDepartment returns a department by ID.
func (c conn) GetDepartment(ctx context.Context, id liaison.DepartmentID) (liaison.Department, error) {
	var name, parent string
	err := c.q.QueryRow(ctx,
		`SELECT name, parent_id FROM departments WHERE id = $1`, string(id),
	).Scan(&name, &parent)
	if err != nil {
		return liaison.Department{}, mapError(err, "department", string(id))
	}
	return liaison.Department{ID: id, Name: name, ParentID: liaison.DepartmentID(parent)}, nil
}

// ListUsers returns every user.
func (c conn) ListUsers(ctx context.Context) ([]liaison.User, error) {
	rows, err := c.q.Query(ctx, `SELECT id, name, department_id, role FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []liaison.User
	for rows.Next() {
		var id, name, dept, role string
		if err := rows.Scan(&id, &name, &dept, &role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, liaison.User{
			ID:           liaison.UserID(id),
			Name:         name,
			DepartmentID: liaison.DepartmentID(dept),
			Role:         liaison.Role(role),
		})
	}
	return out, rows.Err()
}

// ListPersons returns the persons matching filter, ordered by ID.
func (c conn) ListPersons(ctx context.Context, filter liaison.PersonFilter) ([]liaison.Person, error) {
	b := builder().
		Select("id", "name", "department_id", "created_by", "last_contact_date", "created_at").
		From("persons").
		OrderBy("id")
	if len(filter.IDs) > 0 {
		b = b.Where(sq.Eq{"id": toStrings(filter.IDs)})
	}
	if len(filter.DepartmentIDs) > 0 {
		b = b.Where(sq.Eq{"department_id": toStrings(filter.DepartmentIDs)})
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var out []liaison.Person
	for rows.Next() {
		var (
			id, name, dept, createdBy string
			lastContact               *time.Time
			createdAt                 time.Time
		)
		if err := rows.Scan(&id, &name, &dept, &createdBy, &lastContact, &createdAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p := liaison.Person{
			ID:           liaison.PersonID(id),
			Name:         name,
			DepartmentID: liaison.DepartmentID(dept),
			CreatedBy:    liaison.UserID(createdBy),
			CreatedAt:    createdAt,
		}
		if lastContact != nil {
			d := fromPGDate(*lastContact)
			p.LastContactDate = &d
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetReminderSettings returns nil, nil when the user has no settings row.
func (c conn) GetReminderSettings(ctx context.Context, userID liaison.UserID) (*liaison.ReminderSettings, error) {
	var urgent, suggest int
	err := c.q.QueryRow(ctx,
		`SELECT urgent_threshold, suggest_threshold FROM reminder_settings WHERE user_id = $1`, string(userID),
	).Scan(&urgent, &suggest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err, "reminder settings", string(userID))
	}
	return &liaison.ReminderSettings{UserID: userID, UrgentThreshold: urgent, SuggestThreshold: suggest}, nil
}

// =============================================================================
// LEAVE PERIODS
// =============================================================================

// ListLeavePeriods returns the leave periods matching filter.
func (c conn) ListLeavePeriods(ctx context.Context, filter liaison.LeaveFilter) ([]liaison.LeavePeriod, error) {
	b := builder().
		Select("id", "person_id", "kind", "start_date", "end_date", "status", "created_at").
		From("leave_periods").
		OrderBy("person_id", "start_date", "id")
	if len(filter.PersonIDs) > 0 {
		b = b.Where(sq.Eq{"person_id": toStrings(filter.PersonIDs)})
	}
	if len(filter.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": toStrings(filter.Statuses)})
	}
	if filter.EndBefore != nil {
		b = b.Where(sq.Lt{"end_date": pgDate(*filter.EndBefore)})
	}
	if filter.EndOnOrAfter != nil {
		b = b.Where(sq.GtOrEq{"end_date": pgDate(*filter.EndOnOrAfter)})
	}
	if filter.StartOnOrBefore != nil {
		b = b.Where(sq.LtOrEq{"start_date": pgDate(*filter.StartOnOrBefore)})
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query leave periods: %w", err)
	}
	defer rows.Close()

	var out []liaison.LeavePeriod
	for rows.Next() {
		var (
			id, personID, kind, status string
			start, end, createdAt      time.Time
		)
		if err := rows.Scan(&id, &personID, &kind, &start, &end, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan leave period: %w", err)
		}
		out = append(out, liaison.LeavePeriod{
			ID:        liaison.LeavePeriodID(id),
			PersonID:  liaison.PersonID(personID),
			Kind:      liaison.LeaveKind(kind),
			StartDate: fromPGDate(start),
			EndDate:   fromPGDate(end),
			Status:    liaison.LeaveStatus(status),
			CreatedAt: createdAt,
		})
	}
	return out, rows.Err()
}

// ListActiveLeavePeriods returns active periods with end_date >= asOf.
func (c conn) ListActiveLeavePeriods(ctx context.Context, asOf calendar.Date) ([]liaison.LeavePeriod, error) {
	return c.ListLeavePeriods(ctx, liaison.LeaveFilter{
		Statuses:     []liaison.LeaveStatus{liaison.LeaveActive},
		EndOnOrAfter: &asOf,
	})
}

// MarkLeaveCompleted completes the given periods that are still active and
// ended before asOf.
func (c conn) MarkLeaveCompleted(ctx context.Context, ids []liaison.LeavePeriodID, asOf calendar.Date) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := c.exec(ctx, builder().
		Update("leave_periods").
		Set("status", string(liaison.LeaveCompleted)).
		Where(sq.Eq{"id": toStrings(ids)}).
		Where(sq.Eq{"status": string(liaison.LeaveActive)}).
		Where(sq.Lt{"end_date": pgDate(asOf)}))
	if err != nil {
		return 0, fmt.Errorf("complete leave periods: %w", err)
	}
	return n, nil
}

// =============================================================================
// CONTACT EVENTS
// =============================================================================

// ListContactEvents returns contacts matching filter ordered by time, with
// the author's department and role resolved through users.
func (c conn) ListContactEvents(ctx context.Context, filter liaison.ContactFilter) ([]liaison.ContactEvent, error) {
	b := builder().
		Select(
			"c.id", "c.person_id", "c.leave_period_id", "c.contacted_at", "c.contact_by",
			"COALESCE(u.department_id, '')", "COALESCE(u.role, '')",
		).
		From("contact_events c").
		Join("persons p ON p.id = c.person_id").
		LeftJoin("users u ON u.id = c.contact_by").
		OrderBy("c.contacted_at", "c.id")
	if len(filter.PersonIDs) > 0 {
		b = b.Where(sq.Eq{"c.person_id": toStrings(filter.PersonIDs)})
	}
	if filter.From != nil {
		b = b.Where(sq.GtOrEq{"c.contacted_at": *filter.From})
	}
	if filter.Until != nil {
		b = b.Where(sq.Lt{"c.contacted_at": *filter.Until})
	}
	if filter.ExcludeAdmin {
		b = b.Where(sq.NotEq{"COALESCE(u.role, '')": string(liaison.RoleAdmin)})
	}
	if filter.SameDepartmentOnly {
		b = b.Where("(p.department_id = '' OR p.department_id = COALESCE(u.department_id, ''))")
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query contact events: %w", err)
	}
	defer rows.Close()

	var out []liaison.ContactEvent
	for rows.Next() {
		var (
			id, personID, leaveID, by, dept, role string
			at                                    time.Time
		)
		if err := rows.Scan(&id, &personID, &leaveID, &at, &by, &dept, &role); err != nil {
			return nil, fmt.Errorf("scan contact event: %w", err)
		}
		out = append(out, liaison.ContactEvent{
			ID:                 liaison.ContactID(id),
			PersonID:           liaison.PersonID(personID),
			LeavePeriodID:      liaison.LeavePeriodID(leaveID),
			ContactedAt:        at,
			ContactBy:          liaison.UserID(by),
			AuthorDepartmentID: liaison.DepartmentID(dept),
			AuthorRole:         liaison.Role(role),
		})
	}
	return out, rows.Err()
}

// =============================================================================
// REMINDERS
// =============================================================================

const upsertReminderSQL = `
	INSERT INTO reminders (id, person_id, leave_period_id, reminder_type, reminder_date,
		priority, message, is_handled, handled_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		person_id = EXCLUDED.person_id,
		leave_period_id = EXCLUDED.leave_period_id,
		reminder_type = EXCLUDED.reminder_type,
		reminder_date = EXCLUDED.reminder_date,
		priority = EXCLUDED.priority,
		message = EXCLUDED.message,
		is_handled = EXCLUDED.is_handled,
		handled_at = EXCLUDED.handled_at
`

func reminderArgs(r liaison.Reminder) []any {
	return []any{
		string(r.ID),
		nullText(string(r.PersonID)),
		string(r.LeavePeriodID),
		string(r.Type),
		pgDate(r.Date),
		string(r.Priority),
		r.Message,
		r.IsHandled,
		r.HandledAt,
		r.CreatedAt,
	}
}

// insertChunkRows bounds one multi-row INSERT. Postgres accepts at most
// 65535 bind parameters per statement and a reminder row uses 10.
const insertChunkRows = 1000

// InsertReminders writes reminders with one multi-row INSERT per chunk.
func (c conn) InsertReminders(ctx context.Context, reminders []liaison.Reminder) error {
	for chunk := range slices.Chunk(reminders, insertChunkRows) {
		b := builder().
			Insert("reminders").
			Columns("id", "person_id", "leave_period_id", "reminder_type", "reminder_date",
				"priority", "message", "is_handled", "handled_at", "created_at")
		for _, r := range chunk {
			b = b.Values(reminderArgs(r)...)
		}
		if _, err := c.exec(ctx, b); err != nil {
			return fmt.Errorf("insert reminders: %w", err)
		}
	}
	return nil
}

// UpsertReminder inserts r or replaces the row with the same ID.
func (c conn) UpsertReminder(ctx context.Context, r liaison.Reminder) error {
	if _, err := c.q.Exec(ctx, upsertReminderSQL, reminderArgs(r)...); err != nil {
		return mapError(err, "reminder", string(r.ID))
	}
	return nil
}

// DeleteRemindersForDate removes the day's reminders except excludeType.
func (c conn) DeleteRemindersForDate(ctx context.Context, day calendar.Date, excludeType liaison.ReminderType) (int, error) {
	n, err := c.exec(ctx, builder().
		Delete("reminders").
		Where(sq.Eq{"reminder_date": pgDate(day)}).
		Where(sq.NotEq{"reminder_type": string(excludeType)}))
	if err != nil {
		return 0, fmt.Errorf("delete reminders for %s: %w", day, err)
	}
	return n, nil
}

// DeleteSystemRemindersOlderThan prunes completion markers dated before day.
func (c conn) DeleteSystemRemindersOlderThan(ctx context.Context, day calendar.Date) (int, error) {
	n, err := c.exec(ctx, builder().
		Delete("reminders").
		Where(sq.Eq{"reminder_type": string(liaison.ReminderSystem)}).
		Where(sq.Lt{"reminder_date": pgDate(day)}))
	if err != nil {
		return 0, fmt.Errorf("prune system reminders: %w", err)
	}
	return n, nil
}

// ListReminders returns reminders matching filter, newest day first.
func (c conn) ListReminders(ctx context.Context, filter liaison.ReminderFilter) ([]liaison.Reminder, error) {
	b := builder().
		Select(
			"r.id", "COALESCE(r.person_id, '')", "r.leave_period_id", "r.reminder_type",
			"r.reminder_date", "r.priority", "r.message", "r.is_handled", "r.handled_at", "r.created_at",
		).
		From("reminders r").
		OrderBy("r.reminder_date DESC", "r.person_id NULLS FIRST", "r.reminder_type")
	if filter.From != nil {
		b = b.Where(sq.GtOrEq{"r.reminder_date": pgDate(*filter.From)})
	}
	if filter.To != nil {
		b = b.Where(sq.LtOrEq{"r.reminder_date": pgDate(*filter.To)})
	}
	if len(filter.PersonIDs) > 0 {
		b = b.Where(sq.Eq{"r.person_id": toStrings(filter.PersonIDs)})
	}
	if len(filter.DepartmentIDs) > 0 {
		b = b.Join("persons p ON p.id = r.person_id").
			Where(sq.Eq{"p.department_id": toStrings(filter.DepartmentIDs)})
	}
	if len(filter.Types) > 0 {
		b = b.Where(sq.Eq{"r.reminder_type": toStrings(filter.Types)})
	}
	if filter.ExcludeSystem {
		b = b.Where(sq.NotEq{"r.reminder_type": string(liaison.ReminderSystem)})
	}
	if filter.UnhandledOnly {
		b = b.Where(sq.Eq{"r.is_handled": false})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []liaison.Reminder
	for rows.Next() {
		var (
			id, personID, leaveID, kind, priority, message string
			reminderDate, createdAt                        time.Time
			handled                                        bool
			handledAt                                      *time.Time
		)
		if err := rows.Scan(&id, &personID, &leaveID, &kind, &reminderDate,
			&priority, &message, &handled, &handledAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, liaison.Reminder{
			ID:            liaison.ReminderID(id),
			PersonID:      liaison.PersonID(personID),
			LeavePeriodID: liaison.LeavePeriodID(leaveID),
			Type:          liaison.ReminderType(kind),
			Date:          fromPGDate(reminderDate),
			Priority:      liaison.Priority(priority),
			Message:       message,
			IsHandled:     handled,
			HandledAt:     handledAt,
			CreatedAt:     createdAt,
		})
	}
	return out, rows.Err()
}

// MarkReminderHandled flags a reminder as handled at the given instant.
func (c conn) MarkReminderHandled(ctx context.Context, id liaison.ReminderID, at time.Time) error {
	n, err := c.exec(ctx, builder().
		Update("reminders").
		Set("is_handled", true).
		Set("handled_at", at).
		Where(sq.Eq{"id": string(id)}))
	if err != nil {
		return mapError(err, "reminder", string(id))
	}
	if n == 0 {
		return fmt.Errorf("reminder %s: %w", id, liaison.ErrNotFound)
	}
	return nil
}

// HasCompletionMarker reports whether the system row for day exists.
func (c conn) HasCompletionMarker(ctx context.Context, day calendar.Date) (bool, error) {
	var exists bool
	err := c.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reminders WHERE reminder_type = $1 AND reminder_date = $2)`,
		string(liaison.ReminderSystem), pgDate(day),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completion marker: %w", err)
	}
	return exists, nil
}

// =============================================================================
// BATCH RUNS
// =============================================================================

// SaveBatchRun inserts a run or updates it by ID.
func (c conn) SaveBatchRun(ctx context.Context, r liaison.BatchRun) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO batch_runs (id, run_date, run_trigger, status, leaves_completed,
			reminders_created, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			leaves_completed = EXCLUDED.leaves_completed,
			reminders_created = EXCLUDED.reminders_created,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`,
		r.ID, pgDate(r.RunDate), string(r.Trigger), string(r.Status),
		r.LeavesCompleted, r.RemindersCreated, r.Error, r.StartedAt, r.CompletedAt,
	)
	if err != nil {
		return mapError(err, "batch run", r.ID)
	}
	return nil
}

// ListBatchRuns returns the most recent runs first. limit <= 0 means all.
func (c conn) ListBatchRuns(ctx context.Context, limit int) ([]liaison.BatchRun, error) {
	b := builder().
		Select("id", "run_date", "run_trigger", "status", "leaves_completed",
			"reminders_created", "error", "started_at", "completed_at").
		From("batch_runs").
		OrderBy("started_at DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query batch runs: %w", err)
	}
	defer rows.Close()

	var runs []liaison.BatchRun
	for rows.Next() {
		var (
			id, trigger, status, errText string
			runDate, startedAt           time.Time
			leaves, reminders            int
			completedAt                  *time.Time
		)
		if err := rows.Scan(&id, &runDate, &trigger, &status, &leaves,
			&reminders, &errText, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan batch run: %w", err)
		}
		runs = append(runs, liaison.BatchRun{
			ID:               id,
			RunDate:          fromPGDate(runDate),
			Trigger:          liaison.Trigger(trigger),
			Status:           liaison.RunStatus(status),
			LeavesCompleted:  leaves,
			RemindersCreated: reminders,
			Error:            errText,
			StartedAt:        startedAt,
			CompletedAt:      completedAt,
		})
	}
	return runs, rows.Err()
}
