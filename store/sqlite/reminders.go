package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// REMINDERS
// =============================================================================

const upsertReminderSQL = `
	INSERT INTO reminders (id, person_id, leave_period_id, reminder_type, reminder_date,
		priority, message, is_handled, handled_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		person_id = excluded.person_id,
		leave_period_id = excluded.leave_period_id,
		reminder_type = excluded.reminder_type,
		reminder_date = excluded.reminder_date,
		priority = excluded.priority,
		message = excluded.message,
		is_handled = excluded.is_handled,
		handled_at = excluded.handled_at
`

func reminderArgs(r liaison.Reminder) []any {
	return []any{
		r.ID,
		nullString(string(r.PersonID)),
		r.LeavePeriodID,
		r.Type,
		r.Date.String(),
		r.Priority,
		r.Message,
		r.IsHandled,
		nullInstant(r.HandledAt),
		formatInstant(r.CreatedAt),
	}
}

// InsertReminders writes a batch of reminders.
func (c conn) InsertReminders(ctx context.Context, reminders []liaison.Reminder) error {
	for _, r := range reminders {
		if _, err := c.q.ExecContext(ctx, upsertReminderSQL, reminderArgs(r)...); err != nil {
			return fmt.Errorf("failed to insert reminder %s: %w", r.ID, err)
		}
	}
	return nil
}

// UpsertReminder inserts r or replaces the row with the same ID.
func (c conn) UpsertReminder(ctx context.Context, r liaison.Reminder) error {
	if _, err := c.q.ExecContext(ctx, upsertReminderSQL, reminderArgs(r)...); err != nil {
		return fmt.Errorf("failed to upsert reminder %s: %w", r.ID, err)
	}
	return nil
}

// DeleteRemindersForDate removes the day's reminders except excludeType.
func (c conn) DeleteRemindersForDate(ctx context.Context, day calendar.Date, excludeType liaison.ReminderType) (int, error) {
	n, err := c.exec(ctx, builder().
		Delete("reminders").
		Where(sq.Eq{"reminder_date": day.String()}).
		Where(sq.NotEq{"reminder_type": string(excludeType)}))
	if err != nil {
		return 0, fmt.Errorf("failed to delete reminders for %s: %w", day, err)
	}
	return n, nil
}

// DeleteSystemRemindersOlderThan prunes completion markers dated before day.
func (c conn) DeleteSystemRemindersOlderThan(ctx context.Context, day calendar.Date) (int, error) {
	n, err := c.exec(ctx, builder().
		Delete("reminders").
		Where(sq.Eq{"reminder_type": string(liaison.ReminderSystem)}).
		Where(sq.Lt{"reminder_date": day.String()}))
	if err != nil {
		return 0, fmt.Errorf("failed to prune system reminders: %w", err)
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
		OrderBy("r.reminder_date DESC", "r.person_id", "r.reminder_type")
	if filter.From != nil {
		b = b.Where(sq.GtOrEq{"r.reminder_date": filter.From.String()})
	}
	if filter.To != nil {
		b = b.Where(sq.LtOrEq{"r.reminder_date": filter.To.String()})
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
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var out []liaison.Reminder
	for rows.Next() {
		var (
			r            liaison.Reminder
			reminderDate string
			handledAt    sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&r.ID, &r.PersonID, &r.LeavePeriodID, &r.Type, &reminderDate,
			&r.Priority, &r.Message, &r.IsHandled, &handledAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		if r.Date, err = calendar.ParseDate(reminderDate); err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		if r.HandledAt, err = parseNullInstant(handledAt); err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = parseInstant(createdAt); err != nil {
			return nil, fmt.Errorf("reminder %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MarkReminderHandled flags a reminder as handled at the given instant.
func (c conn) MarkReminderHandled(ctx context.Context, id liaison.ReminderID, at time.Time) error {
	n, err := c.exec(ctx, builder().
		Update("reminders").
		Set("is_handled", true).
		Set("handled_at", formatInstant(at)).
		Where(sq.Eq{"id": string(id)}))
	if err != nil {
		return fmt.Errorf("failed to mark reminder handled: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reminder %s: %w", id, liaison.ErrNotFound)
	}
	return nil
}

// HasCompletionMarker reports whether the system row for day exists.
func (c conn) HasCompletionMarker(ctx context.Context, day calendar.Date) (bool, error) {
	var count int
	err := c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminders WHERE reminder_type = ? AND reminder_date = ?`,
		liaison.ReminderSystem, day.String(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check completion marker: %w", err)
	}
	return count > 0, nil
}
