package postgres

import (
	"context"
	"fmt"

	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// SEED WRITERS
// =============================================================================
//
// Production rows arrive through the CRUD service; these exist for demo
// scenarios and tests.

// SaveDepartment inserts or updates a department.
func (c conn) SaveDepartment(ctx context.Context, d liaison.Department) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO departments (id, name, parent_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id
	`, string(d.ID), d.Name, string(d.ParentID))
	return mapError(err, "department", string(d.ID))
}

// SaveUser inserts or updates a user.
func (c conn) SaveUser(ctx context.Context, u liaison.User) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO users (id, name, department_id, role) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, department_id = EXCLUDED.department_id, role = EXCLUDED.role
	`, string(u.ID), u.Name, string(u.DepartmentID), string(u.Role))
	return mapError(err, "user", string(u.ID))
}

// SavePerson inserts or updates a person.
func (c conn) SavePerson(ctx context.Context, p liaison.Person) error {
	var lastContact any
	if p.LastContactDate != nil && !p.LastContactDate.IsZero() {
		lastContact = pgDate(*p.LastContactDate)
	}
	_, err := c.q.Exec(ctx, `
		INSERT INTO persons (id, name, department_id, created_by, last_contact_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			department_id = EXCLUDED.department_id,
			created_by = EXCLUDED.created_by,
			last_contact_date = EXCLUDED.last_contact_date
	`, string(p.ID), p.Name, string(p.DepartmentID), string(p.CreatedBy), lastContact, p.CreatedAt)
	return mapError(err, "person", string(p.ID))
}

// SaveLeavePeriod inserts or updates a leave period.
func (c conn) SaveLeavePeriod(ctx context.Context, l liaison.LeavePeriod) error {
	kind := l.Kind
	if kind == "" {
		kind = liaison.KindLeave
	}
	_, err := c.q.Exec(ctx, `
		INSERT INTO leave_periods (id, person_id, kind, start_date, end_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			status = EXCLUDED.status
	`, string(l.ID), string(l.PersonID), string(kind), pgDate(l.StartDate), pgDate(l.EndDate),
		string(l.Status), l.CreatedAt)
	return mapError(err, "leave period", string(l.ID))
}

// SaveContactEvent inserts a contact event. Contacts are immutable.
func (c conn) SaveContactEvent(ctx context.Context, e liaison.ContactEvent) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO contact_events (id, person_id, leave_period_id, contacted_at, contact_by)
		VALUES ($1, $2, $3, $4, $5)
	`, string(e.ID), string(e.PersonID), string(e.LeavePeriodID), e.ContactedAt, string(e.ContactBy))
	return mapError(err, "contact event", string(e.ID))
}

// SaveReminderSettings inserts or updates a user's thresholds.
func (c conn) SaveReminderSettings(ctx context.Context, s liaison.ReminderSettings) error {
	_, err := c.q.Exec(ctx, `
		INSERT INTO reminder_settings (user_id, urgent_threshold, suggest_threshold) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			urgent_threshold = EXCLUDED.urgent_threshold,
			suggest_threshold = EXCLUDED.suggest_threshold
	`, string(s.UserID), s.UrgentThreshold, s.SuggestThreshold)
	return mapError(err, "reminder settings", string(s.UserID))
}

// Reset clears all data (for testing/demo).
func (c conn) Reset(ctx context.Context) error {
	_, err := c.q.Exec(ctx, `
		TRUNCATE reminders, contact_events, leave_periods, reminder_settings,
			persons, users, departments, batch_runs
	`)
	if err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
