package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// DEPARTMENTS
// =============================================================================

// ListDepartments returns every department ordered by name.
func (c conn) ListDepartments(ctx context.Context) ([]liaison.Department, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, name, parent_id FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query departments: %w", err)
	}
	defer rows.Close()

	var out []liaison.Department
	for rows.Next() {
		var d liaison.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.ParentID); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDepartment returns a department by ID.
func (c conn) GetDepartment(ctx context.Context, id liaison.DepartmentID) (liaison.Department, error) {
	var d liaison.Department
	err := c.q.QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM departments WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.ParentID)
	if isNoRows(err) {
		return liaison.Department{}, fmt.Errorf("department %s: %w", id, liaison.ErrNotFound)
	}
	if err != nil {
		return liaison.Department{}, fmt.Errorf("failed to get department: %w", err)
	}
	return d, nil
}

// SaveDepartment inserts or updates a department.
func (c conn) SaveDepartment(ctx context.Context, d liaison.Department) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO departments (id, name, parent_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, parent_id = excluded.parent_id
	`, d.ID, d.Name, d.ParentID)
	if err != nil {
		return fmt.Errorf("failed to save department: %w", err)
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

// ListUsers returns every user.
func (c conn) ListUsers(ctx context.Context) ([]liaison.User, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, name, department_id, role FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []liaison.User
	for rows.Next() {
		var u liaison.User
		if err := rows.Scan(&u.ID, &u.Name, &u.DepartmentID, &u.Role); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SaveUser inserts or updates a user.
func (c conn) SaveUser(ctx context.Context, u liaison.User) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO users (id, name, department_id, role) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department_id = excluded.department_id,
			role = excluded.role
	`, u.ID, u.Name, u.DepartmentID, u.Role)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// =============================================================================
// PERSONS
// =============================================================================

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
		return nil, fmt.Errorf("failed to query persons: %w", err)
	}
	defer rows.Close()

	var out []liaison.Person
	for rows.Next() {
		var (
			p           liaison.Person
			lastContact sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.DepartmentID, &p.CreatedBy, &lastContact, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		if lastContact.Valid {
			d, err := calendar.ParseDate(lastContact.String)
			if err != nil {
				return nil, fmt.Errorf("person %s: %w", p.ID, err)
			}
			p.LastContactDate = &d
		}
		if p.CreatedAt, err = parseInstant(createdAt); err != nil {
			return nil, fmt.Errorf("person %s: %w", p.ID, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePerson inserts or updates a person.
func (c conn) SavePerson(ctx context.Context, p liaison.Person) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO persons (id, name, department_id, created_by, last_contact_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department_id = excluded.department_id,
			created_by = excluded.created_by,
			last_contact_date = excluded.last_contact_date
	`, p.ID, p.Name, p.DepartmentID, p.CreatedBy, nullDate(p.LastContactDate), formatInstant(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save person: %w", err)
	}
	return nil
}

// =============================================================================
// REMINDER SETTINGS
// =============================================================================

// GetReminderSettings returns nil, nil when the user has no settings row.
func (c conn) GetReminderSettings(ctx context.Context, userID liaison.UserID) (*liaison.ReminderSettings, error) {
	s := liaison.ReminderSettings{UserID: userID}
	err := c.q.QueryRowContext(ctx,
		`SELECT urgent_threshold, suggest_threshold FROM reminder_settings WHERE user_id = ?`, userID,
	).Scan(&s.UrgentThreshold, &s.SuggestThreshold)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder settings: %w", err)
	}
	return &s, nil
}

// SaveReminderSettings inserts or updates a user's thresholds.
func (c conn) SaveReminderSettings(ctx context.Context, s liaison.ReminderSettings) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO reminder_settings (user_id, urgent_threshold, suggest_threshold) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			urgent_threshold = excluded.urgent_threshold,
			suggest_threshold = excluded.suggest_threshold
	`, s.UserID, s.UrgentThreshold, s.SuggestThreshold)
	if err != nil {
		return fmt.Errorf("failed to save reminder settings: %w", err)
	}
	return nil
}
