package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// LEAVE PERIODS
// =============================================================================

// ListLeavePeriods returns the leave periods matching filter, ordered by
// person then start date.
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
		b = b.Where(sq.Lt{"end_date": filter.EndBefore.String()})
	}
	if filter.EndOnOrAfter != nil {
		b = b.Where(sq.GtOrEq{"end_date": filter.EndOnOrAfter.String()})
	}
	if filter.StartOnOrBefore != nil {
		b = b.Where(sq.LtOrEq{"start_date": filter.StartOnOrBefore.String()})
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave periods: %w", err)
	}
	defer rows.Close()

	var out []liaison.LeavePeriod
	for rows.Next() {
		var (
			l                     liaison.LeavePeriod
			start, end, createdAt string
		)
		if err := rows.Scan(&l.ID, &l.PersonID, &l.Kind, &start, &end, &l.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan leave period: %w", err)
		}
		if l.StartDate, err = calendar.ParseDate(start); err != nil {
			return nil, fmt.Errorf("leave %s: %w", l.ID, err)
		}
		if l.EndDate, err = calendar.ParseDate(end); err != nil {
			return nil, fmt.Errorf("leave %s: %w", l.ID, err)
		}
		if l.CreatedAt, err = parseInstant(createdAt); err != nil {
			return nil, fmt.Errorf("leave %s: %w", l.ID, err)
		}
		out = append(out, l)
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
// ended before asOf. Completed periods are never touched again.
func (c conn) MarkLeaveCompleted(ctx context.Context, ids []liaison.LeavePeriodID, asOf calendar.Date) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	n, err := c.exec(ctx, builder().
		Update("leave_periods").
		Set("status", liaison.LeaveCompleted).
		Where(sq.Eq{"id": toStrings(ids), "status": liaison.LeaveActive}).
		Where(sq.Lt{"end_date": asOf.String()}))
	if err != nil {
		return 0, fmt.Errorf("failed to complete leave periods: %w", err)
	}
	return n, nil
}

// SaveLeavePeriod inserts or updates a leave period.
func (c conn) SaveLeavePeriod(ctx context.Context, l liaison.LeavePeriod) error {
	kind := l.Kind
	if kind == "" {
		kind = liaison.KindLeave
	}
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_periods (id, person_id, kind, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status
	`, l.ID, l.PersonID, kind, l.StartDate.String(), l.EndDate.String(), l.Status, formatInstant(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save leave period: %w", err)
	}
	return nil
}

// =============================================================================
// CONTACT EVENTS
// =============================================================================

// ListContactEvents returns contacts matching filter ordered by time, with
// the author's department and role resolved through users. Authors missing
// from users resolve to no department and no role.
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
		b = b.Where(sq.GtOrEq{"c.contacted_at": formatInstant(*filter.From)})
	}
	if filter.Until != nil {
		b = b.Where(sq.Lt{"c.contacted_at": formatInstant(*filter.Until)})
	}
	if filter.ExcludeAdmin {
		b = b.Where(sq.NotEq{"COALESCE(u.role, '')": string(liaison.RoleAdmin)})
	}
	if filter.SameDepartmentOnly {
		b = b.Where("(p.department_id = '' OR p.department_id = COALESCE(u.department_id, ''))")
	}

	rows, err := c.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact events: %w", err)
	}
	defer rows.Close()

	var out []liaison.ContactEvent
	for rows.Next() {
		var (
			e  liaison.ContactEvent
			at string
		)
		if err := rows.Scan(&e.ID, &e.PersonID, &e.LeavePeriodID, &at, &e.ContactBy,
			&e.AuthorDepartmentID, &e.AuthorRole); err != nil {
			return nil, fmt.Errorf("failed to scan contact event: %w", err)
		}
		if e.ContactedAt, err = parseInstant(at); err != nil {
			return nil, fmt.Errorf("contact %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveContactEvent inserts a contact event. Contacts are immutable.
func (c conn) SaveContactEvent(ctx context.Context, e liaison.ContactEvent) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO contact_events (id, person_id, leave_period_id, contacted_at, contact_by)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.PersonID, e.LeavePeriodID, formatInstant(e.ContactedAt), e.ContactBy)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("contact %s already recorded: %w", e.ID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to save contact event: %w", err)
	}
	return nil
}
