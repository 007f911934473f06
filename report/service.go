/*
Package report computes health scores, department rankings and trends on
demand from the tables the daily batch maintains.

SUBJECTS:

	A report covers a period [start, end] evaluated as of
	asOf = min(end, today). A subject is one (person, leave period) pair where
	the leave is not cancelled, overlaps the period and started on or before
	asOf. A point-in-time health score is the one-day period [asOf, asOf].
	When one person has overlapping leaves in the window, the most recently
	started one wins.

	Orphaned persons (no department) never enter department reports.

CONCURRENCY:

	Departments are computed in parallel with errgroup, bounded by
	Options.Concurrency. A department that fails is reported in the error
	list and the others still complete. Reads are not transactional; a
	report may observe a batch mid-flight.

SEE ALSO:
  - scoring/: the interval, penalty and trend arithmetic
  - trends.go: period-over-period comparison
*/
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/scoring"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the per-department fan-out.
const DefaultConcurrency = 4

// Reader is the read side of liaison.Store the reports need.
type Reader interface {
	liaison.DirectoryStore
	liaison.LeaveStore
	liaison.ContactStore
	ListReminders(ctx context.Context, filter liaison.ReminderFilter) ([]liaison.Reminder, error)
}

// Options configures a Service.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
}

// Service answers reporting queries.
type Service struct {
	store       Reader
	clock       calendar.Clock
	concurrency int
	log         *slog.Logger
}

// NewService creates a report service.
func NewService(store Reader, clock calendar.Clock, opts Options) *Service {
	s := &Service{
		store:       store,
		clock:       clock,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "report")
	return s
}

// =============================================================================
// SCOPE
// =============================================================================

// Scope selects one department or all of them.
type Scope struct {
	DepartmentID liaison.DepartmentID
}

// AllDepartments is the organization-wide scope.
func AllDepartments() Scope { return Scope{} }

// Department scopes a report to one department.
func Department(id liaison.DepartmentID) Scope { return Scope{DepartmentID: id} }

// All reports whether the scope covers every department.
func (s Scope) All() bool { return s.DepartmentID == "" }

func (s Scope) String() string {
	if s.All() {
		return "all"
	}
	return string(s.DepartmentID)
}

// departments resolves the scope to department records.
func (s *Service) departments(ctx context.Context, scope Scope) ([]liaison.Department, error) {
	if scope.All() {
		depts, err := s.store.ListDepartments(ctx)
		if err != nil {
			return nil, fmt.Errorf("list departments: %w", err)
		}
		return depts, nil
	}

	d, err := s.store.GetDepartment(ctx, scope.DepartmentID)
	if errors.Is(err, liaison.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", liaison.ErrUnknownDepartment, scope.DepartmentID)
	}
	if err != nil {
		return nil, err
	}
	return []liaison.Department{d}, nil
}

// =============================================================================
// RESULTS
// =============================================================================

// DepartmentReport is one department's score plus its reminder counters for
// the report period.
type DepartmentReport struct {
	scoring.DepartmentScore
	Name           string `json:"name"`
	UrgentCount    int    `json:"urgent_count"`
	UnhandledCount int    `json:"unhandled_count"`
	HandledCount   int    `json:"handled_count"`
	ReminderCount  int    `json:"reminder_count"`
}

// HealthScore is the point-in-time score for a scope.
type HealthScore struct {
	Scope       string                     `json:"scope"`
	AsOf        calendar.Date              `json:"as_of"`
	Score       int                        `json:"score"`
	AvgInterval float64                    `json:"avg_interval"`
	Details     []DepartmentReport         `json:"details"`
	Errors      []*liaison.DepartmentError `json:"-"`
}

// RankingEntry is one row of the department ranking.
type RankingEntry struct {
	DepartmentID   liaison.DepartmentID `json:"department_id"`
	Name           string               `json:"name"`
	Score          int                  `json:"score"`
	AvgInterval    float64              `json:"avg_interval"`
	UrgentCount    int                  `json:"urgent_count"`
	UnhandledCount int                  `json:"unhandled_count"`
}

// Ranking lists departments by score, best first, plus the departments
// that could not be computed.
type Ranking struct {
	Period  calendar.Period            `json:"-"`
	AsOf    calendar.Date              `json:"as_of"`
	Entries []RankingEntry             `json:"entries"`
	Errors  []*liaison.DepartmentError `json:"-"`
}

// =============================================================================
// OPERATIONS
// =============================================================================

// HealthScore computes the score of scope as of asOf. For all departments
// the score is the equal-weight mean of department scores and the average
// interval pools every interval.
func (s *Service) HealthScore(ctx context.Context, scope Scope, asOf calendar.Date) (HealthScore, error) {
	depts, err := s.departments(ctx, scope)
	if err != nil {
		return HealthScore{}, err
	}

	period := calendar.Period{Start: asOf, End: asOf}
	reports, errs := s.fanOut(ctx, depts, period, asOf)
	if len(reports) == 0 && len(errs) > 0 {
		return HealthScore{}, joinDepartmentErrors(errs)
	}

	scores := departmentScores(reports)
	return HealthScore{
		Scope:       scope.String(),
		AsOf:        asOf,
		Score:       scoring.AverageScores(scores),
		AvgInterval: scoring.PooledAverageInterval(scores),
		Details:     reports,
		Errors:      errs,
	}, nil
}

// DepartmentRanking scores every department over [start, end] and sorts
// them by score descending. Ties go to the shorter average interval, then
// to the department id.
func (s *Service) DepartmentRanking(ctx context.Context, start, end calendar.Date) (Ranking, error) {
	period, err := calendar.NewPeriod(start, end)
	if err != nil {
		return Ranking{}, err
	}

	depts, err := s.departments(ctx, AllDepartments())
	if err != nil {
		return Ranking{}, err
	}

	asOf := s.asOf(period)
	reports, errs := s.fanOut(ctx, depts, period, asOf)

	entries := make([]RankingEntry, 0, len(reports))
	for _, r := range reports {
		entries = append(entries, RankingEntry{
			DepartmentID:   r.DepartmentID,
			Name:           r.Name,
			Score:          r.Score,
			AvgInterval:    r.AvgInterval,
			UrgentCount:    r.UrgentCount,
			UnhandledCount: r.UnhandledCount,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.AvgInterval != b.AvgInterval {
			return a.AvgInterval < b.AvgInterval
		}
		return a.DepartmentID < b.DepartmentID
	})

	return Ranking{Period: period, AsOf: asOf, Entries: entries, Errors: errs}, nil
}

// asOf clamps the period end to today.
func (s *Service) asOf(period calendar.Period) calendar.Date {
	return calendar.Min(period.End, s.clock.Today())
}

// =============================================================================
// DEPARTMENT COMPUTATION
// =============================================================================

// fanOut computes every department concurrently. Results keep the order of
// depts; failed departments are returned as errors instead.
func (s *Service) fanOut(ctx context.Context, depts []liaison.Department, period calendar.Period, asOf calendar.Date) ([]DepartmentReport, []*liaison.DepartmentError) {
	results := make([]*DepartmentReport, len(depts))
	failures := make([]*liaison.DepartmentError, len(depts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range depts {
		g.Go(func() error {
			r, err := s.department(gctx, d, period, asOf)
			if err != nil {
				s.log.Warn("department report failed", "department_id", d.ID, "error", err)
				failures[i] = &liaison.DepartmentError{DepartmentID: d.ID, Err: err}
				return nil
			}
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	var (
		reports []DepartmentReport
		errs    []*liaison.DepartmentError
	)
	for i := range depts {
		if failures[i] != nil {
			errs = append(errs, failures[i])
			continue
		}
		reports = append(reports, *results[i])
	}
	return reports, errs
}

// department computes one department's score and reminder counters.
func (s *Service) department(ctx context.Context, dept liaison.Department, period calendar.Period, asOf calendar.Date) (DepartmentReport, error) {
	if err := ctx.Err(); err != nil {
		return DepartmentReport{}, err
	}

	persons, err := s.store.ListPersons(ctx, liaison.PersonFilter{DepartmentIDs: []liaison.DepartmentID{dept.ID}})
	if err != nil {
		return DepartmentReport{}, fmt.Errorf("list persons: %w", err)
	}

	report := DepartmentReport{Name: dept.Name}
	if len(persons) == 0 {
		report.DepartmentScore = scoring.ScoreDepartment(dept.ID, nil)
		return report, nil
	}

	subjects, err := s.subjects(ctx, persons, period, asOf)
	if err != nil {
		return DepartmentReport{}, err
	}

	scores := make([]scoring.PersonScore, 0, len(subjects))
	for _, subj := range subjects {
		ps := scoring.ScorePerson(subj, asOf)
		if ps.Skipped > 0 {
			s.log.Warn("skipped negative contact intervals",
				"department_id", dept.ID, "person_id", ps.PersonID, "leave_period_id", ps.LeavePeriodID,
				"skipped", ps.Skipped)
		}
		scores = append(scores, ps)
	}
	report.DepartmentScore = scoring.ScoreDepartment(dept.ID, scores)

	reminders, err := s.store.ListReminders(ctx, liaison.ReminderFilter{
		From:          &period.Start,
		To:            &period.End,
		DepartmentIDs: []liaison.DepartmentID{dept.ID},
		ExcludeSystem: true,
	})
	if err != nil {
		return DepartmentReport{}, fmt.Errorf("list reminders: %w", err)
	}
	for _, r := range reminders {
		report.ReminderCount++
		if r.IsUrgent() {
			report.UrgentCount++
		}
		if r.IsHandled {
			report.HandledCount++
		} else {
			report.UnhandledCount++
		}
	}

	return report, nil
}

// subjects loads the (person, leave) pairs scored for the period.
func (s *Service) subjects(ctx context.Context, persons []liaison.Person, period calendar.Period, asOf calendar.Date) ([]scoring.Subject, error) {
	zone := s.clock.Zone()
	ids := make([]liaison.PersonID, len(persons))
	byID := make(map[liaison.PersonID]liaison.Person, len(persons))
	for i, p := range persons {
		ids[i] = p.ID
		byID[p.ID] = p
	}

	leaves, err := s.store.ListLeavePeriods(ctx, liaison.LeaveFilter{
		PersonIDs:       ids,
		Statuses:        []liaison.LeaveStatus{liaison.LeaveActive, liaison.LeaveCompleted},
		StartOnOrBefore: &asOf,
		EndOnOrAfter:    &period.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("list leave periods: %w", err)
	}
	if len(leaves) == 0 {
		return nil, nil
	}

	until := zone.StartOf(asOf.AddDays(1))
	contacts, err := s.store.ListContactEvents(ctx, liaison.ContactFilter{
		PersonIDs:          ids,
		Until:              &until,
		ExcludeAdmin:       true,
		SameDepartmentOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list contact events: %w", err)
	}

	contactDays := make(map[liaison.PersonID][]calendar.Date)
	for _, c := range contacts {
		p, ok := byID[c.PersonID]
		if !ok || !liaison.QualifyingContact(p, c) {
			continue
		}
		contactDays[c.PersonID] = append(contactDays[c.PersonID], zone.DateOf(c.ContactedAt))
	}

	var subjects []scoring.Subject
	for personID, personLeaves := range liaison.LeavesByPerson(leaves) {
		p := byID[personID]
		var created calendar.Date
		if !p.CreatedAt.IsZero() {
			created = zone.DateOf(p.CreatedAt)
		}
		for _, l := range collapseOverlapping(personLeaves) {
			subjects = append(subjects, scoring.Subject{
				PersonID:     p.ID,
				PersonName:   p.Name,
				DepartmentID: p.DepartmentID,
				CreatedOn:    created,
				Leave:        l,
				ContactDays:  contactDays[p.ID],
			})
		}
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].PersonID != subjects[j].PersonID {
			return subjects[i].PersonID < subjects[j].PersonID
		}
		return subjects[i].Leave.StartDate.Before(subjects[j].Leave.StartDate)
	})
	return subjects, nil
}

// collapseOverlapping keeps, among leaves that overlap each other, the most
// recently started one. A group spans until the latest end date of its
// members, so a short leave nested in a long one does not split the group.
func collapseOverlapping(leaves []liaison.LeavePeriod) []liaison.LeavePeriod {
	sorted := make([]liaison.LeavePeriod, len(leaves))
	copy(sorted, leaves)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var (
		out      []liaison.LeavePeriod
		groupEnd calendar.Date
	)
	for _, l := range sorted {
		if n := len(out); n > 0 && !l.StartDate.After(groupEnd) {
			out[n-1] = l
			groupEnd = calendar.Max(groupEnd, l.EndDate)
			continue
		}
		out = append(out, l)
		groupEnd = l.EndDate
	}
	return out
}

func departmentScores(reports []DepartmentReport) []scoring.DepartmentScore {
	scores := make([]scoring.DepartmentScore, len(reports))
	for i, r := range reports {
		scores[i] = r.DepartmentScore
	}
	return scores
}

func joinDepartmentErrors(errs []*liaison.DepartmentError) error {
	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}
	return errors.Join(joined...)
}
