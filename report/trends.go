package report

import (
	"context"

	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
	"github.com/warp/liaison-engine/scoring"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// TRENDS
// =============================================================================

// TrendReport compares a period with the one of equal length right before it.
type TrendReport struct {
	Scope    string                         `json:"scope"`
	Current  calendar.Period                `json:"-"`
	Previous calendar.Period                `json:"-"`
	Metrics  map[string]scoring.TrendResult `json:"metrics"`
	Errors   []*liaison.DepartmentError     `json:"-"`
}

// Trends computes the period metrics for [start, end] and for the preceding
// period, and compares them metric by metric. Like HealthScore, it fails
// when no department of the scope could be computed for a period.
func (s *Service) Trends(ctx context.Context, start, end calendar.Date, scope Scope) (TrendReport, error) {
	current, err := calendar.NewPeriod(start, end)
	if err != nil {
		return TrendReport{}, err
	}
	previous := current.Previous()

	depts, err := s.departments(ctx, scope)
	if err != nil {
		return TrendReport{}, err
	}

	var (
		cur, prev         scoring.PeriodMetrics
		curErrs, prevErrs []*liaison.DepartmentError
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cur, curErrs = s.periodMetrics(gctx, depts, current)
		return nil
	})
	g.Go(func() error {
		prev, prevErrs = s.periodMetrics(gctx, depts, previous)
		return nil
	})
	_ = g.Wait()

	if allFailed(depts, curErrs) || allFailed(depts, prevErrs) {
		return TrendReport{}, joinDepartmentErrors(append(curErrs, prevErrs...))
	}

	return TrendReport{
		Scope:    scope.String(),
		Current:  current,
		Previous: previous,
		Metrics:  scoring.CompareMetrics(cur, prev),
		Errors:   append(curErrs, prevErrs...),
	}, nil
}

// allFailed reports whether no department of a non-empty scope could be
// computed, leaving nothing to compare.
func allFailed(depts []liaison.Department, errs []*liaison.DepartmentError) bool {
	return len(depts) > 0 && len(errs) >= len(depts)
}

// periodMetrics aggregates the departments of a scope over one period.
func (s *Service) periodMetrics(ctx context.Context, depts []liaison.Department, period calendar.Period) (scoring.PeriodMetrics, []*liaison.DepartmentError) {
	reports, errs := s.fanOut(ctx, depts, period, s.asOf(period))

	var (
		m              scoring.PeriodMetrics
		handled, total int
	)
	for _, r := range reports {
		m.UnhandledCount += r.UnhandledCount
		m.UrgentCount += r.UrgentCount
		handled += r.HandledCount
		total += r.ReminderCount
	}

	scores := departmentScores(reports)
	m.Score = scoring.AverageScores(scores)
	m.AvgInterval = scoring.PooledAverageInterval(scores)
	m.ResponseRate = scoring.ResponseRate(handled, total)
	return m, errs
}
