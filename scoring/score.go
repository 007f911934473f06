package scoring

import (
	"github.com/shopspring/decimal"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

// =============================================================================
// PERSON
// =============================================================================

// PersonScore is the penalty breakdown for one person's leave period.
type PersonScore struct {
	PersonID      liaison.PersonID      `json:"person_id"`
	PersonName    string                `json:"person_name"`
	LeavePeriodID liaison.LeavePeriodID `json:"leave_period_id"`
	Intervals     []Interval            `json:"intervals"`
	Penalty       int                   `json:"penalty"`
	Skipped       int                   `json:"skipped_intervals,omitempty"`
}

// ScorePerson builds the intervals for s and sums their penalties. Negative
// intervals are counted in Skipped and contribute nothing.
func ScorePerson(s Subject, asOf calendar.Date) PersonScore {
	ps := PersonScore{
		PersonID:      s.PersonID,
		PersonName:    s.PersonName,
		LeavePeriodID: s.Leave.ID,
		Intervals:     BuildIntervals(s, asOf),
	}
	for _, iv := range ps.Intervals {
		if iv.Negative() {
			ps.Skipped++
			continue
		}
		ps.Penalty += iv.Penalty
	}
	return ps
}

// =============================================================================
// DEPARTMENT
// =============================================================================

// DepartmentScore aggregates the persons of one department.
type DepartmentScore struct {
	DepartmentID  liaison.DepartmentID `json:"department_id"`
	Score         int                  `json:"score"`
	AvgInterval   float64              `json:"avg_interval"`
	IntervalCount int                  `json:"interval_count"`
	TotalPenalty  int                  `json:"total_penalty"`
	Persons       []PersonScore        `json:"persons"`
}

// ScoreDepartment deducts every person's penalty from MaxScore and averages
// every non-negative interval of every person.
func ScoreDepartment(id liaison.DepartmentID, persons []PersonScore) DepartmentScore {
	ds := DepartmentScore{DepartmentID: id, Persons: persons}

	var intervals []Interval
	for _, p := range persons {
		ds.TotalPenalty += p.Penalty
		for _, iv := range p.Intervals {
			if !iv.Negative() {
				intervals = append(intervals, iv)
			}
		}
	}

	ds.Score = ClampScore(MaxScore - ds.TotalPenalty)
	ds.IntervalCount = len(intervals)
	ds.AvgInterval = AverageInterval(intervals)
	return ds
}

// ClampScore bounds a score to [0, MaxScore].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// AverageInterval is the mean length of the intervals, rounded to one decimal.
// No intervals means 0.
func AverageInterval(intervals []Interval) float64 {
	if len(intervals) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, iv := range intervals {
		sum = sum.Add(decimal.NewFromInt(int64(iv.Days)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(intervals)))).Round(1).InexactFloat64()
}

// AverageScores is the equal-weight mean of department scores, rounded to an
// integer. Head count does not weigh in.
func AverageScores(scores []DepartmentScore) int {
	if len(scores) == 0 {
		return MaxScore
	}
	sum := decimal.Zero
	for _, s := range scores {
		sum = sum.Add(decimal.NewFromInt(int64(s.Score)))
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(scores)))).Round(0)
	return ClampScore(int(mean.IntPart()))
}

// PooledAverageInterval averages every interval across departments, so a
// department with more samples weighs more.
func PooledAverageInterval(scores []DepartmentScore) float64 {
	var intervals []Interval
	for _, s := range scores {
		for _, p := range s.Persons {
			for _, iv := range p.Intervals {
				if !iv.Negative() {
					intervals = append(intervals, iv)
				}
			}
		}
	}
	return AverageInterval(intervals)
}
