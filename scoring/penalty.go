/*
Package scoring computes contact-gap intervals, deduction penalties, the
department health score and period-over-period trends.

Everything here is pure: callers load data, normalize contact instants to
calendar days and hand over Subjects. No I/O, no clock.

PENALTY RULE (per interval of d days):

	d <= 7        0                  grace period
	7 < d <= 10   d - 7              1 point per day
	d > 10        3 + 3*min(d-10, 2) 3 points per day, at most 2 such days

So 8 days costs 1, 10 days costs 3, 12 days costs 9, and anything longer
still costs 9: one neglected gap cannot sink a department on its own.

SEE ALSO:
  - intervals.go: building the interval sequence for a person on leave
  - score.go: department aggregation
  - trend.go: current vs previous period comparison
*/
package scoring

const (
	// GraceDays is the longest interval that costs nothing.
	GraceDays = 7
	// UrgentDays is where the 1 point/day tier ends.
	UrgentDays = 10
	// CappedExtraDays is how many days past UrgentDays keep adding penalty.
	CappedExtraDays = 2
	// PointsPerUrgentDay is the cost of each day past UrgentDays.
	PointsPerUrgentDay = 3

	// MaxScore is the score of a department with no deductions.
	MaxScore = 100
)

// Penalty returns the deduction for one interval of d days. Negative
// intervals are rejected upstream and cost nothing here.
func Penalty(d int) int {
	switch {
	case d <= GraceDays:
		return 0
	case d <= UrgentDays:
		return d - GraceDays
	default:
		extra := d - UrgentDays
		if extra > CappedExtraDays {
			extra = CappedExtraDays
		}
		return (UrgentDays - GraceDays) + PointsPerUrgentDay*extra
	}
}

// MaxIntervalPenalty is the most a single interval can cost.
func MaxIntervalPenalty() int {
	return Penalty(UrgentDays + CappedExtraDays)
}
