package scoring

import "github.com/shopspring/decimal"

// Direction is the sign of current - previous.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// TrendResult compares one metric across two periods. Whether "up" is good
// depends on the metric and is left to the caller.
type TrendResult struct {
	Current   float64   `json:"current"`
	Previous  float64   `json:"previous"`
	Change    float64   `json:"change"`
	Direction Direction `json:"direction"`
}

// Compare derives the absolute change and direction between two values.
// Values are compared at one decimal so float noise never reads as movement.
func Compare(current, previous float64) TrendResult {
	cur := decimal.NewFromFloat(current).Round(1)
	prev := decimal.NewFromFloat(previous).Round(1)
	delta := cur.Sub(prev)

	dir := DirectionStable
	switch delta.Sign() {
	case 1:
		dir = DirectionUp
	case -1:
		dir = DirectionDown
	}

	return TrendResult{
		Current:   cur.InexactFloat64(),
		Previous:  prev.InexactFloat64(),
		Change:    delta.Abs().InexactFloat64(),
		Direction: dir,
	}
}

// Metric names reported by the trend comparator.
const (
	MetricUnhandled    = "unhandled_count"
	MetricUrgent       = "urgent_count"
	MetricAvgInterval  = "avg_interval"
	MetricScore        = "score"
	MetricResponseRate = "response_rate"
)

// PeriodMetrics are the aggregates compared between two periods.
type PeriodMetrics struct {
	UnhandledCount int     `json:"unhandled_count"`
	UrgentCount    int     `json:"urgent_count"`
	AvgInterval    float64 `json:"avg_interval"`
	Score          int     `json:"score"`
	ResponseRate   float64 `json:"response_rate"`
}

// CompareMetrics builds the per-metric trend map.
func CompareMetrics(current, previous PeriodMetrics) map[string]TrendResult {
	return map[string]TrendResult{
		MetricUnhandled:    Compare(float64(current.UnhandledCount), float64(previous.UnhandledCount)),
		MetricUrgent:       Compare(float64(current.UrgentCount), float64(previous.UrgentCount)),
		MetricAvgInterval:  Compare(current.AvgInterval, previous.AvgInterval),
		MetricScore:        Compare(float64(current.Score), float64(previous.Score)),
		MetricResponseRate: Compare(current.ResponseRate, previous.ResponseRate),
	}
}

// ResponseRate is handled / total as a percentage with one decimal.
// No reminders means nothing was left unanswered: 100.
func ResponseRate(handled, total int) float64 {
	if total <= 0 {
		return 100
	}
	return decimal.NewFromInt(int64(handled)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		InexactFloat64()
}
