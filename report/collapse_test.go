package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/liaison-engine/calendar"
	"github.com/warp/liaison-engine/liaison"
)

func leave(id, start, end string) liaison.LeavePeriod {
	return liaison.LeavePeriod{
		ID:        liaison.LeavePeriodID(id),
		StartDate: calendar.MustParseDate(start),
		EndDate:   calendar.MustParseDate(end),
	}
}

func ids(leaves []liaison.LeavePeriod) []liaison.LeavePeriodID {
	out := make([]liaison.LeavePeriodID, len(leaves))
	for i, l := range leaves {
		out[i] = l.ID
	}
	return out
}

func TestCollapseOverlapping(t *testing.T) {
	tests := []struct {
		name   string
		leaves []liaison.LeavePeriod
		want   []liaison.LeavePeriodID
	}{
		{
			name:   "disjoint leaves are kept",
			leaves: []liaison.LeavePeriod{leave("b", "2024-02-01", "2024-02-10"), leave("a", "2024-01-01", "2024-01-10")},
			want:   []liaison.LeavePeriodID{"a", "b"},
		},
		{
			name:   "overlap keeps the later start",
			leaves: []liaison.LeavePeriod{leave("a", "2024-01-01", "2024-01-10"), leave("b", "2024-01-10", "2024-01-20")},
			want:   []liaison.LeavePeriodID{"b"},
		},
		{
			name: "leaves nested in a long leave form one group",
			leaves: []liaison.LeavePeriod{
				leave("a", "2024-01-01", "2024-01-31"),
				leave("b", "2024-01-05", "2024-01-10"),
				leave("c", "2024-01-20", "2024-01-25"),
			},
			want: []liaison.LeavePeriodID{"c"},
		},
		{
			name: "group ends at its latest end date",
			leaves: []liaison.LeavePeriod{
				leave("a", "2024-01-01", "2024-01-31"),
				leave("b", "2024-01-05", "2024-01-10"),
				leave("c", "2024-02-01", "2024-02-05"),
			},
			want: []liaison.LeavePeriodID{"b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(collapseOverlapping(tt.leaves)))
		})
	}
}
