package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/liaison-engine/calendar"
)

func TestZone_DateOf_NormalizesBeforeTruncating(t *testing.T) {
	// GIVEN: 2024-01-01 20:30 UTC, which is already Jan 2 in Shanghai
	shanghai, err := calendar.LoadZone("Asia/Shanghai")
	require.NoError(t, err)
	instant := time.Date(2024, time.January, 1, 20, 30, 0, 0, time.UTC)

	// THEN: the day depends on the zone, not on the instant's own location
	assert.Equal(t, "2024-01-02", shanghai.DateOf(instant).String())
	assert.Equal(t, "2024-01-01", calendar.NewZone(time.UTC).DateOf(instant).String())
}

func TestDaysBetween_AcrossDSTIsWholeDays(t *testing.T) {
	ny, err := calendar.LoadZone("America/New_York")
	require.NoError(t, err)

	// 2024-03-10 is a 23-hour day in New York.
	before := ny.DateOf(time.Date(2024, 3, 9, 12, 0, 0, 0, ny.Location()))
	after := ny.DateOf(time.Date(2024, 3, 11, 12, 0, 0, 0, ny.Location()))

	assert.Equal(t, 2, calendar.DaysBetween(before, after))
	assert.Equal(t, -2, calendar.DaysBetween(after, before))
}

func TestPeriod_Previous(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart string
		wantEnd   string
	}{
		{"month", "2024-02-01", "2024-02-29", "2024-01-03", "2024-01-31"},
		{"single day", "2024-01-10", "2024-01-10", "2024-01-09", "2024-01-09"},
		{"week", "2024-01-08", "2024-01-14", "2024-01-01", "2024-01-07"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := calendar.NewPeriod(calendar.MustParseDate(tt.start), calendar.MustParseDate(tt.end))
			require.NoError(t, err)

			prev := p.Previous()
			assert.Equal(t, tt.wantStart, prev.Start.String())
			assert.Equal(t, tt.wantEnd, prev.End.String())
			assert.Equal(t, p.Length(), prev.Length())
		})
	}
}

func TestNewPeriod_RejectsInvertedRange(t *testing.T) {
	_, err := calendar.NewPeriod(calendar.MustParseDate("2024-02-01"), calendar.MustParseDate("2024-01-01"))
	assert.ErrorIs(t, err, calendar.ErrInvalidPeriod)
}

func TestClock_TodayIsZoned(t *testing.T) {
	tokyo, err := calendar.LoadZone("Asia/Tokyo")
	require.NoError(t, err)
	clock := calendar.NewClock(func() time.Time {
		return time.Date(2024, 5, 31, 16, 0, 0, 0, time.UTC)
	}, tokyo)

	assert.Equal(t, calendar.NewDate(2024, time.June, 1), clock.Today())
}

func TestFixedClock(t *testing.T) {
	day := calendar.MustParseDate("2024-01-25")
	clock := calendar.FixedClock(day, calendar.NewZone(time.UTC))
	assert.True(t, clock.Today().Equal(day))
}

func TestDate_JSONRoundTrip(t *testing.T) {
	type payload struct {
		Day calendar.Date `json:"day"`
	}
	raw, err := json.Marshal(payload{Day: calendar.NewDate(2024, time.January, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-01-05"}`, string(raw))

	var back payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, "2024-01-05", back.Day.String())
}
