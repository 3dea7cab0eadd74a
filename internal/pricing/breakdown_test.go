package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/models"
)

// Monday
var t0 = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func rush(weekDay int, from, to string) models.RushHour {
	return models.RushHour{ID: "rh", WeekDay: weekDay, From: from, To: to}
}

func assertContiguous(t *testing.T, b Breakdown, from, to time.Time) {
	t.Helper()
	require.NotEmpty(t, b.Segments)
	assert.True(t, b.Segments[0].From.Equal(from), "first segment starts at checkin")
	assert.True(t, b.Segments[len(b.Segments)-1].To.Equal(to), "last segment ends at checkout")
	for i := 0; i < len(b.Segments)-1; i++ {
		assert.True(t, b.Segments[i].To.Equal(b.Segments[i+1].From), "segment %d is contiguous", i)
		assert.NotEqual(t, b.Segments[i].RateMode, b.Segments[i+1].RateMode, "adjacent segments %d merged", i)
	}
}

func TestComputeBreakdown_RushHourScenario(t *testing.T) {
	windows := Windows{RushHours: []models.RushHour{rush(1, "11:00", "11:30")}}

	b, err := ComputeBreakdown(t0, t0.Add(2*time.Hour), 5, 8, windows)
	require.NoError(t, err)

	require.Len(t, b.Segments, 3)
	assertContiguous(t, b, t0, t0.Add(2*time.Hour))

	assert.Equal(t, models.RateModeNormal, b.Segments[0].RateMode)
	assert.InDelta(t, 1.0, b.Segments[0].Hours, 1e-9)
	assert.InDelta(t, 5.0, b.Segments[0].Amount, 1e-9)

	assert.Equal(t, models.RateModeSpecial, b.Segments[1].RateMode)
	assert.Equal(t, 8.0, b.Segments[1].Rate)
	assert.True(t, b.Segments[1].From.Equal(t0.Add(time.Hour)))
	assert.InDelta(t, 4.0, b.Segments[1].Amount, 1e-9)

	assert.Equal(t, models.RateModeNormal, b.Segments[2].RateMode)
	assert.InDelta(t, 2.5, b.Segments[2].Amount, 1e-9)

	assert.Equal(t, 11.5, b.Amount)
	assert.Equal(t, 2.0, b.DurationHours)
}

func TestComputeBreakdown_NoWindows(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		rate     float64
		want     float64
	}{
		{"two and a half hours", 150 * time.Minute, 5, 12.5},
		{"odd minutes", 37 * time.Minute, 3.5, 2.16},
		{"one second", time.Second, 10, 0},
		{"free zone", 3 * time.Hour, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ComputeBreakdown(t0, t0.Add(tt.duration), tt.rate, 9, Windows{})
			require.NoError(t, err)
			require.Len(t, b.Segments, 1)
			assertContiguous(t, b, t0, t0.Add(tt.duration))
			assert.Equal(t, models.RateModeNormal, b.Segments[0].RateMode)
			assert.InDelta(t, tt.duration.Hours(), b.Segments[0].Hours, 1e-12)
			assert.Equal(t, tt.want, b.Amount)
		})
	}
}

func TestComputeBreakdown_FullyInsideVacation(t *testing.T) {
	windows := Windows{Vacations: []models.Vacation{{ID: "v", Name: "Spring", From: "2024-03-01", To: "2024-03-10"}}}

	b, err := ComputeBreakdown(t0, t0.Add(26*time.Hour), 5, 8, windows)
	require.NoError(t, err)

	require.Len(t, b.Segments, 1)
	assert.Equal(t, models.RateModeSpecial, b.Segments[0].RateMode)
	assert.Equal(t, 8.0, b.Segments[0].Rate)
	assert.Equal(t, 208.0, b.Amount)
}

func TestComputeBreakdown_RoundsOnceAtTotal(t *testing.T) {
	// three quarter-hour segments at 0.02/h: each is 0.005 unrounded
	windows := Windows{RushHours: []models.RushHour{rush(1, "10:15", "10:30")}}

	b, err := ComputeBreakdown(t0, t0.Add(45*time.Minute), 0.02, 0.02, windows)
	require.NoError(t, err)
	require.Len(t, b.Segments, 3)

	perSegment := 0.0
	for _, s := range b.Segments {
		perSegment += math.Round(s.Amount*100) / 100
	}
	assert.Equal(t, 0.02, b.Amount)
	assert.NotEqual(t, perSegment, b.Amount)
}

func TestComputeBreakdown_EqualInstants(t *testing.T) {
	b, err := ComputeBreakdown(t0, t0, 5, 8, Windows{})
	require.NoError(t, err)

	require.Len(t, b.Segments, 1)
	assert.Zero(t, b.Segments[0].Hours)
	assert.Zero(t, b.Segments[0].Amount)
	assert.Zero(t, b.Amount)
	assert.False(t, math.IsNaN(b.Amount))
}

func TestComputeBreakdown_EqualInstantsInsideWindow(t *testing.T) {
	windows := Windows{RushHours: []models.RushHour{rush(1, "10:00", "11:00")}}

	b, err := ComputeBreakdown(t0, t0, 5, 8, windows)
	require.NoError(t, err)
	require.Len(t, b.Segments, 1)
	assert.Equal(t, models.RateModeSpecial, b.Segments[0].RateMode)
}

func TestComputeBreakdown_InvalidInput(t *testing.T) {
	_, err := ComputeBreakdown(t0, t0.Add(-time.Minute), 5, 8, Windows{})
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = ComputeBreakdown(t0, t0.Add(time.Hour), -1, 8, Windows{})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = ComputeBreakdown(t0, t0.Add(time.Hour), 5, math.NaN(), Windows{})
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = ComputeBreakdown(t0, t0.Add(time.Hour), 5, 8, Windows{RushHours: []models.RushHour{rush(1, "9am", "11:00")}})
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = ComputeBreakdown(t0, t0.Add(time.Hour), 5, 8, Windows{Vacations: []models.Vacation{{From: "March 1", To: "2024-03-02"}}})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestComputeBreakdown_ZeroLengthWindowIgnored(t *testing.T) {
	windows := Windows{RushHours: []models.RushHour{rush(1, "11:00", "11:00")}}

	b, err := ComputeBreakdown(t0, t0.Add(2*time.Hour), 5, 8, windows)
	require.NoError(t, err)
	require.Len(t, b.Segments, 1)
	assert.Equal(t, 10.0, b.Amount)
}

func TestComputeBreakdown_BoundaryBelongsToStartingSegment(t *testing.T) {
	windows := Windows{RushHours: []models.RushHour{rush(1, "10:00", "11:00")}}

	b, err := ComputeBreakdown(t0, t0.Add(90*time.Minute), 4, 8, windows)
	require.NoError(t, err)

	require.Len(t, b.Segments, 2)
	assert.Equal(t, models.RateModeSpecial, b.Segments[0].RateMode)
	assert.Equal(t, models.RateModeNormal, b.Segments[1].RateMode)
	assert.True(t, b.Segments[1].From.Equal(t0.Add(time.Hour)))
	assert.Equal(t, 10.0, b.Amount)
}

func TestComputeBreakdown_MultiDayRushHours(t *testing.T) {
	windows := Windows{RushHours: []models.RushHour{
		rush(1, "11:00", "11:30"),
		rush(2, "08:00", "09:00"),
	}}
	checkout := t0.Add(7*24*time.Hour + 2*time.Hour)

	b, err := ComputeBreakdown(t0, checkout, 1, 2, windows)
	require.NoError(t, err)

	assertContiguous(t, b, t0, checkout)
	special := 0
	for _, s := range b.Segments {
		if s.RateMode == models.RateModeSpecial {
			special++
		}
	}
	// Monday, Tuesday, next Monday
	assert.Equal(t, 3, special)
	assert.Len(t, b.Segments, 7)

	hours := 7*24 + 2.0
	assert.InDelta(t, hours+2.0, b.Amount, 1e-9)
}

func TestComputeBreakdown_VacationAndRushHourDoNotStack(t *testing.T) {
	windows := Windows{
		RushHours: []models.RushHour{rush(1, "11:00", "12:00")},
		Vacations: []models.Vacation{{ID: "v", From: "2024-03-04", To: "2024-03-04"}},
	}
	checkin := time.Date(2024, time.March, 3, 22, 0, 0, 0, time.UTC)
	checkout := time.Date(2024, time.March, 5, 2, 0, 0, 0, time.UTC)

	b, err := ComputeBreakdown(checkin, checkout, 1, 3, windows)
	require.NoError(t, err)

	require.Len(t, b.Segments, 3)
	assertContiguous(t, b, checkin, checkout)
	assert.Equal(t, models.RateModeSpecial, b.Segments[1].RateMode)
	assert.InDelta(t, 24.0, b.Segments[1].Hours, 1e-9)
	assert.Equal(t, 2.0+72.0+2.0, b.Amount)
}

func TestComputeBreakdown_Location(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	windows := Windows{
		Vacations: []models.Vacation{{ID: "v", From: "2024-03-05", To: "2024-03-05"}},
		Location:  loc,
	}
	// 2024-03-04 18:00 UTC is 23:00 local; the vacation starts an hour in
	checkin := time.Date(2024, time.March, 4, 18, 0, 0, 0, time.UTC)

	b, err := ComputeBreakdown(checkin, checkin.Add(2*time.Hour), 1, 3, windows)
	require.NoError(t, err)

	require.Len(t, b.Segments, 2)
	assert.True(t, b.Segments[1].From.Equal(checkin.Add(time.Hour)))
	assert.Equal(t, 4.0, b.Amount)
}

func TestIsSpecialAt(t *testing.T) {
	windows := Windows{RushHours: []models.RushHour{rush(1, "11:00", "11:30")}}

	assert.False(t, IsSpecialAt(t0, windows))
	assert.True(t, IsSpecialAt(t0.Add(time.Hour), windows))
	assert.False(t, IsSpecialAt(t0.Add(90*time.Minute), windows))
	assert.False(t, IsSpecialAt(t0.Add(24*time.Hour+time.Hour), windows), "tuesday")
}

func TestValidateWindows(t *testing.T) {
	assert.NoError(t, ValidateRushHour(rush(5, "07:30", "09:00")))
	assert.NoError(t, ValidateRushHour(rush(0, "18:00", "24:00")))
	assert.ErrorIs(t, ValidateRushHour(rush(7, "07:30", "09:00")), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateRushHour(rush(1, "09:00", "09:00")), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateRushHour(rush(1, "7:30", "09:00")), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateRushHour(rush(1, "07:60", "09:00")), ErrInvalidWindow)

	assert.NoError(t, ValidateVacation(models.Vacation{From: "2024-12-31", To: "2024-12-31"}))
	assert.ErrorIs(t, ValidateVacation(models.Vacation{From: "2025-01-02", To: "2025-01-01"}), ErrInvalidWindow)
	assert.ErrorIs(t, ValidateVacation(models.Vacation{From: "2025-01-02", To: "soon"}), ErrInvalidWindow)
}
