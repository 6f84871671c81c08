package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedule_SessionBounds(t *testing.T) {
	s := DefaultSchedule()
	loc := s.Location

	bar := time.Date(2023, 6, 6, 10, 17, 0, 0, loc)

	assert.Equal(t, time.Date(2023, 6, 6, 9, 30, 0, 0, loc), s.SessionOpen(bar))
	assert.Equal(t, time.Date(2023, 6, 6, 16, 0, 0, 0, loc), s.SessionClose(bar))
	assert.Equal(t, 47, s.MinutesSinceOpen(bar))
	assert.Equal(t, "2023-06-06", s.TradingDay(bar))
}

func TestSchedule_MinutesSinceOpenBeforeOpen(t *testing.T) {
	s := DefaultSchedule()
	bar := time.Date(2023, 6, 6, 9, 20, 0, 0, s.Location)

	assert.Equal(t, -10, s.MinutesSinceOpen(bar))
}

func TestSchedule_UTCInputIsLocalised(t *testing.T) {
	s := DefaultSchedule()
	// 13:45 UTC is 09:45 EDT in June
	bar := time.Date(2023, 6, 6, 13, 45, 0, 0, time.UTC)

	assert.Equal(t, 15, s.MinutesSinceOpen(bar))
	assert.True(t, s.IsRegularHours(bar))
}

func TestSchedule_TradingDays(t *testing.T) {
	s := DefaultSchedule()
	loc := s.Location

	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"weekday", time.Date(2023, 6, 6, 12, 0, 0, 0, loc), true},
		{"saturday", time.Date(2023, 6, 3, 12, 0, 0, 0, loc), false},
		{"sunday", time.Date(2023, 6, 4, 12, 0, 0, 0, loc), false},
		{"juneteenth", time.Date(2023, 6, 19, 12, 0, 0, 0, loc), false},
		{"mlk day", time.Date(2024, 1, 15, 12, 0, 0, 0, loc), false},
		{"christmas 2025", time.Date(2025, 12, 25, 12, 0, 0, 0, loc), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsTradingDay(tt.day))
		})
	}
}

func TestClock_ParseAndWindow(t *testing.T) {
	start, err := ParseClock("09:30")
	require.NoError(t, err)
	end := MustParseClock("11:00")

	w := Window{Start: start, End: end}
	require.NoError(t, w.Validate())
	assert.Equal(t, "09:30-11:00", w.String())

	assert.True(t, w.Contains(NewClock(9, 30)), "start is inclusive")
	assert.True(t, w.Contains(NewClock(10, 59)))
	assert.False(t, w.Contains(NewClock(11, 0)), "end is exclusive")
	assert.False(t, w.Contains(NewClock(9, 29)))

	_, err = ParseClock("9h30")
	assert.Error(t, err)

	assert.Error(t, Window{Start: end, End: start}.Validate())
}
