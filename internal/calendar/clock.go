package calendar

import (
	"fmt"
	"time"
)

// Clock is a time of day, minutes after local midnight
type Clock int

// NewClock builds a Clock from hour and minute
func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// ParseClock parses "HH:MM" (24h)
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

// MustParseClock is ParseClock for constants; it panics on malformed input
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns t's time of day in loc
func ClockOf(t time.Time, loc *time.Location) Clock {
	if loc != nil {
		t = t.In(loc)
	}
	return NewClock(t.Hour(), t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is a half-open time-of-day range [Start, End)
type Window struct {
	Start Clock
	End   Clock
}

// Contains reports whether c lies in [Start, End)
func (w Window) Contains(c Clock) bool {
	return c >= w.Start && c < w.End
}

// Validate rejects empty or inverted windows
func (w Window) Validate() error {
	if w.Start < 0 || w.End > NewClock(24, 0) {
		return fmt.Errorf("entry window %s-%s outside the day", w.Start, w.End)
	}
	if w.Start >= w.End {
		return fmt.Errorf("entry window start %s must be before end %s", w.Start, w.End)
	}
	return nil
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
