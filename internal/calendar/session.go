package calendar

import (
	"sync"
	"time"
)

// Schedule describes the regular trading session in exchange local time
type Schedule struct {
	Location  *time.Location
	OpenHour  int // 9
	OpenMin   int // 30
	CloseHour int // 16
	CloseMin  int // 0
}

// DefaultSchedule is the US equity-index regular session (09:30-16:00 ET)
func DefaultSchedule() Schedule {
	return Schedule{
		Location:  ETLocation(),
		OpenHour:  9,
		OpenMin:   30,
		CloseHour: 16,
		CloseMin:  0,
	}
}

var (
	etOnce sync.Once
	etLoc  *time.Location
)

// ETLocation returns US Eastern Time, loaded once
func ETLocation() *time.Location {
	etOnce.Do(func() {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			// tzdata missing: assume EST
			loc = time.FixedZone("EST", -5*60*60)
		}
		etLoc = loc
	})
	return etLoc
}

func (s Schedule) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// SessionOpen returns the session open on t's local calendar day
func (s Schedule) SessionOpen(t time.Time) time.Time {
	lt := t.In(s.loc())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.OpenHour, s.OpenMin, 0, 0, s.loc())
}

// SessionClose returns the session close on t's local calendar day
func (s Schedule) SessionClose(t time.Time) time.Time {
	lt := t.In(s.loc())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.CloseHour, s.CloseMin, 0, 0, s.loc())
}

// MinutesSinceOpen returns whole minutes elapsed since the session open (negative before open)
func (s Schedule) MinutesSinceOpen(t time.Time) int {
	return int(t.Sub(s.SessionOpen(t)) / time.Minute)
}

// TradingDay returns the local date key (YYYY-MM-DD) t belongs to
func (s Schedule) TradingDay(t time.Time) string {
	return t.In(s.loc()).Format("2006-01-02")
}

// Date truncates t to midnight of its local calendar day
func (s Schedule) Date(t time.Time) time.Time {
	lt := t.In(s.loc())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, s.loc())
}

// IsTradingDay reports whether t falls on a weekday that is not an exchange holiday
func (s Schedule) IsTradingDay(t time.Time) bool {
	lt := t.In(s.loc())
	if lt.Weekday() == time.Saturday || lt.Weekday() == time.Sunday {
		return false
	}
	return !IsUSHoliday(lt)
}

// IsRegularHours reports whether t is inside [open, close) on a trading day
func (s Schedule) IsRegularHours(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	return !t.Before(s.SessionOpen(t)) && t.Before(s.SessionClose(t))
}

// US exchange holidays
var usHolidays = map[string]bool{
	"2023-01-02": true, // New Year's Day (observed)
	"2023-01-16": true, // MLK Day
	"2023-02-20": true, // Presidents Day
	"2023-04-07": true, // Good Friday
	"2023-05-29": true, // Memorial Day
	"2023-06-19": true, // Juneteenth
	"2023-07-04": true, // Independence Day
	"2023-09-04": true, // Labor Day
	"2023-11-23": true, // Thanksgiving
	"2023-12-25": true, // Christmas

	"2024-01-01": true,
	"2024-01-15": true,
	"2024-02-19": true,
	"2024-03-29": true,
	"2024-05-27": true,
	"2024-06-19": true,
	"2024-07-04": true,
	"2024-09-02": true,
	"2024-11-28": true,
	"2024-12-25": true,

	"2025-01-01": true,
	"2025-01-20": true,
	"2025-02-17": true,
	"2025-04-18": true,
	"2025-05-26": true,
	"2025-06-19": true,
	"2025-07-04": true,
	"2025-09-01": true,
	"2025-11-27": true,
	"2025-12-25": true,

	"2026-01-01": true,
	"2026-01-19": true,
	"2026-02-16": true,
	"2026-04-03": true,
	"2026-05-25": true,
	"2026-06-19": true,
	"2026-07-03": true, // Independence Day (observed)
	"2026-09-07": true,
	"2026-11-26": true,
	"2026-12-25": true,
}

// IsUSHoliday 미국 공휴일 체크
func IsUSHoliday(t time.Time) bool {
	return usHolidays[t.Format("2006-01-02")]
}
