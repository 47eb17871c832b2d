// Package calendar holds the wire formats shared by the scheduler:
// DD/MM/YYYY dates, 24-hour HH:MM clock times and English weekday names.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DateLayout  = "02/01/2006"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate    = errors.New("date must be DD/MM/YYYY")
	ErrInvalidClock   = errors.New("time must be HH:MM")
	ErrInvalidWeekday = errors.New("day must be a weekday name")
)

// ParseDate parses a DD/MM/YYYY string into midnight UTC of that day.
// No alternate layouts are attempted.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Clock is a time of day in whole minutes after midnight.
type Clock int

func NewClock(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return NewClock(t.Hour(), t.Minute()), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

// Microseconds since midnight, the representation of a Postgres TIME.
func (c Clock) Microseconds() int64 {
	return int64(c) * int64(time.Minute/time.Microsecond)
}

func ClockFromMicroseconds(us int64) Clock {
	return Clock(us / int64(time.Minute/time.Microsecond))
}

var weekdays = map[string]time.Weekday{
	"Sunday":    time.Sunday,
	"Monday":    time.Monday,
	"Tuesday":   time.Tuesday,
	"Wednesday": time.Wednesday,
	"Thursday":  time.Thursday,
	"Friday":    time.Friday,
	"Saturday":  time.Saturday,
}

// ParseWeekday accepts an English weekday name in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	wd, ok := weekdays[TitleCase(s)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
	}
	return wd, nil
}

// TitleCase trims s and upper-cases the first letter of every word.
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
