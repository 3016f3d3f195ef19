// Package model defines the core data structures for classbell.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Weekdays use a fixed Monday-first numbering.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// WeekdayNames maps weekday numbers to human-readable names.
var WeekdayNames = map[int]string{
	Monday:    "Monday",
	Tuesday:   "Tuesday",
	Wednesday: "Wednesday",
	Thursday:  "Thursday",
	Friday:    "Friday",
	Saturday:  "Saturday",
	Sunday:    "Sunday",
}

// Validation errors.
var (
	ErrEmptyName      = errors.New("name cannot be empty")
	ErrInvalidHour    = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute  = errors.New("minute must be between 0 and 59")
	ErrInvalidWeekday = errors.New("weekday must be between 0 (Monday) and 6 (Sunday)")
)

// Entry is one recurring class in the timetable.
// It is treated as immutable once constructed; watchers hold copies.
type Entry struct {
	Name    string `json:"name" yaml:"name"`
	Teacher string `json:"teacher" yaml:"teacher"`
	Hour    int    `json:"hour" yaml:"hour"`
	Minute  int    `json:"minute" yaml:"minute"`
	Weekday int    `json:"weekday" yaml:"weekday"`
}

// Validate checks that the entry has a name and in-range trigger fields.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if e.Hour < 0 || e.Hour > 23 {
		return ErrInvalidHour
	}
	if e.Minute < 0 || e.Minute > 59 {
		return ErrInvalidMinute
	}
	if e.Weekday < Monday || e.Weekday > Sunday {
		return ErrInvalidWeekday
	}
	return nil
}

// String returns a short description like "Maths (Ms Smith) Monday 08:30".
func (e Entry) String() string {
	s := e.Name
	if e.Teacher != "" {
		s += " (" + e.Teacher + ")"
	}
	return s + " " + e.WeekdayName() + " " + e.Clock()
}

// Clock returns the trigger time formatted as HH:MM.
func (e Entry) Clock() string {
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}

// WeekdayName returns the entry's weekday as a name.
func (e Entry) WeekdayName() string {
	if name, ok := WeekdayNames[e.Weekday]; ok {
		return name
	}
	return "weekday(" + strconv.Itoa(e.Weekday) + ")"
}

// Matches reports whether the snapshot falls on the entry's weekday, hour and minute.
func (e Entry) Matches(s Snapshot) bool {
	return s.Hour == e.Hour && s.Minute == e.Minute && s.Weekday == e.Weekday
}

// CronExpr returns the entry as a 5-field cron expression.
// Cron counts weekdays from Sunday, so the Monday-first weekday is shifted.
func (e Entry) CronExpr() string {
	return fmt.Sprintf("%d %d * * %d", e.Minute, e.Hour, (e.Weekday+1)%7)
}

// MissedWindow bounds how long after an occurrence Nearest still aims for it.
const MissedWindow = 24 * time.Hour

// Next returns the first occurrence at or after from, truncated to the minute.
// A class time skipped by a daylight saving change falls due at the first
// valid minute after the gap.
func (e Entry) Next(from time.Time) (time.Time, error) {
	from = from.Truncate(time.Minute)
	next, err := gronx.NextTickAfter(e.CronExpr(), from, true)
	if err != nil {
		return time.Time{}, err
	}
	// gronx never matches a wall time lost to a gap, so the week before its
	// match may hold a shifted occurrence.
	y, m, d := next.AddDate(0, 0, -7).Date()
	if t, skipped := e.occurrenceOn(y, m, d, from.Location()); skipped && !t.Before(from) {
		return t, nil
	}
	return next, nil
}

// Prev returns the last occurrence at or before from, truncated to the minute.
// Skipped class times are shifted as in Next.
func (e Entry) Prev(from time.Time) (time.Time, error) {
	from = from.Truncate(time.Minute)
	prev, err := gronx.PrevTickBefore(e.CronExpr(), from, true)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := prev.AddDate(0, 0, 7).Date()
	if t, skipped := e.occurrenceOn(y, m, d, from.Location()); skipped && !t.After(from) {
		return t, nil
	}
	return prev, nil
}

// occurrenceOn returns the entry's time on the given day in loc and whether
// that wall time does not exist there. A missing time resolves to the moment
// the clocks changed.
func (e Entry) occurrenceOn(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	t := time.Date(year, month, day, e.Hour, e.Minute, 0, 0, loc)
	if t.Hour() == e.Hour && t.Minute() == e.Minute {
		return t, false
	}
	// time.Date resolves a missing wall time with the offset in force before
	// the gap, which lands past the change; walk back to it.
	want := e.Hour*60 + e.Minute
	for range 24 * 60 {
		prev := t.Add(-time.Minute)
		if prev.Day() != t.Day() || prev.Hour()*60+prev.Minute() < want {
			break
		}
		t = prev
	}
	return t, true
}

// Nearest returns the occurrence a watcher started at from should aim for:
// the previous one if it began less than MissedWindow ago, otherwise the next
// one at or after from's minute. A class later in the week is never traded
// for last week's.
func (e Entry) Nearest(from time.Time) (time.Time, error) {
	next, err := e.Next(from)
	if err != nil {
		return time.Time{}, fmt.Errorf("next occurrence of %q: %w", e.CronExpr(), err)
	}
	if next.Equal(from.Truncate(time.Minute)) {
		return next, nil
	}
	prev, err := e.Prev(from)
	if err != nil {
		return time.Time{}, fmt.Errorf("previous occurrence of %q: %w", e.CronExpr(), err)
	}
	if from.Sub(prev) < MissedWindow {
		return prev, nil
	}
	return next, nil
}

// Snapshot is the (hour, minute, weekday) view of the clock taken once per tick.
type Snapshot struct {
	Hour    int
	Minute  int
	Weekday int
}

// SnapshotOf converts a time into a Snapshot in t's location.
func SnapshotOf(t time.Time) Snapshot {
	return Snapshot{
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Weekday: WeekdayOf(t.Weekday()),
	}
}

// WeekdayOf maps Go's Sunday-first weekday onto the Monday-first numbering.
func WeekdayOf(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ParseWeekday parses a weekday number (0-6, Monday first) or an English
// name or prefix of at least three letters ("mon", "Tuesday").
func ParseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if n < Monday || n > Sunday {
			return 0, ErrInvalidWeekday
		}
		return n, nil
	}
	if len(s) >= 3 {
		for day, name := range WeekdayNames {
			if strings.HasPrefix(strings.ToLower(name), s) {
				return day, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM", s)
	}
	if hour, err = strconv.Atoi(h); err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	if minute, err = strconv.Atoi(m); err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, ErrInvalidHour
	}
	if minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidMinute
	}
	return hour, minute, nil
}
