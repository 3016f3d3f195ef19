package model

import (
	"fmt"
	"sort"
)

// Schedule is the timetable: the collection of entries loaded once at startup.
type Schedule struct {
	Classes []Entry `json:"classes" yaml:"classes"`
}

// Len returns the number of entries.
func (s Schedule) Len() int {
	return len(s.Classes)
}

// Add appends an entry after validating it.
func (s *Schedule) Add(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.Classes = append(s.Classes, e)
	return nil
}

// Validate checks every entry and reports the first invalid one.
func (s Schedule) Validate() error {
	for i, e := range s.Classes {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("class %d (%q): %w", i+1, e.Name, err)
		}
	}
	return nil
}

// Clone returns a copy whose entry slice is not shared with s.
func (s Schedule) Clone() Schedule {
	classes := make([]Entry, len(s.Classes))
	copy(classes, s.Classes)
	return Schedule{Classes: classes}
}

// Sorted returns a copy ordered by weekday, then time of day, then name.
func (s Schedule) Sorted() Schedule {
	c := s.Clone()
	sort.SliceStable(c.Classes, func(i, j int) bool {
		a, b := c.Classes[i], c.Classes[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		if a.Minute != b.Minute {
			return a.Minute < b.Minute
		}
		return a.Name < b.Name
	})
	return c
}
