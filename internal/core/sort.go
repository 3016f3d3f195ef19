package core

import (
	"sort"
	"strings"
	"time"

	"github.com/jmylchreest/classbell/internal/model"
)

// SortField represents a field to sort by.
type SortField string

const (
	SortByTime    SortField = "time"    // Position in the week, Monday first
	SortByNext    SortField = "next"    // Next occurrence after SortOptions.From
	SortByName    SortField = "name"
	SortByTeacher SortField = "teacher"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SortOptions specifies sorting criteria.
type SortOptions struct {
	Field SortField // Field to sort by
	Order SortOrder // Sort order (asc/desc)
	From  time.Time // Reference time for SortByNext (zero = now)
}

// DefaultSortOptions returns default sort options (week order).
func DefaultSortOptions() SortOptions {
	return SortOptions{
		Field: SortByTime,
		Order: SortAsc,
	}
}

// weekMinute is the entry's offset from Monday 00:00 in minutes.
func weekMinute(e model.Entry) int {
	return (e.Weekday*24+e.Hour)*60 + e.Minute
}

// Sort sorts entries in place based on the provided options.
func Sort(entries []model.Entry, opts SortOptions) {
	if len(entries) == 0 {
		return
	}

	var next map[int]time.Time
	if opts.Field == SortByNext {
		from := opts.From
		if from.IsZero() {
			from = time.Now()
		}
		next = make(map[int]time.Time, len(entries))
		for _, e := range entries {
			// Occurrences are keyed by week position, so swaps don't invalidate them
			if t, err := e.Next(from); err == nil {
				next[weekMinute(e)] = t
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		var less bool

		switch opts.Field {
		case SortByName:
			less = strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortByTeacher:
			less = strings.ToLower(a.Teacher) < strings.ToLower(b.Teacher)
		case SortByNext:
			less = next[weekMinute(a)].Before(next[weekMinute(b)])
		default:
			less = weekMinute(a) < weekMinute(b)
		}

		if opts.Order == SortDesc {
			return !less
		}
		return less
	})
}

// ParseSortField parses a sort field string.
func ParseSortField(s string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "time", "week", "t":
		return SortByTime, nil
	case "next", "upcoming", "u":
		return SortByNext, nil
	case "name", "class", "n":
		return SortByName, nil
	case "teacher", "tutor":
		return SortByTeacher, nil
	default:
		return SortByTime, nil
	}
}

// ParseSortOrder parses a sort order string.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending", "a":
		return SortAsc, nil
	case "desc", "descending", "d":
		return SortDesc, nil
	default:
		return SortAsc, nil
	}
}
