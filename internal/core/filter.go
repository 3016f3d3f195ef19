// Package core provides filtering, sorting, and lookup logic for timetable entries.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/classbell/internal/model"
)

// FilterOp represents a comparison operator.
type FilterOp string

const (
	FilterOpEqual     FilterOp = "="  // Exact match
	FilterOpNotEqual  FilterOp = "!=" // Not equal
	FilterOpContains  FilterOp = "~"  // Contains substring
	FilterOpRegex     FilterOp = "~=" // Regex match
	FilterOpGreater   FilterOp = ">"  // Greater than
	FilterOpLess      FilterOp = "<"  // Less than
	FilterOpGreaterEq FilterOp = ">=" // Greater than or equal
	FilterOpLessEq    FilterOp = "<=" // Less than or equal
)

// FilterCondition represents a single filter condition.
type FilterCondition struct {
	Field    string   // Field name: name, teacher, weekday, hour, minute, time
	Operator FilterOp // Comparison operator
	Value    string   // Value to compare against

	// Cached parsed values
	regex  *regexp.Regexp // Compiled regex for ~= operator
	intVal int            // Parsed weekday, hour, minute or minute-of-day
}

// FilterExpr represents a compound filter expression.
// Multiple conditions are ANDed together.
type FilterExpr struct {
	Conditions []FilterCondition
}

// FilterOptions specifies simple criteria for filtering entries.
type FilterOptions struct {
	Teacher string // Case-insensitive exact match on teacher
	Weekday *int   // Filter by weekday (nil=any)
	Search  string // Substring of name or teacher
	Limit   int    // Maximum results (0=unlimited)
}

// Filter filters entries based on the provided options.
func Filter(entries []model.Entry, opts FilterOptions) []model.Entry {
	result := make([]model.Entry, 0, len(entries))

	for _, e := range entries {
		if opts.Teacher != "" && !strings.EqualFold(e.Teacher, opts.Teacher) {
			continue
		}

		if opts.Weekday != nil && e.Weekday != *opts.Weekday {
			continue
		}

		if opts.Search != "" && !containsFold(e.Name, opts.Search) && !containsFold(e.Teacher, opts.Search) {
			continue
		}

		result = append(result, e)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	// 0 means no filter (all time)
	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseFilter parses a filter expression string into a FilterExpr.
// Format: "field=value,field2~value2,field3>value3"
// Multiple conditions are comma-separated and ANDed together.
//
// Supported fields: name, teacher, weekday, hour, minute, time
// Supported operators: = (equal), != (not equal), ~ (contains), ~= (regex), >, <, >=, <=
//
// Examples:
//   - "teacher=Ms Smith" - exact teacher match
//   - "name~maths" - name contains "maths"
//   - "day=mon" - Monday classes
//   - "time>=13:00" - afternoon classes
//   - "day<=fri,hour<12" - weekday mornings
func ParseFilter(expr string) (*FilterExpr, error) {
	if expr == "" {
		return &FilterExpr{}, nil
	}

	filter := &FilterExpr{
		Conditions: make([]FilterCondition, 0),
	}

	for part := range strings.SplitSeq(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		cond, err := parseCondition(part)
		if err != nil {
			return nil, err
		}
		filter.Conditions = append(filter.Conditions, cond)
	}

	return filter, nil
}

// parseCondition parses a single condition like "teacher=Ms Smith" or "hour>=9".
func parseCondition(s string) (FilterCondition, error) {
	// Longest operators first
	operators := []FilterOp{
		FilterOpNotEqual,
		FilterOpGreaterEq,
		FilterOpLessEq,
		FilterOpRegex,
		FilterOpEqual,
		FilterOpContains,
		FilterOpGreater,
		FilterOpLess,
	}

	for _, op := range operators {
		idx := strings.Index(s, string(op))
		if idx > 0 {
			cond := FilterCondition{
				Field:    strings.ToLower(strings.TrimSpace(s[:idx])),
				Operator: op,
				Value:    strings.TrimSpace(s[idx+len(op):]),
			}

			if err := cond.init(); err != nil {
				return FilterCondition{}, err
			}

			return cond, nil
		}
	}

	return FilterCondition{}, fmt.Errorf("invalid filter condition: %s (missing operator)", s)
}

// init pre-parses and validates the condition value.
func (c *FilterCondition) init() error {
	var err error

	switch c.Field {
	case "name", "class", "subject":
		c.Field = "name"
	case "teacher", "tutor":
		c.Field = "teacher"
	case "weekday", "day":
		c.Field = "weekday"
		c.intVal, err = model.ParseWeekday(c.Value)
	case "hour", "h":
		c.Field = "hour"
		c.intVal, err = parseRange(c.Value, 0, 23)
	case "minute", "min", "m":
		c.Field = "minute"
		c.intVal, err = parseRange(c.Value, 0, 59)
	case "time", "at":
		c.Field = "time"
		var hour, minute int
		hour, minute, err = model.ParseClock(c.Value)
		c.intVal = hour*60 + minute
	default:
		return fmt.Errorf("unknown filter field: %s", c.Field)
	}
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", c.Field, err)
	}

	if c.Operator == FilterOpRegex {
		re, err := regexp.Compile(c.Value)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		c.regex = re
	}

	return nil
}

func parseRange(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range %d-%d", n, lo, hi)
	}
	return n, nil
}

// Match tests if an entry matches the filter expression.
// All conditions must match (AND logic).
func (f *FilterExpr) Match(e model.Entry) bool {
	for _, cond := range f.Conditions {
		if !cond.Match(e) {
			return false
		}
	}
	return true
}

// Match tests if an entry matches this single condition.
func (c *FilterCondition) Match(e model.Entry) bool {
	switch c.Field {
	case "name":
		return c.matchString(e.Name)
	case "teacher":
		return c.matchString(e.Teacher)
	case "weekday":
		return c.matchInt(e.Weekday)
	case "hour":
		return c.matchInt(e.Hour)
	case "minute":
		return c.matchInt(e.Minute)
	case "time":
		return c.matchInt(e.Hour*60 + e.Minute)
	default:
		return false
	}
}

// matchString matches a string field.
func (c *FilterCondition) matchString(fieldValue string) bool {
	switch c.Operator {
	case FilterOpEqual:
		return strings.EqualFold(fieldValue, c.Value)
	case FilterOpNotEqual:
		return !strings.EqualFold(fieldValue, c.Value)
	case FilterOpContains:
		return containsFold(fieldValue, c.Value)
	case FilterOpRegex:
		return c.regex != nil && c.regex.MatchString(fieldValue)
	default:
		return false
	}
}

// matchInt matches an integer field with numeric comparison.
func (c *FilterCondition) matchInt(fieldValue int) bool {
	switch c.Operator {
	case FilterOpEqual:
		return fieldValue == c.intVal
	case FilterOpNotEqual:
		return fieldValue != c.intVal
	case FilterOpGreater:
		return fieldValue > c.intVal
	case FilterOpLess:
		return fieldValue < c.intVal
	case FilterOpGreaterEq:
		return fieldValue >= c.intVal
	case FilterOpLessEq:
		return fieldValue <= c.intVal
	default:
		return false
	}
}

// FilterWithExpr filters entries using a filter expression.
func FilterWithExpr(entries []model.Entry, expr *FilterExpr) []model.Entry {
	if expr == nil || len(expr.Conditions) == 0 {
		return entries
	}

	result := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if expr.Match(e) {
			result = append(result, e)
		}
	}
	return result
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
