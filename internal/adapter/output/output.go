// Package output provides output formatters for timetable entries and outcomes.
package output

import (
	"io"
	"time"

	"github.com/jmylchreest/classbell/internal/model"
)

// Formatter formats entries and outcomes for output.
type Formatter interface {
	// FormatEntries writes formatted timetable entries to the writer.
	FormatEntries(w io.Writer, entries []model.Entry) error
	// FormatOutcomes writes formatted watcher outcomes to the writer.
	FormatOutcomes(w io.Writer, outcomes []model.Outcome) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatDmenu FormatType = "dmenu"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// FormatTypes lists the accepted --format values.
var FormatTypes = []FormatType{FormatPlain, FormatDmenu, FormatJSON, FormatYAML}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string           // Custom template for plain/dmenu entry lines
	ShowIndex bool             // Show 1-based index prefix
	ShowNext  bool             // Show the next occurrence of each entry
	MaxLen    int              // Maximum error text length (0 = unlimited)
	Separator string           // Field separator for dmenu format
	Now       func() time.Time // Reference time for next/relative times
}

// DefaultFormatterOptions returns sensible defaults.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: true,
		ShowNext:  true,
		MaxLen:    80,
		Separator: " | ",
		Now:       time.Now,
	}
}

func (o FormatterOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// entryView is the serialized form of an entry with its derived fields.
type entryView struct {
	Index       int    `json:"index" yaml:"index"`
	Name        string `json:"name" yaml:"name"`
	Teacher     string `json:"teacher" yaml:"teacher"`
	Hour        int    `json:"hour" yaml:"hour"`
	Minute      int    `json:"minute" yaml:"minute"`
	Weekday     int    `json:"weekday" yaml:"weekday"`
	WeekdayName string `json:"weekday_name" yaml:"weekday_name"`
	Cron        string `json:"cron" yaml:"cron"`
	Next        string `json:"next,omitempty" yaml:"next,omitempty"` // RFC 3339
}

func entryViews(entries []model.Entry, opts FormatterOptions) []entryView {
	now := opts.now()
	views := make([]entryView, 0, len(entries))
	for i, e := range entries {
		v := entryView{
			Index:       i + 1,
			Name:        e.Name,
			Teacher:     e.Teacher,
			Hour:        e.Hour,
			Minute:      e.Minute,
			Weekday:     e.Weekday,
			WeekdayName: e.WeekdayName(),
			Cron:        e.CronExpr(),
		}
		if opts.ShowNext {
			if next, err := e.Next(now); err == nil {
				v.Next = next.Format(time.RFC3339)
			}
		}
		views = append(views, v)
	}
	return views
}
