package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/classbell/internal/model"
)

// PlainFormatter formats entries and outcomes as aligned plain text.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs(opts)).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// FormatEntries writes one line per entry.
func (f *PlainFormatter) FormatEntries(w io.Writer, entries []model.Entry) error {
	now := f.opts.now()

	for i, e := range entries {
		if f.template != nil {
			if err := f.template.Execute(w, newTemplateData(i+1, e, now)); err != nil {
				return err
			}
			continue
		}

		var sb strings.Builder

		if f.opts.ShowIndex {
			fmt.Fprintf(&sb, "[%d] ", i+1)
		}

		fmt.Fprintf(&sb, "%-9s %s  %s", e.WeekdayName(), e.Clock(), e.Name)
		if e.Teacher != "" {
			fmt.Fprintf(&sb, " (%s)", e.Teacher)
		}

		if f.opts.ShowNext {
			if next, err := e.Next(now); err == nil {
				fmt.Fprintf(&sb, "  next %s", relativeTime(now, next))
			}
		}

		sb.WriteString("\n")
		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// FormatOutcomes writes one line per outcome, with the error indented below.
func (f *PlainFormatter) FormatOutcomes(w io.Writer, outcomes []model.Outcome) error {
	now := f.opts.now()

	for i, o := range outcomes {
		var sb strings.Builder

		if f.opts.ShowIndex {
			fmt.Fprintf(&sb, "[%d] ", i+1)
		}

		fmt.Fprintf(&sb, "%-9s %s (%s)\n", o.State, o.Entry, relativeTime(now, o.FinishedTime()))

		if o.Error != "" {
			sb.WriteString("    " + truncate(oneLine(o.Error), f.opts.MaxLen) + "\n")
		}

		if _, err := io.WriteString(w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

// FormatField outputs a specific field from an entry.
func FormatField(e model.Entry, field string) string {
	switch strings.ToLower(field) {
	case "name", "class":
		return e.Name
	case "teacher":
		return e.Teacher
	case "time", "clock":
		return e.Clock()
	case "weekday", "day":
		return e.WeekdayName()
	case "cron":
		return e.CronExpr()
	default:
		return e.String()
	}
}
