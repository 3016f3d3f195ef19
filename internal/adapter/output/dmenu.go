package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/classbell/internal/model"
)

// DmenuFormatter formats entries and outcomes one per line for dmenu/rofi/fuzzel.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}

	if opts.Template != "" {
		tmpl, err := template.New("dmenu").Funcs(templateFuncs(opts)).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// FormatEntries writes entries in dmenu format (one per line).
func (f *DmenuFormatter) FormatEntries(w io.Writer, entries []model.Entry) error {
	now := f.opts.now()
	for i, e := range entries {
		if _, err := fmt.Fprintln(w, f.entryLine(i+1, e, now)); err != nil {
			return err
		}
	}
	return nil
}

// FormatOutcomes writes outcomes in dmenu format (one per line).
func (f *DmenuFormatter) FormatOutcomes(w io.Writer, outcomes []model.Outcome) error {
	now := f.opts.now()
	for i, o := range outcomes {
		var parts []string
		if f.opts.ShowIndex {
			parts = append(parts, strconv.Itoa(i+1))
		}
		parts = append(parts, relativeTime(now, o.FinishedTime()), string(o.State), o.Entry.String())
		if o.Error != "" {
			parts = append(parts, truncate(oneLine(o.Error), f.opts.MaxLen))
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, f.separator())); err != nil {
			return err
		}
	}
	return nil
}

// entryLine formats a single entry line.
func (f *DmenuFormatter) entryLine(index int, e model.Entry, now time.Time) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(index, e, now)); err == nil {
			return buf.String()
		}
	}

	// Default format: index | weekday time | name (teacher) | next
	var parts []string

	if f.opts.ShowIndex {
		parts = append(parts, strconv.Itoa(index))
	}

	parts = append(parts, e.WeekdayName()+" "+e.Clock())

	content := e.Name
	if e.Teacher != "" {
		content += " (" + e.Teacher + ")"
	}
	parts = append(parts, content)

	if f.opts.ShowNext {
		if next, err := e.Next(now); err == nil {
			parts = append(parts, relativeTime(now, next))
		}
	}

	return strings.Join(parts, f.separator())
}

func (f *DmenuFormatter) separator() string {
	if f.opts.Separator == "" {
		return " | "
	}
	return f.opts.Separator
}

// templateData provides data for custom entry templates.
type templateData struct {
	Index int
	Entry model.Entry
	Next  time.Time
	Now   time.Time
}

func newTemplateData(index int, e model.Entry, now time.Time) templateData {
	next, _ := e.Next(now)
	return templateData{Index: index, Entry: e, Next: next, Now: now}
}

// templateFuncs returns template helper functions.
func templateFuncs(opts FormatterOptions) template.FuncMap {
	return template.FuncMap{
		"truncate": truncate,
		"reltime": func(t time.Time) string {
			return relativeTime(opts.now(), t)
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
	}
}

// relativeTime returns a human-readable time relative to now.
func relativeTime(now, t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if d := t.Sub(now); d > -time.Minute && d < time.Minute {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// oneLine collapses newlines and repeated spaces for single-line display.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}
