package output

import (
	"encoding/json"
	"io"

	"github.com/jmylchreest/classbell/internal/model"
)

// JSONFormatter formats entries and outcomes as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// FormatEntries writes entries as a JSON array.
func (f *JSONFormatter) FormatEntries(w io.Writer, entries []model.Entry) error {
	return encodeJSON(w, entryViews(entries, f.opts))
}

// FormatOutcomes writes outcomes as a JSON array.
func (f *JSONFormatter) FormatOutcomes(w io.Writer, outcomes []model.Outcome) error {
	if outcomes == nil {
		outcomes = []model.Outcome{}
	}
	return encodeJSON(w, outcomes)
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
