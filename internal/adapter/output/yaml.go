package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/classbell/internal/model"
)

// YAMLFormatter formats entries and outcomes as YAML.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// FormatEntries writes entries as a YAML sequence.
func (f *YAMLFormatter) FormatEntries(w io.Writer, entries []model.Entry) error {
	return encodeYAML(w, entryViews(entries, f.opts))
}

// FormatOutcomes writes outcomes as a YAML sequence.
func (f *YAMLFormatter) FormatOutcomes(w io.Writer, outcomes []model.Outcome) error {
	if outcomes == nil {
		outcomes = []model.Outcome{}
	}
	return encodeYAML(w, outcomes)
}

func encodeYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}
