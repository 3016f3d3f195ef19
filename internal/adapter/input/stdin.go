package input

import (
	"context"
	"io"
	"os"

	"github.com/jmylchreest/classbell/internal/model"
	"github.com/jmylchreest/classbell/internal/schedule"
)

// maxStdinSize bounds how much of stdin is read.
const maxStdinSize = 10 * 1024 * 1024

// StdinAdapter reads a timetable document (JSON or YAML) from standard input.
type StdinAdapter struct {
	reader io.Reader
}

// NewStdinAdapter creates a new StdinAdapter reading from os.Stdin.
func NewStdinAdapter() *StdinAdapter {
	return &StdinAdapter{reader: os.Stdin}
}

// NewStdinAdapterWithReader creates a new StdinAdapter with a custom reader.
func NewStdinAdapterWithReader(r io.Reader) *StdinAdapter {
	return &StdinAdapter{reader: r}
}

// Name returns the adapter identifier.
func (a *StdinAdapter) Name() string {
	return "stdin"
}

// Collect reads the whole input and decodes it in either the current
// {"classes": [...]} layout or the legacy {"class_list": [...]} layout.
// Empty input yields an empty schedule.
func (a *StdinAdapter) Collect(ctx context.Context) (model.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return model.Schedule{}, err
	}

	data, err := io.ReadAll(io.LimitReader(a.reader, maxStdinSize))
	if err != nil {
		return model.Schedule{}, &AdapterError{
			Source:  "stdin",
			Message: "failed to read input",
			Err:     err,
		}
	}

	sched, err := schedule.Decode(data)
	if err != nil {
		return model.Schedule{}, &AdapterError{
			Source:  "stdin",
			Message: "failed to parse timetable",
			Err:     err,
		}
	}
	return sched, nil
}
