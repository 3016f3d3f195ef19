// Package input provides adapters that collect a class timetable.
package input

import (
	"context"
	"io"
	"os"

	"github.com/jmylchreest/classbell/internal/model"
)

// Collector gathers a timetable from a source.
type Collector interface {
	// Name returns the adapter identifier (e.g., "prompt", "stdin").
	Name() string

	// Collect reads entries from the source until it is exhausted or the
	// user finishes. The returned schedule is validated.
	Collect(ctx context.Context) (model.Schedule, error)
}

// NewCollector creates a Collector for the specified source reading r and,
// for interactive sources, writing prompts to w. Nil r and w default to
// os.Stdin and os.Stderr.
func NewCollector(source string, r io.Reader, w io.Writer) (Collector, error) {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stderr
	}

	switch source {
	case "prompt", "":
		return NewPrompter(r, w), nil
	case "stdin":
		return NewStdinAdapterWithReader(r), nil
	default:
		return nil, &AdapterError{
			Source:  source,
			Message: "unknown input adapter",
		}
	}
}

// AdapterError represents an adapter-related error.
type AdapterError struct {
	Source  string
	Message string
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Source + ": " + e.Message
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
