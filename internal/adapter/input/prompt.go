package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jmylchreest/classbell/internal/model"
)

// Prompter collects entries by asking one question per line.
// An empty class name finishes collection, as does end of input.
type Prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewPrompter creates a Prompter reading answers from r and writing prompts to w.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{
		scanner: bufio.NewScanner(r),
		out:     w,
	}
}

// Name returns the adapter identifier.
func (p *Prompter) Name() string {
	return "prompt"
}

// errDone reports that the input ended.
var errDone = errors.New("input finished")

// Collect prompts for classes until the user enters an empty name.
// Invalid times or weekdays are reported and asked again. A class left
// unfinished when the input ends is dropped.
func (p *Prompter) Collect(ctx context.Context) (model.Schedule, error) {
	var sched model.Schedule

	fmt.Fprintln(p.out, "Enter the class timetable. Leave the class name empty to finish.")

	for {
		if err := ctx.Err(); err != nil {
			return model.Schedule{}, err
		}

		e, err := p.entry(ctx, sched.Len()+1)
		if errors.Is(err, errDone) {
			break
		}
		if err != nil {
			return model.Schedule{}, err
		}
		if err := sched.Add(e); err != nil {
			return model.Schedule{}, err
		}
	}

	return sched, nil
}

// entry asks for one class. errDone means no further classes.
func (p *Prompter) entry(ctx context.Context, n int) (model.Entry, error) {
	var e model.Entry

	name, err := p.ask(fmt.Sprintf("Class %d name: ", n))
	if err != nil {
		return e, err
	}
	if name == "" {
		return e, errDone
	}
	e.Name = name

	if e.Teacher, err = p.ask("  Teacher: "); err != nil {
		return e, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return e, err
		}
		answer, err := p.ask("  Start time (HH:MM): ")
		if err != nil {
			return e, err
		}
		if e.Hour, e.Minute, err = model.ParseClock(answer); err == nil {
			break
		}
		fmt.Fprintf(p.out, "  %v\n", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return e, err
		}
		answer, err := p.ask("  Weekday (mon-sun or 0-6): ")
		if err != nil {
			return e, err
		}
		if e.Weekday, err = model.ParseWeekday(answer); err == nil {
			break
		}
		fmt.Fprintf(p.out, "  %v\n", err)
	}

	return e, nil
}

// ask writes a prompt and reads one trimmed line.
func (p *Prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)

	if !p.scanner.Scan() {
		fmt.Fprintln(p.out)
		if err := p.scanner.Err(); err != nil {
			return "", &AdapterError{Source: "prompt", Message: "failed to read answer", Err: err}
		}
		return "", errDone
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}
