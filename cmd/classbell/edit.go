package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/classbell/internal/adapter/input"
	"github.com/jmylchreest/classbell/internal/config"
	"github.com/jmylchreest/classbell/internal/core"
	"github.com/jmylchreest/classbell/internal/model"
	"github.com/jmylchreest/classbell/internal/tui"
)

var editOpts struct {
	prompt bool
	stdin  bool
	append bool
	remove int
}

// errNoClasses is returned instead of saving an empty timetable.
var errNoClasses = errors.New("timetable has no classes")

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Create or change the timetable",
	Long: `Create or change the class timetable and save it.

By default the current timetable opens in an editable list. With --prompt
classes are asked for one question at a time, and with --stdin a JSON or
YAML timetable is read from standard input.

Examples:
  # Edit the timetable in the terminal UI
  classbell edit

  # Add classes with line prompts
  classbell edit --prompt --append

  # Replace the timetable from a file
  classbell edit --stdin < term2.yaml

  # Remove the third class (as numbered by an unfiltered "classbell list")
  classbell edit --remove 3`,
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().BoolVar(&editOpts.prompt, "prompt", false,
		"Ask for classes line by line instead of the form")
	editCmd.Flags().BoolVar(&editOpts.stdin, "stdin", false,
		"Read a JSON or YAML timetable from standard input")
	editCmd.Flags().BoolVar(&editOpts.append, "append", false,
		"Add to the existing timetable instead of starting empty (--prompt, --stdin)")
	editCmd.Flags().IntVar(&editOpts.remove, "remove", 0,
		"Remove the class at this 1-based index and save")

	editCmd.MarkFlagsMutuallyExclusive("prompt", "stdin", "remove")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st := scheduleStore()

	current, err := loadExisting()
	if err != nil {
		return err
	}

	var sched model.Schedule
	switch {
	case editOpts.remove > 0:
		entries := current.Clone().Classes
		core.Sort(entries, core.DefaultSortOptions())
		remaining, ok := core.RemoveByIndex(entries, editOpts.remove)
		if !ok {
			return fmt.Errorf("no class at index %d (timetable has %d)", editOpts.remove, len(entries))
		}
		sched = model.Schedule{Classes: remaining}

	case editOpts.stdin:
		sched, err = collectFrom(ctx, "stdin", current)

	case editOpts.prompt:
		sched, err = collectFrom(ctx, "prompt", current)

	default:
		sched, err = collectSchedule(ctx, current, config.InputForm)
		if errors.Is(err, tui.ErrAborted) {
			fmt.Fprintln(os.Stderr, "Timetable not changed")
			return nil
		}
	}
	if err != nil {
		return err
	}

	if sched.Len() == 0 && editOpts.remove == 0 {
		return errNoClasses
	}

	if err := st.Save(sched); err != nil {
		return fmt.Errorf("failed to save timetable: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Saved %d classes to %s\n", sched.Len(), st.Path())
	return nil
}

// loadExisting loads the current timetable, or an empty one if none exists.
func loadExisting() (model.Schedule, error) {
	st := scheduleStore()
	exists, err := st.Exists()
	if err != nil {
		return model.Schedule{}, fmt.Errorf("failed to check timetable: %w", err)
	}
	if !exists {
		return model.Schedule{}, nil
	}
	return st.Load()
}

// collectFrom runs a non-form collector, appending to current with --append.
func collectFrom(ctx context.Context, source string, current model.Schedule) (model.Schedule, error) {
	collector, err := input.NewCollector(source, os.Stdin, os.Stderr)
	if err != nil {
		return model.Schedule{}, err
	}

	logger.Debug("collecting timetable", "source", collector.Name())

	collected, err := collector.Collect(ctx)
	if err != nil {
		return model.Schedule{}, fmt.Errorf("failed to collect timetable: %w", err)
	}
	if !editOpts.append {
		return collected, nil
	}

	sched := current.Clone()
	for _, e := range collected.Classes {
		if err := sched.Add(e); err != nil {
			return model.Schedule{}, err
		}
	}
	return sched, nil
}
