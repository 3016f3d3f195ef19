package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/classbell/internal/adapter/output"
	"github.com/jmylchreest/classbell/internal/core"
	"github.com/jmylchreest/classbell/internal/model"
	"github.com/jmylchreest/classbell/internal/store"
)

var historyOpts struct {
	since  string
	state  string
	name   string
	limit  int
	order  string
	format string

	// Prune options
	prune    string
	keep     int
	dryRun   bool
	clearAll bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded bell outcomes",
	Long: `Show what happened to each watcher in previous runs: whether the bell
rang, the class time passed, the sound failed or the run was cancelled.

Examples:
  # Last ten outcomes
  classbell history -n 10

  # Failures this week as JSON
  classbell history --state failed --since 1w --format json

  # Drop outcomes older than 30 days, keeping at least 50
  classbell history --prune 30d --keep 50`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Only outcomes from the last duration (e.g., 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.state, "state", "",
		"Only outcomes in this state (fired, abandoned, failed, cancelled)")
	historyCmd.Flags().StringVar(&historyOpts.name, "class", "",
		"Only outcomes for this class name (exact match)")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of outcomes to show (0=unlimited)")
	historyCmd.Flags().StringVar(&historyOpts.order, "order", "desc",
		"Order by finish time (asc, desc)")
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "plain",
		"Output format (plain, dmenu, json, yaml)")

	historyCmd.Flags().StringVar(&historyOpts.prune, "prune", "",
		"Remove outcomes older than this duration instead of listing")
	historyCmd.Flags().IntVar(&historyOpts.keep, "keep", 0,
		"With --prune, always keep the N most recent outcomes")
	historyCmd.Flags().BoolVar(&historyOpts.dryRun, "dry-run", false,
		"With --prune, show how many would be removed without removing")
	historyCmd.Flags().BoolVar(&historyOpts.clearAll, "clear", false,
		"Remove all recorded outcomes")

	historyCmd.MarkFlagsMutuallyExclusive("prune", "clear")
}

func runHistory(cmd *cobra.Command, args []string) error {
	historyStore, err := openHistory()
	if err != nil {
		return err
	}
	defer func() {
		if err := historyStore.Close(); err != nil {
			logger.Warn("failed to close history", "error", err)
		}
	}()

	switch {
	case historyOpts.clearAll:
		n := historyStore.Count()
		if err := historyStore.Clear(); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		fmt.Printf("Removed %d outcomes\n", n)
		return nil

	case historyOpts.prune != "":
		return pruneHistory(historyStore)
	}

	opts := store.FilterOptions{
		State: model.State(historyOpts.state),
		Name:  historyOpts.name,
		Limit: historyOpts.limit,
		Order: historyOpts.order,
	}
	if historyOpts.since != "" {
		d, err := core.ParseDuration(historyOpts.since)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		opts.Since = d
	}
	if opts.State != "" && !opts.State.Terminal() {
		return fmt.Errorf("invalid --state %q: must be fired, abandoned, failed or cancelled", historyOpts.state)
	}

	outcomes := historyStore.Filter(opts)
	if len(outcomes) == 0 && output.FormatType(historyOpts.format) == output.FormatPlain {
		fmt.Println("No outcomes in history")
		return nil
	}

	formatter := output.NewFormatter(output.FormatType(historyOpts.format), output.DefaultFormatterOptions())
	return formatter.FormatOutcomes(os.Stdout, outcomes)
}

func pruneHistory(historyStore *store.Store) error {
	olderThan, err := core.ParseDuration(historyOpts.prune)
	if err != nil {
		return fmt.Errorf("invalid --prune duration: %w", err)
	}

	if historyOpts.dryRun {
		total := historyStore.Count()
		recent := len(historyStore.Filter(store.FilterOptions{Since: olderThan}))
		removable := max(total-max(recent, historyOpts.keep), 0)
		fmt.Printf("Would remove %d of %d outcomes\n", removable, total)
		return nil
	}

	removed, err := historyStore.Prune(olderThan, historyOpts.keep)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	fmt.Printf("Removed %d outcomes\n", removed)
	return nil
}
