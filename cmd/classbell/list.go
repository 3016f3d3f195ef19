package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/classbell/internal/adapter/output"
	"github.com/jmylchreest/classbell/internal/core"
	"github.com/jmylchreest/classbell/internal/model"
)

var listOpts struct {
	// Filter options
	teacher string
	day     string
	search  string
	filter  string
	limit   int

	// Sort options
	sortBy    string
	sortOrder string

	// Output options
	format   string
	field    string
	template string
}

var listCmd = &cobra.Command{
	Use:   "list [index]",
	Short: "Show the timetable with each class's next bell",
	Long: `Show the classes in the timetable and when each one next rings.

With an index (1-based, in the listed order) only that class is shown.

Examples:
  # Week view
  classbell list

  # Ms Smith's Monday classes
  classbell list --teacher "Ms Smith" --day mon

  # Afternoon classes, soonest first
  classbell list --filter "time>=12:00" --sort next

  # Teacher of the second class
  classbell list 2 --field teacher

  # Pick a class with a launcher
  classbell list --format dmenu | fuzzel -d`,
	Args:              cobra.MaximumNArgs(1),
	RunE:              runList,
	ValidArgsFunction: cobra.NoFileCompletions,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listOpts.teacher, "teacher", "",
		"Only classes taught by this teacher (case-insensitive)")
	listCmd.Flags().StringVar(&listOpts.day, "day", "",
		"Only classes on this weekday (mon-sun or 0-6)")
	listCmd.Flags().StringVarP(&listOpts.search, "search", "s", "",
		"Search class and teacher names")
	listCmd.Flags().StringVar(&listOpts.filter, "filter", "",
		"Filter expression, e.g. \"teacher=Ms Smith,hour<12\"")
	listCmd.Flags().IntVarP(&listOpts.limit, "limit", "n", 0,
		"Maximum number of classes to show (0=unlimited)")

	listCmd.Flags().StringVar(&listOpts.sortBy, "sort", "time",
		"Sort by field (time, next, name, teacher)")
	listCmd.Flags().StringVar(&listOpts.sortOrder, "order", "asc",
		"Sort order (asc, desc)")

	listCmd.Flags().StringVarP(&listOpts.format, "format", "f", "plain",
		"Output format (plain, dmenu, json, yaml)")
	listCmd.Flags().StringVar(&listOpts.field, "field", "",
		"Output a single field of the selected class (name, teacher, time, weekday, cron)")
	listCmd.Flags().StringVar(&listOpts.template, "template", "",
		"Custom Go template for plain and dmenu lines")

	_ = listCmd.RegisterFlagCompletionFunc("teacher", completeTeachers)
	_ = listCmd.RegisterFlagCompletionFunc("day", completeWeekdays)
	_ = listCmd.RegisterFlagCompletionFunc("format", completeFormats)
}

func runList(cmd *cobra.Command, args []string) error {
	sched, err := scheduleStore().Load()
	if err != nil {
		return err
	}

	entries, err := selectEntries(sched.Classes)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[0], err)
		}
		e := core.LookupByIndex(entries, idx)
		if e == nil {
			return fmt.Errorf("no class at index %d", idx)
		}
		if listOpts.field != "" {
			fmt.Println(output.FormatField(*e, listOpts.field))
			return nil
		}
		entries = []model.Entry{*e}
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = listOpts.template
	formatter := output.NewFormatter(output.FormatType(listOpts.format), opts)
	return formatter.FormatEntries(os.Stdout, entries)
}

// selectEntries applies the filter and sort flags to a copy of entries.
func selectEntries(all []model.Entry) ([]model.Entry, error) {
	opts := core.FilterOptions{
		Teacher: listOpts.teacher,
		Search:  listOpts.search,
	}
	if listOpts.day != "" {
		day, err := model.ParseWeekday(listOpts.day)
		if err != nil {
			return nil, fmt.Errorf("invalid --day: %w", err)
		}
		opts.Weekday = &day
	}

	entries := core.Filter(all, opts)

	if listOpts.filter != "" {
		expr, err := core.ParseFilter(listOpts.filter)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter: %w", err)
		}
		entries = core.FilterWithExpr(entries, expr)
	}

	field, _ := core.ParseSortField(listOpts.sortBy)
	order, _ := core.ParseSortOrder(listOpts.sortOrder)
	core.Sort(entries, core.SortOptions{Field: field, Order: order})

	// Limit after sorting so --sort next --limit 1 is the next class
	if listOpts.limit > 0 && len(entries) > listOpts.limit {
		entries = entries[:listOpts.limit]
	}

	return entries, nil
}

func completeTeachers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	sched, err := scheduleStore().Load()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var matches []string
	for _, t := range core.UniqueTeachers(sched.Classes) {
		if strings.HasPrefix(strings.ToLower(t), strings.ToLower(toComplete)) {
			matches = append(matches, t)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

func completeWeekdays(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	days := make([]string, 0, len(model.WeekdayNames))
	for d := model.Monday; d <= model.Sunday; d++ {
		days = append(days, strings.ToLower(model.WeekdayNames[d][:3]))
	}
	return days, cobra.ShellCompDirectiveNoFileComp
}

func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	formats := make([]string, len(output.FormatTypes))
	for i, f := range output.FormatTypes {
		formats[i] = string(f)
	}
	return formats, cobra.ShellCompDirectiveNoFileComp
}
