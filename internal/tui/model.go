// Package tui provides the BubbleTea-based timetable editor.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/classbell/internal/core"
	"github.com/jmylchreest/classbell/internal/model"
)

// ErrAborted is returned when the editor is closed without saving.
var ErrAborted = errors.New("timetable editor closed without saving")

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeForm
	ModeSearch
	ModeHelp
)

// Form field positions.
const (
	fieldName = iota
	fieldTeacher
	fieldTime
	fieldWeekday
	fieldCount
)

// Model is the timetable editor model.
type Model struct {
	now func() time.Time

	// Current mode
	mode Mode

	// Components
	list        list.Model
	searchInput textinput.Model
	inputs      []textinput.Model

	// State
	entries     []model.Entry
	editing     int // Index being edited, -1 when adding
	focus       int // Focused form field
	formErr     string
	searchQuery string
	width       int
	height      int
	ready       bool
	saved       bool

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool
}

// entryItem wraps an entry for the list component.
type entryItem struct {
	entry    model.Entry
	index    int // Position in Model.entries
	next     time.Time
	conflict bool // Another entry rings at the same minute
}

func (i entryItem) Title() string {
	return i.entry.Name
}

func (i entryItem) Description() string {
	desc := i.entry.WeekdayName() + " " + i.entry.Clock()
	if i.entry.Teacher != "" {
		desc += " · " + i.entry.Teacher
	}
	if !i.next.IsZero() {
		desc += " · next " + humanize.Time(i.next)
	}
	return desc
}

func (i entryItem) FilterValue() string {
	return i.entry.Name + " " + i.entry.Teacher
}

// entryDelegate renders entries, highlighting ones that share a bell minute.
type entryDelegate struct {
	list.DefaultDelegate
}

func newEntryDelegate() entryDelegate {
	return entryDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item. Conflicting entries are drawn in yellow with a
// marker so that duplicate bells are visible before saving.
func (d entryDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(entryItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	isSelected := index == m.Index()
	itemWidth := m.Width() - d.DefaultDelegate.Styles.NormalTitle.GetHorizontalPadding()

	titleStyle := d.DefaultDelegate.Styles.NormalTitle
	descStyle := d.DefaultDelegate.Styles.NormalDesc
	if isSelected {
		titleStyle = d.DefaultDelegate.Styles.SelectedTitle
		descStyle = d.DefaultDelegate.Styles.SelectedDesc
	}

	title := ei.Title()
	if ei.conflict {
		title = "[!] " + title
		titleStyle = titleStyle.Foreground(lipgloss.Color("3"))
	}

	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}

	desc := ei.Description()
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// Options configures the editor.
type Options struct {
	Title string           // List title
	Now   func() time.Time // Clock for next-occurrence hints

	// Input and Output override the terminal, mainly for tests.
	Input  io.Reader
	Output io.Writer
}

// New creates a new editor model seeded with initial.
func New(initial model.Schedule, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Class Timetable"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := list.New(nil, newEntryDelegate(), 0, 0)
	l.Title = opts.Title
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search or filter (teacher=..., day=mon, time>=13:00)"
	searchInput.CharLimit = 100

	m := Model{
		now:         opts.Now,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		inputs:      newFormInputs(),
		entries:     initial.Clone().Classes,
		editing:     -1,
		keys:        DefaultKeyMap(),
	}
	m.list.SetItems(m.buildListItems())

	return m
}

func newFormInputs() []textinput.Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		t := textinput.New()
		t.CharLimit = 64
		switch i {
		case fieldName:
			t.Prompt = "Class:   "
			t.Placeholder = "Maths"
		case fieldTeacher:
			t.Prompt = "Teacher: "
			t.Placeholder = "Ms Smith (optional)"
		case fieldTime:
			t.Prompt = "Time:    "
			t.Placeholder = "08:30"
			t.CharLimit = 5
		case fieldWeekday:
			t.Prompt = "Weekday: "
			t.Placeholder = "mon-sun or 0-6"
			t.CharLimit = 9
		}
		inputs[i] = t
	}
	return inputs
}

// Schedule returns the entries as a schedule.
func (m Model) Schedule() model.Schedule {
	return model.Schedule{Classes: m.entries}.Clone()
}

// Saved reports whether the user chose to save.
func (m Model) Saved() bool {
	return m.saved
}

// Init initializes the editor.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.list.SetSize(msg.Width, msg.Height-2)
		return m, nil

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)
	}

	var cmd tea.Cmd
	switch m.mode {
	case ModeList:
		m.list, cmd = m.list.Update(msg)
	case ModeForm:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	case ModeSearch:
		m.searchInput, cmd = m.searchInput.Update(msg)
	}
	return m, cmd
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// ctrl+c always aborts; q and ? only outside text entry
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeForm:
		return m.handleFormKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back, m.keys.Help) {
			m.mode = ModeList
		} else if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.mode = ModeHelp
		return m, nil

	case key.Matches(msg, m.keys.Add):
		return m.openForm(-1)

	case key.Matches(msg, m.keys.Edit):
		if item, ok := m.list.SelectedItem().(entryItem); ok {
			return m.openForm(item.index)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.list.SelectedItem().(entryItem); ok {
			if entries, removed := core.RemoveByIndex(m.entries, item.index+1); removed {
				m.entries = entries
				m.list.SetItems(m.buildListItems())
				return m, status("Deleted "+item.entry.Name, false)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Save):
		if len(m.entries) == 0 {
			return m, status("Add at least one class before saving", true)
		}
		m.saved = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		m.mode = ModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.CopyAllJSON):
		data, err := json.MarshalIndent(m.Schedule(), "", "  ")
		if err != nil {
			return m, status("Failed to marshal JSON: "+err.Error(), true)
		}
		return m, copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyAllYAML):
		data, err := yaml.Marshal(m.Schedule())
		if err != nil {
			return m, status("Failed to marshal YAML: "+err.Error(), true)
		}
		return m, copyToClipboard(string(data))
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// openForm switches to the form, editing entries[index] or adding when index is -1.
func (m Model) openForm(index int) (tea.Model, tea.Cmd) {
	m.inputs = newFormInputs()
	m.editing = index
	m.formErr = ""
	m.focus = fieldName

	if e := core.LookupByIndex(m.entries, index+1); index >= 0 && e != nil {
		m.inputs[fieldName].SetValue(e.Name)
		m.inputs[fieldTeacher].SetValue(e.Teacher)
		m.inputs[fieldTime].SetValue(e.Clock())
		m.inputs[fieldWeekday].SetValue(strings.ToLower(e.WeekdayName()[:3]))
	} else {
		m.editing = -1
	}

	m.mode = ModeForm
	cmd := m.inputs[m.focus].Focus()
	return m, cmd
}

// handleFormKey handles keys in form mode.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.formErr = ""
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.focus < fieldCount-1 {
			cmd := m.setFocus(m.focus + 1)
			return m, cmd
		}
		return m.submitForm()

	case msg.Type == tea.KeyCtrlS:
		return m.submitForm()

	case key.Matches(msg, m.keys.NextField):
		cmd := m.setFocus((m.focus + 1) % fieldCount)
		return m, cmd

	case key.Matches(msg, m.keys.PrevField):
		cmd := m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// setFocus moves focus to form field i.
func (m *Model) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

// formEntry parses the form fields into a validated entry.
func (m Model) formEntry() (model.Entry, error) {
	e := model.Entry{
		Name:    strings.TrimSpace(m.inputs[fieldName].Value()),
		Teacher: strings.TrimSpace(m.inputs[fieldTeacher].Value()),
	}

	var err error
	if e.Hour, e.Minute, err = model.ParseClock(m.inputs[fieldTime].Value()); err != nil {
		return e, err
	}
	if e.Weekday, err = model.ParseWeekday(m.inputs[fieldWeekday].Value()); err != nil {
		return e, err
	}
	return e, e.Validate()
}

// submitForm stores the form's entry, or shows why it is invalid.
func (m Model) submitForm() (tea.Model, tea.Cmd) {
	e, err := m.formEntry()
	if err != nil {
		m.formErr = err.Error()
		return m, nil
	}

	verb := "Added "
	if m.editing >= 0 && m.editing < len(m.entries) {
		entries := make([]model.Entry, len(m.entries))
		copy(entries, m.entries)
		entries[m.editing] = e
		m.entries = entries
		verb = "Updated "
	} else {
		m.entries = append(m.entries, e)
	}

	m.mode = ModeList
	m.formErr = ""
	m.editing = -1
	m.list.SetItems(m.buildListItems())
	return m, status(verb+e.String(), false)
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		// Keep the filter and return to the list to act on matches
		m.mode = ModeList
		m.searchInput.Blur()
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Live filtering
	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())

	return m, cmd
}

// isFilterExpression reports whether query parses as a field filter
// (e.g. "teacher=Ms Smith") rather than plain search text.
func isFilterExpression(query string) bool {
	expr, err := core.ParseFilter(query)
	return err == nil && len(expr.Conditions) > 0
}

// buildListItems creates list items from the entries matching the search.
func (m Model) buildListItems() []list.Item {
	var match func(model.Entry) bool
	switch {
	case m.searchQuery == "":
		match = func(model.Entry) bool { return true }
	case isFilterExpression(m.searchQuery):
		expr, _ := core.ParseFilter(m.searchQuery)
		match = expr.Match
	default:
		query := strings.ToLower(m.searchQuery)
		match = func(e model.Entry) bool {
			return strings.Contains(strings.ToLower(e.Name), query) ||
				strings.Contains(strings.ToLower(e.Teacher), query)
		}
	}

	slots := make(map[string]int, len(m.entries))
	for _, e := range m.entries {
		slots[e.CronExpr()]++
	}

	now := m.now()
	items := make([]list.Item, 0, len(m.entries))
	for i, e := range m.entries {
		if !match(e) {
			continue
		}
		next, _ := e.Next(now)
		items = append(items, entryItem{
			entry:    e,
			index:    i,
			next:     next,
			conflict: slots[e.CronExpr()] > 1,
		})
	}
	return items
}

// copyToClipboard copies text to the system clipboard.
func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text)}
	}
}

// View renders the editor.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeForm:
		return m.viewForm()
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m Model) viewList() string {
	s := m.list.View()

	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else {
		s += "\n" + m.buildKeybindBar(m.width, ModeList)
	}

	return s
}

func (m Model) viewForm() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Padding(0, 1)

	title := "Add Class"
	if m.editing >= 0 {
		title = "Edit Class"
	}

	s := headerStyle.Render(title) + "\n\n"
	for i := range m.inputs {
		s += "  " + m.inputs[i].View() + "\n"
	}

	if m.formErr != "" {
		s += "\n  " + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render(m.formErr) + "\n"
	}

	return s + "\n" + m.buildKeybindBar(m.width, ModeForm)
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))

	searchBar := "Search: " + m.searchInput.View() + " " +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(countStr)

	return searchBar + "\n" + m.list.View() + "\n" + m.buildKeybindBar(m.width, ModeSearch)
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	sectionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	s := titleStyle.Render("Keyboard Shortcuts") + "\n\n"

	s += sectionStyle.Render("Navigation") + "\n"
	s += keyStyle.Render("  j/k, ↑/↓") + "     Move up/down\n"
	s += keyStyle.Render("  g/G") + "          Go to top/bottom\n"
	s += keyStyle.Render("  pgup/pgdn") + "    Page up/down\n"
	s += "\n"

	s += sectionStyle.Render("Timetable") + "\n"
	s += keyStyle.Render("  a") + "            Add a class\n"
	s += keyStyle.Render("  enter/e") + "      Edit the selected class\n"
	s += keyStyle.Render("  d") + "            Delete the selected class\n"
	s += keyStyle.Render("  /") + "            Search, or filter with teacher=, day=, time>=\n"
	s += keyStyle.Render("  C") + "            Copy timetable as JSON\n"
	s += keyStyle.Render("  alt+c") + "        Copy timetable as YAML\n"
	s += keyStyle.Render("  w") + "            Save and finish\n"
	s += "\n"

	s += sectionStyle.Render("Form") + "\n"
	s += keyStyle.Render("  tab/shift+tab") + " Next/previous field\n"
	s += keyStyle.Render("  enter") + "        Next field, submit on the last\n"
	s += keyStyle.Render("  esc") + "          Cancel\n"
	s += "\n"

	s += sectionStyle.Render("General") + "\n"
	s += keyStyle.Render("  ?") + "            Toggle this help\n"
	s += keyStyle.Render("  q, ctrl+c") + "    Quit without saving\n"

	s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(
		"Press ? or esc to return")

	return s
}

// keybind represents a single keybind with priority for the status bar.
type keybind struct {
	key      string
	desc     string
	priority int // lower = more important (shown first)
}

// buildKeybindBar builds a keybind bar that fits within the given width.
func (m Model) buildKeybindBar(width int, mode Mode) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	var binds []keybind

	switch mode {
	case ModeList:
		binds = []keybind{
			{"w", "save", 1},
			{"a", "add", 2},
			{"q", "quit", 3},
			{"enter", "edit", 4},
			{"d", "delete", 5},
			{"?", "help", 6},
			{"/", "search", 7},
			{"C", "copy json", 8},
		}
	case ModeForm:
		binds = []keybind{
			{"enter", "next/submit", 1},
			{"esc", "cancel", 2},
			{"tab", "next field", 3},
			{"shift+tab", "previous", 4},
		}
	case ModeSearch:
		binds = []keybind{
			{"enter", "keep filter", 1},
			{"esc", "clear", 2},
			{"↑/↓", "navigate", 3},
		}
	}

	// Add keybinds until we run out of space
	const separator = "  "
	result := ""
	plainLen := 0
	for _, b := range binds {
		plainItem := b.key + " " + b.desc
		testLen := plainLen + len(plainItem)
		if result != "" {
			testLen += len(separator)
		}

		if width > 0 && testLen > width {
			break
		}
		if result != "" {
			result += separator
		}
		result += keyStyle.Render(b.key) + " " + b.desc
		plainLen = testLen
	}

	return style.Render(result)
}

// CollectSchedule runs the editor seeded with initial and returns the saved
// schedule. It returns ErrAborted if the user quits without saving and
// ctx.Err() if ctx is cancelled.
func CollectSchedule(ctx context.Context, initial model.Schedule, opts Options) (model.Schedule, error) {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	final, err := tea.NewProgram(New(initial, opts), progOpts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return model.Schedule{}, ctx.Err()
		}
		return model.Schedule{}, fmt.Errorf("run timetable editor: %w", err)
	}

	fm, ok := final.(Model)
	if !ok || !fm.saved {
		return model.Schedule{}, ErrAborted
	}
	return fm.Schedule(), nil
}
