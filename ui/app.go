package ui

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"cmdsite/model"
	"cmdsite/render"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"
)

type state int

const (
	stateLoading state = iota
	stateReady
	stateFailed
)

// App browses a published command list in the terminal.
type App struct {
	url    string
	client *http.Client
	log    logrus.FieldLogger

	commands []model.Command
	filtered []model.Command

	// UI state
	state      state
	showDetail bool
	width      int
	height     int
	err        string
	status     string

	spinner     spinner.Model
	searchInput textinput.Model
	table       table.Model
	detail      viewport.Model
}

// NewApp returns an App that loads the command list at url once it starts.
func NewApp(url string, client *http.Client, log logrus.FieldLogger) *App {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	search := textinput.New()
	search.Placeholder = "Search commands..."
	search.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = labelStyle

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(tableStyles())

	return &App{
		url:         url,
		client:      client,
		log:         log,
		state:       stateLoading,
		spinner:     spin,
		searchInput: search,
		table:       t,
		detail:      viewport.New(80, 8),
	}
}

type loadedMsg struct {
	commands []model.Command
}

type loadFailedMsg struct {
	err error
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, a.spinner.Tick, a.load)
}

// load runs off the event loop; its result comes back as a message.
func (a *App) load() tea.Msg {
	cmds, err := render.Fetch(context.Background(), a.client, a.url)
	if err != nil {
		a.log.WithError(err).WithField("url", a.url).Error("failed to load command table")
		return loadFailedMsg{err: err}
	}
	return loadedMsg{commands: cmds}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width - 4   // account for app padding
		a.height = msg.Height - 2 // account for app padding
		a.table.SetColumns(columns(a.width))
		a.table.SetWidth(a.width)
		a.table.SetHeight(max(3, a.height-12))
		a.detail.Width = a.width - 4
		a.detail.Height = max(3, a.height/3)
		return a, nil

	case spinner.TickMsg:
		if a.state != stateLoading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case loadedMsg:
		a.state = stateReady
		a.commands = msg.commands
		a.filterCommands()
		a.status = fmt.Sprintf("%d commands", len(a.commands))
		return a, nil

	case loadFailedMsg:
		a.state = stateFailed
		a.err = msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		if a.showDetail {
			return a.updateDetail(msg)
		}
		return a.updateNormal(msg)
	}

	return a, nil
}

func (a *App) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit

	case "up", "down", "pgup", "pgdown", "home", "end":
		var cmd tea.Cmd
		a.table, cmd = a.table.Update(msg)
		return a, cmd

	case "enter":
		if cmd, ok := a.selected(); ok {
			a.showDetail = true
			a.detail.SetContent(a.renderDetail(cmd))
			a.detail.GotoTop()
		}
		return a, nil

	case "esc":
		if a.searchInput.Value() == "" {
			return a, tea.Quit
		}
		a.searchInput.SetValue("")
		a.filterCommands()
		return a, nil

	default:
		var cmd tea.Cmd
		a.searchInput, cmd = a.searchInput.Update(msg)
		a.filterCommands()
		return a, cmd
	}
}

func (a *App) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "esc", "enter", "q":
		a.showDetail = false
		return a, nil
	}
	var cmd tea.Cmd
	a.detail, cmd = a.detail.Update(msg)
	return a, cmd
}

func (a *App) selected() (model.Command, bool) {
	i := a.table.Cursor()
	if i < 0 || i >= len(a.filtered) {
		return model.Command{}, false
	}
	return a.filtered[i], true
}

// filterCommands narrows the table to fuzzy matches of the search query,
// keeping the published order.
func (a *App) filterCommands() {
	query := a.searchInput.Value()
	if query == "" {
		a.filtered = a.commands
	} else {
		targets := make([]string, len(a.commands))
		for i, c := range a.commands {
			targets[i] = c.Name + " " + strings.Join(c.Aliases, " ")
		}

		matches := fuzzy.Find(query, targets)
		sort.Slice(matches, func(i, j int) bool { return matches[i].Index < matches[j].Index })
		a.filtered = make([]model.Command, len(matches))
		for i, m := range matches {
			a.filtered[i] = a.commands[m.Index]
		}
	}

	rows := make([]table.Row, len(a.filtered))
	for i, c := range a.filtered {
		cells := render.Cells(c)
		rows[i] = table.Row(cells[:])
	}
	a.table.SetRows(rows)

	if a.table.Cursor() >= len(rows) {
		a.table.SetCursor(max(0, len(rows)-1))
	}
}

// columns spreads width over the eight columns, giving the rest to
// Description.
func columns(width int) []table.Column {
	widths := [8]int{14, 14, 20, 0, 8, 8, 9, 11}
	used := 0
	for _, w := range widths {
		used += w + 2 // cell padding
	}
	widths[3] = max(20, width-used-2)

	cols := make([]table.Column, len(model.Columns))
	for i, title := range model.Columns {
		cols[i] = table.Column{Title: title, Width: widths[i]}
	}
	return cols
}

func (a *App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("cmdsite"))
	b.WriteString(" ")
	b.WriteString(sourceStyle.Render(a.url))
	b.WriteString("\n\n")

	b.WriteString(a.searchInput.View())
	b.WriteString("\n\n")

	switch {
	case a.state == stateLoading:
		b.WriteString(a.spinner.View() + " Loading commands...\n")
	case a.showDetail:
		b.WriteString(detailTitleStyle.Render("DETAILS"))
		b.WriteString("\n")
		b.WriteString(borderStyle.Width(a.width - 4).Render(a.detail.View()))
		b.WriteString("\n")
	default:
		b.WriteString(a.table.View())
		b.WriteString("\n")
		if a.state == stateReady && len(a.filtered) == 0 {
			b.WriteString(mutedStyle.Render("No commands found."))
			b.WriteString("\n")
		}
	}

	if a.err != "" {
		b.WriteString(errorStyle.Render("Error: " + a.err))
		b.WriteString("\n")
	}
	if a.status != "" {
		b.WriteString(successStyle.Render(a.status))
		b.WriteString("\n")
	}

	b.WriteString(a.renderHelp())

	return appStyle.Render(b.String())
}

func (a *App) renderDetail(cmd model.Command) string {
	cells := render.Cells(cmd)
	cells[4] += cooldownHint(cmd.ChannelCooldown)
	cells[5] += cooldownHint(cmd.UserCooldown)

	var lines []string
	for i, title := range model.Columns {
		lines = append(lines, labelStyle.Render(title+": ")+cells[i])
	}
	return strings.Join(lines, "\n")
}

// cooldownHint spells out a numeric cooldown as a duration, e.g. " (1m30s)".
func cooldownHint(c model.Cooldown) string {
	s, ok := c.Seconds()
	if !ok || s <= 0 || s > math.MaxInt64/float64(time.Second) {
		return ""
	}
	return helpStyle.Render(" (" + time.Duration(s*float64(time.Second)).String() + ")")
}

func (a *App) renderHelp() string {
	keys := []struct{ key, desc string }{
		{"↑/↓", "move"},
		{"enter", "details"},
		{"esc", "clear/quit"},
		{"ctrl+c", "quit"},
	}
	if a.showDetail {
		keys = []struct{ key, desc string }{
			{"esc", "back"},
			{"ctrl+c", "quit"},
		}
	}

	var parts []string
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k.key)+" "+helpStyle.Render(k.desc))
	}

	return strings.Join(parts, "  ")
}
