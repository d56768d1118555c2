package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/stackr/internal/models"
	"github.com/desertthunder/stackr/internal/shared"
	"github.com/desertthunder/stackr/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	StackListView ViewState = iota
	TrackListView
	ConfirmView
	ResultView
)

// StackBrowser is the subset of [tasks.StackEngine] the TUI reads and mutates.
type StackBrowser interface {
	History(ctx context.Context) ([]models.Stack, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*tasks.ExposureStats, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	browser   StackBrowser
	width     int
	height    int
	stackList list.Model
	stacks    []models.Stack
	stats     *tasks.ExposureStats
	trackList list.Model
	selected  *models.Stack
	deleted   *stackDeleted
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model over browser.
func NewModel(ctx context.Context, browser StackBrowser) *Model {
	return &Model{
		ctx:       ctx,
		view:      StackListView,
		browser:   browser,
		stackList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		trackList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Init initializes the TUI by loading stack history.
func (m *Model) Init() tea.Cmd {
	return m.fetchStacks()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.stackList.SetSize(msg.Width-4, msg.Height-8)
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case StackListView:
			return m.handleStackListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStacksFetched:
		data := msg.data.(stacksFetched)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.stacks = data.stacks
		m.stats = data.stats
		m.stackList = list.New(stackItems(data.stacks), list.NewDefaultDelegate(), 0, 0)
		m.stackList.Title = m.stackListTitle()
		m.stackList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgStackDeleted:
		data := msg.data.(stackDeleted)
		m.deleted = &data
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == StackListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}

	switch m.view {
	case StackListView:
		return m.renderStackList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleStackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.stackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.stackList, cmd = m.stackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		return m, m.fetchStacks()
	case key.Matches(msg, m.keys.enter):
		if stack := m.selectedStack(); stack != nil {
			m.open(stack)
			return m, nil
		}
	case key.Matches(msg, m.keys.remove):
		if stack := m.selectedStack(); stack != nil {
			m.selected = stack
			m.view = ConfirmView
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.stackList, cmd = m.stackList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = StackListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.remove):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		return m, m.deleteStack(*m.selected)
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.quit):
		m.view = StackListView
		m.selected = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.reload), key.Matches(msg, m.keys.enter):
		m.view = StackListView
		m.selected = nil
		m.deleted = nil
		return m, m.fetchStacks()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case StackListView:
		m.stackList, cmd = m.stackList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) selectedStack() *models.Stack {
	selected, ok := m.stackList.SelectedItem().(stackItem)
	if !ok {
		return nil
	}
	stack := selected.stack
	return &stack
}

func (m *Model) open(stack *models.Stack) {
	m.selected = stack
	m.trackList = list.New(trackItems(*stack), list.NewDefaultDelegate(), 0, 0)
	m.trackList.Title = stack.Name
	m.trackList.SetSize(m.width-4, m.height-8)
	m.view = TrackListView
}

func (m *Model) fetchStacks() tea.Cmd {
	return func() tea.Msg {
		stacks, err := m.browser.History(m.ctx)
		if err != nil {
			return stacksFetchedMsg(nil, nil, err)
		}
		stats, err := m.browser.Stats(m.ctx)
		return stacksFetchedMsg(stacks, stats, err)
	}
}

func (m *Model) deleteStack(stack models.Stack) tea.Cmd {
	return func() tea.Msg {
		removed, err := m.browser.Delete(m.ctx, stack.ID)
		return stackDeletedMsg(stack, removed, err)
	}
}

func (m *Model) stackListTitle() string {
	if m.stats == nil {
		return "Stacks"
	}
	return fmt.Sprintf("Stacks (%d seen %s, %d referenced %s)",
		m.stats.SeenContainers, shared.Pluralize(m.stats.SeenContainers, "episode"),
		m.stats.ReferencedTracks, shared.Pluralize(m.stats.ReferencedTracks, "track"))
}

func (m *Model) renderStackList() string {
	if len(m.stacks) == 0 {
		empty := styles.help.Render("No stacks yet. Run `stackr build` to create one.")
		return fmt.Sprintf("%s\n\n%s", empty, m.help.ShortHelpView([]key.Binding{m.keys.reload, m.keys.quit}))
	}
	helpKeys := []key.Binding{m.keys.enter, m.keys.remove, m.keys.reload, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", m.stackList.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderTrackList() string {
	summary := styles.help.Render(m.selected.Summary)
	helpKeys := []key.Binding{m.keys.back, m.keys.remove, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", m.trackList.View(), sourceBadges(m.selected.ContainersUsed), summary, m.help.ShortHelpView(helpKeys))
}

// sourceBadges renders one badge per distinct source, in first-use order.
func sourceBadges(used []models.Container) string {
	seen := make(map[models.SourceKind]bool, 2)
	var badges []string
	for _, c := range used {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		badges = append(badges, styles.Badge(c.Source))
	}
	return strings.Join(badges, " ")
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Delete '%s'?", m.selected.Name))
	n := len(m.selected.Tracks)
	info := fmt.Sprintf("\nTracks: %d\nCreated: %s\n\n%s\n",
		n,
		m.selected.CreatedAt.Local().Format("Jan 2 2006 15:04"),
		styles.warn.Render("Tracks no other stack holds become eligible again. Episodes stay seen."))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})

	switch {
	case m.deleted == nil:
		return styles.err.Render("No result available") + "\n\n" + helpView
	case m.deleted.err != nil:
		return styles.err.Render(fmt.Sprintf("Delete failed: %v", m.deleted.err)) + "\n\n" + helpView
	case !m.deleted.removed:
		return styles.warn.Render(fmt.Sprintf("'%s' was already gone", m.deleted.stack.Name)) + "\n\n" + helpView
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render(fmt.Sprintf("✓ Deleted '%s'", m.deleted.stack.Name)))
	n := len(m.deleted.stack.Tracks)
	fmt.Fprintf(&b, "\n\n%d %s reclaimed where no other stack holds them\n\n%s", n, shared.Pluralize(n, "track"), helpView)
	return b.String()
}
