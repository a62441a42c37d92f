// Package ui is the updating status view: a watched-file tree, the live
// report and the operator keys.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jesspatton/livetest/filesystem"
	"github.com/jesspatton/livetest/reporter"
)

// maxOutput bounds the report kept in memory.
const maxOutput = 256 * 1024

// Pane represents a distinct section of the UI.
type Pane int

const (
	// PaneWatched is the watched files pane.
	PaneWatched Pane = iota
	// PaneReport is the report pane.
	PaneReport
)

// TestStatus represents the last known result of a test file.
type TestStatus int

const (
	// StatusIdle indicates no result is known.
	StatusIdle TestStatus = iota
	// StatusPass indicates every run of the file passed.
	StatusPass
	// StatusFail indicates at least one run of the file failed.
	StatusFail
)

// Commander is the operator command surface the keys drive.
type Commander interface {
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	ToggleWatch()
	Exit(ctx context.Context) error
}

// Options wires a Model to the rest of the program.
type Options struct {
	Root     string
	Commands Commander
	Watched  func() []string
	Bridge   *Bridge
}

// Model represents the application state for the Bubbletea program.
type Model struct {
	// UI State
	activePane Pane
	width      int
	height     int
	ready      bool
	showHelp   bool
	cursor     int
	viewport   viewport.Model

	// Components
	keys KeyMap
	help help.Model

	// Dependencies
	root     string
	commands Commander
	watched  func() []string
	bridge   *Bridge

	// Application State
	tree         *filesystem.Node
	flatNodes    []DisplayNode
	output       string
	status       string
	running      bool
	taskRunning  bool
	watchEnabled bool
	exiting      bool
	aborted      bool
	lastErr      error
	nodeStatus   map[string]TestStatus
}

// TreeLoadedMsg carries the watched tree after a refresh.
type TreeLoadedMsg *filesystem.Node

type exitedMsg struct{ err error }

// NewModel creates and initializes a new Model.
func NewModel(opts Options) Model {
	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#A0A0A0"})
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B0B0B0", Dark: "#808080"})
	h.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#606060"})
	h.Styles.FullKey = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#909090", Dark: "#A0A0A0"})
	h.Styles.FullDesc = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B0B0B0", Dark: "#808080"})
	h.Styles.FullSeparator = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#606060"})

	watched := opts.Watched
	if watched == nil {
		watched = func() []string { return nil }
	}

	return Model{
		activePane:   PaneReport,
		root:         opts.Root,
		commands:     opts.Commands,
		watched:      watched,
		bridge:       opts.Bridge,
		watchEnabled: true,
		nodeStatus:   make(map[string]TestStatus),
		keys:         NewKeyMap(),
		help:         h,
	}
}

// Init initializes the Bubbletea program.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshTree,
		m.bridge.wait,
	)
}

// Update handles incoming messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.exiting {
				return m, nil
			}
			m.exiting = true
			return m, m.exit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			if m.activePane == PaneWatched {
				m.activePane = PaneReport
			} else {
				m.activePane = PaneWatched
			}
			return m, nil
		case key.Matches(msg, m.keys.Stop):
			return m, m.command(func(ctx context.Context) error { return m.commands.Stop(ctx) })
		case key.Matches(msg, m.keys.Restart):
			return m, m.command(func(ctx context.Context) error { return m.commands.Restart(ctx) })
		case key.Matches(msg, m.keys.ToggleWatch):
			return m, m.command(func(context.Context) error {
				m.commands.ToggleWatch()
				return nil
			})
		}

		if m.activePane == PaneWatched {
			switch {
			case key.Matches(msg, m.keys.Up):
				if m.cursor > 0 {
					m.cursor--
				}
			case key.Matches(msg, m.keys.Down):
				if m.cursor < len(m.flatNodes)-1 {
					m.cursor++
				}
			}
		} else {
			// Forward keys to viewport
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

		// Report takes two thirds of the width, minus border and padding
		paneWidth := m.reportWidth() - 4
		// Footer(1) + Border(2) + margin(2)
		paneHeight := m.height - 5
		// Header takes 2 lines (Title + Empty line)
		viewportHeight := paneHeight - 2

		if !m.ready {
			m.viewport = viewport.New(paneWidth, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = paneWidth
			m.viewport.Height = viewportHeight
		}
		m.viewport.SetContent(m.wrapOutput(paneWidth, m.output))

	case TreeLoadedMsg:
		m.tree = msg
		m.flatNodes = flattenNodes(m.tree)
		if m.cursor >= len(m.flatNodes) {
			m.cursor = max(len(m.flatNodes)-1, 0)
		}
		return m, nil

	case EventMsg:
		m.applyEvent(reporter.Event(msg))
		return m, tea.Batch(m.bridge.wait, m.refreshTree)

	case OutputMsg:
		// An aborted report stays replaced until the next run
		if !m.aborted {
			m.appendOutput(string(msg) + "\n")
		}
		return m, m.bridge.wait

	case AbortedMsg:
		m.aborted = true
		m.output = ""
		m.appendOutput(reporter.AbortedText + "\n")
		return m, m.bridge.wait

	case TaskStartMsg:
		m.taskRunning = true
		m.nodeStatus = make(map[string]TestStatus)
		return m, m.bridge.wait

	case TestDoneMsg:
		if msg.Err != nil {
			m.nodeStatus[msg.File] = StatusFail
		} else if m.nodeStatus[msg.File] != StatusFail {
			m.nodeStatus[msg.File] = StatusPass
		}
		return m, m.bridge.wait

	case TaskDoneMsg:
		m.taskRunning = false
		return m, m.bridge.wait

	case exitedMsg:
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) applyEvent(e reporter.Event) {
	switch e.Kind {
	case reporter.Intro:
		m.appendOutput(reporter.IntroText)
		return
	case reporter.RunStarting, reporter.SourceChanged:
		m.output = ""
		m.aborted = false
		m.running = true
		m.lastErr = nil
	case reporter.RunStarted:
		m.running = true
	case reporter.RunFinished:
		m.running = false
		m.taskRunning = false
		m.lastErr = e.Err
		if e.Err != nil {
			m.appendOutput(fmt.Sprintf("\nERROR: %v\n", e.Err))
		}
	case reporter.RunStopped:
		m.running = false
		m.taskRunning = false
	case reporter.WatchToggled:
		m.watchEnabled = e.WatchEnabled
	}
	m.status = reporter.Message(e)
}

func (m *Model) appendOutput(s string) {
	m.output += s
	if len(m.output) > maxOutput {
		m.output = m.output[len(m.output)-maxOutput:]
		if i := strings.IndexByte(m.output, '\n'); i >= 0 {
			m.output = m.output[i+1:]
		}
	}
	if m.ready {
		m.viewport.SetContent(m.wrapOutput(m.viewport.Width, m.output))
		m.viewport.GotoBottom()
	}
}

func (m Model) wrapOutput(width int, content string) string {
	if width <= 0 {
		return content
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}

func (m Model) watchedWidth() int {
	return m.width / 3
}

func (m Model) reportWidth() int {
	return m.width - m.watchedWidth()
}

// View renders the UI based on the current state.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	if m.width == 0 {
		return "Loading..."
	}

	paneHeight := m.height - 4

	watchedRender := m.renderWatched(m.watchedWidth()-2, paneHeight)

	var reportView strings.Builder
	reportView.WriteString(titleStyle.Render("REPORT") + "\n\n")
	if !m.ready {
		reportView.WriteString("Initializing...")
	} else {
		reportView.WriteString(m.viewport.View())
	}

	reportStyle := paneStyle
	if m.activePane == PaneReport {
		reportStyle = activePaneStyle
	}
	reportRender := reportStyle.
		Width(m.reportWidth() - 2).
		Height(paneHeight).
		Render(reportView.String())

	panes := lipgloss.JoinHorizontal(lipgloss.Top, watchedRender, reportRender)
	return lipgloss.JoinVertical(lipgloss.Left, panes, m.renderFooter())
}

// Commands

func (m Model) refreshTree() tea.Msg {
	return TreeLoadedMsg(filesystem.BuildTree(m.root, m.watched()))
}

// command runs fn off the update loop. Errors surface through the
// controller's events.
func (m Model) command(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		_ = fn(context.Background())
		return nil
	}
}

func (m Model) exit() tea.Msg {
	return exitedMsg{err: m.commands.Exit(context.Background())}
}
