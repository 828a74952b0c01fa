package main

import (
	"context"
	"fmt"
	"strings"

	"collective/internal/colony"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// watchCmd runs the kernel behind a live dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the colony with a live terminal dashboard",
	Long: `Starts the kernel and renders every published snapshot.

Keys: space pauses or resumes, s steps while paused, q quits (state is saved).`,
	RunE: runWatch,
}

type snapshotMsg colony.Snapshot

type streamClosedMsg struct{}

type kernelErrMsg struct{ err error }

// controller is the part of the kernel the dashboard drives.
type controller interface {
	Init()
	Stop()
	Step() error
	IsRunning() bool
}

// watchKeys are the dashboard bindings.
type watchKeys struct {
	Toggle key.Binding
	Step   key.Binding
	Quit   key.Binding
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Toggle: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pause/resume")),
		Step:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "step")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Step, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// watchModel is the bubbletea model for the dashboard.
type watchModel struct {
	kernel    controller
	snapshots <-chan colony.Snapshot
	snap      colony.Snapshot
	ready     bool
	lastErr   error
	width     int
	quitting  bool

	keys     watchKeys
	help     help.Model
	spinner  spinner.Model
	spinning bool
}

func newWatchModel(k controller, snapshots <-chan colony.Snapshot) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorInfo)

	return watchModel{
		kernel:    k,
		snapshots: snapshots,
		width:     100,
		keys:      defaultWatchKeys(),
		help:      help.New(),
		spinner:   sp,
	}
}

// waitForSnapshot blocks on the subscription.
func (m watchModel) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.snapshots
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

// busy reports whether a collaborator call is outstanding.
func (m watchModel) busy() bool {
	return m.snap.State.IsThinking || m.snap.State.Foresight.Loading
}

func (m watchModel) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = colony.Snapshot(msg)
		m.ready = true
		if m.busy() && !m.spinning {
			m.spinning = true
			return m, tea.Batch(m.waitForSnapshot(), m.spinner.Tick)
		}
		return m, m.waitForSnapshot()

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case streamClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case kernelErrMsg:
		m.lastErr = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			k := m.kernel
			return m, func() tea.Msg {
				if k.IsRunning() {
					k.Stop()
				} else {
					k.Init()
				}
				return nil
			}
		case key.Matches(msg, m.keys.Step):
			k := m.kernel
			return m, func() tea.Msg {
				if err := k.Step(); err != nil {
					return kernelErrMsg{err}
				}
				return kernelErrMsg{}
			}
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return mutedStyle.Render("Waiting for the kernel...") + "\n"
	}

	var b strings.Builder
	b.WriteString(renderStatus(m.snap, 8))
	if m.snap.State.IsThinking {
		b.WriteString("\n" + m.spinner.View() + " The collective is thinking...\n")
	}
	if m.snap.State.Foresight.Loading {
		b.WriteString("\n" + m.spinner.View() + " Rendering foresight...\n")
	}
	if m.lastErr != nil {
		b.WriteString("\n" + logStyle(colony.LogError).Render(m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys) + mutedStyle.Render(fmt.Sprintf("  (tick %d)", m.snap.Counters.Tick)) + "\n")
	return b.String()
}

func runWatch(cmd *cobra.Command, args []string) error {
	col, err := openColony(context.Background(), cfg)
	if err != nil {
		return err
	}

	snapshots, unsubscribe := col.kernel.Subscribe()
	col.kernel.Init()

	p := tea.NewProgram(newWatchModel(col.kernel, snapshots), tea.WithAltScreen())
	_, runErr := p.Run()
	unsubscribe()

	if err := col.close(context.Background(), true); err != nil {
		return err
	}
	return runErr
}
