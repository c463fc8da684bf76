// ABOUTME: Bubbletea model for the mtrack terminal remote
// ABOUTME: Renders connection, transport, and setlist; maps keys onto remote actions
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
)

// actionTimeout bounds how long a key press may wait on a full command queue
const actionTimeout = 2 * time.Second

// Actions is what the terminal remote can ask of the controller
type Actions interface {
	Toggle(ctx context.Context) error
	Command(ctx context.Context, name string) error
	Refresh(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// StatusMsg carries a poll result into the model
type StatusMsg remote.Status

// actionDoneMsg reports the outcome of a key-triggered action
type actionDoneMsg struct {
	action string
	err    error
}

// Model represents the TUI state
type Model struct {
	status     remote.Status
	haveStatus bool

	// Last action outcome
	lastAction string
	lastErr    error

	actions  Actions
	quitChan chan struct{}
	quitting bool

	// Dimensions
	width  int
	height int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	badStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	currentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = remote.Status(msg)
		m.haveStatus = true
	case actionDoneMsg:
		m.lastAction = msg.action
		m.lastErr = msg.err
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Disconnecting from mtrack...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("mtrack remote"))
	b.WriteString("\n\n")
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderTransport())
	b.WriteString("\n")
	b.WriteString(m.renderSetlist())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader renders connection status and endpoint
func (m Model) renderHeader() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("mtrack: "))
	b.WriteString(valueStyle.Render(m.status.Endpoint))
	b.WriteString("  ")
	switch {
	case !m.haveStatus:
		b.WriteString(faintStyle.Render("waiting"))
	case m.status.Connected:
		b.WriteString(okStyle.Render("connected"))
	default:
		b.WriteString(badStyle.Render("disconnected"))
	}
	b.WriteString("\n")

	if m.status.Connected {
		b.WriteString(headerStyle.Render("Traffic: "))
		st := m.status.Stats
		b.WriteString(valueStyle.Render(fmt.Sprintf("rx %d  tx %d  dropped %d  failed %d",
			st.Received, st.Sent, st.Dropped, st.Failed)))
		b.WriteString("\n")
	}

	if m.status.Error != "" {
		b.WriteString(badStyle.Render("Error: "))
		b.WriteString(valueStyle.Render(m.status.Error))
		b.WriteString("\n")
	}

	return b.String()
}

// renderTransport renders play state, elapsed time, and current song
func (m Model) renderTransport() string {
	state := m.status.State
	if state == nil {
		return valueStyle.Render("No playback state") + "\n"
	}

	icon, label := "■", "Stopped"
	if state.IsPlaying {
		icon, label = "▶", "Playing"
	}

	elapsed := state.Elapsed
	if elapsed == "" {
		elapsed = "--:--"
	}

	line := fmt.Sprintf("%s %s  %s  %s", icon, label, elapsed, truncate(state.CurrentSong, 40))
	if m.status.Stale {
		line += faintStyle.Render("  (stale)")
	}
	return headerStyle.Render(line) + "\n"
}

// renderSetlist renders the setlist with the current song highlighted
func (m Model) renderSetlist() string {
	state := m.status.State
	if state == nil || len(state.Setlist) == 0 {
		return faintStyle.Render("  (no setlist)") + "\n"
	}

	var b strings.Builder
	for i, song := range state.Setlist {
		line := fmt.Sprintf("%3d. %s", i+1, truncate(song, 60))
		if song == state.CurrentSong {
			b.WriteString(currentStyle.Render("> " + line))
		} else {
			b.WriteString("  " + valueStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderFooter renders the last action result and keyboard shortcuts
func (m Model) renderFooter() string {
	var b strings.Builder
	if m.lastErr != nil {
		b.WriteString(badStyle.Render(fmt.Sprintf("%s failed: %v", m.lastAction, m.lastErr)))
		b.WriteString("\n")
	}
	b.WriteString(faintStyle.Render("space/p:Play/Stop  s:Stop  n/→:Next  b/←:Prev  r:Refresh  c:Reconnect  q:Quit"))
	return b.String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quitChan != nil {
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case " ", "p":
		return m, m.run("play/stop", func(a Actions, ctx context.Context) error { return a.Toggle(ctx) })
	case "s":
		return m, m.command("stop")
	case "n", "right":
		return m, m.command("next")
	case "b", "left":
		return m, m.command("prev")
	case "r":
		return m, m.run("refresh", func(a Actions, ctx context.Context) error { return a.Refresh(ctx) })
	case "c":
		return m, m.run("reconnect", func(a Actions, ctx context.Context) error { return a.Reconnect(ctx) })
	}

	return m, nil
}

func (m Model) command(name string) tea.Cmd {
	return m.run(name, func(a Actions, ctx context.Context) error { return a.Command(ctx, name) })
}

// run wraps an action in a tea.Cmd so it executes off the update loop
func (m Model) run(name string, fn func(Actions, context.Context) error) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	actions := m.actions
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{action: name, err: fn(actions, ctx)}
	}
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}
