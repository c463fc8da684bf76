// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it remote status updates
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
)

// TUI manages the terminal remote program
type TUI struct {
	program  *tea.Program
	quitChan chan struct{}
	stopOnce sync.Once
}

// NewModel creates a new TUI model
func NewModel(actions Actions, quitChan chan struct{}) Model {
	return Model{
		actions:  actions,
		quitChan: quitChan,
	}
}

// New creates a TUI bound to the given actions
func New(actions Actions, opts ...tea.ProgramOption) *TUI {
	quitChan := make(chan struct{}, 1)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program:  tea.NewProgram(NewModel(actions, quitChan), opts...),
		quitChan: quitChan,
	}
}

// Run blocks until the program exits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Follow forwards statuses to the program until updates is closed
func (t *TUI) Follow(updates <-chan remote.Status) {
	for status := range updates {
		t.program.Send(StatusMsg(status))
	}
}

// Stop asks the program to exit
func (t *TUI) Stop() {
	t.stopOnce.Do(func() {
		t.program.Quit()
	})
}

// QuitChan returns the channel that signals when the user wants to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
