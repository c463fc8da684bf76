// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key bindings, and rendering
package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
)

type fakeActions struct {
	calls []string
	err   error
}

func (f *fakeActions) Toggle(ctx context.Context) error {
	f.calls = append(f.calls, "toggle")
	return f.err
}

func (f *fakeActions) Command(ctx context.Context, name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeActions) Refresh(ctx context.Context) error {
	f.calls = append(f.calls, "refresh")
	return f.err
}

func (f *fakeActions) Reconnect(ctx context.Context) error {
	f.calls = append(f.calls, "reconnect")
	return f.err
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func connectedStatus() StatusMsg {
	return StatusMsg{
		Connected: true,
		Endpoint:  "127.0.0.1:43234",
		State: &mtrack.PlaybackState{
			IsPlaying:   true,
			Elapsed:     "01:23",
			CurrentSong: "Ballad",
			Setlist:     []string{"Opener", "Ballad", "Encore"},
		},
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil, nil)

	if model.haveStatus {
		t.Error("expected no status initially")
	}
	if model.status.Connected {
		t.Error("expected connected to be false initially")
	}
	if model.quitting {
		t.Error("expected quitting to be false initially")
	}
}

func TestStatusMsgUpdatesModel(t *testing.T) {
	updated, _ := NewModel(nil, nil).Update(connectedStatus())
	model := updated.(Model)

	if !model.haveStatus {
		t.Error("expected status to be recorded")
	}
	if !model.status.Connected {
		t.Error("expected connected status")
	}
	if model.status.State.CurrentSong != "Ballad" {
		t.Errorf("expected current song Ballad, got %s", model.status.State.CurrentSong)
	}

	updated, _ = model.Update(StatusMsg{Endpoint: "127.0.0.1:43234"})
	model = updated.(Model)
	if model.status.Connected || model.status.State != nil {
		t.Error("expected disconnect to replace the previous status")
	}
}

func TestKeyBindings(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want string
	}{
		{"space toggles", tea.KeyMsg{Type: tea.KeySpace}, "toggle"},
		{"p toggles", runes("p"), "toggle"},
		{"s stops", runes("s"), "stop"},
		{"n next", runes("n"), "next"},
		{"right next", tea.KeyMsg{Type: tea.KeyRight}, "next"},
		{"b prev", runes("b"), "prev"},
		{"left prev", tea.KeyMsg{Type: tea.KeyLeft}, "prev"},
		{"r refresh", runes("r"), "refresh"},
		{"c reconnect", runes("c"), "reconnect"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := &fakeActions{}
			_, cmd := NewModel(actions, nil).Update(tt.key)
			if cmd == nil {
				t.Fatal("expected a command")
			}

			msg := cmd()
			done, ok := msg.(actionDoneMsg)
			if !ok {
				t.Fatalf("expected actionDoneMsg, got %T", msg)
			}
			if done.err != nil {
				t.Errorf("unexpected error: %v", done.err)
			}
			if len(actions.calls) != 1 || actions.calls[0] != tt.want {
				t.Errorf("expected call %s, got %v", tt.want, actions.calls)
			}
		})
	}
}

func TestUnboundKeyDoesNothing(t *testing.T) {
	actions := &fakeActions{}
	_, cmd := NewModel(actions, nil).Update(runes("x"))
	if cmd != nil {
		t.Error("expected no command for unbound key")
	}
}

func TestQuitSignalsChannel(t *testing.T) {
	quit := make(chan struct{}, 1)
	updated, cmd := NewModel(&fakeActions{}, quit).Update(runes("q"))

	if !updated.(Model).quitting {
		t.Error("expected quitting to be true")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}

	select {
	case <-quit:
	default:
		t.Error("expected quit channel to be signaled")
	}
}

func TestActionErrorIsShown(t *testing.T) {
	actions := &fakeActions{err: errors.New("connection: not connected")}
	model := NewModel(actions, nil)

	_, cmd := model.Update(runes("n"))
	updated, _ := model.Update(cmd())
	view := updated.(Model).View()

	if !strings.Contains(view, "next failed: connection: not connected") {
		t.Errorf("expected error in view, got:\n%s", view)
	}
}

func TestViewShowsSetlistAndTransport(t *testing.T) {
	updated, _ := NewModel(nil, nil).Update(connectedStatus())
	view := updated.(Model).View()

	for _, want := range []string{"connected", "127.0.0.1:43234", "Playing", "01:23", "Opener", "> ", "Ballad", "Encore"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestViewWithoutState(t *testing.T) {
	updated, _ := NewModel(nil, nil).Update(StatusMsg{Endpoint: "10.0.0.5:43234", Error: "transport: bind failed"})
	view := updated.(Model).View()

	for _, want := range []string{"disconnected", "No playback state", "(no setlist)", "transport: bind failed"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestStaleStatusIsMarked(t *testing.T) {
	status := connectedStatus()
	status.Stale = true
	updated, _ := NewModel(nil, nil).Update(status)

	if !strings.Contains(updated.(Model).View(), "(stale)") {
		t.Error("expected stale marker")
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		length   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a very long string", 10, "this is..."},
		{"ünïcödé sóng títle", 10, "ünïcödé..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.length); got != tt.expected {
			t.Errorf("truncate(%q, %d): expected %q, got %q", tt.input, tt.length, tt.expected, got)
		}
	}
}

func TestStatusMsgConvertsFromRemote(t *testing.T) {
	s := remote.Status{Connected: true, Session: "abc"}
	updated, _ := NewModel(nil, nil).Update(StatusMsg(s))
	if updated.(Model).status.Session != "abc" {
		t.Error("expected session to carry through")
	}
}
