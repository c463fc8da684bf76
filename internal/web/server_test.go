// ABOUTME: Tests for the web API and websocket stream
// ABOUTME: Uses a fake controller with httptest recorders and servers
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mtrack-remote/mtrack-remote-go/internal/config"
	"github.com/mtrack-remote/mtrack-remote-go/internal/connection"
	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
	"github.com/mtrack-remote/mtrack-remote-go/internal/transport"
)

type fakeController struct {
	mu       sync.Mutex
	status   remote.Status
	state    mtrack.PlaybackState
	stateErr error
	cmdErr   error
	commands []string
	cfg      config.Config
	updates  chan remote.Status
}

func newFakeController() *fakeController {
	return &fakeController{
		cfg:     config.Default(),
		updates: make(chan remote.Status, 4),
	}
}

func (f *fakeController) Status() remote.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) Subscribe() (<-chan remote.Status, func()) {
	var once sync.Once
	return f.updates, func() { once.Do(func() { close(f.updates) }) }
}

func (f *fakeController) ReadState() (mtrack.PlaybackState, error) {
	return f.state, f.stateErr
}

func (f *fakeController) Command(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case "play", "stop", "next", "prev", "song", "setlist":
	default:
		return fmt.Errorf("%w: %q", remote.ErrUnknownCommand, name)
	}
	f.commands = append(f.commands, name)
	return f.cmdErr
}

func (f *fakeController) Connect(ctx context.Context) error {
	return f.Command(ctx, "setlist")
}

func (f *fakeController) Disconnect() error {
	return nil
}

func (f *fakeController) Config() config.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakeController) SetConfig(ctx context.Context, cfg config.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	return nil
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestStateHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"connected", nil, http.StatusOK},
		{"not connected", connection.ErrNotConnected, http.StatusServiceUnavailable},
		{"cache busy", connection.ErrCacheBusy, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newFakeController()
			ctl.state = mtrack.PlaybackState{IsPlaying: true, CurrentSong: "Ballad", Setlist: []string{"Ballad"}}
			ctl.stateErr = tt.err

			w := do(t, New(Config{}, ctl), http.MethodGet, "/api/state", "")
			if w.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if w.Header().Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", w.Header().Get("Content-Type"))
			}
			if tt.err != nil {
				return
			}

			var resp StateResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if !resp.Connected || !resp.State.IsPlaying || resp.State.CurrentSong != "Ballad" {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestCommandHandler(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		wantCode int
	}{
		{"play", "/api/play", nil, http.StatusNoContent},
		{"stop", "/api/stop", nil, http.StatusNoContent},
		{"next", "/api/next", nil, http.StatusNoContent},
		{"prev", "/api/prev", nil, http.StatusNoContent},
		{"song", "/api/song", nil, http.StatusNoContent},
		{"setlist", "/api/setlist", nil, http.StatusNoContent},
		{"not connected", "/api/play", connection.ErrNotConnected, http.StatusServiceUnavailable},
		{"queue closed", "/api/play", transport.ErrQueueClosed, http.StatusBadGateway},
		{"unknown", "/api/rewind", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newFakeController()
			ctl.cmdErr = tt.err

			w := do(t, New(Config{}, ctl), http.MethodPost, tt.path, "")
			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d (%s)", tt.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestCommandHandlerIgnoresGet(t *testing.T) {
	ctl := newFakeController()
	w := do(t, New(Config{}, ctl), http.MethodGet, "/api/play", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
	if len(ctl.commands) != 0 {
		t.Errorf("expected no commands, got %v", ctl.commands)
	}
}

func TestConfigHandlers(t *testing.T) {
	ctl := newFakeController()
	s := New(Config{}, ctl)

	w := do(t, s, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got config.Config
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode config: %v", err)
	}
	if got != config.Default() {
		t.Errorf("expected default config, got %+v", got)
	}

	w = do(t, s, http.MethodPut, "/api/config", `{"mtrack_addr":"10.0.0.9:43234","listen_port":43300}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", w.Code, w.Body.String())
	}
	want := config.Config{MtrackAddr: "10.0.0.9:43234", ListenPort: 43300}
	if ctl.Config() != want {
		t.Errorf("expected %+v, got %+v", want, ctl.Config())
	}
}

func TestPutConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"unknown field", `{"mtrack_addr":"10.0.0.9:43234","listen_port":1,"extra":true}`},
		{"invalid address", `{"mtrack_addr":"nope","listen_port":43236}`},
		{"invalid port", `{"mtrack_addr":"10.0.0.9:43234","listen_port":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := newFakeController()
			w := do(t, New(Config{}, ctl), http.MethodPut, "/api/config", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			if ctl.Config() != config.Default() {
				t.Errorf("expected config unchanged, got %+v", ctl.Config())
			}
		})
	}
}

func TestIndexPage(t *testing.T) {
	w := do(t, New(Config{}, newFakeController()), http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "mtrack remote") {
		t.Error("expected the remote page")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{connection.ErrNotConnected, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", connection.ErrCacheBusy), http.StatusConflict},
		{remote.ErrUnknownCommand, http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{transport.ErrBind, http.StatusBadGateway},
		{errors.New("other"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		if got := statusCode(tt.err); got != tt.want {
			t.Errorf("statusCode(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, h *hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.count() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketReceivesStatus(t *testing.T) {
	ctl := newFakeController()
	s := New(Config{}, ctl)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	updates, unsubscribe := ctl.Subscribe()
	go s.hub.run(updates)
	defer unsubscribe()

	conn := dialWS(t, srv)
	defer conn.Close()
	waitForClients(t, s.hub, 1)

	want := remote.Status{
		Connected: true,
		Endpoint:  "127.0.0.1:43234",
		State:     &mtrack.PlaybackState{CurrentSong: "Encore", Setlist: []string{"Encore"}},
	}
	ctl.updates <- want

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got remote.Status
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !got.Connected || got.Endpoint != want.Endpoint || got.State == nil || got.State.CurrentSong != "Encore" {
		t.Errorf("unexpected status %+v", got)
	}
}

func TestWebSocketLateJoinerGetsLastStatus(t *testing.T) {
	s := New(Config{}, newFakeController())
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.hub.broadcast([]byte(`{"connected":true,"endpoint":"x:1"}`))

	conn := dialWS(t, srv)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got remote.Status
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Endpoint != "x:1" {
		t.Errorf("expected last status, got %+v", got)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := newHub()
	c := &client{id: "slow", send: make(chan []byte, clientQueueSize)}
	h.clients[c.id] = c

	for i := 0; i <= clientQueueSize; i++ {
		h.broadcast([]byte("{}"))
	}

	if h.count() != 0 {
		t.Errorf("expected slow client to be dropped, %d remain", h.count())
	}
	drained := 0
	for range c.send {
		drained++
	}
	if drained != clientQueueSize {
		t.Errorf("expected %d queued messages, got %d", clientQueueSize, drained)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ctl := newFakeController()
	s := New(Config{Addr: "127.0.0.1:0"}, ctl)
	if err := s.Listen(); err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	if s.Port() == 0 {
		t.Fatal("expected a bound port")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/config", s.Port()))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
