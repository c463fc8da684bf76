// ABOUTME: HTTP control API and embedded page for the mtrack remote
// ABOUTME: Maps controller errors to status codes and serves the websocket state stream
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mtrack-remote/mtrack-remote-go/internal/config"
	"github.com/mtrack-remote/mtrack-remote-go/internal/connection"
	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
)

//go:embed static
var staticFS embed.FS

// DefaultAddr is the listen address used when Config.Addr is empty
const DefaultAddr = ":8080"

// Controller is the part of the remote the web layer drives
type Controller interface {
	Status() remote.Status
	Subscribe() (<-chan remote.Status, func())
	ReadState() (mtrack.PlaybackState, error)
	Command(ctx context.Context, name string) error
	Connect(ctx context.Context) error
	Disconnect() error
	Config() config.Config
	SetConfig(ctx context.Context, cfg config.Config) error
}

// Config holds web server configuration
type Config struct {
	// Addr is the TCP listen address (default :8080)
	Addr string
}

// StateResponse is the body of GET /api/state
type StateResponse struct {
	Connected bool                 `json:"connected"`
	State     mtrack.PlaybackState `json:"state"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves the API, the page, and the websocket stream
type Server struct {
	config Config
	ctl    Controller

	upgrader websocket.Upgrader
	mux      *http.ServeMux

	listener   net.Listener
	httpServer *http.Server

	hub *hub
	wg  sync.WaitGroup
}

// New creates a server. Listen binds it, Serve runs it.
func New(config Config, ctl Controller) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}

	s := &Server{
		config: config,
		ctl:    ctl,
		mux:    http.NewServeMux(),
		hub:    newHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Stage networks are trusted; the page may be opened by IP or .local name
				return true
			},
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	s.mux.HandleFunc("POST /api/{command}", s.handleCommand)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)

	root, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	s.mux.Handle("GET /", http.FileServer(http.FS(root)))
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen binds the TCP listener
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.config.Addr, err)
	}
	s.listener = ln
	return nil
}

// Port returns the bound TCP port, or 0 before Listen
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Serve runs the server until ctx is cancelled. Listen is called if needed.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.httpServer = &http.Server{Handler: s.mux}
	log.Printf("Web: remote listening on %s", s.listener.Addr())

	updates, unsubscribe := s.ctl.Subscribe()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.run(updates)
	}()

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(s.listener); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errChan:
		serveErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Web: shutdown error: %v", err)
	}

	unsubscribe()
	s.hub.closeAll()
	s.wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("web: serve: %w", serveErr)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, err := s.ctl.ReadState()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{Connected: true, State: state})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Status())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")
	if err := s.ctl.Command(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Connect(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.Disconnect(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Config())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid config: %v", err)})
		return
	}
	if err := cfg.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.ctl.SetConfig(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Config())
}

// statusCode maps controller errors onto HTTP status codes
func statusCode(err error) int {
	switch {
	case errors.Is(err, connection.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, connection.ErrCacheBusy):
		return http.StatusConflict
	case errors.Is(err, remote.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusCode(err), ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Web: error encoding JSON: %v", err)
	}
}
