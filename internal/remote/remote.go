// ABOUTME: Remote controller shared by the web and terminal front-ends
// ABOUTME: Polls the connection manager, publishes status, and routes user commands
package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mtrack-remote/mtrack-remote-go/internal/config"
	"github.com/mtrack-remote/mtrack-remote-go/internal/connection"
	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/transport"
)

// DefaultInterval is how often the engine state is polled
const DefaultInterval = 500 * time.Millisecond

// ErrUnknownCommand is returned for command names outside the command table
var ErrUnknownCommand = errors.New("remote: unknown command")

// Status is one poll result
type Status struct {
	Connected bool                  `json:"connected"`
	Endpoint  string                `json:"endpoint"`
	Session   string                `json:"session,omitempty"`
	State     *mtrack.PlaybackState `json:"state,omitempty"`
	Stale     bool                  `json:"stale,omitempty"`
	Stats     transport.Stats       `json:"stats"`
	Error     string                `json:"error,omitempty"`
	Time      time.Time             `json:"time"`
}

// Options holds controller configuration
type Options struct {
	// Interval between polls (default 500ms)
	Interval time.Duration

	// ConfigPath is where SetConfig persists changes; empty disables saving
	ConfigPath string
}

// Remote drives a connection manager on behalf of user interfaces
type Remote struct {
	manager *connection.Manager
	opts    Options

	mu     sync.Mutex
	cfg    config.Config
	last   Status
	subs   map[int]chan Status
	nextID int
}

// New creates a controller. It does not connect until Run or Connect.
func New(manager *connection.Manager, cfg config.Config, opts Options) *Remote {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Remote{
		manager: manager,
		opts:    opts,
		cfg:     cfg,
		last:    Status{Endpoint: cfg.MtrackAddr},
		subs:    make(map[int]chan Status),
	}
}

// Run polls until ctx is cancelled, then disconnects
func (r *Remote) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	r.Poll(ctx)

	for {
		select {
		case <-ticker.C:
			r.Poll(ctx)
		case <-ctx.Done():
			if err := r.manager.Disconnect(); err != nil {
				log.Printf("Remote: disconnect on shutdown: %v", err)
			}
			return r.manager.Release()
		}
	}
}

// Poll makes sure a connection exists, reads the state, and publishes it
func (r *Remote) Poll(ctx context.Context) Status {
	if r.manager.Lost() {
		log.Printf("Remote: transport stopped unexpectedly, reconnecting")
		if err := r.manager.Disconnect(); err != nil {
			log.Printf("Remote: %v", err)
		}
	}

	cfg := r.Config()
	wasConnected := r.manager.Connected()

	status := Status{Endpoint: cfg.MtrackAddr, Time: time.Now()}

	if err := r.manager.EnsureConnection(cfg.Endpoint()); err != nil {
		status.Error = err.Error()
	}

	if !wasConnected && r.manager.Connected() {
		r.refresh(ctx)
	}

	status.Connected = r.manager.Connected()
	status.Session, _ = r.manager.Session()
	status.Stats, _ = r.manager.Stats()

	state, err := r.manager.ReadState()
	switch {
	case err == nil:
		status.State = &state
	case errors.Is(err, connection.ErrCacheBusy):
		status.State = r.lastState()
		status.Stale = true
	case errors.Is(err, connection.ErrNotConnected):
	default:
		status.Error = err.Error()
	}

	r.publish(status)
	return status
}

// refresh asks the engine for the setlist and current song
func (r *Remote) refresh(ctx context.Context) {
	if err := r.manager.FetchSetlist(ctx); err != nil {
		log.Printf("Remote: fetch setlist: %v", err)
	}
	if err := r.manager.FetchSong(ctx); err != nil {
		log.Printf("Remote: fetch song: %v", err)
	}
}

// Command runs a named command: play, stop, next, prev, song, setlist
func (r *Remote) Command(ctx context.Context, name string) error {
	var fn func(context.Context) error
	switch name {
	case "play":
		fn = r.manager.Play
	case "stop":
		fn = r.manager.Stop
	case "next":
		fn = r.manager.Next
	case "prev":
		fn = r.manager.Prev
	case "song":
		fn = r.manager.FetchSong
	case "setlist":
		fn = r.manager.FetchSetlist
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return fn(ctx)
}

// Toggle stops if the engine is playing and plays otherwise
func (r *Remote) Toggle(ctx context.Context) error {
	if s := r.lastState(); s != nil && s.IsPlaying {
		return r.manager.Stop(ctx)
	}
	return r.manager.Play(ctx)
}

// Refresh re-requests the setlist and current song
func (r *Remote) Refresh(ctx context.Context) error {
	if err := r.manager.FetchSetlist(ctx); err != nil {
		return err
	}
	return r.manager.FetchSong(ctx)
}

// Connect connects with the current config
func (r *Remote) Connect(ctx context.Context) error {
	wasConnected := r.manager.Connected()
	if err := r.manager.EnsureConnection(r.Config().Endpoint()); err != nil {
		return err
	}
	if !wasConnected {
		r.refresh(ctx)
	}
	return nil
}

// Disconnect tears the connection down. The next poll reconnects.
func (r *Remote) Disconnect() error {
	return r.manager.Disconnect()
}

// Reconnect disconnects and connects again with the current config
func (r *Remote) Reconnect(ctx context.Context) error {
	if err := r.manager.Disconnect(); err != nil {
		log.Printf("Remote: %v", err)
	}
	return r.Connect(ctx)
}

// Config returns the active configuration
func (r *Remote) Config() config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig validates and applies cfg, saving it if a path is configured.
// A changed config reconnects.
func (r *Remote) SetConfig(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	changed := r.cfg != cfg
	r.cfg = cfg
	r.mu.Unlock()

	if r.opts.ConfigPath != "" {
		if err := config.Save(r.opts.ConfigPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	if !changed {
		return nil
	}

	log.Printf("Remote: config changed, mtrack at %s, listening on %d", cfg.MtrackAddr, cfg.ListenPort)
	return r.Reconnect(ctx)
}

// ApplyConfig adopts a config that was changed on disk, without re-saving it
func (r *Remote) ApplyConfig(ctx context.Context, cfg config.Config) error {
	r.mu.Lock()
	changed := r.cfg != cfg
	r.cfg = cfg
	r.mu.Unlock()

	if !changed {
		return nil
	}
	log.Printf("Remote: config reloaded, mtrack at %s, listening on %d", cfg.MtrackAddr, cfg.ListenPort)
	return r.Reconnect(ctx)
}

// Status returns the latest poll result
func (r *Remote) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Subscribe returns a channel of poll results and a cancel func.
// Slow subscribers miss intermediate results.
func (r *Remote) Subscribe() (<-chan Status, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	ch := make(chan Status, 1)
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

func (r *Remote) lastState() *mtrack.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last.State
}

func (r *Remote) publish(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last = status
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- status:
		default:
		}
	}
}

// ReadState reads the cached playback state directly from the manager
func (r *Remote) ReadState() (mtrack.PlaybackState, error) {
	return r.manager.ReadState()
}
