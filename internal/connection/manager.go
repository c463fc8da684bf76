// ABOUTME: Connection manager for the mtrack bridge
// ABOUTME: Drives the Disconnected/Connected state machine and dispatches commands
package connection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/transport"
)

var (
	// ErrNotConnected is returned by commands and reads while disconnected
	ErrNotConnected = errors.New("connection: not connected")

	// ErrCacheBusy is returned by ReadState when the state is being written
	ErrCacheBusy = mtrack.ErrCacheBusy

	// ErrStillConnected is a contract violation: the manager was released
	// while its transport was still running
	ErrStillConnected = errors.New("connection: released while still connected")
)

// Manager owns at most one live transport and the process-wide state cache
type Manager struct {
	mu    sync.RWMutex
	state state

	cache *mtrack.Cache
	sink  transport.Sink
	open  func(transport.Config, transport.Sink) (*transport.Transport, error)

	// OnError receives transport errors; nil logs them
	OnError func(error)
}

// NewManager creates a disconnected manager with an empty cache
func NewManager() *Manager {
	cache := mtrack.NewCache()
	return &Manager{
		state: disconnected{},
		cache: cache,
		sink:  cache,
		open:  transport.New,
	}
}

// EnsureConnection connects if disconnected and does nothing otherwise.
// On failure the manager stays disconnected and may be retried.
func (m *Manager) EnsureConnection(ep Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch s := m.state.(type) {
	case connected:
		return nil

	case disconnected:
		t, err := m.open(transport.Config{
			RemoteAddr: ep.RemoteAddr,
			LocalPort:  ep.LocalPort,
			OnError:    m.OnError,
		}, m.sink)
		if err != nil {
			log.Printf("Connection: could not connect to %s: %v", ep.RemoteAddr, err)
			return fmt.Errorf("connection: connect to %s: %w", ep.RemoteAddr, err)
		}

		m.state = s.connect(t, ep)
		log.Printf("Connection: connected to %s (session %s)", ep.RemoteAddr, t.ID())
		return nil

	default:
		return fmt.Errorf("connection: unknown state %v", s)
	}
}

// Disconnect stops the transport and waits for its loop to finish. The
// manager is disconnected afterwards even if the loop failed; that failure
// is returned.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.state.(connected)
	if !ok {
		return nil
	}

	t := s.transport
	if err := t.Send(context.Background(), mtrack.Disconnect); err != nil && !errors.Is(err, transport.ErrQueueClosed) {
		log.Printf("Connection: failed to queue disconnect: %v", err)
	}

	joinErr := t.Wait()
	m.state = s.disconnect()

	if joinErr != nil {
		log.Printf("Connection: session %s ended badly: %v", t.ID(), joinErr)
		return fmt.Errorf("connection: disconnect: %w", joinErr)
	}

	log.Printf("Connection: disconnected (session %s)", t.ID())
	return nil
}

// Connected reports whether a transport is held
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.state.(connected)
	return ok
}

// Lost reports whether the manager is connected to a transport whose loop
// has already stopped. Callers should Disconnect to collect the failure.
func (m *Manager) Lost() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.state.(connected)
	if !ok {
		return false
	}
	select {
	case <-s.transport.Done():
		return true
	default:
		return false
	}
}

// Session returns the live transport's ID
func (m *Manager) Session() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.state.(connected); ok {
		return s.transport.ID(), true
	}
	return "", false
}

// Endpoint returns the endpoint of the live connection
func (m *Manager) Endpoint() (Endpoint, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.state.(connected); ok {
		return s.endpoint, true
	}
	return Endpoint{}, false
}

// Stats returns the live transport's counters
func (m *Manager) Stats() (transport.Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.state.(connected); ok {
		return s.transport.Stats(), true
	}
	return transport.Stats{}, false
}

// Play asks the engine to start playback
func (m *Manager) Play(ctx context.Context) error { return m.send(ctx, mtrack.Play) }

// Stop asks the engine to stop playback
func (m *Manager) Stop(ctx context.Context) error { return m.send(ctx, mtrack.Stop) }

// Next skips to the next song
func (m *Manager) Next(ctx context.Context) error { return m.send(ctx, mtrack.Next) }

// Prev goes back to the previous song
func (m *Manager) Prev(ctx context.Context) error { return m.send(ctx, mtrack.Prev) }

// FetchSong requests the current song
func (m *Manager) FetchSong(ctx context.Context) error { return m.send(ctx, mtrack.GetSong) }

// FetchSetlist requests the setlist
func (m *Manager) FetchSetlist(ctx context.Context) error { return m.send(ctx, mtrack.GetSetlist) }

func (m *Manager) send(ctx context.Context, cmd mtrack.Command) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.state.(connected)
	if !ok {
		return ErrNotConnected
	}

	if err := s.transport.Send(ctx, cmd); err != nil {
		log.Printf("Connection: could not queue %s: %v", cmd, err)
		return fmt.Errorf("connection: %s: %w", cmd, err)
	}
	return nil
}

// ReadState returns a copy of the cached state without waiting. It fails
// with ErrCacheBusy if the cache, or the manager itself, is mid-update.
func (m *Manager) ReadState() (mtrack.PlaybackState, error) {
	if !m.mu.TryRLock() {
		return mtrack.PlaybackState{}, ErrCacheBusy
	}
	defer m.mu.RUnlock()

	if _, ok := m.state.(connected); !ok {
		return mtrack.PlaybackState{}, ErrNotConnected
	}
	return m.cache.TryRead()
}

// Release checks that the manager can be discarded. Discarding a connected
// manager would leak its socket and loop; debug builds abort instead.
func (m *Manager) Release() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.state.(connected); ok {
		if debugAssertions {
			panic(fmt.Sprintf("connection: released while session %s is running", s.transport.ID()))
		}
		return ErrStillConnected
	}
	return nil
}
