// ABOUTME: Shared playback state cache
// ABOUTME: One writer (the transport loop) and poll-style readers that never wait
package mtrack

import (
	"errors"
	"sync"

	"github.com/mtrack-remote/mtrack-remote-go/internal/osc"
)

// ErrCacheBusy means a write was in progress; poll again later
var ErrCacheBusy = errors.New("mtrack: state cache busy")

// Cache holds the single most recent PlaybackState
type Cache struct {
	mu    sync.RWMutex
	state PlaybackState
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{state: PlaybackState{Setlist: []string{}}}
}

// Apply folds p into the cached state under the write lock
func (c *Cache) Apply(p osc.Packet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Apply(c.state, p)
}

// TryRead returns a copy of the state, or ErrCacheBusy if the write lock is held
func (c *Cache) TryRead() (PlaybackState, error) {
	if !c.mu.TryRLock() {
		return PlaybackState{}, ErrCacheBusy
	}
	defer c.mu.RUnlock()
	return c.state.Clone(), nil
}
