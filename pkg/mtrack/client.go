// ABOUTME: Public client for controlling an mtrack engine
// ABOUTME: Wraps the connection manager with a dial/close lifecycle
package mtrack

import (
	"context"
	"fmt"

	"github.com/mtrack-remote/mtrack-remote-go/internal/connection"
	internalmtrack "github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/transport"
)

// Errors returned by Client methods
var (
	ErrNotConnected = connection.ErrNotConnected
	ErrCacheBusy    = connection.ErrCacheBusy
	ErrBind         = transport.ErrBind
	ErrQueueClosed  = transport.ErrQueueClosed
)

// DefaultListenPort is the local port used when Config.ListenPort is zero
const DefaultListenPort = 43236

// State is the playback state last reported by the engine
type State = internalmtrack.PlaybackState

// Config holds client configuration
type Config struct {
	// Addr is the engine's OSC address (host:port)
	Addr string

	// ListenPort is the local UDP port the engine replies to (default: 43236)
	ListenPort int

	// OnError is called for malformed datagrams and failed sends
	OnError func(error)
}

// Client is a connected mtrack remote
type Client struct {
	manager *connection.Manager
}

// Dial binds the local port and starts talking to the engine
func Dial(config Config) (*Client, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("mtrack: engine address is required")
	}
	if config.ListenPort == 0 {
		config.ListenPort = DefaultListenPort
	}

	m := connection.NewManager()
	m.OnError = config.OnError
	if err := m.EnsureConnection(connection.Endpoint{
		RemoteAddr: config.Addr,
		LocalPort:  config.ListenPort,
	}); err != nil {
		return nil, err
	}

	return &Client{manager: m}, nil
}

// Play starts playback
func (c *Client) Play(ctx context.Context) error { return c.manager.Play(ctx) }

// Stop stops playback
func (c *Client) Stop(ctx context.Context) error { return c.manager.Stop(ctx) }

// Next moves to the next song
func (c *Client) Next(ctx context.Context) error { return c.manager.Next(ctx) }

// Prev moves to the previous song
func (c *Client) Prev(ctx context.Context) error { return c.manager.Prev(ctx) }

// Refresh asks the engine for its setlist and current song
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.manager.FetchSetlist(ctx); err != nil {
		return err
	}
	return c.manager.FetchSong(ctx)
}

// State returns the latest playback state without blocking
func (c *Client) State() (State, error) {
	return c.manager.ReadState()
}

// Alive reports whether the client's transport is still running
func (c *Client) Alive() bool {
	return c.manager.Connected() && !c.manager.Lost()
}

// Close disconnects and releases the local port
func (c *Client) Close() error {
	err := c.manager.Disconnect()
	if rerr := c.manager.Release(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
