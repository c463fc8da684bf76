// ABOUTME: Connection states and the transitions between them
// ABOUTME: Disconnected holds nothing; Connected holds the live transport
package connection

import (
	"github.com/mtrack-remote/mtrack-remote-go/internal/transport"
)

// Endpoint is what the manager needs to connect
type Endpoint struct {
	// RemoteAddr is the engine's host:port
	RemoteAddr string

	// LocalPort is the UDP port this bridge listens on
	LocalPort int
}

type state interface {
	String() string
}

type disconnected struct{}

type connected struct {
	transport *transport.Transport
	endpoint  Endpoint
}

func (disconnected) String() string { return "disconnected" }
func (connected) String() string    { return "connected" }

// The only legal transitions. Each takes the state it leaves by value.

func (disconnected) connect(t *transport.Transport, ep Endpoint) connected {
	return connected{transport: t, endpoint: ep}
}

func (connected) disconnect() disconnected {
	return disconnected{}
}
