// ABOUTME: mtrack control commands and their OSC addresses
// ABOUTME: Wire frames are encoded once at init from the static address table
package mtrack

import (
	"fmt"

	"github.com/mtrack-remote/mtrack-remote-go/internal/osc"
)

// Command is a request for the transport loop
type Command int

const (
	GetSetlist Command = iota
	GetSong
	Play
	Stop
	Next
	Prev
	// Disconnect stops the transport loop and has no wire form
	Disconnect
)

// Outbound addresses
const (
	AddrPlaylist = "/mtrack/playlist"
	AddrSong     = "/mtrack/song"
	AddrPlay     = "/mtrack/play"
	AddrStop     = "/mtrack/stop"
	AddrNext     = "/mtrack/next"
	AddrPrev     = "/mtrack/prev"
)

var addresses = map[Command]string{
	GetSetlist: AddrPlaylist,
	GetSong:    AddrSong,
	Play:       AddrPlay,
	Stop:       AddrStop,
	Next:       AddrNext,
	Prev:       AddrPrev,
}

var frames = make(map[Command][]byte, len(addresses))

func init() {
	for cmd, addr := range addresses {
		data, err := osc.Marshal(osc.NewMessage(addr))
		if err != nil {
			panic(fmt.Sprintf("mtrack: encode %s: %v", addr, err))
		}
		frames[cmd] = data
	}
}

// Commands lists every command that has a wire form
func Commands() []Command {
	return []Command{GetSetlist, GetSong, Play, Stop, Next, Prev}
}

// Address returns the OSC address for c. Disconnect has none.
func (c Command) Address() (string, bool) {
	addr, ok := addresses[c]
	return addr, ok
}

// Encode returns the datagram payload for c, or nil for Disconnect.
// Callers must not modify the returned slice.
func Encode(c Command) []byte {
	return frames[c]
}

func (c Command) String() string {
	switch c {
	case GetSetlist:
		return "get-setlist"
	case GetSong:
		return "get-song"
	case Play:
		return "play"
	case Stop:
		return "stop"
	case Next:
		return "next"
	case Prev:
		return "prev"
	case Disconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}
