// ABOUTME: Minimal mtrack engine emulator for development and tests
// ABOUTME: Answers the remote's OSC commands with status, song, and setlist updates
package mtracksim

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/osc"
)

// Config holds emulator configuration
type Config struct {
	// ListenAddr is the UDP address to bind (default 127.0.0.1:0)
	ListenAddr string

	// Setlist is the song list served to clients
	Setlist []string
}

// DefaultSetlist is used when Config.Setlist is empty
var DefaultSetlist = []string{"Opener", "Second Song", "Ballad", "Encore"}

// Engine is a fake mtrack speaking just enough OSC for the remote
type Engine struct {
	conn *net.UDPConn

	mu      sync.Mutex
	setlist []string
	current int
	playing bool
	started time.Time
}

// New binds the emulator socket
func New(config Config) (*Engine, error) {
	listen := config.ListenAddr
	if listen == "" {
		listen = "127.0.0.1:0"
	}
	addr, err := net.ResolveUDPAddr("udp4", listen)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", listen, err)
	}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	setlist := config.Setlist
	if len(setlist) == 0 {
		setlist = DefaultSetlist
	}

	return &Engine{
		conn:    conn,
		setlist: append([]string(nil), setlist...),
	}, nil
}

// Addr returns the bound address
func (e *Engine) Addr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Serve answers datagrams until ctx is cancelled or the engine is closed
func (e *Engine) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { e.conn.Close() })
	defer stop()

	log.Printf("Sim: mtrack emulator listening on %s", e.Addr())

	buf := make([]byte, osc.MaxDatagramSize)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		p, err := osc.Decode(buf[:n])
		if err != nil {
			log.Printf("Sim: dropping datagram from %s: %v", from, err)
			continue
		}

		osc.Walk(p, func(m *osc.Message) {
			if reply := e.handle(m.Address); reply != nil {
				e.reply(from, reply)
			}
		})
	}
}

// Close releases the socket
func (e *Engine) Close() error {
	return e.conn.Close()
}

// handle updates emulator state and builds the reply for one command
func (e *Engine) handle(address string) osc.Packet {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch address {
	case mtrack.AddrPlay:
		e.playing = true
		e.started = time.Now()
		return osc.NewGroup(e.statusMessage(), e.songMessage(), e.elapsedMessage())

	case mtrack.AddrStop:
		e.playing = false
		return osc.NewGroup(e.statusMessage(), e.elapsedMessage())

	case mtrack.AddrNext:
		if e.current < len(e.setlist)-1 {
			e.current++
		}
		e.started = time.Now()
		return osc.NewGroup(e.songMessage(), e.elapsedMessage())

	case mtrack.AddrPrev:
		if e.current > 0 {
			e.current--
		}
		e.started = time.Now()
		return osc.NewGroup(e.songMessage(), e.elapsedMessage())

	case mtrack.AddrPlaylist:
		return osc.NewMessage(mtrack.AddrSetlist, strings.Join(e.setlist, "\n"))

	case mtrack.AddrSong:
		return e.songMessage()

	default:
		log.Printf("Sim: unknown address %s", address)
		return nil
	}
}

func (e *Engine) statusMessage() *osc.Message {
	status := "Stopped"
	if e.playing {
		status = mtrack.StatusPlaying
	}
	return osc.NewMessage(mtrack.AddrStatus, status)
}

func (e *Engine) songMessage() *osc.Message {
	return osc.NewMessage(mtrack.AddrCurrentSong, e.setlist[e.current])
}

func (e *Engine) elapsedMessage() *osc.Message {
	var elapsed time.Duration
	if e.playing {
		elapsed = time.Since(e.started)
	}
	return osc.NewMessage(mtrack.AddrElapsed, formatElapsed(elapsed))
}

func (e *Engine) reply(to *net.UDPAddr, p osc.Packet) {
	data, err := osc.Marshal(p)
	if err != nil {
		log.Printf("Sim: encode reply: %v", err)
		return
	}
	if _, err := e.conn.WriteToUDP(data, to); err != nil {
		log.Printf("Sim: reply to %s: %v", to, err)
	}
}

func formatElapsed(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
