// ABOUTME: UDP transport that owns the mtrack socket
// ABOUTME: One loop multiplexes inbound datagrams and queued outbound commands
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mtrack-remote/mtrack-remote-go/internal/mtrack"
	"github.com/mtrack-remote/mtrack-remote-go/internal/osc"
)

// QueueSize is the command queue capacity. Senders block when it is full.
const QueueSize = 16

var (
	ErrBind        = errors.New("transport: bind failed")
	ErrSend        = errors.New("transport: send failed")
	ErrQueueClosed = errors.New("transport: command queue closed")
	ErrJoin        = errors.New("transport: loop did not terminate cleanly")
)

// Config describes one connection to the engine
type Config struct {
	// RemoteAddr is the engine's host:port
	RemoteAddr string

	// LocalPort is the UDP port bound on 0.0.0.0 (0 picks a free port)
	LocalPort int

	// OnError receives dropped-datagram and failed-send errors (default: log)
	OnError func(error)
}

// Sink receives every successfully decoded packet
type Sink interface {
	Apply(osc.Packet)
}

// Stats counts loop activity
type Stats struct {
	Received int64 `json:"received"`
	Dropped  int64 `json:"dropped"`
	Sent     int64 `json:"sent"`
	Failed   int64 `json:"failed"`
}

// Transport owns a bound UDP socket and the goroutine serving it
type Transport struct {
	id       string
	config   Config
	remote   *net.UDPAddr
	conn     *net.UDPConn
	sink     Sink
	commands chan mtrack.Command

	// done is closed when the loop has returned; err is its result
	done chan struct{}
	err  error

	received atomic.Int64
	dropped  atomic.Int64
	sent     atomic.Int64
	failed   atomic.Int64
}

// New binds the socket and starts the loop
func New(config Config, sink Sink) (*Transport, error) {
	remote, err := net.ResolveUDPAddr("udp4", config.RemoteAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %q: %v", ErrBind, config.RemoteAddr, err)
	}

	local := &net.UDPAddr{IP: net.IPv4zero, Port: config.LocalPort}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBind, local, err)
	}

	t := &Transport{
		id:       uuid.New().String(),
		config:   config,
		remote:   remote,
		conn:     conn,
		sink:     sink,
		commands: make(chan mtrack.Command, QueueSize),
		done:     make(chan struct{}),
	}

	log.Printf("Transport %s: listening on %s, engine at %s", t.id, conn.LocalAddr(), remote)

	go t.run()

	return t, nil
}

// ID identifies this transport in logs
func (t *Transport) ID() string {
	return t.id
}

// LocalAddr returns the bound socket address
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Send queues cmd, waiting for a free slot if the queue is full
func (t *Transport) Send(ctx context.Context, cmd mtrack.Command) error {
	select {
	case <-t.done:
		return ErrQueueClosed
	default:
	}

	select {
	case t.commands <- cmd:
		return nil
	case <-t.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the loop has returned and the socket is closed
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the loop returns. A non-nil result wraps ErrJoin.
func (t *Transport) Wait() error {
	<-t.done
	return t.err
}

// Stats returns a snapshot of the loop counters
func (t *Transport) Stats() Stats {
	return Stats{
		Received: t.received.Load(),
		Dropped:  t.dropped.Load(),
		Sent:     t.sent.Load(),
		Failed:   t.failed.Load(),
	}
}

func (t *Transport) run() {
	defer close(t.done)

	datagrams := make(chan []byte)
	stop := make(chan struct{})
	readerDone := make(chan struct{})

	go t.readLoop(datagrams, stop, readerDone)

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Transport %s: loop panicked: %v", t.id, r)
			t.err = fmt.Errorf("%w: %v", ErrJoin, r)
		}
		close(stop)
		t.conn.Close()
		<-readerDone
		log.Printf("Transport %s: closed", t.id)
	}()

	t.loop(datagrams)
}

// loop handles one event at a time. When a datagram and a command are both
// ready, select picks either; neither source has priority.
func (t *Transport) loop(datagrams <-chan []byte) {
	for {
		select {
		case data := <-datagrams:
			t.handleDatagram(data)

		case cmd := <-t.commands:
			if cmd == mtrack.Disconnect {
				log.Printf("Transport %s: disconnect requested", t.id)
				return
			}
			t.handleCommand(cmd)
		}
	}
}

// readLoop feeds datagrams to the loop until the socket is closed
func (t *Transport) readLoop(datagrams chan<- []byte, stop <-chan struct{}, readerDone chan<- struct{}) {
	defer close(readerDone)

	buf := make([]byte, osc.MaxDatagramSize)
	for {
		n, from, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Transport %s: receive error: %v", t.id, err)
			select {
			case <-stop:
				return
			default:
				continue
			}
		}

		if from != nil && !from.IP.Equal(t.remote.IP) && !t.remote.IP.IsUnspecified() {
			log.Printf("Transport %s: datagram from %s (engine is %s)", t.id, from, t.remote)
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case datagrams <- data:
		case <-stop:
			return
		}
	}
}

func (t *Transport) handleDatagram(data []byte) {
	p, err := osc.Decode(data)
	if err != nil {
		t.dropped.Add(1)
		t.reportError(err)
		return
	}

	t.received.Add(1)
	t.sink.Apply(p)
}

func (t *Transport) handleCommand(cmd mtrack.Command) {
	frame := mtrack.Encode(cmd)
	if frame == nil {
		t.failed.Add(1)
		t.reportError(fmt.Errorf("%w: %s has no wire form", ErrSend, cmd))
		return
	}

	if _, err := t.conn.WriteToUDP(frame, t.remote); err != nil {
		t.failed.Add(1)
		t.reportError(fmt.Errorf("%w: %s to %s: %v", ErrSend, cmd, t.remote, err))
		return
	}

	t.sent.Add(1)
}

func (t *Transport) reportError(err error) {
	if t.config.OnError != nil {
		t.config.OnError(err)
		return
	}
	log.Printf("Transport %s: %v", t.id, err)
}
