// ABOUTME: Websocket hub pushing remote status to connected browsers
// ABOUTME: Each client gets a bounded queue; clients that fall behind are dropped
package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mtrack-remote/mtrack-remote-go/internal/remote"
)

const (
	clientQueueSize = 8
	writeDeadline   = 10 * time.Second
	pongWait        = 60 * time.Second
	pingInterval    = 30 * time.Second
)

// client is one websocket subscriber
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

type hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	last    []byte
}

func newHub() *hub {
	return &hub{clients: make(map[string]*client)}
}

// run broadcasts every status until updates is closed
func (h *hub) run(updates <-chan remote.Status) {
	for status := range updates {
		data, err := json.Marshal(status)
		if err != nil {
			log.Printf("Web: error marshaling status: %v", err)
			continue
		}
		h.broadcast(data)
	}
}

func (h *hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("Web: client %s is too slow, dropping", id)
			delete(h.clients, id)
			c.close()
		}
	}
}

func (h *hub) add(conn *websocket.Conn) *client {
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientQueueSize),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()

	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	c.close()
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}

// handleWebSocket upgrades the request and streams status until the client leaves
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Web: websocket upgrade error: %v", err)
		return
	}

	c := s.hub.add(conn)
	log.Printf("Web: client %s connected from %s", c.id, r.RemoteAddr)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.writer()
	}()

	c.reader()
	s.hub.remove(c)
	log.Printf("Web: client %s disconnected", c.id)
}

// reader discards inbound frames so control frames get processed
func (c *client) reader() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Web: client %s: %v", c.id, err)
			}
			return
		}
	}
}

// writer drains the send queue and pings; it closes the socket when the queue closes
func (c *client) writer() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Web: error writing to client %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}
