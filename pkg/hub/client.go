package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// Client represents one connected session. Role and location are mutated
// only by the hub dispatch goroutine; the lock exists for read-only HTTP
// views that observe state concurrently.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan *protocol.Message
	connectedAt time.Time
	remoteAddr  string

	readLimit    int64
	writeTimeout time.Duration
	pongTimeout  time.Duration

	mu       sync.RWMutex
	role     protocol.Role
	location *protocol.Location
	closed   bool // Track if send channel is closed
}

// ID returns the opaque connection identifier
func (c *Client) ID() string {
	return c.id
}

// Role returns the client's current role
func (c *Client) Role() protocol.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

func (c *Client) setRole(role protocol.Role) {
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

// Location returns a copy of the last reported location, or nil before the
// first report
func (c *Client) Location() *protocol.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.location == nil {
		return nil
	}
	loc := *c.location
	return &loc
}

func (c *Client) setLocation(lat, lon float64) {
	c.mu.Lock()
	c.location = &protocol.Location{Lat: lat, Lon: lon}
	c.mu.Unlock()
}

// Info returns the client's state as it appears in a snapshot
func (c *Client) Info() protocol.ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info := protocol.ConnectionInfo{
		ID:   c.id,
		Role: c.role,
	}
	if c.location != nil {
		loc := *c.location
		info.Location = &loc
	}
	return info
}

// enqueue hands a message to the client's write pump without blocking.
// Returns false if the channel is closed or full; a full channel means the
// receiver is too slow and the message is dropped.
func (c *Client) enqueue(msg *protocol.Message) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend safely closes the client's send channel
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// ReadPump reads messages from the WebSocket and feeds them to the hub.
// It runs in its own goroutine; exit triggers the disconnect path.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		if c.conn != nil {
			c.conn.Close()
		}
	}()

	c.conn.SetReadLimit(c.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Get().DebugWith("connection read error", "connID", c.id, "error", err)
			}
			return
		}
		h.Inbound(c, &msg)
	}
}

// WritePump drains the send channel onto the WebSocket and keeps the
// connection alive with pings
func (c *Client) WritePump() {
	pingPeriod := c.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if c.conn != nil {
			c.conn.Close()
		}
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
