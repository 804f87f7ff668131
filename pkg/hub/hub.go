package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// Options tunes hub and per-connection transport behavior
type Options struct {
	SendBufferSize int
	ReadLimitBytes int64
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
}

// DefaultOptions returns sensible defaults for the hub
func DefaultOptions() Options {
	return Options{
		SendBufferSize: 64,
		ReadLimitBytes: 4096,
		WriteTimeout:   10 * time.Second,
		PongTimeout:    60 * time.Second,
	}
}

type inboundEvent struct {
	client *Client
	msg    *protocol.Message
}

// Hub owns the registry, role coordinator and broadcaster, and serializes
// every state mutation through a single dispatch goroutine: each inbound
// event is handled to completion before the next is processed, so the
// registry and bus designation never see parallel mutation.
type Hub struct {
	opts        Options
	registry    *Registry
	coordinator *Coordinator
	broadcaster *Broadcaster
	dispatcher  *Dispatcher
	metrics     Metrics
	publisher   Publisher

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	done       chan struct{}

	running   bool
	runningMu sync.Mutex
}

// New creates a hub. metrics and publisher may be nil.
func New(opts Options, metrics Metrics, publisher Publisher) *Hub {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry, metrics)

	h := &Hub{
		opts:        opts,
		registry:    registry,
		broadcaster: broadcaster,
		coordinator: NewCoordinator(registry, broadcaster, metrics),
		dispatcher:  NewDispatcher(),
		metrics:     metrics,
		publisher:   publisher,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan inboundEvent, 256),
		done:        make(chan struct{}),
	}

	h.dispatcher.Register(NewReportLocationHandler(h))
	h.dispatcher.Register(NewRequestBusRoleHandler(h))
	h.dispatcher.Register(NewReleaseBusRoleHandler(h))

	return h
}

// Start launches the dispatch loop. Duplicate starts are ignored.
func (h *Hub) Start() {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	if h.running {
		logger.Get().WarnWith("hub already running, skipping duplicate start")
		return
	}
	h.running = true
	go h.run()
}

// Stop terminates the dispatch loop and closes all client send channels
func (h *Hub) Stop() {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.done)

	for _, c := range h.registry.All() {
		c.closeSend()
	}
}

// IsRunning reports whether the dispatch loop is active
func (h *Hub) IsRunning() bool {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()
	return h.running
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return
		case c := <-h.register:
			h.safeHandle(func() { h.handleRegister(c) })
		case c := <-h.unregister:
			h.safeHandle(func() { h.handleUnregister(c) })
		case ev := <-h.inbound:
			h.safeHandle(func() { h.handleInbound(ev) })
		}
	}
}

// safeHandle confines a handler panic to the single event that caused it;
// the loop and every other session keep going
func (h *Hub) safeHandle(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().ErrorWith("panic recovered in hub event handler", "panic", r)
		}
	}()
	fn()
}

// NewClient wraps a WebSocket connection in a Client with a fresh opaque
// identifier. A reconnecting browser gets a brand-new identity.
func (h *Hub) NewClient(conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		id:           uuid.NewString(),
		conn:         conn,
		send:         make(chan *protocol.Message, h.opts.SendBufferSize),
		connectedAt:  time.Now(),
		remoteAddr:   remoteAddr,
		readLimit:    h.opts.ReadLimitBytes,
		writeTimeout: h.opts.WriteTimeout,
		pongTimeout:  h.opts.PongTimeout,
		role:         protocol.RoleRider,
	}
}

// Register hands a new client to the dispatch loop
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister hands a departing client to the dispatch loop
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.closeSend()
	}
}

// Inbound hands a client message to the dispatch loop
func (h *Hub) Inbound(c *Client, msg *protocol.Message) {
	select {
	case h.inbound <- inboundEvent{client: c, msg: msg}:
	case <-h.done:
	}
}

// Connections returns a snapshot of all connected clients
func (h *Hub) Connections() []protocol.ConnectionInfo {
	return h.registry.Snapshot()
}

// Connection returns the snapshot entry for one client
func (h *Hub) Connection(id string) (protocol.ConnectionInfo, bool) {
	c, ok := h.registry.Get(id)
	if !ok {
		return protocol.ConnectionInfo{}, false
	}
	return c.Info(), true
}

// BusID returns the currently designated bus connection ID, or empty
func (h *Hub) BusID() string {
	return h.coordinator.BusID()
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	return h.registry.Count()
}

// handleRegister adds the client and sends it one full snapshot of current
// state, bus designation included. There is no incremental replay.
func (h *Hub) handleRegister(c *Client) {
	h.registry.Register(c)
	h.metrics.ConnectionsSet(h.registry.Count())
	logger.Get().InfoWith("connection registered", "connID", c.id, "remote", c.remoteAddr)

	msg, err := protocol.NewMessage(protocol.MsgTypeSnapshot, &protocol.SnapshotPayload{
		Connections: h.registry.Snapshot(),
		BusID:       h.coordinator.BusID(),
	})
	if err != nil {
		logger.Get().ErrorWithErr("failed to build snapshot", err, "connID", c.id)
		return
	}
	h.broadcaster.Send(c, msg)
	h.metrics.SnapshotSent()
}

// handleUnregister runs the disconnect path: release the bus role if held,
// drop the registry entry, then tell the remaining peers
func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.registry.Get(c.id); !ok {
		// Already removed; nothing to announce
		c.closeSend()
		return
	}

	h.coordinator.OnDisconnect(c.id)
	h.registry.Remove(c.id)
	c.closeSend()
	h.metrics.ConnectionsSet(h.registry.Count())
	logger.Get().InfoWith("connection removed", "connID", c.id)

	msg, err := protocol.NewMessage(protocol.MsgTypePeerDisconnected, &protocol.PeerDisconnectedPayload{
		ID: c.id,
	})
	if err != nil {
		logger.Get().ErrorWithErr("failed to build disconnect notice", err, "connID", c.id)
		return
	}
	h.broadcaster.BroadcastAll(msg)
}

// handleInbound validates the sender still exists, then dispatches.
// Malformed payloads and unknown types are dropped without mutation,
// broadcast, or an error back to the client.
func (h *Hub) handleInbound(ev inboundEvent) {
	start := time.Now()
	h.metrics.EventReceived(string(ev.msg.Type))

	if _, ok := h.registry.Get(ev.client.id); !ok {
		logger.Get().DebugWith("event from disconnected connection dropped", "connID", ev.client.id, "type", ev.msg.Type)
		return
	}

	if err := h.dispatcher.Dispatch(ev.client, ev.msg); err != nil {
		h.metrics.EventRejected()
		logger.Get().WarnWith("inbound event dropped", "connID", ev.client.id, "type", ev.msg.Type, "error", err)
	}

	h.metrics.HandlerObserve(time.Since(start))
}

// publishLocation mirrors an accepted report to the external sink, if any
func (h *Hub) publishLocation(c *Client, lat, lon float64) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishLocation(c.ID(), string(c.Role()), lat, lon); err != nil {
		logger.Get().WarnWith("position mirror publish failed", "connID", c.ID(), "error", err)
	}
}
