package hub

import (
	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// Broadcaster fans messages out to connected clients. Delivery is
// best-effort: a slow receiver has messages dropped rather than stalling
// the dispatch loop.
type Broadcaster struct {
	registry *Registry
	metrics  Metrics
}

// NewBroadcaster creates a broadcaster over the given registry
func NewBroadcaster(registry *Registry, metrics Metrics) *Broadcaster {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Broadcaster{
		registry: registry,
		metrics:  metrics,
	}
}

// Send delivers a message to a single client
func (b *Broadcaster) Send(c *Client, msg *protocol.Message) {
	if c.enqueue(msg) {
		b.metrics.MessageSent()
		return
	}
	b.metrics.MessageDropped()
	logger.Get().WarnWith("dropped outbound message", "connID", c.id, "type", msg.Type)
}

// SendTo delivers a message to the client with the given ID, if present
func (b *Broadcaster) SendTo(id string, msg *protocol.Message) {
	if c, ok := b.registry.Get(id); ok {
		b.Send(c, msg)
	}
}

// BroadcastAll delivers a message to every connected client
func (b *Broadcaster) BroadcastAll(msg *protocol.Message) {
	for _, c := range b.registry.All() {
		b.Send(c, msg)
	}
}

// BroadcastExcept delivers a message to every client except the named one
func (b *Broadcaster) BroadcastExcept(exceptID string, msg *protocol.Message) {
	for _, c := range b.registry.All() {
		if c.id == exceptID {
			continue
		}
		b.Send(c, msg)
	}
}

// Report records a client's position and relays it to all peers. The
// sender never receives its own echo. Reports for unknown connections are
// dropped.
func (b *Broadcaster) Report(id string, lat, lon float64) bool {
	if !b.registry.UpdateLocation(id, lat, lon) {
		return false
	}

	c, ok := b.registry.Get(id)
	if !ok {
		return false
	}

	msg, err := protocol.NewMessage(protocol.MsgTypeLocationBroadcast, &protocol.LocationBroadcastPayload{
		ID:   id,
		Role: c.Role(),
		Lat:  lat,
		Lon:  lon,
	})
	if err != nil {
		logger.Get().ErrorWithErr("failed to build location broadcast", err, "connID", id)
		return false
	}

	b.BroadcastExcept(id, msg)
	return true
}
