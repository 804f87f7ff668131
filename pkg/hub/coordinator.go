package hub

import (
	"sync"

	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// Coordinator enforces the single-bus designation. At most one connection
// holds the bus role at any time; promotion is first-come-first-served and
// a later request unconditionally displaces the current holder.
type Coordinator struct {
	registry  *Registry
	broadcast *Broadcaster
	metrics   Metrics

	mu    sync.RWMutex
	busID string // empty when no bus is designated
}

// NewCoordinator creates a coordinator over the given registry and broadcaster
func NewCoordinator(registry *Registry, broadcast *Broadcaster, metrics Metrics) *Coordinator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Coordinator{
		registry:  registry,
		broadcast: broadcast,
		metrics:   metrics,
	}
}

// BusID returns the ID of the currently designated bus, or empty
func (co *Coordinator) BusID() string {
	co.mu.RLock()
	defer co.mu.RUnlock()
	return co.busID
}

func (co *Coordinator) setBusID(id string) {
	co.mu.Lock()
	co.busID = id
	co.mu.Unlock()
}

// Promote designates the connection as the bus. Any current holder is
// demoted first and receives a targeted demotion notice; the new
// designation is then broadcast to everyone. Re-promoting the current bus
// still re-broadcasts the designation.
func (co *Coordinator) Promote(id string) {
	c, ok := co.registry.Get(id)
	if !ok {
		logger.Get().DebugWith("promotion request for unknown connection", "connID", id)
		return
	}

	current := co.BusID()
	if current != "" && current != id {
		if old, exists := co.registry.Get(current); exists {
			old.setRole(protocol.RoleRider)
			co.notifyRole(old.id, protocol.RoleRider)
			co.metrics.DemotionInc()
		}
	}

	c.setRole(protocol.RoleBus)
	co.setBusID(id)
	co.metrics.PromotionInc()
	logger.Get().InfoWith("bus role assigned", "connID", id, "displaced", current)

	co.announceRole(id, protocol.RoleBus)
}

// Demote releases the bus designation, but only if the connection actually
// holds it. Anything else is a no-op with no broadcast.
func (co *Coordinator) Demote(id string) {
	if co.BusID() != id {
		return
	}

	co.setBusID("")
	if c, ok := co.registry.Get(id); ok {
		c.setRole(protocol.RoleRider)
		co.notifyRole(id, protocol.RoleRider)
	}
	co.metrics.DemotionInc()
	logger.Get().InfoWith("bus role released", "connID", id)

	// Empty ID tells all clients no bus is designated
	co.announceRole("", protocol.RoleRider)
}

// OnDisconnect clears the designation if the departing connection was the
// bus, announcing the cleared state to the remaining connections
func (co *Coordinator) OnDisconnect(id string) {
	if co.BusID() != id {
		return
	}

	co.setBusID("")
	logger.Get().InfoWith("bus designation cleared by disconnect", "connID", id)

	msg, err := protocol.NewMessage(protocol.MsgTypeRoleChanged, &protocol.RoleChangedPayload{
		ID:   "",
		Role: protocol.RoleRider,
	})
	if err != nil {
		logger.Get().ErrorWithErr("failed to build role change broadcast", err)
		return
	}
	co.broadcast.BroadcastExcept(id, msg)
}

// notifyRole sends a targeted role change notice to one connection
func (co *Coordinator) notifyRole(id string, role protocol.Role) {
	msg, err := protocol.NewMessage(protocol.MsgTypeRoleChanged, &protocol.RoleChangedPayload{
		ID:   id,
		Role: role,
	})
	if err != nil {
		logger.Get().ErrorWithErr("failed to build role change notice", err, "connID", id)
		return
	}
	co.broadcast.SendTo(id, msg)
}

// announceRole broadcasts a role change to every connection
func (co *Coordinator) announceRole(id string, role protocol.Role) {
	msg, err := protocol.NewMessage(protocol.MsgTypeRoleChanged, &protocol.RoleChangedPayload{
		ID:   id,
		Role: role,
	})
	if err != nil {
		logger.Get().ErrorWithErr("failed to build role change broadcast", err, "connID", id)
		return
	}
	co.broadcast.BroadcastAll(msg)
}
