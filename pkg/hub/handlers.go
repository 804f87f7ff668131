package hub

import (
	"fmt"

	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// reportLocationHandler processes position reports: registry update, then
// fan-out to every peer except the sender
type reportLocationHandler struct {
	hub *Hub
}

// NewReportLocationHandler creates the handler for report-location events
func NewReportLocationHandler(h *Hub) Handler {
	return &reportLocationHandler{hub: h}
}

func (r *reportLocationHandler) MessageType() protocol.MessageType {
	return protocol.MsgTypeReportLocation
}

func (r *reportLocationHandler) Handle(c *Client, msg *protocol.Message) error {
	var payload protocol.ReportLocationPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return fmt.Errorf("parse location report: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return err
	}

	lat, lon := *payload.Lat, *payload.Lon
	if r.hub.broadcaster.Report(c.ID(), lat, lon) {
		r.hub.publishLocation(c, lat, lon)
	}
	return nil
}

// requestBusRoleHandler promotes the requesting connection to bus
type requestBusRoleHandler struct {
	hub *Hub
}

// NewRequestBusRoleHandler creates the handler for request-bus-role events
func NewRequestBusRoleHandler(h *Hub) Handler {
	return &requestBusRoleHandler{hub: h}
}

func (r *requestBusRoleHandler) MessageType() protocol.MessageType {
	return protocol.MsgTypeRequestBusRole
}

func (r *requestBusRoleHandler) Handle(c *Client, msg *protocol.Message) error {
	r.hub.coordinator.Promote(c.ID())
	return nil
}

// releaseBusRoleHandler demotes the requesting connection if it is the bus
type releaseBusRoleHandler struct {
	hub *Hub
}

// NewReleaseBusRoleHandler creates the handler for release-bus-role events
func NewReleaseBusRoleHandler(h *Hub) Handler {
	return &releaseBusRoleHandler{hub: h}
}

func (r *releaseBusRoleHandler) MessageType() protocol.MessageType {
	return protocol.MsgTypeReleaseBusRole
}

func (r *releaseBusRoleHandler) Handle(c *Client, msg *protocol.Message) error {
	r.hub.coordinator.Demote(c.ID())
	return nil
}
