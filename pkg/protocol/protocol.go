package protocol

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// MessageType defines the type of message being sent
type MessageType string

const (
	// Inbound client events
	MsgTypeReportLocation MessageType = "report-location"
	MsgTypeRequestBusRole MessageType = "request-bus-role"
	MsgTypeReleaseBusRole MessageType = "release-bus-role"

	// Outbound server events
	MsgTypeSnapshot          MessageType = "snapshot"
	MsgTypeLocationBroadcast MessageType = "location-broadcast"
	MsgTypeRoleChanged       MessageType = "role-changed"
	MsgTypePeerDisconnected  MessageType = "peer-disconnected"
)

// Role is the role a connection holds. Every connection starts as a rider;
// at most one connection is the bus at any time.
type Role string

const (
	RoleRider Role = "rider"
	RoleBus   Role = "bus"
)

// Message is the base structure for all messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Location is a reported GPS position
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReportLocationPayload carries a client's position report. Coordinates are
// pointers so a missing field is distinguishable from 0,0 (Null Island is a
// valid position, an absent field is a malformed report).
type ReportLocationPayload struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Validate reports whether the payload carries usable coordinates.
func (p *ReportLocationPayload) Validate() error {
	if p.Lat == nil || p.Lon == nil {
		return ErrMissingCoordinates
	}
	lat, lon := *p.Lat, *p.Lon
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// ConnectionInfo describes one connection in a snapshot
type ConnectionInfo struct {
	ID       string    `json:"id"`
	Role     Role      `json:"role"`
	Location *Location `json:"location"`
}

// SnapshotPayload is sent once to a newly connected client. BusID is empty
// when no bus is designated.
type SnapshotPayload struct {
	Connections []ConnectionInfo `json:"connections"`
	BusID       string           `json:"busId"`
}

// LocationBroadcastPayload relays a peer's position to every other client
type LocationBroadcastPayload struct {
	ID   string  `json:"id"`
	Role Role    `json:"role"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// RoleChangedPayload announces a role transition. A broadcast with an empty
// ID means the bus designation was cleared and no bus exists.
type RoleChangedPayload struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// PeerDisconnectedPayload tells remaining clients a peer left so they can
// discard its cached marker
type PeerDisconnectedPayload struct {
	ID string `json:"id"`
}

// NewMessage creates a new message with the given type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		ID:        GenerateID(),
		Timestamp: time.Now(),
		Payload:   data,
	}, nil
}

// ParsePayload unmarshals the message payload into the given interface
func (m *Message) ParsePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// GenerateID generates a unique message ID
func GenerateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
