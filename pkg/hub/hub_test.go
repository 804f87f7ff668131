package hub

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// drain empties a client's send channel without blocking
func drain(c *Client) []*protocol.Message {
	var msgs []*protocol.Message
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func ofType(msgs []*protocol.Message, t protocol.MessageType) []*protocol.Message {
	var out []*protocol.Message
	for _, m := range msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func inboundMsg(t *testing.T, msgType protocol.MessageType, payload interface{}) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		t.Fatalf("failed to build message: %v", err)
	}
	return msg
}

func reportMsg(t *testing.T, lat, lon float64) *protocol.Message {
	t.Helper()
	return inboundMsg(t, protocol.MsgTypeReportLocation, &protocol.ReportLocationPayload{Lat: &lat, Lon: &lon})
}

// connect registers a client directly through the dispatch handler and
// discards the snapshot it was sent
func connect(h *Hub) *Client {
	c := h.NewClient(nil, "test")
	h.handleRegister(c)
	drain(c)
	return c
}

func TestSnapshotOnConnect(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := h.NewClient(nil, "test")
	h.handleRegister(c1)

	msgs := drain(c1)
	if len(msgs) != 1 {
		t.Fatalf("Expected exactly one message after connect, got %d", len(msgs))
	}
	if msgs[0].Type != protocol.MsgTypeSnapshot {
		t.Fatalf("Expected snapshot, got %s", msgs[0].Type)
	}

	var snap protocol.SnapshotPayload
	if err := msgs[0].ParsePayload(&snap); err != nil {
		t.Fatalf("failed to parse snapshot: %v", err)
	}
	if len(snap.Connections) != 1 || snap.Connections[0].ID != c1.ID() {
		t.Error("Snapshot should contain the newly registered connection")
	}
	if snap.BusID != "" {
		t.Errorf("Expected no bus in snapshot, got %q", snap.BusID)
	}
}

func TestSnapshotCompleteness(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)
	h.handleInbound(inboundEvent{client: c1, msg: inboundMsg(t, protocol.MsgTypeRequestBusRole, struct{}{})})
	h.handleInbound(inboundEvent{client: c2, msg: reportMsg(t, 40.4, -3.7)})
	drain(c1)
	drain(c2)

	c3 := h.NewClient(nil, "test")
	h.handleRegister(c3)

	msgs := ofType(drain(c3), protocol.MsgTypeSnapshot)
	if len(msgs) != 1 {
		t.Fatalf("Expected one snapshot, got %d", len(msgs))
	}

	var snap protocol.SnapshotPayload
	if err := msgs[0].ParsePayload(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Connections) != 3 {
		t.Errorf("Snapshot should contain all 3 connections, got %d", len(snap.Connections))
	}
	if snap.BusID != c1.ID() {
		t.Errorf("Snapshot bus ID should be %s, got %q", c1.ID(), snap.BusID)
	}

	byID := make(map[string]protocol.ConnectionInfo)
	for _, info := range snap.Connections {
		byID[info.ID] = info
	}
	if byID[c1.ID()].Role != protocol.RoleBus {
		t.Error("Snapshot should show c1 as bus")
	}
	if loc := byID[c2.ID()].Location; loc == nil || loc.Lat != 40.4 || loc.Lon != -3.7 {
		t.Error("Snapshot should carry c2's reported location")
	}
}

func TestNoSelfEcho(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)

	h.handleInbound(inboundEvent{client: c1, msg: reportMsg(t, 51.5, -0.12)})

	if got := drain(c1); len(got) != 0 {
		t.Errorf("Sender should not receive its own broadcast, got %d messages", len(got))
	}

	msgs := ofType(drain(c2), protocol.MsgTypeLocationBroadcast)
	if len(msgs) != 1 {
		t.Fatalf("Peer should receive one location broadcast, got %d", len(msgs))
	}

	var bc protocol.LocationBroadcastPayload
	if err := msgs[0].ParsePayload(&bc); err != nil {
		t.Fatal(err)
	}
	if bc.ID != c1.ID() || bc.Role != protocol.RoleRider || bc.Lat != 51.5 || bc.Lon != -0.12 {
		t.Errorf("Unexpected broadcast payload: %+v", bc)
	}
}

func TestMalformedReportDropped(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)

	cases := []json.RawMessage{
		[]byte(`{}`),
		[]byte(`{"lat": 10.0}`),
		[]byte(`{"lon": 10.0}`),
		[]byte(`{"lat": "north", "lon": 4}`),
		[]byte(`{"lat": 91.0, "lon": 0}`),
		[]byte(`{"lat": 0, "lon": 181.0}`),
	}
	for _, raw := range cases {
		msg := &protocol.Message{
			Type:      protocol.MsgTypeReportLocation,
			ID:        protocol.GenerateID(),
			Timestamp: time.Now(),
			Payload:   raw,
		}
		h.handleInbound(inboundEvent{client: c1, msg: msg})
	}

	if c1.Location() != nil {
		t.Error("Malformed reports must not mutate location")
	}
	if got := drain(c2); len(got) != 0 {
		t.Errorf("Malformed reports must not be broadcast, peer got %d messages", len(got))
	}
}

func TestUnknownEventTypeDropped(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)

	msg := &protocol.Message{
		Type:      "teleport",
		ID:        protocol.GenerateID(),
		Timestamp: time.Now(),
		Payload:   []byte(`{}`),
	}
	h.handleInbound(inboundEvent{client: c1, msg: msg})

	if got := drain(c2); len(got) != 0 {
		t.Error("Unknown event types must produce no broadcast")
	}
	if got := drain(c1); len(got) != 0 {
		t.Error("Unknown event types must produce no error back to the sender")
	}
}

func TestEventFromDisconnectedDropped(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)
	h.handleUnregister(c2)
	drain(c1)

	h.handleInbound(inboundEvent{client: c2, msg: reportMsg(t, 1, 2)})

	if got := drain(c1); len(got) != 0 {
		t.Error("Events from departed connections must be dropped")
	}
}

func TestDisconnectBroadcastsPeerNotice(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)

	h.handleUnregister(c2)

	msgs := ofType(drain(c1), protocol.MsgTypePeerDisconnected)
	if len(msgs) != 1 {
		t.Fatalf("Expected one peer-disconnected notice, got %d", len(msgs))
	}
	var p protocol.PeerDisconnectedPayload
	if err := msgs[0].ParsePayload(&p); err != nil {
		t.Fatal(err)
	}
	if p.ID != c2.ID() {
		t.Errorf("Notice should carry departing ID %s, got %s", c2.ID(), p.ID)
	}
	if h.Count() != 1 {
		t.Errorf("Expected 1 remaining connection, got %d", h.Count())
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)

	h.handleUnregister(c2)
	drain(c1)
	h.handleUnregister(c2)

	if got := drain(c1); len(got) != 0 {
		t.Error("A second unregister for the same client must not re-broadcast")
	}
}

// The three-client scenario: C1 takes the bus role, C2 displaces it, then
// C2 disconnects while holding the role.
func TestBusHandoffScenario(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)
	c3 := connect(h)

	// C1 requests the bus role
	h.handleInbound(inboundEvent{client: c1, msg: inboundMsg(t, protocol.MsgTypeRequestBusRole, struct{}{})})

	for _, c := range []*Client{c1, c2, c3} {
		msgs := ofType(drain(c), protocol.MsgTypeRoleChanged)
		if len(msgs) != 1 {
			t.Fatalf("Every client should see the new designation, %s got %d", c.ID(), len(msgs))
		}
		var rc protocol.RoleChangedPayload
		if err := msgs[0].ParsePayload(&rc); err != nil {
			t.Fatal(err)
		}
		if rc.ID != c1.ID() || rc.Role != protocol.RoleBus {
			t.Errorf("Expected role-changed(%s, bus), got (%s, %s)", c1.ID(), rc.ID, rc.Role)
		}
	}
	if h.BusID() != c1.ID() {
		t.Errorf("Bus designation should point at C1")
	}

	// C2 requests the bus role: C1 is displaced
	h.handleInbound(inboundEvent{client: c2, msg: inboundMsg(t, protocol.MsgTypeRequestBusRole, struct{}{})})

	c1Msgs := ofType(drain(c1), protocol.MsgTypeRoleChanged)
	if len(c1Msgs) != 2 {
		t.Fatalf("C1 should get its demotion notice plus the broadcast, got %d", len(c1Msgs))
	}
	var demotion protocol.RoleChangedPayload
	if err := c1Msgs[0].ParsePayload(&demotion); err != nil {
		t.Fatal(err)
	}
	if demotion.ID != c1.ID() || demotion.Role != protocol.RoleRider {
		t.Errorf("C1's first notice should be its own demotion, got (%s, %s)", demotion.ID, demotion.Role)
	}

	for _, c := range []*Client{c2, c3} {
		msgs := ofType(drain(c), protocol.MsgTypeRoleChanged)
		if len(msgs) != 1 {
			t.Fatalf("%s should see exactly the new designation, got %d", c.ID(), len(msgs))
		}
		var rc protocol.RoleChangedPayload
		if err := msgs[0].ParsePayload(&rc); err != nil {
			t.Fatal(err)
		}
		if rc.ID != c2.ID() || rc.Role != protocol.RoleBus {
			t.Errorf("Expected role-changed(%s, bus), got (%s, %s)", c2.ID(), rc.ID, rc.Role)
		}
	}
	if c1.Role() != protocol.RoleRider {
		t.Error("Displaced holder should be a rider again")
	}
	if h.BusID() != c2.ID() {
		t.Error("Bus designation should point at C2")
	}

	// C2 disconnects while designated
	h.handleUnregister(c2)

	for _, c := range []*Client{c1, c3} {
		msgs := drain(c)
		cleared := ofType(msgs, protocol.MsgTypeRoleChanged)
		if len(cleared) != 1 {
			t.Fatalf("%s should observe the cleared designation, got %d", c.ID(), len(cleared))
		}
		var rc protocol.RoleChangedPayload
		if err := cleared[0].ParsePayload(&rc); err != nil {
			t.Fatal(err)
		}
		if rc.ID != "" {
			t.Errorf("Cleared designation should carry empty ID, got %q", rc.ID)
		}
		gone := ofType(msgs, protocol.MsgTypePeerDisconnected)
		if len(gone) != 1 {
			t.Fatalf("%s should observe peer-disconnected, got %d", c.ID(), len(gone))
		}
		var pd protocol.PeerDisconnectedPayload
		if err := gone[0].ParsePayload(&pd); err != nil {
			t.Fatal(err)
		}
		if pd.ID != c2.ID() {
			t.Errorf("peer-disconnected should name C2, got %s", pd.ID)
		}
	}
	if h.BusID() != "" {
		t.Error("Bus designation should be cleared after the bus disconnects")
	}
}

func TestSafeHandleRecoversPanic(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	h.safeHandle(func() { panic("handler exploded") })
	// A panic in one handler must not take the loop down; reaching this
	// line is the assertion.
	c := connect(h)
	if _, ok := h.Connection(c.ID()); !ok {
		t.Error("Hub should still function after a recovered panic")
	}
}

func TestStartStop(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	h.Start()
	if !h.IsRunning() {
		t.Error("Hub should be running after Start")
	}
	h.Start() // duplicate start is ignored
	h.Stop()
	if h.IsRunning() {
		t.Error("Hub should not be running after Stop")
	}
	h.Stop() // duplicate stop is a no-op
}

func TestRunLoopEndToEnd(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	h.Start()
	defer h.Stop()

	c1 := h.NewClient(nil, "test")
	c2 := h.NewClient(nil, "test")
	h.Register(c1)
	h.Register(c2)

	waitFor(t, func() bool { return h.Count() == 2 })

	h.Inbound(c1, reportMsg(t, 48.85, 2.35))
	waitFor(t, func() bool {
		return len(ofType(peek(c2), protocol.MsgTypeLocationBroadcast)) == 1
	})
}

// peek accumulates whatever has been delivered to a client so far, so a
// condition can be polled without losing already-drained messages
var peekMu sync.Mutex
var peeked = make(map[*Client][]*protocol.Message)

func peek(c *Client) []*protocol.Message {
	peekMu.Lock()
	defer peekMu.Unlock()
	peeked[c] = append(peeked[c], drain(c)...)
	return peeked[c]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
