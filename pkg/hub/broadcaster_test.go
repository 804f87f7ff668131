package hub

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/spawnx1/REALTIMETRACKING/pkg/protocol"
)

// recordingMetrics counts hub instrumentation callbacks
type recordingMetrics struct {
	sent      atomic.Int64
	dropped   atomic.Int64
	rejected  atomic.Int64
	snapshots atomic.Int64
}

func (m *recordingMetrics) ConnectionsSet(int)           {}
func (m *recordingMetrics) EventReceived(string)         {}
func (m *recordingMetrics) EventRejected()               { m.rejected.Add(1) }
func (m *recordingMetrics) MessageSent()                 { m.sent.Add(1) }
func (m *recordingMetrics) MessageDropped()              { m.dropped.Add(1) }
func (m *recordingMetrics) PromotionInc()                {}
func (m *recordingMetrics) DemotionInc()                 {}
func (m *recordingMetrics) SnapshotSent()                { m.snapshots.Add(1) }
func (m *recordingMetrics) HandlerObserve(time.Duration) {}

func smallBufferOptions() Options {
	opts := DefaultOptions()
	opts.SendBufferSize = 1
	return opts
}

func TestSlowReceiverDropsInsteadOfBlocking(t *testing.T) {
	rec := &recordingMetrics{}
	h := New(smallBufferOptions(), rec, nil)
	sender := connect(h)
	slow := connect(h)

	// Two reports: the second exceeds the receiver's buffer of one
	h.handleInbound(inboundEvent{client: sender, msg: reportMsg(t, 1, 1)})
	h.handleInbound(inboundEvent{client: sender, msg: reportMsg(t, 2, 2)})

	if rec.dropped.Load() != 1 {
		t.Errorf("Expected 1 dropped message, got %d", rec.dropped.Load())
	}
	if got := ofType(drain(slow), protocol.MsgTypeLocationBroadcast); len(got) != 1 {
		t.Errorf("Receiver should hold exactly the buffered message, got %d", len(got))
	}
	// The sender's registry state still advanced
	if loc := sender.Location(); loc == nil || loc.Lat != 2 {
		t.Error("Registry update must not depend on delivery")
	}
}

func TestSendToClosedClientDrops(t *testing.T) {
	rec := &recordingMetrics{}
	h := New(DefaultOptions(), rec, nil)
	c := connect(h)
	c.closeSend()

	msg, _ := protocol.NewMessage(protocol.MsgTypePeerDisconnected, &protocol.PeerDisconnectedPayload{ID: "x"})
	h.broadcaster.Send(c, msg)

	if rec.dropped.Load() != 1 {
		t.Errorf("Send to a closed client should count as dropped, got %d", rec.dropped.Load())
	}
}

func TestReportUnknownSenderIgnored(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)

	if h.broadcaster.Report("no-such-id", 1, 2) {
		t.Error("Report for an unknown sender should be ignored")
	}
	if got := drain(c1); len(got) != 0 {
		t.Error("Ignored report must not broadcast")
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	h := New(DefaultOptions(), nil, nil)
	c1 := connect(h)
	c2 := connect(h)
	c3 := connect(h)

	msg, _ := protocol.NewMessage(protocol.MsgTypePeerDisconnected, &protocol.PeerDisconnectedPayload{ID: "x"})
	h.broadcaster.BroadcastExcept(c2.ID(), msg)

	if got := drain(c2); len(got) != 0 {
		t.Error("Excluded client must not receive the broadcast")
	}
	if got := drain(c1); len(got) != 1 {
		t.Errorf("Expected 1 message for c1, got %d", len(got))
	}
	if got := drain(c3); len(got) != 1 {
		t.Errorf("Expected 1 message for c3, got %d", len(got))
	}
}
