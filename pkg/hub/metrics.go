package hub

import "time"

// Metrics receives instrumentation callbacks from the hub. A nil Metrics
// is replaced with a no-op implementation.
type Metrics interface {
	ConnectionsSet(n int)
	EventReceived(msgType string)
	EventRejected()
	MessageSent()
	MessageDropped()
	PromotionInc()
	DemotionInc()
	SnapshotSent()
	HandlerObserve(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionsSet(int)            {}
func (nopMetrics) EventReceived(string)          {}
func (nopMetrics) EventRejected()                {}
func (nopMetrics) MessageSent()                  {}
func (nopMetrics) MessageDropped()               {}
func (nopMetrics) PromotionInc()                 {}
func (nopMetrics) DemotionInc()                  {}
func (nopMetrics) SnapshotSent()                 {}
func (nopMetrics) HandlerObserve(time.Duration)  {}

// Publisher mirrors accepted location reports to an external sink. A nil
// Publisher disables mirroring.
type Publisher interface {
	PublishLocation(id string, role string, lat, lon float64) error
}
