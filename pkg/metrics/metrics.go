package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the server's Prometheus instruments. It satisfies both
// the hub's Metrics interface and the publisher's connection accounting.
type Collector struct {
	reg *prometheus.Registry

	ActiveConnections prometheus.Gauge

	EventsReceived *prometheus.CounterVec // type label: wire event type
	EventsRejected prometheus.Counter

	MessagesSent    prometheus.Counter
	MessagesDropped prometheus.Counter
	SnapshotsSent   prometheus.Counter

	Promotions prometheus.Counter
	Demotions  prometheus.Counter

	HandlerDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
}

// NewCollector creates and registers all instruments on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_connections",
			Help: "Number of currently connected clients.",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_events_received_total",
			Help: "Total inbound events by wire type.",
		}, []string{"type"}),
		EventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_events_rejected_total",
			Help: "Total inbound events dropped as malformed or unknown.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_messages_sent_total",
			Help: "Total outbound messages enqueued for delivery.",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_messages_dropped_total",
			Help: "Total outbound messages dropped for slow or closed receivers.",
		}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_snapshots_sent_total",
			Help: "Total connect-time snapshots sent.",
		}),
		Promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_bus_promotions_total",
			Help: "Total bus role promotions.",
		}),
		Demotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_bus_demotions_total",
			Help: "Total bus role demotions, displacements included.",
		}),
		HandlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_handler_duration_seconds",
			Help:    "Duration of hub event handler invocations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS position messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
	}

	reg.MustRegister(
		c.ActiveConnections,
		c.EventsReceived, c.EventsRejected,
		c.MessagesSent, c.MessagesDropped, c.SnapshotsSent,
		c.Promotions, c.Demotions,
		c.HandlerDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
	)

	return c
}

// Handler returns the /metrics HTTP handler for this registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// hub.Metrics implementation

func (c *Collector) ConnectionsSet(n int)              { c.ActiveConnections.Set(float64(n)) }
func (c *Collector) EventReceived(msgType string)      { c.EventsReceived.WithLabelValues(msgType).Inc() }
func (c *Collector) EventRejected()                    { c.EventsRejected.Inc() }
func (c *Collector) MessageSent()                      { c.MessagesSent.Inc() }
func (c *Collector) MessageDropped()                   { c.MessagesDropped.Inc() }
func (c *Collector) PromotionInc()                     { c.Promotions.Inc() }
func (c *Collector) DemotionInc()                      { c.Demotions.Inc() }
func (c *Collector) SnapshotSent()                     { c.SnapshotsSent.Inc() }
func (c *Collector) HandlerObserve(d time.Duration)    { c.HandlerDuration.Observe(d.Seconds()) }

// publisher metrics

func (c *Collector) NATSPublishedInc()  { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc() { c.NATSPublishErrs.Inc() }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
