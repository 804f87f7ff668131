package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/spawnx1/REALTIMETRACKING/pkg/logger"
)

// Metrics receives publish accounting from the publisher. Nil disables it.
type Metrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	NATSSetConnected(connected bool)
}

// NATSPublisher mirrors accepted location reports onto NATS subjects so
// external consumers (dashboards, analytics) can tap the position stream
// without holding a WebSocket to the server.
type NATSPublisher struct {
	nc            *nats.Conn
	subjectPrefix string
	metrics       Metrics
}

// PositionMessage is the JSON body published per accepted report
type PositionMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNATSPublisher connects to NATS. m may be nil.
func NewNATSPublisher(url, subjectPrefix string, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("location-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Get().WarnWith("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Get().InfoWith("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Get().InfoWith("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	if m != nil {
		m.NATSSetConnected(true)
	}

	if subjectPrefix == "" {
		subjectPrefix = "locations"
	}

	return &NATSPublisher{
		nc:            nc,
		subjectPrefix: subjectPrefix,
		metrics:       m,
	}, nil
}

// PublishLocation publishes one position update to <prefix>.<connID>
func (p *NATSPublisher) PublishLocation(id string, role string, lat, lon float64) error {
	subject := fmt.Sprintf("%s.%s", p.subjectPrefix, subjectToken(id))

	body, err := json.Marshal(PositionMessage{
		ID:        id,
		Role:      role,
		Lat:       lat,
		Lon:       lon,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}

	err = p.nc.Publish(subject, body)
	if p.metrics != nil {
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// Close drains and closes the connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// subjectToken sanitizes an ID for use as a NATS subject token
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
