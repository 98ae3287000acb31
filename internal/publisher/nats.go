// Package publisher emits consensus position updates on a NATS event bus.
package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// Metrics receives publish outcomes. All methods may be called concurrently.
type Metrics interface {
	EventPublished()
	EventError()
}

type nopMetrics struct{}

func (nopMetrics) EventPublished() {}
func (nopMetrics) EventError()     {}

// PositionEvent is the payload published for each consensus update.
type PositionEvent struct {
	TrainID    string  `json:"train_id"`
	Position   float64 `json:"position"`
	Timestamp  int64   `json:"timestamp"`
	ActiveUser int     `json:"active_user"`
	IsLive     bool    `json:"is_live"`
}

type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	metrics Metrics
}

// NewNATS connects to the given NATS URL. Subjects are published as
// "<prefix>.<trainToken>", e.g. trains.position.705.
func NewNATS(url, prefix string, m Metrics) (*NATSPublisher, error) {
	if m == nil {
		m = nopMetrics{}
	}
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix, metrics: m}, nil
}

func (p *NATSPublisher) Publish(ev PositionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.metrics.EventError()
		return fmt.Errorf("encoding position event: %w", err)
	}
	subject := p.prefix + "." + subjectToken(ev.TrainID)
	if err := p.conn.Publish(subject, payload); err != nil {
		p.metrics.EventError()
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	p.metrics.EventPublished()
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Flush()
		p.conn.Close()
	}
}

// subjectToken replaces characters that carry meaning in NATS subjects.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	r := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")
	return r.Replace(s)
}
