package telemetry

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes to two subjects: parameter updates (BPM) and event
// alerts. Reconnection is handled by the client; publishes during an outage
// are buffered or dropped by the library, never blocking the caller.
type NATSPublisher struct {
	nc            *nats.Conn
	paramsSubject string
	eventsSubject string
}

func NewNATS(url, paramsSubject, eventsSubject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("ecg-monitor"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{
		nc:            nc,
		paramsSubject: paramsSubject,
		eventsSubject: eventsSubject,
	}, nil
}

func (p *NATSPublisher) PublishBPM(bpm int, ts time.Time) error {
	b, err := json.Marshal(bpmMessage{
		Subject: p.paramsSubject,
		Ts:      ts.UnixMilli(),
		HR:      bpm,
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(p.paramsSubject, b)
}

func (p *NATSPublisher) PublishEvents(names []string, ts time.Time) error {
	b, err := json.Marshal(eventMessage{
		Subject: p.eventsSubject,
		Ts:      ts.UnixMilli(),
		Events:  names,
	})
	if err != nil {
		return err
	}
	return p.nc.Publish(p.eventsSubject, b)
}

func (p *NATSPublisher) Close() {
	p.nc.Drain()
}
