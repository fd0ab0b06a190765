// Package telemetry publishes BPM updates and event alerts to an external
// broker so downstream consumers (wards, recorders, pagers) can subscribe
// without touching the monitor's HTTP surface.
package telemetry

import (
	"log"
	"time"

	"github.com/ecg-monitor/backend/internal/ecg"
)

// Publisher pushes derived measurements to a broker. Implementations must
// not block the caller beyond their own connect/write timeouts.
type Publisher interface {
	PublishBPM(bpm int, ts time.Time) error
	PublishEvents(names []string, ts time.Time) error
	Close()
}

// bpmMessage is the wire format for BPM updates.
type bpmMessage struct {
	Subject string `json:"subject"`
	Ts      int64  `json:"ts"` // Unix milliseconds
	HR      int    `json:"hr"`
}

// eventMessage is the wire format for event activations.
type eventMessage struct {
	Subject string   `json:"subject"`
	Ts      int64    `json:"ts"`
	Events  []string `json:"events"`
}

// Notifier adapts a Publisher to the ingestion loop's observer interface.
// Publish errors are logged and dropped; telemetry must never stall
// ingestion.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) BPMUpdated(bpm int, t float64) {
	if err := n.pub.PublishBPM(bpm, unixTime(t)); err != nil {
		log.Printf("telemetry: bpm publish failed: %v", err)
	}
}

func (n *Notifier) EventsActivated(kinds []ecg.EventKind, t float64) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	if err := n.pub.PublishEvents(names, unixTime(t)); err != nil {
		log.Printf("telemetry: event publish failed: %v", err)
	}
}

func unixTime(t float64) time.Time {
	return time.Unix(0, int64(t*1e9))
}
