package telemetry

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ecg-monitor/backend/internal/ecg"
)

type capturePublisher struct {
	bpms   []int
	events [][]string
	err    error
}

func (c *capturePublisher) PublishBPM(bpm int, ts time.Time) error {
	c.bpms = append(c.bpms, bpm)
	return c.err
}

func (c *capturePublisher) PublishEvents(names []string, ts time.Time) error {
	c.events = append(c.events, names)
	return c.err
}

func (c *capturePublisher) Close() {}

func TestNotifierForwardsBPM(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(pub)

	n.BPMUpdated(72, 100.5)

	if !reflect.DeepEqual(pub.bpms, []int{72}) {
		t.Errorf("bpms = %v, want [72]", pub.bpms)
	}
}

func TestNotifierForwardsEventNames(t *testing.T) {
	pub := &capturePublisher{}
	n := NewNotifier(pub)

	n.EventsActivated([]ecg.EventKind{ecg.Tachycardia, ecg.Myocarditis}, 100.5)

	want := [][]string{{"Tachycardia", "Myocarditis (possible)"}}
	if !reflect.DeepEqual(pub.events, want) {
		t.Errorf("events = %v, want %v", pub.events, want)
	}
}

func TestNotifierSwallowsPublishErrors(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	n := NewNotifier(pub)

	// Must not panic or propagate; ingestion cannot be stalled by telemetry.
	n.BPMUpdated(72, 100.5)
	n.EventsActivated([]ecg.EventKind{ecg.Asystole}, 100.5)
}

func TestUnixTime(t *testing.T) {
	got := unixTime(100.5)
	if got.UnixMilli() != 100500 {
		t.Errorf("unixTime(100.5).UnixMilli() = %d, want 100500", got.UnixMilli())
	}
}
