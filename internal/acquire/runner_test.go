package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecg-monitor/backend/internal/ecg"
)

type scriptedSource struct {
	values []int
	errAt  map[int]error
	calls  int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Read() (int, error) {
	i := s.calls
	s.calls++
	if err, ok := s.errAt[i]; ok {
		return 0, err
	}
	if i < len(s.values) {
		return s.values[i], nil
	}
	return 0, nil
}

func (s *scriptedSource) Close() error { return nil }

type recordingObserver struct {
	bpms   []int
	events [][]ecg.EventKind
}

func (o *recordingObserver) BPMUpdated(bpm int, t float64) {
	o.bpms = append(o.bpms, bpm)
}

func (o *recordingObserver) EventsActivated(kinds []ecg.EventKind, t float64) {
	cp := make([]ecg.EventKind, len(kinds))
	copy(cp, kinds)
	o.events = append(o.events, cp)
}

func TestStepNotifiesOnBPMAndEvents(t *testing.T) {
	sess := ecg.NewSession(ecg.DefaultConfig())
	src := &scriptedSource{values: []int{16000, 16000}}
	obs := &recordingObserver{}
	r := NewRunner(sess, src, 250, obs)

	r.step(100.0)
	// Second beat 2s later: RR = 2.0s, 30 BPM, Bradycardia fires.
	r.step(102.0)

	if len(obs.bpms) != 1 || obs.bpms[0] != 30 {
		t.Errorf("bpms = %v, want [30]", obs.bpms)
	}
	if len(obs.events) != 1 {
		t.Fatalf("got %d event notifications, want 1", len(obs.events))
	}
	if len(obs.events[0]) != 1 || obs.events[0][0] != ecg.Bradycardia {
		t.Errorf("events = %v, want [Bradycardia]", obs.events[0])
	}
}

func TestStepSkipsFailedReads(t *testing.T) {
	sess := ecg.NewSession(ecg.DefaultConfig())
	src := &scriptedSource{
		values: []int{1, 2, 3},
		errAt:  map[int]error{1: errors.New("device gone")},
	}
	r := NewRunner(sess, src, 250)

	r.step(100.0)
	r.step(100.004)
	r.step(100.008)

	snap := sess.Snapshot()
	if len(snap.Samples) != 2 {
		t.Errorf("ingested %d samples, want 2 (failed read skipped)", len(snap.Samples))
	}
	if r.readFailures != 1 {
		t.Errorf("readFailures = %d, want 1", r.readFailures)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sess := ecg.NewSession(ecg.DefaultConfig())
	src := &scriptedSource{}
	r := NewRunner(sess, src, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil on cancellation", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if src.calls == 0 {
		t.Error("source was never read")
	}
}
