package acquire

import (
	"context"
	"log"
	"time"

	"github.com/ecg-monitor/backend/internal/ecg"
	"github.com/ecg-monitor/backend/internal/metrics"
)

// Observer receives detection transitions from the ingestion loop. Methods
// are called from the runner goroutine and must not block; anything slow
// (network publishes, fan-out) belongs behind a channel or timer.
type Observer interface {
	// BPMUpdated fires when a qualifying RR interval refreshed the BPM
	// estimate.
	BPMUpdated(bpm int, t float64)

	// EventsActivated fires when one or more events transitioned from
	// inactive to active on this sample, in evaluation order.
	EventsActivated(kinds []ecg.EventKind, t float64)
}

// Runner drives the session at a fixed cadence: one Source read and one
// AddSample per tick. It is the session's only writer.
type Runner struct {
	session   *ecg.Session
	source    Source
	period    time.Duration
	observers []Observer

	readFailures int
	lastFailLog  time.Time
}

func NewRunner(session *ecg.Session, source Source, sampleRate int, observers ...Observer) *Runner {
	return &Runner{
		session:   session,
		source:    source,
		period:    time.Second / time.Duration(sampleRate),
		observers: observers,
	}
}

// Run samples until ctx is cancelled. Always returns nil on cancellation so
// an errgroup treats shutdown as clean.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	log.Printf("Ingestion started: source=%s period=%v", r.source.Name(), r.period)

	for {
		select {
		case <-ctx.Done():
			log.Println("Ingestion stopped")
			return nil
		case <-ticker.C:
			r.step(float64(time.Now().UnixNano()) / 1e9)
		}
	}
}

func (r *Runner) step(now float64) {
	value, err := r.source.Read()
	if err != nil {
		r.readFailures++
		metrics.ReadFailures.Inc()
		// Log at most once per second; at 250 Hz a dead device would
		// otherwise flood the log.
		if time.Since(r.lastFailLog) >= time.Second {
			log.Printf("Sample read failed (%d so far): %v", r.readFailures, err)
			r.lastFailLog = time.Now()
		}
		return
	}

	res := r.session.AddSample(value, now)

	metrics.SamplesTotal.Inc()
	if res.Beat {
		metrics.BeatsTotal.Inc()
	}
	if res.NewBPM {
		metrics.CurrentBPM.Set(float64(res.BPM))
		for _, o := range r.observers {
			o.BPMUpdated(res.BPM, now)
		}
	}
	if len(res.Fired) > 0 {
		for _, k := range res.Fired {
			metrics.EventTransitions.WithLabelValues(k.String()).Inc()
		}
		for _, o := range r.observers {
			o.EventsActivated(res.Fired, now)
		}
	}
}
