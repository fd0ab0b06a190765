package ecg

import (
	"math"
	"strings"
	"sync"
	"time"
)

// minRRSec is the physiological floor for a beat-to-beat interval. Peaks
// closer together than this still reset the asystole timer but never update
// the BPM estimate or interval histories.
const minRRSec = 0.25

type eventEntry struct {
	active bool
	count  uint64
}

// Session is the single owner of all streaming ECG state. One producer feeds
// AddSample at the sample cadence; readers take consistent copies via
// Snapshot. Every operation holds the session mutex for its full critical
// section, which is CPU-bound arithmetic over bounded buffers.
type Session struct {
	mu  sync.Mutex
	cfg Config

	samples    *Ring[int]
	timestamps *Ring[float64]
	timeline   *Ring[string]

	bpmHistory *Ring[int]
	bpmTimes   *Ring[float64]
	rr         *Ring[float64]
	qrs        *Ring[float64]
	qt         *Ring[float64]

	currentBPM     int
	lastPeakTime   float64
	hasPeak        bool
	lastSignalTime float64

	events [kindCount]eventEntry
}

// SampleResult reports what a single AddSample call changed, so callers can
// forward transitions (metrics, telemetry, alerts) without polling.
type SampleResult struct {
	Beat   bool // the sample crossed the R threshold
	NewBPM bool // a qualifying RR interval refreshed the BPM estimate
	BPM    int
	Fired  []EventKind // events that transitioned inactive -> active, in evaluation order
}

// Snapshot is a consistent copy of the session's buffers taken under the lock.
type Snapshot struct {
	Samples       []int
	Timestamps    []float64
	CurrentBPM    int
	BPMHistory    []int
	BPMTimestamps []float64
	ActiveEvents  []string
	EventCounts   map[string]uint64
	Timeline      []string
}

// NewSession constructs a Session from a validated Config. The asystole timer
// starts at the current time so a silent feed trips the flag without ever
// having seen a beat.
func NewSession(cfg Config) *Session {
	rawCap := cfg.RawCapacity()
	return &Session{
		cfg:            cfg,
		samples:        NewRing[int](rawCap),
		timestamps:     NewRing[float64](rawCap),
		timeline:       NewRing[string](rawCap),
		bpmHistory:     NewRing[int](cfg.BPMMaxLen),
		bpmTimes:       NewRing[float64](cfg.BPMMaxLen),
		rr:             NewRing[float64](cfg.RRMaxLen),
		qrs:            NewRing[float64](cfg.QRSMaxLen),
		qt:             NewRing[float64](cfg.QTMaxLen),
		lastSignalTime: unixSeconds(),
	}
}

func unixSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// AddSample ingests one raw reading with its timestamp (Unix seconds).
// Timestamps must be non-decreasing across calls. It runs beat detection,
// re-evaluates every event condition, and appends one timeline entry.
func (s *Session) AddSample(value int, t float64) SampleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.record(value, t)
	res.Fired = s.detectEvents(value, t)
	s.timeline.Push(s.joinActiveFlags())
	res.BPM = s.currentBPM
	return res
}

// record appends the raw sample and runs peak-driven beat detection.
func (s *Session) record(value int, t float64) SampleResult {
	var res SampleResult

	s.samples.Push(value)
	s.timestamps.Push(t)

	if value > s.cfg.RThreshold {
		res.Beat = true
		if s.hasPeak {
			rr := t - s.lastPeakTime
			if rr > minRRSec {
				s.rr.Push(rr)
				s.currentBPM = int(60.0 / rr)
				s.bpmHistory.Push(s.currentBPM)
				s.bpmTimes.Push(t)

				s.qt.Push(rr * 0.45)
				s.qrs.Push(0.08 + math.Abs(float64(value-s.cfg.RThreshold))/100000)
				res.NewBPM = true
			}
		}
		// The peak resets the asystole timer even when it was too close to
		// the previous one to count as a new RR sample.
		s.lastPeakTime = t
		s.hasPeak = true
		s.lastSignalTime = t
	}

	return res
}

// setEvent applies one condition evaluation to the event table and reports
// whether the event just transitioned to active. Counts only move on
// inactive -> active transitions.
func (s *Session) setEvent(k EventKind, condition bool) bool {
	e := &s.events[k]
	if condition {
		if !e.active {
			e.active = true
			e.count++
			return true
		}
		return false
	}
	e.active = false
	return false
}

// detectEvents re-evaluates every condition from the current window
// statistics. No hysteresis: flags may flicker, and the trigger counts are
// the debounce signal exposed to consumers. Myocarditis is a composite and
// must run last: it reads the active state the earlier steps just wrote.
func (s *Session) detectEvents(value int, now float64) []EventKind {
	var fired []EventKind
	set := func(k EventKind, cond bool) {
		if s.setEvent(k, cond) {
			fired = append(fired, k)
		}
	}

	set(Bradycardia, s.currentBPM > 0 && s.currentBPM < s.cfg.BradyBPM)
	set(Tachycardia, s.currentBPM > 0 && s.currentBPM > s.cfg.TachyBPM)
	set(VentricularTachycardia, s.currentBPM > 0 && s.currentBPM > s.cfg.VTachBPM)

	set(Asystole, now-s.lastSignalTime > s.cfg.AsystoleSec)

	if s.rr.Len() >= 7 {
		meanRR, variance := meanVariance(s.rr)
		set(IrregularRhythm, variance > 0.02)
		set(SinusNodeDysfunction, variance > 0.03 && meanRR > 1.2)
		set(FirstDegreeAVBlock, meanRR > 1.0 && variance < 0.005)
	}

	if s.qrs.Len() >= 6 {
		set(BundleBranchBlock, mean(s.qrs) > 0.14)
	}

	if s.qt.Len() >= 6 {
		avgQT := mean(s.qt)
		set(LongQT, avgQT > 0.48)
		set(ShortQT, avgQT < 0.32)
	}

	set(EarlyRepolarization,
		float64(value) > float64(s.cfg.RThreshold)*1.25 && s.currentBPM < 100)

	score := 0
	if s.events[Tachycardia].active {
		score++
	}
	if s.events[IrregularRhythm].active {
		score++
	}
	if s.events[EarlyRepolarization].active {
		score++
	}
	set(Myocarditis, score >= 2)

	return fired
}

func mean(r *Ring[float64]) float64 {
	n := r.Len()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.At(i)
	}
	return sum / float64(n)
}

// meanVariance computes the mean and population variance in two passes
// without copying the ring.
func meanVariance(r *Ring[float64]) (float64, float64) {
	n := r.Len()
	if n == 0 {
		return 0, 0
	}
	m := mean(r)
	sum := 0.0
	for i := 0; i < n; i++ {
		d := r.At(i) - m
		sum += d * d
	}
	return m, sum / float64(n)
}

func (s *Session) joinActiveFlags() string {
	var b strings.Builder
	for k := EventKind(0); k < kindCount; k++ {
		if !s.events[k].active {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(kindNames[k])
	}
	return b.String()
}

// ActiveCardiacFlags returns the names of the currently active events, in
// evaluation order.
func (s *Session) ActiveCardiacFlags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeFlagsLocked()
}

func (s *Session) activeFlagsLocked() []string {
	var out []string
	for k := EventKind(0); k < kindCount; k++ {
		if s.events[k].active {
			out = append(out, kindNames[k])
		}
	}
	return out
}

// CurrentBPM returns the latest BPM estimate (0 until the first qualifying
// beat-to-beat interval).
func (s *Session) CurrentBPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentBPM
}

// Snapshot copies out every buffer under a single lock acquisition so a
// reader never observes a buffer mid-append or a half-applied reset.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]uint64, kindCount)
	for k := EventKind(0); k < kindCount; k++ {
		if s.events[k].count > 0 {
			counts[kindNames[k]] = s.events[k].count
		}
	}

	return Snapshot{
		Samples:       s.samples.Values(),
		Timestamps:    s.timestamps.Values(),
		CurrentBPM:    s.currentBPM,
		BPMHistory:    s.bpmHistory.Values(),
		BPMTimestamps: s.bpmTimes.Values(),
		ActiveEvents:  s.activeFlagsLocked(),
		EventCounts:   counts,
		Timeline:      s.timeline.Values(),
	}
}

// Reset clears all buffers, measurements and event bookkeeping, and restarts
// the asystole timer at the current time. The Config is kept; the Session
// object itself is never reconstructed.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples.Clear()
	s.timestamps.Clear()
	s.timeline.Clear()
	s.bpmHistory.Clear()
	s.bpmTimes.Clear()
	s.rr.Clear()
	s.qrs.Clear()
	s.qt.Clear()

	s.currentBPM = 0
	s.lastPeakTime = 0
	s.hasPeak = false
	s.lastSignalTime = unixSeconds()
	s.events = [kindCount]eventEntry{}
}
