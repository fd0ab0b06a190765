package acquire

import (
	"math"
	"math/rand"
	"time"
)

// Simulator synthesizes an ECG-like integer waveform in the amplitude range
// of a 16-bit ADC: a slow sinusoid baseline, uniform noise, and a sharp
// R-peak spike every 0.8 seconds (75 BPM). Not a clinical waveform, just
// enough structure for the detector to find beats.
type Simulator struct {
	rng *rand.Rand
	now func() float64 // Unix seconds
}

func NewSimulator() *Simulator {
	return &Simulator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
}

func (s *Simulator) Name() string { return "simulator" }

func (s *Simulator) Read() (int, error) {
	return s.sampleAt(s.now()), nil
}

func (s *Simulator) sampleAt(t float64) int {
	base := 10000 + 1000*math.Sin(2*math.Pi*1.2*t)
	noise := s.rng.Float64()*400 - 200
	spike := 0.0
	if math.Mod(t, 0.8) < 0.02 {
		spike = 7000
	}
	return int(base + noise + spike)
}

func (s *Simulator) Close() error { return nil }
