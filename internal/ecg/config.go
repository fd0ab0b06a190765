package ecg

import "fmt"

// Config holds the detection thresholds and buffer sizes. It is immutable
// after Validate passes; the Session keeps its own copy.
type Config struct {
	SampleRate  int     `yaml:"sample_rate"`  // Hz
	RThreshold  int     `yaml:"r_threshold"`  // amplitude above which a sample counts as an R peak
	BradyBPM    int     `yaml:"brady_bpm"`
	TachyBPM    int     `yaml:"tachy_bpm"`
	VTachBPM    int     `yaml:"vtach_bpm"`
	AsystoleSec float64 `yaml:"asystole_sec"` // silence before Asystole / Flatline fires
	BufferSec   int     `yaml:"buffer_sec"`   // raw sample retention window
	BPMMaxLen   int     `yaml:"bpm_maxlen"`
	RRMaxLen    int     `yaml:"rr_maxlen"`
	QRSMaxLen   int     `yaml:"qrs_maxlen"`
	QTMaxLen    int     `yaml:"qt_maxlen"`
}

func DefaultConfig() Config {
	return Config{
		SampleRate:  250,
		RThreshold:  15000,
		BradyBPM:    50,
		TachyBPM:    100,
		VTachBPM:    150,
		AsystoleSec: 3.5,
		BufferSec:   120,
		BPMMaxLen:   1200,
		RRMaxLen:    60,
		QRSMaxLen:   30,
		QTMaxLen:    30,
	}
}

// RawCapacity is the capacity of the raw sample, timestamp and event timeline
// buffers: at least 1000 samples, or the full retention window if larger.
func (c Config) RawCapacity() int {
	n := c.SampleRate * c.BufferSec
	if n < 1000 {
		n = 1000
	}
	return n
}

func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.BradyBPM <= 0 {
		return fmt.Errorf("brady_bpm must be positive, got %d", c.BradyBPM)
	}
	if c.BradyBPM >= c.TachyBPM {
		return fmt.Errorf("brady_bpm (%d) must be below tachy_bpm (%d)", c.BradyBPM, c.TachyBPM)
	}
	if c.TachyBPM >= c.VTachBPM {
		return fmt.Errorf("tachy_bpm (%d) must be below vtach_bpm (%d)", c.TachyBPM, c.VTachBPM)
	}
	if c.AsystoleSec <= 0 {
		return fmt.Errorf("asystole_sec must be positive, got %g", c.AsystoleSec)
	}
	if c.BufferSec <= 0 {
		return fmt.Errorf("buffer_sec must be positive, got %d", c.BufferSec)
	}
	if c.BPMMaxLen <= 0 || c.RRMaxLen <= 0 || c.QRSMaxLen <= 0 || c.QTMaxLen <= 0 {
		return fmt.Errorf("history maxlens must be positive")
	}
	return nil
}
