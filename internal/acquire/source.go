package acquire

// Source provides raw ECG samples. The ingestion runner calls Read once per
// tick at the configured sample rate; implementations should return quickly
// and never block for longer than a sample period.
//
// Implementations are called from a single goroutine (the runner loop) and
// do not need to be safe for concurrent use.
type Source interface {
	// Name returns a short lowercase identifier, e.g. "simulator" or
	// "device". Surfaced on the health endpoint.
	Name() string

	// Read returns the next raw amplitude reading. A read error is not
	// fatal: the runner skips the tick and keeps sampling, so transient
	// device hiccups only cost individual samples.
	Read() (int, error)

	Close() error
}
