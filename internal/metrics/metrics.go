package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ecg_samples_total", Help: "Raw samples ingested"},
	)
	BeatsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ecg_beats_total", Help: "Detected R peaks"},
	)
	CurrentBPM = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ecg_bpm", Help: "Latest BPM estimate"},
	)
	EventTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ecg_event_transitions_total", Help: "Inactive to active event transitions"},
		[]string{"event"},
	)
	ReadFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ecg_read_failures_total", Help: "Sample source read errors"},
	)
	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ecg_ws_clients", Help: "Connected websocket clients"},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SamplesTotal, BeatsTotal, CurrentBPM, EventTransitions, ReadFailures, WSClients,
	}
}
