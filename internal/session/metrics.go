package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what sessions evaluate.
type Metrics struct {
	Blocks    prometheus.Counter
	Segments  prometheus.Counter
	Malformed prometheus.Counter
	Jumps     prometheus.Counter
}

// NewMetrics creates the session counters and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Blocks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gokernel",
			Name:      "blocks_total",
			Help:      "Input blocks run.",
		}),
		Segments: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gokernel",
			Name:      "segments_total",
			Help:      "Segments produced by the segmenter, malformed ones included.",
		}),
		Malformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gokernel",
			Name:      "malformed_segments_total",
			Help:      "Segments that never became syntactically complete.",
		}),
		Jumps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gokernel",
			Name:      "uncaught_jumps_total",
			Help:      "Non-local jumps that escaped user code.",
		}),
	}
}
