package systems

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PreloadMetrics exposes session progress as Prometheus collectors. A nil
// *PreloadMetrics is valid and records nothing.
type PreloadMetrics struct {
	submitted    prometheus.Counter
	settled      *prometheus.CounterVec
	skippedTicks prometheus.Counter
	runs         *prometheus.CounterVec
	percentage   prometheus.Gauge
}

func NewPreloadMetrics(reg prometheus.Registerer) (*PreloadMetrics, error) {
	m := &PreloadMetrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "preload",
			Name:      "submitted_total",
			Help:      "Resources handed to a loader.",
		}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preload",
			Name:      "settled_total",
			Help:      "Resources that finished loading, by outcome.",
		}, []string{"outcome"}),
		skippedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "preload",
			Name:      "skipped_ticks_total",
			Help:      "Async ticks skipped because the frame rate was too low.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preload",
			Name:      "runs_total",
			Help:      "Finished preload runs, by result.",
		}, []string{"result"}),
		percentage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "preload",
			Name:      "percentage",
			Help:      "Progress of the current run, 0 to 100.",
		}),
	}
	for _, c := range []prometheus.Collector{m.submitted, m.settled, m.skippedTicks, m.runs, m.percentage} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PreloadMetrics) observeSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

func (m *PreloadMetrics) observeSettled(err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.settled.WithLabelValues(outcome).Inc()
}

func (m *PreloadMetrics) observeSkippedTick() {
	if m == nil {
		return
	}
	m.skippedTicks.Inc()
}

func (m *PreloadMetrics) observeRun(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

func (m *PreloadMetrics) observePercentage(p int) {
	if m == nil {
		return
	}
	m.percentage.Set(float64(p))
}
