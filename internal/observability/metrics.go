package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	shotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "seismig",
			Subsystem: "survey",
			Name:      "shots_total",
			Help:      "Shots processed, by method and outcome.",
		},
		[]string{"method", "status"},
	)
	shotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "seismig",
			Subsystem: "survey",
			Name:      "shot_duration_seconds",
			Help:      "Wall time spent on one shot.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"method"},
	)
	waveSteps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "seismig",
			Subsystem: "wave",
			Name:      "steps_total",
			Help:      "Finite-difference time steps computed.",
		},
	)
	waveRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "seismig",
			Subsystem: "wave",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one simulation run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
	)
)

// Collectors lists every metric owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{shotsTotal, shotDuration, waveSteps, waveRunDuration}
}

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

func RecordShot(method, status string, duration time.Duration) {
	RegisterMetrics()
	shotsTotal.WithLabelValues(method, status).Inc()
	shotDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordSimulation(steps int, duration time.Duration) {
	RegisterMetrics()
	waveSteps.Add(float64(steps))
	waveRunDuration.Observe(duration.Seconds())
}
