package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors an engine reports to. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runs        *prometheus.CounterVec
	iterations  *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	waitTime    *prometheus.HistogramVec
}

// NewMetrics creates the stencil collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stencil_runs_total",
			Help: "Completed engine runs by outcome",
		}, []string{"engine", "outcome"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stencil_iterations_total",
			Help: "Stencil iterations completed by successful runs",
		}, []string{"engine"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stencil_run_duration_seconds",
			Help:    "Wall time of a whole engine run",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"engine"}),
		waitTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stencil_barrier_wait_seconds",
			Help:    "Time a worker spent blocked at a barrier or neighbour wait",
			Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"engine"}),
	}
	for _, c := range []prometheus.Collector{m.runs, m.iterations, m.runDuration, m.waitTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRun(engine string, iterations int, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else {
		m.iterations.WithLabelValues(engine).Add(float64(iterations))
	}
	m.runs.WithLabelValues(engine, outcome).Inc()
	m.runDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

// waitObserver returns a per-worker hook timing barrier waits, or nil.
func (m *Metrics) waitObserver(engine string) prometheus.Observer {
	if m == nil {
		return nil
	}
	return m.waitTime.WithLabelValues(engine)
}
