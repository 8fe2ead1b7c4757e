package renders

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	jobs     *prometheus.CounterVec
	running  prometheus.Gauge
	waiting  prometheus.Gauge
	duration *prometheus.HistogramVec
}

// NewMetrics registers render metrics on reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kino_render_jobs_total",
				Help: "Render jobs by lifecycle event",
			},
			[]string{"event"},
		),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kino_render_jobs_running",
			Help: "Renders currently executing",
		}),
		waiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kino_render_jobs_waiting",
			Help: "Queued renders waiting for a slot",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kino_render_duration_seconds",
				Help:    "Wall time of finished renders",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"status"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.running, m.waiting, m.duration)
	}
	return m
}

func (m *Metrics) event(name string) {
	m.jobs.WithLabelValues(name).Inc()
}
