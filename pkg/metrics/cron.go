package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks maintenance job runs by job name.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronJobMetrics registers the cron metrics. A nil registerer yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cakestore",
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Cron job run time by job.",
			Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cakestore",
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by job and result.",
		}, []string{"job", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cakestore",
			Subsystem: "cron",
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run, for staleness alerts.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess)
	return m
}

// ObserveJob records one finished run. finishedAt stamps the success gauge.
func (m *CronJobMetrics) ObserveJob(job string, took time.Duration, finishedAt time.Time, err error) {
	if m == nil || m.duration == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, "failure").Inc()
		return
	}
	m.runs.WithLabelValues(job, "success").Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(finishedAt.Unix()))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
