package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by estimates and placements.
const (
	OutcomeAvailable         = "available"
	OutcomeUnavailable       = "unavailable"
	OutcomePlaced            = "placed"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeCapacityExceeded  = "capacity_exceeded"
	OutcomeContention        = "contention"
	OutcomeNotFound          = "not_found"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// SchedulingMetrics tracks estimate and reservation outcomes.
type SchedulingMetrics struct {
	estimateDuration *prometheus.HistogramVec
	placements       *prometheus.CounterVec
	placeAttempts    prometheus.Histogram
	unitsReserved    *prometheus.CounterVec
}

// NewSchedulingMetrics registers the scheduling metrics. A nil registerer yields a no-op recorder.
func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	if reg == nil {
		return &SchedulingMetrics{}
	}
	estimateDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cakestore",
		Name:      "estimate_duration_seconds",
		Help:      "Duration of fulfillment estimates by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cakestore",
		Name:      "order_placements_total",
		Help:      "Order placement attempts by outcome.",
	}, []string{"outcome"})
	placeAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cakestore",
		Name:      "order_placement_tx_attempts",
		Help:      "Transactions needed per order placement.",
		Buckets:   []float64{1, 2, 3, 4, 6, 8},
	})
	unitsReserved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cakestore",
		Name:      "units_reserved_total",
		Help:      "Units committed by placed orders, by product kind.",
	}, []string{"kind"})
	reg.MustRegister(estimateDuration, placements, placeAttempts, unitsReserved)
	return &SchedulingMetrics{
		estimateDuration: estimateDuration,
		placements:       placements,
		placeAttempts:    placeAttempts,
		unitsReserved:    unitsReserved,
	}
}

func (m *SchedulingMetrics) ObserveEstimate(outcome string, duration time.Duration) {
	if m == nil || m.estimateDuration == nil {
		return
	}
	m.estimateDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (m *SchedulingMetrics) IncPlacement(outcome string) {
	if m == nil || m.placements == nil {
		return
	}
	m.placements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *SchedulingMetrics) ObservePlacementAttempts(attempts int) {
	if m == nil || m.placeAttempts == nil {
		return
	}
	m.placeAttempts.Observe(float64(attempts))
}

func (m *SchedulingMetrics) AddUnitsReserved(kind string, units int) {
	if m == nil || m.unitsReserved == nil || units <= 0 {
		return
	}
	m.unitsReserved.WithLabelValues(normalizeLabel(kind)).Add(float64(units))
}
