package harness

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
	OutcomeCanceled = "canceled"
)

// Metrics records per-unit outcomes and durations
type Metrics struct {
	units    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers harness metrics on reg.
// A nil reg returns a nil *Metrics, which disables recording.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aiq",
				Subsystem: "harness",
				Name:      "units_total",
				Help:      "Units processed by batch and outcome",
			},
			[]string{"batch", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aiq",
				Subsystem: "harness",
				Name:      "unit_duration_seconds",
				Help:      "Wall time per unit",
				Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"batch"},
		),
	}

	for _, c := range []prometheus.Collector{m.units, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(batch, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.units.WithLabelValues(batch, outcome).Inc()
	m.duration.WithLabelValues(batch).Observe(d.Seconds())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsPanic(err):
		return OutcomePanic
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}
