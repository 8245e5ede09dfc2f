package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lukadfagundes/bwaincell-sub004/internal/interaction"
	"github.com/lukadfagundes/bwaincell-sub004/internal/metrics"
)

// Interaction outcomes recorded by Metrics.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeThrottled = "throttled"
)

// Metrics exposes Prometheus collectors for interaction instrumentation.
type Metrics struct {
	Interactions *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	InFlight     prometheus.Gauge
}

// NewMetrics constructs the interaction collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	interactions, err := metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "interaction",
		Name:      "total",
		Help:      "Interactions partitioned by kind, rate limit category and outcome.",
	}, []string{"kind", "category", "outcome"}))
	if err != nil {
		return nil, err
	}

	duration, err := metrics.Register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: "interaction",
		Name:      "duration_seconds",
		Help:      "Interaction latency in seconds partitioned by kind.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := metrics.Register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Subsystem: "interaction",
		Name:      "in_flight",
		Help:      "Interactions currently being handled.",
	}))
	if err != nil {
		return nil, err
	}

	return &Metrics{Interactions: interactions, Duration: duration, InFlight: inFlight}, nil
}

// Middleware records every interaction. A nil *Metrics passes through.
func (m *Metrics) Middleware() Middleware {
	if m == nil {
		return func(_ context.Context, _ *interaction.Context, next Next) error {
			return next()
		}
	}

	return func(_ context.Context, ic *interaction.Context, next Next) error {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		err := next()

		outcome := OutcomeOK
		switch {
		case err != nil:
			outcome = OutcomeError
		case ic.RateLimited():
			outcome = OutcomeThrottled
		}
		kind := string(ic.Kind)
		m.Interactions.WithLabelValues(kind, ic.Category(), outcome).Inc()
		elapsed, ok := ic.Duration()
		if !ok {
			elapsed = time.Since(start)
		}
		m.Duration.WithLabelValues(kind).Observe(elapsed.Seconds())
		return err
	}
}
