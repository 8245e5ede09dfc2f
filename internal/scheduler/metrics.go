package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lukadfagundes/bwaincell-sub004/internal/metrics"
)

const (
	tickRun        = "run"
	tickSkipped    = "skipped"
	deliverySent   = "sent"
	deliveryFailed = "failed"
)

// Metrics counts scheduler ticks and deliveries.
type Metrics struct {
	Ticks      *prometheus.CounterVec
	Deliveries *prometheus.CounterVec
}

// NewMetrics constructs the scheduler collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	ticks, err := metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "scheduler",
		Name:      "ticks_total",
		Help:      "Scheduler ticks partitioned by result (run, skipped).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	deliveries, err := metrics.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "scheduler",
		Name:      "deliveries_total",
		Help:      "Notification deliveries partitioned by result (sent, failed).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{Ticks: ticks, Deliveries: deliveries}, nil
}

func (m *Metrics) tick(result string) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(result).Inc()
}

func (m *Metrics) delivery(result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(result).Inc()
}
