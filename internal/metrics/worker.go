package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkerMetrics tracks event processing and point awards.
type WorkerMetrics struct {
	EventsProcessed *prometheus.CounterVec
	PointsAwarded   *prometheus.CounterVec
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "events_processed_total",
			Help:      "Stream events handled, by type and result.",
		}, []string{"type", "result"}),
		PointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "points_awarded_total",
			Help:      "Points added to profiles, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.EventsProcessed, m.PointsAwarded)
	return m
}
