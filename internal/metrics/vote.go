package metrics

import "github.com/prometheus/client_golang/prometheus"

// VoteMetrics holds Prometheus metrics for vote casting.
type VoteMetrics struct {
	VotesCast        *prometheus.CounterVec
	CastDuration     prometheus.Histogram
	CountersRepaired prometheus.Counter
}

// NewVoteMetrics creates and registers vote metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of vote casts, by result.",
		}, []string{"result"}),
		CastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vote_cast_duration_seconds",
			Help:      "Duration of the vote transaction in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		CountersRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_counters_repaired_total",
			Help:      "Posts whose counters were recomputed from the vote ledger and changed.",
		}),
	}

	reg.MustRegister(m.VotesCast, m.CastDuration, m.CountersRepaired)
	return m
}
