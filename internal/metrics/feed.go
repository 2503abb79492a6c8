package metrics

import "github.com/prometheus/client_golang/prometheus"

// FeedMetrics tracks how channel feed reads are served.
type FeedMetrics struct {
	CacheResults *prometheus.CounterVec
}

func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	m := &FeedMetrics{
		CacheResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "cache_results_total",
			Help:      "Feed reads by outcome: hit, miss, or error.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.CacheResults)
	return m
}
