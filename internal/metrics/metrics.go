// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atlasforum"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Forum bundles every application collector.
type Forum struct {
	Votes  *VoteMetrics
	Feed   *FeedMetrics
	Worker *WorkerMetrics
	HTTP   *HTTPMetrics
}

// NewForum creates and registers all application metrics on reg.
func NewForum(reg prometheus.Registerer) *Forum {
	return &Forum{
		Votes:  NewVoteMetrics(reg),
		Feed:   NewFeedMetrics(reg),
		Worker: NewWorkerMetrics(reg),
		HTTP:   NewHTTPMetrics(reg),
	}
}
