// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CachedScopes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cached_scopes",
			Help: "Number of resolved widget scopes currently cached in memory.",
		})

	ScopeLoadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scope_load_total",
			Help: "Cumulative number of scopes resolved from the store.",
		})

	ScopeLoadErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scope_load_errors_total",
			Help: "Cumulative number of scope resolution failures.",
		})

	ScopeEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scope_evict_total",
			Help: "Cumulative number of scopes evicted from the cache.",
		})

	FeedRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_requests_total",
			Help: "Cumulative number of feed assembly requests.",
		})

	UpstreamPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_pages_total",
			Help: "Cumulative number of result pages fetched from content sources.",
		})

	UpstreamErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Cumulative number of content-source request failures.",
		})

	FeedAssemblySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_assembly_seconds",
			Help:    "Wall time spent assembling one feed, all sources included.",
			Buckets: prometheus.DefBuckets,
		})
)

func init() {
	prometheus.MustRegister(
		CachedScopes,
		ScopeLoadTotal,
		ScopeLoadErrorsTotal,
		ScopeEvictTotal,
		FeedRequestsTotal,
		UpstreamPagesTotal,
		UpstreamErrorsTotal,
		FeedAssemblySeconds,
	)
}
