// Package metrics exposes Prometheus instrumentation for the parse
// resolution pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partyboard_parse_cache_hits_total",
		Help: "Parse cache lookups served from a fresh entry",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partyboard_parse_cache_misses_total",
		Help: "Parse cache lookups with no fresh entry",
	})
	upstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partyboard_upstream_requests_total",
		Help: "Ranking API batch requests by outcome",
	}, []string{"outcome"})
	parsesCached = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partyboard_parses_cached_total",
		Help: "Parse outcomes written to the cache",
	})
	pagesRendered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partyboard_listing_pages_rendered_total",
		Help: "Listing pages assembled",
	})
)

var initOnce sync.Once

// Init registers all collectors. Must be called once at startup.
// budgetRemaining is sampled on every scrape so the gauge always reflects
// the owning component's view of the quota.
func Init(budgetRemaining func() float64) {
	initOnce.Do(func() {
		prometheus.MustRegister(cacheHits, cacheMisses, upstreamRequests, parsesCached, pagesRendered)
		if budgetRemaining != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "partyboard_rate_budget_remaining",
				Help: "Remaining ranking API query points in the current window",
			}, budgetRemaining))
		}
	})
}

// CacheHits records n parse cache hits.
func CacheHits(n int) {
	cacheHits.Add(float64(n))
}

// CacheMisses records n parse cache misses.
func CacheMisses(n int) {
	cacheMisses.Add(float64(n))
}

// UpstreamRequest records one ranking API batch request outcome.
func UpstreamRequest(outcome string) {
	upstreamRequests.WithLabelValues(outcome).Inc()
}

// ParsesCached records n outcomes written to the parse cache.
func ParsesCached(n int) {
	parsesCached.Add(float64(n))
}

// PageRendered records one assembled listing page.
func PageRendered() {
	pagesRendered.Inc()
}
