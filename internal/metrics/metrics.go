package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter: completed forecast fetches by result ("ok" or error kind).
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecast_fetches_total",
			Help: "Total number of completed forecast fetches by result.",
		},
		[]string{"result"},
	)

	// Counter: subscribers attached to an already in-flight fetch.
	FetchDedupTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_fetch_dedup_total",
			Help: "Total number of subscribe calls served by an in-flight fetch.",
		},
	)

	// Counter: fetch results discarded because their request token was superseded.
	FetchesDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_fetches_discarded_total",
			Help: "Total number of fetch results discarded as superseded.",
		},
	)

	// Counter: subscribe calls served from a fresh cached entry without a fetch.
	CacheFreshHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_cache_fresh_hits_total",
			Help: "Total number of subscribe calls served from a fresh cache entry.",
		},
	)

	// Counter: poll timer ticks that started a refresh.
	PollTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecast_poll_ticks_total",
			Help: "Total number of poll ticks that started a refresh fetch.",
		},
	)

	// Counter: search lookups dispatched after debounce.
	SearchLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_lookups_total",
			Help: "Total number of search lookups dispatched to the provider.",
		},
	)

	// Counter: search results discarded because a newer query superseded them.
	SearchDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_results_discarded_total",
			Help: "Total number of search results discarded as superseded.",
		},
	)

	// Counter: favorites evicted after a terminal not-found failure.
	EvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "favorites_evictions_total",
			Help: "Total number of favorites evicted after a not-found failure.",
		},
	)

	// Counter: failed favorites persistence attempts (non-fatal).
	FavoritesPersistFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "favorites_persist_failures_total",
			Help: "Total number of failed favorites persistence attempts.",
		},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		FetchesTotal,
		FetchDedupTotal,
		FetchesDiscardedTotal,
		CacheFreshHitsTotal,
		PollTicksTotal,
		SearchLookupsTotal,
		SearchDiscardedTotal,
		EvictionsTotal,
		FavoritesPersistFailuresTotal,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}
