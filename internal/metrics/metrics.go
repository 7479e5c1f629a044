package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream metrics
var (
	// UpstreamRequestsTotal counts outbound calls per upstream and HTTP status.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_dashboard_upstream_requests_total",
			Help: "Total number of outbound upstream requests",
		},
		[]string{"upstream", "status"},
	)

	// UpstreamRequestDuration tracks the latency of outbound calls.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farm_dashboard_upstream_request_duration_seconds",
			Help:    "Duration of outbound upstream requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"},
	)
)

// Cache and pipeline metrics
var (
	ForecastCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_dashboard_forecast_cache_total",
			Help: "Forecast cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	TranslationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_dashboard_translations_total",
			Help: "Translation lookups by language and result (hit, miss, error)",
		},
		[]string{"lang", "result"},
	)

	SchemeMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_dashboard_scheme_matches_total",
			Help: "Scheme match attempts by result (matched, none, error)",
		},
		[]string{"result"},
	)

	// ActiveSessions is the number of mounted dashboard sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farm_dashboard_active_sessions",
			Help: "Number of mounted dashboard sessions",
		},
	)
)

// RecordUpstream records one outbound request. A status of 0 means the
// request never produced a response.
func RecordUpstream(upstream string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequestsTotal.WithLabelValues(upstream, label).Inc()
	UpstreamRequestDuration.WithLabelValues(upstream).Observe(duration.Seconds())
}

func RecordForecastCache(hit bool) {
	if hit {
		ForecastCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	ForecastCacheTotal.WithLabelValues("miss").Inc()
}

func RecordTranslation(lang, result string) {
	TranslationsTotal.WithLabelValues(lang, result).Inc()
}

func RecordSchemeMatch(result string) {
	SchemeMatchesTotal.WithLabelValues(result).Inc()
}
