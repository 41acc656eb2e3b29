package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "jamfmcp"

var (
	// FeedFetches counts vulnerability feed downloads by outcome.
	FeedFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feed_fetch_total",
			Help:      "Total number of vulnerability feed fetch attempts",
		},
		[]string{"result"},
	)

	// FeedCacheHits counts feed loads served from the in-process snapshot.
	FeedCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feed_cache_hits_total",
			Help:      "Total number of feed loads served from cache",
		},
	)

	// ToolCalls counts tool invocations by tool and outcome.
	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)

	// ToolDuration observes tool latency.
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool invocation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// ScorecardGrades counts generated scorecards by grade.
	ScorecardGrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scorecard_grades_total",
			Help:      "Total number of generated scorecards by grade",
		},
		[]string{"grade"},
	)

	// JamfRequests counts upstream Jamf Pro API requests by endpoint and status class.
	JamfRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "jamf_requests_total",
			Help:      "Total number of Jamf Pro API requests",
		},
		[]string{"endpoint", "status"},
	)

	metricsOnce sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		// Errors are ignored so a collector registered elsewhere does not panic.
		_ = prometheus.DefaultRegisterer.Register(FeedFetches)
		_ = prometheus.DefaultRegisterer.Register(FeedCacheHits)
		_ = prometheus.DefaultRegisterer.Register(ToolCalls)
		_ = prometheus.DefaultRegisterer.Register(ToolDuration)
		_ = prometheus.DefaultRegisterer.Register(ScorecardGrades)
		_ = prometheus.DefaultRegisterer.Register(JamfRequests)
	})
}
