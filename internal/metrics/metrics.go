// Package metrics exposes prometheus collectors and the local status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_posts_inserted_total",
		Help: "Posts materialized in the view, by ingestion source.",
	}, []string{"source"})

	duplicatesIgnored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_duplicates_ignored_total",
		Help: "Posts dropped because their id was already in the view, by ingestion source.",
	}, []string{"source"})

	pollsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_polls_skipped_total",
		Help: "Poll ticks that did not query the server, by reason.",
	}, []string{"reason"})

	requestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_request_errors_total",
		Help: "Failed API calls, by operation.",
	}, []string{"op"})

	pushStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsync_push_status_changes_total",
		Help: "Push channel lifecycle notifications, by status.",
	}, []string{"status"})

	pushConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedsync_push_connected",
		Help: "Whether the push channel is currently connected.",
	})

	viewSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedsync_view_posts",
		Help: "Number of posts currently in the view.",
	})
)

// Skip reasons for polls.
const (
	SkipInFlight    = "in_flight"
	SkipComposeOpen = "compose_open"
)

// PostInserted counts a post materialized from source.
func PostInserted(source string) {
	postsInserted.WithLabelValues(source).Inc()
}

// DuplicateIgnored counts a post dropped as already seen.
func DuplicateIgnored(source string) {
	duplicatesIgnored.WithLabelValues(source).Inc()
}

// PollSkipped counts a poll tick suppressed by a guard.
func PollSkipped(reason string) {
	pollsSkipped.WithLabelValues(reason).Inc()
}

// RequestFailed counts a failed API call.
func RequestFailed(op string) {
	requestErrors.WithLabelValues(op).Inc()
}

// PushStatus records a push channel lifecycle notification.
func PushStatus(status string, connected bool) {
	pushStatusChanges.WithLabelValues(status).Inc()
	if connected {
		pushConnected.Set(1)
		return
	}
	pushConnected.Set(0)
}

// ViewSize records the current number of posts in the view.
func ViewSize(n int) {
	viewSize.Set(float64(n))
}
