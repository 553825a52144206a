package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SwipesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devmatch_swipes_total",
			Help: "Swipe decisions recorded in the ledger.",
		},
		[]string{"decision"},
	)
	MatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devmatch_matches_total",
			Help: "Match registry writes, by outcome.",
		},
		[]string{"outcome"},
	)
	ToastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devmatch_toasts_total",
			Help: "Toast state transitions in the notification sequencer.",
		},
		[]string{"kind", "state"},
	)
	ToastQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "devmatch_toast_queue_depth",
			Help: "Toasts waiting for the display slot, across all users.",
		},
	)
	DeckRefillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devmatch_deck_refills_total",
			Help: "Candidate deck loads, by result.",
		},
		[]string{"result"},
	)
	EventPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "devmatch_event_publish_errors_total",
			Help: "Domain events that failed to publish.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SwipesTotal,
		MatchesTotal,
		ToastsTotal,
		ToastQueueDepth,
		DeckRefillsTotal,
		EventPublishErrorsTotal,
	)
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Decision maps a like flag to the swipe counter label.
func Decision(liked bool) string {
	if liked {
		return "like"
	}
	return "pass"
}
