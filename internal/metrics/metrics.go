// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "azkarbot"

var (
	JobsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_fired_total",
		Help:      "Job occurrences dispatched.",
	}, []string{"job"})

	JobsMissed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_missed_total",
		Help:      "Job occurrences skipped for exceeding the misfire grace.",
	}, []string{"job"})

	JobsOverlapSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_overlap_skipped_total",
		Help:      "Job occurrences skipped because the previous run was still in flight.",
	}, []string{"job"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "jobs_failed_total",
		Help:      "Job runs that returned an error or panicked.",
	}, []string{"job"})

	PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_errors_total",
		Help:      "Failed long-poll requests by error class.",
	}, []string{"kind"})

	PollConsecutiveErrors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poll_consecutive_errors",
		Help:      "Current streak of failed long-poll requests.",
	})

	PollCursor = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "poll_cursor",
		Help:      "Next update id requested from the long-poll stream.",
	})

	UpdatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_handled_total",
		Help:      "Inbound updates dispatched by kind.",
	}, []string{"kind"})

	HandlerSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "handler_seconds",
		Help:      "Command and callback handling latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"route", "result"})

	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sends_total",
		Help:      "Outbound deliveries by result.",
	}, []string{"result"})

	Groups = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "groups",
		Help:      "Registered groups.",
	})

	GroupsRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "groups_removed_total",
		Help:      "Groups deregistered after a permanent delivery failure.",
	})
)

// JobLabel collapses per-day job ids into a bounded label set.
func JobLabel(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			return id[:i]
		}
	}
	return id
}
