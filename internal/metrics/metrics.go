// Package metrics holds the Prometheus collectors of the fintrack processes.
// Collectors register with the default registry; cmd/fintrack serves it at
// /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_http_requests_total",
			Help: "HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fintrack_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	// StatementsGenerated counts generate calls that stored a statement.
	StatementsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fintrack_statements_generated_total",
		Help: "Statements inserted or refreshed.",
	})

	// StatementPayments counts payment attempts by result.
	StatementPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_statement_payments_total",
			Help: "Statement payment attempts by result.",
		},
		[]string{"result"},
	)

	// RecurringRuns counts poster runs; skipped means another run held the lock.
	RecurringRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_recurring_runs_total",
			Help: "Recurring poster runs by result.",
		},
		[]string{"result"},
	)

	// RecurringRules counts rules handled by the poster by result.
	RecurringRules = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_recurring_rules_total",
			Help: "Recurring rules processed by result.",
		},
		[]string{"result"},
	)

	// RecurringPostings counts postings created by the poster.
	RecurringPostings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fintrack_recurring_postings_created_total",
		Help: "Postings created from recurring rules.",
	})

	// EventPublishErrors counts ledger events that could not be published.
	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_event_publish_errors_total",
			Help: "Ledger events that failed to publish, by type.",
		},
		[]string{"type"},
	)

	// MirrorSyncs counts spreadsheet mirror operations by result.
	MirrorSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fintrack_mirror_syncs_total",
			Help: "Postings mirrored to or removed from the spreadsheet, by result.",
		},
		[]string{"op", "result"},
	)
)

// ObserveHTTP records one served request.
func ObserveHTTP(method string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
