// Package metrics exposes Prometheus collectors for billing and
// reconciliation observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quillforge"

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Billing metrics
	ChargesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "charges_total",
			Help:      "Total number of usage charges",
		},
		[]string{"service", "status"}, // status: ok/insufficient_balance/error
	)

	ChargedUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "charged_usd_total",
			Help:      "Total USD charged across services",
		},
		[]string{"service"},
	)

	BillingFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "record_failures_total",
			Help:      "Usage recording failures swallowed by the lenient path",
		},
		[]string{"service"},
	)

	BalanceChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "balance_checks_total",
			Help:      "Total number of pre-flight balance validations",
		},
		[]string{"service", "result"}, // result: valid/insufficient_balance/no_account/error
	)

	// LLM usage metrics
	LLMTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_used_total",
			Help:      "Total tokens billed for LLM calls",
		},
		[]string{"provider", "model", "type"}, // type: input/output/reasoning
	)

	// Reconciliation metrics
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of monitoring reconciliation runs",
		},
		[]string{"status"}, // status: ok/error/in_progress
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Monitoring reconciliation run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	ReconcileBlogsProcessed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "blogs_processed",
			Help:      "Blogs processed in the last reconciliation run",
		},
	)

	ReconcileWordCountIssues = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "word_count_issues",
			Help:      "Unparseable word counts in the last reconciliation run",
		},
	)
)
