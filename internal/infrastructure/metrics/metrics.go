// Package metrics defines the Prometheus collectors for the gateway. All
// collectors are registered on the default registry and served by the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsProjected counts ledger writes applied by the projector,
	// labelled by phase: insert, lock, finalize, fail.
	TransactionsProjected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beampay",
		Subsystem: "ledger",
		Name:      "transactions_projected_total",
		Help:      "Ledger transitions applied by the projector.",
	}, []string{"phase"})

	// WithdrawalsProcessed counts queue outcomes: sent, failed, flagged,
	// deferred.
	WithdrawalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beampay",
		Subsystem: "withdrawals",
		Name:      "processed_total",
		Help:      "Withdrawal queue outcomes.",
	}, []string{"outcome"})

	// WithdrawalsByStatus tracks the queue depth per status.
	WithdrawalsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "beampay",
		Subsystem: "withdrawals",
		Name:      "by_status",
		Help:      "Pending withdrawal rows per status.",
	}, []string{"status"})

	// WebhookDeliveries counts webhook POST attempts by event and result.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "beampay",
		Subsystem: "webhooks",
		Name:      "deliveries_total",
		Help:      "Webhook delivery attempts.",
	}, []string{"event", "result"})

	// DeadLetteredWebhooks tracks the dead letter queue depth.
	DeadLetteredWebhooks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "beampay",
		Subsystem: "webhooks",
		Name:      "dead_lettered",
		Help:      "Failed webhook rows awaiting replay.",
	})

	// BalanceDrift records the auditor's node-minus-ledger difference in
	// groths. Zero when the books agree.
	BalanceDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "beampay",
		Subsystem: "audit",
		Name:      "balance_drift_groth",
		Help:      "Node minus ledger balance per asset and field.",
	}, []string{"asset_id", "field"})

	// NodeRequestDuration observes wallet node JSON-RPC round trips.
	NodeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beampay",
		Subsystem: "node",
		Name:      "request_duration_seconds",
		Help:      "Wallet node RPC latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "status"})

	// HTTPRequestDuration observes API latency per route pattern, not per
	// raw path, to keep the label cardinality bounded.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beampay",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "API request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// LoopDuration observes one full pass of each background loop.
	LoopDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "beampay",
		Subsystem: "worker",
		Name:      "loop_duration_seconds",
		Help:      "Background loop pass duration.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"loop"})
)
