package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records wallet, capture, and reconciliation activity.
type LedgerMetrics struct {
	transactions     *prometheus.CounterVec
	captureAttempts  *prometheus.CounterVec
	reconcileRuns    *prometheus.CounterVec
	reconcileSeconds prometheus.Histogram
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transactions_total",
		Help: "Ledger entries appended, by type and status.",
	}, []string{"type", "status"})
	captureAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_capture_attempts_total",
		Help: "Payment capture attempts by outcome.",
	}, []string{"outcome"})
	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_reconcile_runs_total",
		Help: "Wallet rebuilds by outcome.",
	}, []string{"outcome"})
	reconcileSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_reconcile_duration_seconds",
		Help:    "Duration of a single wallet rebuild.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(transactions, captureAttempts, reconcileRuns, reconcileSeconds)
	return &LedgerMetrics{
		transactions:     transactions,
		captureAttempts:  captureAttempts,
		reconcileRuns:    reconcileRuns,
		reconcileSeconds: reconcileSeconds,
	}
}

// IncTransaction counts one appended ledger entry.
func (m *LedgerMetrics) IncTransaction(txType, status string) {
	if m == nil || m.transactions == nil {
		return
	}
	m.transactions.WithLabelValues(txType, status).Inc()
}

// IncCapture counts one capture attempt outcome.
func (m *LedgerMetrics) IncCapture(outcome string) {
	if m == nil || m.captureAttempts == nil {
		return
	}
	m.captureAttempts.WithLabelValues(outcome).Inc()
}

// ObserveReconcile records a completed wallet rebuild.
func (m *LedgerMetrics) ObserveReconcile(outcome string, duration time.Duration) {
	if m == nil || m.reconcileRuns == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(outcome).Inc()
	m.reconcileSeconds.Observe(duration.Seconds())
}
