package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.IncTransaction("credit", "completed")
	m.IncTransaction("credit", "completed")
	m.IncTransaction("debit", "pending")
	m.IncCapture("success")
	m.ObserveReconcile("success", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.transactions.WithLabelValues("credit", "completed")); got != 2 {
		t.Fatalf("expected 2 credit/completed, got %v", got)
	}
	if got := testutil.ToFloat64(m.transactions.WithLabelValues("debit", "pending")); got != 1 {
		t.Fatalf("expected 1 debit/pending, got %v", got)
	}
	if got := testutil.ToFloat64(m.captureAttempts.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 capture success, got %v", got)
	}
	if got := testutil.ToFloat64(m.reconcileRuns.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 reconcile run, got %v", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	m := NewLedgerMetrics(nil)
	m.IncTransaction("credit", "completed")
	m.IncCapture("failure")
	m.ObserveReconcile("failure", time.Second)
}
