// Package metrics exposes Prometheus instruments for the settlement service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the instruments the services record into. Construct it once
// per process; tests pass their own registry.
type Metrics struct {
	TransitionsTotal    *prometheus.CounterVec
	SettlementsTotal    *prometheus.CounterVec
	SettlementDuration  *prometheus.HistogramVec
	CompensationsTotal  *prometheus.CounterVec
	ReconciliationQueue prometheus.Gauge
	LedgerRequests      *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "application_transitions_total",
			Help: "Application status transitions by target status and outcome",
		}, []string{"to_status", "outcome"}),

		SettlementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_attempts_total",
			Help: "Settlement attempts by terminal state",
		}, []string{"state"}),

		SettlementDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "End to end settlement attempt duration",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"state"}),

		CompensationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_compensations_total",
			Help: "Compensation actions by type and outcome",
		}, []string{"compensation", "outcome"}),

		ReconciliationQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "settlement_reconciliation_queue",
			Help: "Unresolved attempts awaiting reconciliation",
		}),

		LedgerRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_request_duration_seconds",
			Help:    "Payment ledger request latency by operation and result",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "result"}),
	}
}

func (m *Metrics) RecordTransition(toStatus, outcome string) {
	m.TransitionsTotal.WithLabelValues(toStatus, outcome).Inc()
}

func (m *Metrics) RecordSettlement(state string, elapsed time.Duration) {
	m.SettlementsTotal.WithLabelValues(state).Inc()
	m.SettlementDuration.WithLabelValues(state).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordCompensation(compensation, outcome string) {
	m.CompensationsTotal.WithLabelValues(compensation, outcome).Inc()
}

func (m *Metrics) RecordLedgerRequest(operation, result string, elapsed time.Duration) {
	m.LedgerRequests.WithLabelValues(operation, result).Observe(elapsed.Seconds())
}
