package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment processor call metrics
	processorCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "processor_calls_total",
		Help: "Total number of calls to the payment processor",
	}, []string{
		"operation", // create_payment, execute_agreement, ...
		"outcome",   // success, backend_error, not_found
	})

	processorCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "processor_call_duration_seconds",
		Help:    "Duration of payment processor calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	processorCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "processor_circuit_breaker_state",
		Help: "Processor circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	// Lifecycle metrics
	lifecycleTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "State transitions committed for payments and agreements",
	}, []string{
		"entity", // payment, agreement
		"from",
		"to",
	})

	// Reconciliation metrics
	reconciliationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_runs_total",
		Help: "Reconciliation task runs",
	}, []string{"task", "status"})

	reconciliationItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_items_total",
		Help: "Items handled by reconciliation tasks",
	}, []string{"task", "outcome"})

	invoiceRenderFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoice_render_failures_total",
		Help: "Invoice documents that failed to render",
	})
)

// RecordProcessorCall records a single processor request
func RecordProcessorCall(operation, outcome string, durationSeconds float64) {
	processorCallsTotal.WithLabelValues(operation, outcome).Inc()
	processorCallDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// SetProcessorCircuitState publishes the breaker state
func SetProcessorCircuitState(state int) {
	processorCircuitState.Set(float64(state))
}

// RecordTransition records a committed lifecycle transition
func RecordTransition(entity, from, to string) {
	lifecycleTransitionsTotal.WithLabelValues(entity, from, to).Inc()
}

// RecordReconciliationRun records a finished reconciliation task and its per-item outcomes
func RecordReconciliationRun(task, status string, succeeded, failed, skipped int) {
	reconciliationRunsTotal.WithLabelValues(task, status).Inc()
	reconciliationItemsTotal.WithLabelValues(task, "succeeded").Add(float64(succeeded))
	reconciliationItemsTotal.WithLabelValues(task, "failed").Add(float64(failed))
	reconciliationItemsTotal.WithLabelValues(task, "skipped").Add(float64(skipped))
}

func RecordRenderFailure() {
	invoiceRenderFailuresTotal.Inc()
}
