package ports

import "context"

// Reconciliation task names
const (
	TaskCleanupStalePayments = "cleanup_stale_payments"
	TaskDispatchInvoices     = "dispatch_invoices"
	TaskDebitConsumption     = "debit_consumption"
	TaskSyncAgreements       = "sync_agreements"
)

// TaskResult summarises one reconciliation task run
type TaskResult struct {
	Task      string   `json:"task"`
	Errors    []string `json:"errors,omitempty"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
}

// ReconciliationService runs the periodic housekeeping tasks. Per-entity
// failures are counted in the result; only task-level failures are returned.
type ReconciliationService interface {
	CleanupStalePayments(ctx context.Context) (*TaskResult, error)
	DispatchInvoices(ctx context.Context) (*TaskResult, error)
	DebitConsumption(ctx context.Context) (*TaskResult, error)
	SyncAgreementTransactions(ctx context.Context) (*TaskResult, error)

	// RunAll runs every task concurrently
	RunAll(ctx context.Context) ([]*TaskResult, error)
}

// Fail counts a per-item failure and keeps its reason
func (r *TaskResult) Fail(item string, err error) {
	r.Failed++
	r.Errors = append(r.Errors, item+": "+err.Error())
}
