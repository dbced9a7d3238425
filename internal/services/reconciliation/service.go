package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/observability"
	"github.com/kevin07696/paypal-billing/pkg/timeutil"
	"golang.org/x/sync/errgroup"
)

// Config tunes the reconciliation tasks
type Config struct {
	// StalePaymentLifetime is how long a CREATED payment may wait for approval
	StalePaymentLifetime time.Duration

	// BatchSize caps the invoices and agreements handled per run
	BatchSize int32

	// SyncLookback is how far back agreement transactions are pulled
	SyncLookback time.Duration
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		StalePaymentLifetime: 7 * 24 * time.Hour,
		BatchSize:            100,
		SyncLookback:         35 * 24 * time.Hour,
	}
}

// Dependencies groups the collaborators of the reconciliation service
type Dependencies struct {
	Payments   ports.PaymentRepository
	Agreements ports.AgreementRepository
	Invoices   ports.InvoiceRepository
	Catalog    ports.ResourceCatalog
	Accounts   ports.CustomerAccounts

	AgreementService serviceports.AgreementService
	InvoiceService   serviceports.InvoiceService

	Logger ports.Logger
}

// Service implements serviceports.ReconciliationService
type Service struct {
	deps Dependencies
	cfg  Config
	now  func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(deps Dependencies, cfg Config, opts ...Option) *Service {
	defaults := DefaultConfig()
	if cfg.StalePaymentLifetime <= 0 {
		cfg.StalePaymentLifetime = defaults.StalePaymentLifetime
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.SyncLookback <= 0 {
		cfg.SyncLookback = defaults.SyncLookback
	}

	s := &Service{deps: deps, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ serviceports.ReconciliationService = (*Service)(nil)

// CleanupStalePayments deletes CREATED payments older than the configured lifetime
func (s *Service) CleanupStalePayments(ctx context.Context) (*serviceports.TaskResult, error) {
	result := &serviceports.TaskResult{Task: serviceports.TaskCleanupStalePayments}
	cutoff := s.now().UTC().Add(-s.cfg.StalePaymentLifetime)

	deleted, err := s.deps.Payments.DeleteStale(ctx, nil, domain.PaymentStateCreated, cutoff)
	if err != nil {
		return s.finish(result, fmt.Errorf("delete stale payments: %w", err))
	}
	result.Succeeded = int(deleted)
	return s.finish(result, nil)
}

// DispatchInvoices hands every closed, undispatched invoice with items to the
// processor. The candidates are read in keyset pages of BatchSize so invoices
// that keep failing never hide the ones behind them.
func (s *Service) DispatchInvoices(ctx context.Context) (*serviceports.TaskResult, error) {
	result := &serviceports.TaskResult{Task: serviceports.TaskDispatchInvoices}
	today := timeutil.StartOfDay(s.now())

	var after *ports.InvoiceCursor
	for {
		page, err := s.deps.Invoices.ListUndispatched(ctx, nil, today, after, s.cfg.BatchSize)
		if err != nil {
			return s.finish(result, fmt.Errorf("list undispatched invoices: %w", err))
		}

		for _, inv := range page {
			if ctx.Err() != nil {
				return s.finish(result, ctx.Err())
			}
			if _, err := s.deps.InvoiceService.Dispatch(ctx, inv.ID); err != nil {
				result.Fail(inv.ID, err)
				continue
			}
			result.Succeeded++
		}

		if len(page) < int(s.cfg.BatchSize) {
			return s.finish(result, nil)
		}
		after = ports.CursorAfter(page[len(page)-1])
	}
}

// DebitConsumption charges each customer for yesterday's usage of shared resources.
// Resources that cannot be priced are skipped.
func (s *Service) DebitConsumption(ctx context.Context) (*serviceports.TaskResult, error) {
	result := &serviceports.TaskResult{Task: serviceports.TaskDebitConsumption}
	start, end := timeutil.PreviousDay(s.now())

	resources, err := s.deps.Catalog.ListShared(ctx)
	if err != nil {
		return s.finish(result, fmt.Errorf("list shared resources: %w", err))
	}

	for _, res := range resources {
		if ctx.Err() != nil {
			return s.finish(result, ctx.Err())
		}

		cost, err := s.deps.Catalog.Cost(ctx, res, start, end)
		if errors.Is(err, ports.ErrCostNotSupported) {
			result.Skipped++
			continue
		}
		if err != nil {
			result.Fail(res.ID, err)
			continue
		}
		if cost.IsZero() {
			result.Skipped++
			continue
		}

		if err := s.deps.Accounts.Debit(ctx, res.CustomerID, cost); err != nil {
			result.Fail(res.ID, err)
			continue
		}
		result.Succeeded++
	}
	return s.finish(result, nil)
}

// SyncAgreementTransactions books recent agreement charges onto invoices and
// picks up cancellations made at the processor. Succeeded counts new items,
// Skipped counts transactions already on file.
func (s *Service) SyncAgreementTransactions(ctx context.Context) (*serviceports.TaskResult, error) {
	result := &serviceports.TaskResult{Task: serviceports.TaskSyncAgreements}
	since := s.now().UTC().Add(-s.cfg.SyncLookback)

	agreements, err := s.deps.Agreements.ListByState(ctx, nil, domain.AgreementStateApproved, s.cfg.BatchSize)
	if err != nil {
		return s.finish(result, fmt.Errorf("list approved agreements: %w", err))
	}

	for _, agreement := range agreements {
		if ctx.Err() != nil {
			return s.finish(result, ctx.Err())
		}

		start := since
		if agreement.CreatedAt.After(start) {
			start = agreement.CreatedAt
		}
		txs, err := s.deps.AgreementService.ListTransactions(ctx, agreement.ID, start, nil)
		if err != nil {
			result.Fail(agreement.ID, err)
			continue
		}

		for _, tx := range txs {
			added, err := s.deps.InvoiceService.RecordTransaction(ctx, agreement, tx)
			switch {
			case err != nil:
				result.Fail(tx.TransactionID, err)
			case added:
				result.Succeeded++
			default:
				result.Skipped++
			}
		}

		if _, err := s.deps.AgreementService.SyncStatus(ctx, agreement.ID); err != nil {
			result.Fail(agreement.ID, err)
		}
	}
	return s.finish(result, nil)
}

// RunAll runs the tasks concurrently, except that agreement sync always
// completes before invoice dispatch so charges land on invoices that are
// still open. A task-level failure does not stop the others; the first one is
// returned alongside all results, ordered as the Task* constants.
func (s *Service) RunAll(ctx context.Context) ([]*serviceports.TaskResult, error) {
	results := make([]*serviceports.TaskResult, 4)
	run := func(i int, task func(context.Context) (*serviceports.TaskResult, error)) error {
		result, err := task(ctx)
		results[i] = result
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return run(0, s.CleanupStalePayments) })
	g.Go(func() error { return run(2, s.DebitConsumption) })
	g.Go(func() error {
		syncErr := run(3, s.SyncAgreementTransactions)
		if err := run(1, s.DispatchInvoices); err != nil && syncErr == nil {
			return err
		}
		return syncErr
	})
	err := g.Wait()
	return results, err
}

func (s *Service) finish(result *serviceports.TaskResult, err error) (*serviceports.TaskResult, error) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
		result.Errors = append(result.Errors, err.Error())
	case result.Failed > 0:
		status = "partial"
	}
	observability.RecordReconciliationRun(result.Task, status, result.Succeeded, result.Failed, result.Skipped)

	fields := []ports.Field{
		ports.String("task", result.Task),
		ports.String("status", status),
		ports.Int("succeeded", result.Succeeded),
		ports.Int("failed", result.Failed),
		ports.Int("skipped", result.Skipped),
	}
	if status == "success" {
		s.deps.Logger.Info("reconciliation task finished", fields...)
	} else {
		s.deps.Logger.Warn("reconciliation task finished with failures", fields...)
	}
	return result, err
}
