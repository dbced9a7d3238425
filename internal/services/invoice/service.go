package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/observability"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/kevin07696/paypal-billing/pkg/timeutil"
	"github.com/shopspring/decimal"
)

const entity = "invoice"

// Service implements serviceports.InvoiceService
type Service struct {
	invoices  ports.InvoiceRepository
	processor ports.PaymentProcessor
	renderer  ports.DocumentRenderer
	documents ports.DocumentStore
	locker    ports.Locker
	timeouts  *resilience.TimeoutConfig
	issuer    ports.InvoiceIssuer
	logger    ports.Logger
}

// Dependencies groups the collaborators of the invoice service
type Dependencies struct {
	Invoices  ports.InvoiceRepository
	Processor ports.PaymentProcessor
	Renderer  ports.DocumentRenderer
	Documents ports.DocumentStore
	Locker    ports.Locker
	Timeouts  *resilience.TimeoutConfig
	Logger    ports.Logger
}

// NewService creates a new invoice service. issuer is printed on every document.
func NewService(deps Dependencies, issuer ports.InvoiceIssuer) *Service {
	return &Service{
		invoices:  deps.Invoices,
		processor: deps.Processor,
		renderer:  deps.Renderer,
		documents: deps.Documents,
		locker:    deps.Locker,
		timeouts:  deps.Timeouts,
		issuer:    issuer,
		logger:    deps.Logger,
	}
}

var _ serviceports.InvoiceService = (*Service)(nil)

func (s *Service) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	return s.invoices.GetByID(ctx, nil, id)
}

func (s *Service) List(ctx context.Context, customerID string) ([]*domain.Invoice, error) {
	if customerID == "" {
		return nil, domain.NewValidationError("customer_id is required")
	}
	return s.invoices.ListByCustomer(ctx, nil, customerID)
}

func (s *Service) GenerateDocument(ctx context.Context, id string) (*domain.Invoice, error) {
	invoice, release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.render(ctx, invoice); err != nil {
		return invoice, err
	}
	return invoice, nil
}

// render drops any previous document, then renders and stores a new one.
// Render failures are logged and leave the invoice without a document.
func (s *Service) render(ctx context.Context, invoice *domain.Invoice) error {
	if invoice.DocumentRef != nil {
		previous := *invoice.DocumentRef
		if err := s.invoices.SetDocument(ctx, nil, invoice.ID, nil); err != nil {
			return err
		}
		invoice.DocumentRef = nil
		if err := s.documents.Delete(ctx, previous); err != nil {
			s.logger.Warn("failed to delete previous invoice document",
				ports.String("invoice_id", invoice.ID),
				ports.String("document_ref", previous),
				ports.Err(err),
			)
		}
	}

	data, err := s.renderer.Render(ctx, invoice, s.issuer)
	if err != nil {
		observability.RecordRenderFailure()
		s.logger.Error("invoice document rendering failed",
			ports.String("invoice_id", invoice.ID),
			ports.Err(err),
		)
		return err
	}

	ref, err := s.documents.Put(ctx, invoice.FileName(), data)
	if err != nil {
		return fmt.Errorf("store invoice document: %w", err)
	}
	if err := s.invoices.SetDocument(ctx, nil, invoice.ID, &ref); err != nil {
		return err
	}
	invoice.DocumentRef = &ref

	s.logger.Info("invoice document generated",
		ports.String("invoice_id", invoice.ID),
		ports.String("document_ref", ref),
	)
	return nil
}

func (s *Service) Document(ctx context.Context, id string) ([]byte, string, error) {
	invoice, err := s.invoices.GetByID(ctx, nil, id)
	if err != nil {
		return nil, "", err
	}
	if invoice.DocumentRef == nil {
		return nil, "", domain.NewNotFoundError("invoice document", id)
	}

	data, err := s.documents.Get(ctx, *invoice.DocumentRef)
	if err != nil {
		return nil, "", err
	}
	return data, invoice.FileName(), nil
}

// Dispatch creates the invoice at the processor. Dispatching an invoice
// that already has a backend id returns it unchanged.
func (s *Service) Dispatch(ctx context.Context, id string) (*domain.Invoice, error) {
	invoice, release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if invoice.IsDispatched() {
		return invoice, nil
	}
	if len(invoice.Items) == 0 {
		return invoice, domain.NewValidationError("invoice has no items").WithDetail("invoice_id", id)
	}

	if invoice.DocumentRef == nil {
		// the processor invoice does not depend on the local document
		_ = s.render(ctx, invoice)
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	backendID, err := s.processor.CreateInvoice(callCtx, invoice)
	cancel()
	if err != nil {
		s.logger.Error("invoice dispatch failed",
			ports.String("invoice_id", invoice.ID),
			ports.Err(err),
		)
		return invoice, err
	}

	if err := s.invoices.MarkDispatched(ctx, nil, invoice.ID, backendID); err != nil {
		return invoice, err
	}
	invoice.BackendID = backendID

	s.logger.Info("invoice dispatched",
		ports.String("invoice_id", invoice.ID),
		ports.String("backend_id", backendID),
		ports.String("total", invoice.TotalAmount().StringFixed(2)),
	)
	return invoice, nil
}

// Pull reads the processor status of a dispatched invoice and stores it
func (s *Service) Pull(ctx context.Context, id string) (*domain.Invoice, error) {
	invoice, release, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if !invoice.IsDispatched() {
		return invoice, domain.NewDomainError(domain.ErrorCodeInvalidStateTransition, "invoice has not been dispatched").
			WithDetail("invoice_id", id)
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	record, err := s.processor.GetInvoice(callCtx, invoice.BackendID)
	cancel()
	if err != nil {
		s.logger.Error("invoice pull failed",
			ports.String("invoice_id", invoice.ID),
			ports.String("backend_id", invoice.BackendID),
			ports.Err(err),
		)
		return invoice, err
	}

	if record.Status != invoice.BackendState {
		if err := s.invoices.SetBackendState(ctx, nil, invoice.ID, record.Status); err != nil {
			return invoice, err
		}
		s.logger.Info("invoice state pulled",
			ports.String("invoice_id", invoice.ID),
			ports.String("previous", invoice.BackendState),
			ports.String("state", record.Status),
		)
		invoice.BackendState = record.Status
	}
	return invoice, nil
}

// maxCarryForward bounds how many later periods a late transaction may skip
// over while looking for an invoice that is still open
const maxCarryForward = 24

// RecordTransaction adds tx to the invoice covering the month it was charged
// in. When that invoice is already dispatched the charge is booked on the
// customer's next undispatched invoice instead, created if needed.
func (s *Service) RecordTransaction(ctx context.Context, agreement *domain.Agreement, tx ports.AgreementTransaction) (bool, error) {
	if tx.TransactionID == "" {
		return false, domain.NewValidationError("transaction id is required")
	}

	chargedAt := tx.Timestamp
	if chargedAt.IsZero() {
		chargedAt = time.Now().UTC()
	}

	start, end := timeutil.MonthPeriod(chargedAt)
	description := fmt.Sprintf("%s subscription", agreement.Name)
	for range maxCarryForward {
		invoice, err := s.invoices.EnsureForPeriod(ctx, nil, agreement.CustomerID, start, end)
		if err != nil {
			return false, err
		}
		if hasItem(invoice, tx.TransactionID) {
			return false, nil
		}
		if invoice.IsDispatched() {
			description = fmt.Sprintf("%s subscription (charged %s)", agreement.Name, timeutil.FormatDate(chargedAt))
			start, end = timeutil.MonthPeriod(end.AddDate(0, 0, 1))
			continue
		}
		return s.addItem(ctx, invoice, agreement, tx, description, chargedAt)
	}

	return false, domain.NewDomainError(domain.ErrorCodeInvalidStateTransition, "no open invoice for transaction").
		WithDetail("customer_id", agreement.CustomerID).
		WithDetail("transaction_id", tx.TransactionID)
}

func (s *Service) addItem(ctx context.Context, invoice *domain.Invoice, agreement *domain.Agreement, tx ports.AgreementTransaction, description string, chargedAt time.Time) (bool, error) {
	added, err := s.invoices.AddItem(ctx, nil, &domain.InvoiceItem{
		InvoiceID:   invoice.ID,
		Description: description,
		BackendID:   tx.TransactionID,
		Amount:      tx.Amount,
		Tax:         decimal.Zero,
		CreatedAt:   chargedAt,
	})
	if err != nil {
		return false, err
	}

	if added {
		s.logger.Info("agreement transaction recorded",
			ports.String("invoice_id", invoice.ID),
			ports.String("agreement_id", agreement.ID),
			ports.String("transaction_id", tx.TransactionID),
		)
	}
	return added, nil
}

func hasItem(invoice *domain.Invoice, backendID string) bool {
	for _, item := range invoice.Items {
		if item.BackendID == backendID {
			return true
		}
	}
	return false
}

func (s *Service) lock(ctx context.Context, id string) (*domain.Invoice, func(), error) {
	lockCtx, cancel := s.timeouts.LockWaitContext(ctx)
	defer cancel()
	release, err := s.locker.Lock(lockCtx, entity+":"+id, s.timeouts.LockTTL)
	if err != nil {
		return nil, nil, err
	}

	invoice, err := s.invoices.GetByID(ctx, nil, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	return invoice, release, nil
}
