package ports

import (
	"context"

	"github.com/kevin07696/paypal-billing/internal/domain"
	domainports "github.com/kevin07696/paypal-billing/internal/domain/ports"
)

// InvoiceService manages invoice documents and their hand-off to the processor
type InvoiceService interface {
	Get(ctx context.Context, id string) (*domain.Invoice, error)

	// List returns the customer's invoices newest period first
	List(ctx context.Context, customerID string) ([]*domain.Invoice, error)

	// GenerateDocument replaces the rendered document of the invoice.
	// On RENDER_ERROR the invoice is returned without a document.
	GenerateDocument(ctx context.Context, id string) (*domain.Invoice, error)

	// Document returns the rendered document and its file name
	Document(ctx context.Context, id string) ([]byte, string, error)

	// Dispatch creates the invoice at the processor once
	Dispatch(ctx context.Context, id string) (*domain.Invoice, error)

	// Pull refreshes BackendState of a dispatched invoice from the processor
	Pull(ctx context.Context, id string) (*domain.Invoice, error)

	// RecordTransaction books an agreement charge on the invoice of its month.
	// It reports false when the transaction was already recorded.
	RecordTransaction(ctx context.Context, agreement *domain.Agreement, tx domainports.AgreementTransaction) (bool, error)
}
