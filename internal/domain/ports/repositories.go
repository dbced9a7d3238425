package ports

import (
	"context"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
)

// Repositories accept a nil DBTX to run against the default connection pool.
// Update methods are compare-and-set on the previous state and return
// INVALID_STATE_TRANSITION when another writer moved the row first.

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	Create(ctx context.Context, tx DBTX, payment *domain.Payment) error

	GetByID(ctx context.Context, db DBTX, id string) (*domain.Payment, error)

	// GetByToken finds the payment the customer is redirected back for
	GetByToken(ctx context.Context, db DBTX, token string) (*domain.Payment, error)

	Update(ctx context.Context, tx DBTX, payment *domain.Payment, expected domain.PaymentState) error

	// ListByCustomer returns payments most recently modified first
	ListByCustomer(ctx context.Context, db DBTX, customerID string) ([]*domain.Payment, error)

	// DeleteStale removes payments in state created at or before cutoff
	DeleteStale(ctx context.Context, tx DBTX, state domain.PaymentState, cutoff time.Time) (int64, error)
}

// AgreementRepository defines the interface for agreement persistence
type AgreementRepository interface {
	Create(ctx context.Context, tx DBTX, agreement *domain.Agreement) error

	GetByID(ctx context.Context, db DBTX, id string) (*domain.Agreement, error)

	GetByToken(ctx context.Context, db DBTX, token string) (*domain.Agreement, error)

	GetByBackendID(ctx context.Context, db DBTX, backendID string) (*domain.Agreement, error)

	Update(ctx context.Context, tx DBTX, agreement *domain.Agreement, expected domain.AgreementState) error

	ListByState(ctx context.Context, db DBTX, state domain.AgreementState, limit int32) ([]*domain.Agreement, error)
}

// InvoiceCursor is the keyset position of the last invoice of a page
type InvoiceCursor struct {
	StartDate time.Time
	ID        string
}

// CursorAfter returns the position just past invoice
func CursorAfter(invoice *domain.Invoice) *InvoiceCursor {
	return &InvoiceCursor{StartDate: invoice.StartDate, ID: invoice.ID}
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// EnsureForPeriod returns the customer's invoice starting at start, creating it if missing
	EnsureForPeriod(ctx context.Context, tx DBTX, customerID string, start, end time.Time) (*domain.Invoice, error)

	// GetByID loads the invoice with its items
	GetByID(ctx context.Context, db DBTX, id string) (*domain.Invoice, error)

	// ListByCustomer returns invoices newest period first
	ListByCustomer(ctx context.Context, db DBTX, customerID string) ([]*domain.Invoice, error)

	// ListUndispatched returns invoices with an empty backend id, at least one
	// item and a period that ended before closedBefore. Results are ordered by
	// (start date, id) and start strictly after the cursor when one is given.
	ListUndispatched(ctx context.Context, db DBTX, closedBefore time.Time, after *InvoiceCursor, limit int32) ([]*domain.Invoice, error)

	// AddItem inserts a line. Items with a backend id already on file are
	// skipped and reported as false.
	AddItem(ctx context.Context, tx DBTX, item *domain.InvoiceItem) (bool, error)

	SetDocument(ctx context.Context, tx DBTX, id string, ref *string) error

	// MarkDispatched sets the backend id only while it is still empty
	MarkDispatched(ctx context.Context, tx DBTX, id, backendID string) error

	// SetBackendState stores the processor status of a dispatched invoice
	SetBackendState(ctx context.Context, tx DBTX, id, state string) error
}
