package ports

import (
	"context"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest describes a one-time sale. Total includes Tax.
type CreatePaymentRequest struct {
	Total       decimal.Decimal
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Description string
	ReturnURL   string
	CancelURL   string
}

// CreatedPayment is the processor acknowledgement of a new payment
type CreatedPayment struct {
	BackendID   string
	ApprovalURL string
	Token       string
}

// CreatePlanRequest describes an infinite monthly plan billed at Amount
type CreatePlanRequest struct {
	Name        string
	Description string
	Amount      decimal.Decimal
	ReturnURL   string
	CancelURL   string
}

// CreatedAgreement carries the approval redirect for a new agreement
type CreatedAgreement struct {
	ApprovalURL string
	Token       string
}

// AgreementRecord is the processor's view of an executed agreement
type AgreementRecord struct {
	StartDate       *time.Time `json:"start_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`
	ID              string     `json:"id"`
	State           string     `json:"state"`
	Description     string     `json:"description,omitempty"`
	PayerEmail      string     `json:"payer_email,omitempty"`
	PlanID          string     `json:"plan_id,omitempty"`
}

// AgreementTransaction is a completed charge against an agreement
type AgreementTransaction struct {
	Timestamp     time.Time       `json:"timestamp"`
	TransactionID string          `json:"transaction_id"`
	PayerEmail    string          `json:"payer_email,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// InvoiceRecord is the processor's view of a dispatched invoice
type InvoiceRecord struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PaymentProcessor is the outbound port to the external payment processor.
// Every failure is returned as a BACKEND_ERROR DomainError except GetAgreement,
// GetInvoice and SearchAgreementTransactions, which return NOT_FOUND for an
// unknown id.
type PaymentProcessor interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatedPayment, error)
	ExecutePayment(ctx context.Context, backendID, payerID string) error

	CreatePlan(ctx context.Context, req CreatePlanRequest) (string, error)
	CreateAgreement(ctx context.Context, planID, name string) (*CreatedAgreement, error)
	ExecuteAgreement(ctx context.Context, token string) (string, error)
	GetAgreement(ctx context.Context, agreementID string) (*AgreementRecord, error)
	CancelAgreement(ctx context.Context, agreementID, note string) error

	// SearchAgreementTransactions returns completed transactions between start
	// and end. A nil end means now.
	SearchAgreementTransactions(ctx context.Context, agreementID string, start time.Time, end *time.Time) ([]AgreementTransaction, error)

	// CreateInvoice registers the invoice with the processor and returns its id
	CreateInvoice(ctx context.Context, invoice *domain.Invoice) (string, error)

	// GetInvoice reads the current status of a dispatched invoice
	GetInvoice(ctx context.Context, backendID string) (*InvoiceRecord, error)
}
