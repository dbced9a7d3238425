package ports

import (
	"context"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/shopspring/decimal"
)

// StartPaymentRequest describes a one-time payment. Total includes Tax.
type StartPaymentRequest struct {
	CustomerID  string
	Description string
	ReturnURL   string
	CancelURL   string
	Total       decimal.Decimal
	Tax         decimal.Decimal
}

// ApprovePaymentRequest carries the processor's return callback parameters.
// PaymentID is optional; when present it must match the stored backend id.
type ApprovePaymentRequest struct {
	Token     string
	PaymentID string
	PayerID   string
}

// PaymentService drives one-time payments through their lifecycle
type PaymentService interface {
	// Start creates the payment at the processor and returns it in CREATED
	// with the approval URL the customer must visit
	Start(ctx context.Context, req StartPaymentRequest) (*domain.Payment, error)

	// Approve executes a CREATED payment after the customer approved it
	Approve(ctx context.Context, req ApprovePaymentRequest) (*domain.Payment, error)

	// Cancel records that the customer abandoned a CREATED payment
	Cancel(ctx context.Context, token string) (*domain.Payment, error)

	Get(ctx context.Context, id string) (*domain.Payment, error)

	// List returns the customer's payments most recently modified first
	List(ctx context.Context, customerID string) ([]*domain.Payment, error)
}
