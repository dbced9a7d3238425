package ports

import (
	"context"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	domainports "github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// StartAgreementRequest describes a monthly recurring agreement
type StartAgreementRequest struct {
	CustomerID  string
	Name        string
	Description string
	ReturnURL   string
	CancelURL   string
	Amount      decimal.Decimal
}

// AgreementService drives recurring billing agreements through their lifecycle.
// Operations taking an id expect the local agreement id.
type AgreementService interface {
	// Start creates and activates a plan, then an agreement on it
	Start(ctx context.Context, req StartAgreementRequest) (*domain.Agreement, error)

	// Approve executes the agreement the customer approved
	Approve(ctx context.Context, token string) (*domain.Agreement, error)

	// AbortByToken records that the customer abandoned approval
	AbortByToken(ctx context.Context, token string) (*domain.Agreement, error)

	// Cancel cancels the agreement at the processor and locally
	Cancel(ctx context.Context, id string) (*domain.Agreement, error)

	// GetStatus returns the processor's current view of the agreement
	GetStatus(ctx context.Context, id string) (*domainports.AgreementRecord, error)

	// SyncStatus applies a cancellation observed at the processor
	SyncStatus(ctx context.Context, id string) (*domain.Agreement, error)

	// ListTransactions returns completed transactions in [start, end]; nil end means now
	ListTransactions(ctx context.Context, id string, start time.Time, end *time.Time) ([]domainports.AgreementTransaction, error)

	Get(ctx context.Context, id string) (*domain.Agreement, error)
}
