package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentState is the lifecycle state of a one-time payment.
// Values are persisted as integers.
type PaymentState int

const (
	PaymentStateInit      PaymentState = 0
	PaymentStateCreated   PaymentState = 1
	PaymentStateApproved  PaymentState = 2
	PaymentStateCancelled PaymentState = 3
	PaymentStateErred     PaymentState = 4
)

var paymentStateNames = map[PaymentState]string{
	PaymentStateInit:      "INIT",
	PaymentStateCreated:   "CREATED",
	PaymentStateApproved:  "APPROVED",
	PaymentStateCancelled: "CANCELLED",
	PaymentStateErred:     "ERRED",
}

func (s PaymentState) String() string {
	if name, ok := paymentStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PaymentState(%d)", int(s))
}

func (s PaymentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PaymentState) UnmarshalText(b []byte) error {
	for state, name := range paymentStateNames {
		if strings.EqualFold(name, string(b)) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown payment state %q", string(b))
}

// PaymentLifecycle is the payment transition table
var PaymentLifecycle = NewStateMachine[PaymentState]("payment").
	Permit(PaymentStateInit, TransitionCreate, PaymentStateCreated).
	Permit(PaymentStateCreated, TransitionApprove, PaymentStateApproved).
	Permit(PaymentStateCreated, TransitionCancel, PaymentStateCancelled).
	PermitFromAny(TransitionErr, PaymentStateErred)

// Payment is a one-time charge executed through the processor.
// BackendID and Token are nil until the processor acknowledges creation.
type Payment struct {
	CreatedAt    time.Time       `json:"created_at"`
	ModifiedAt   time.Time       `json:"modified_at"`
	BackendID    *string         `json:"backend_id,omitempty"`
	Token        *string         `json:"token,omitempty"`
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	ApprovalURL  string          `json:"approval_url,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Tax          decimal.Decimal `json:"tax"`
	State        PaymentState    `json:"state"`
}

// Subtotal is the pre-tax part of Amount
func (p *Payment) Subtotal() decimal.Decimal {
	return p.Amount.Sub(p.Tax)
}

// Apply validates t against the lifecycle and commits the new state
func (p *Payment) Apply(t Transition, now time.Time) error {
	next, err := PaymentLifecycle.Next(p.State, t)
	if err != nil {
		return err
	}
	p.State = next
	p.ModifiedAt = now
	return nil
}

func (p *Payment) Can(t Transition) bool {
	return PaymentLifecycle.Can(p.State, t)
}

// MarkCreated records the processor acknowledgement and moves INIT -> CREATED
func (p *Payment) MarkCreated(backendID, approvalURL, token string, now time.Time) error {
	if err := p.Apply(TransitionCreate, now); err != nil {
		return err
	}
	p.BackendID = &backendID
	p.ApprovalURL = approvalURL
	p.Token = &token
	return nil
}

// MarkErred moves the payment to ERRED and keeps the failure reason
func (p *Payment) MarkErred(reason string, now time.Time) {
	// ERRED is reachable from every state so Apply cannot fail here
	_ = p.Apply(TransitionErr, now)
	p.ErrorMessage = reason
}

// IsStale reports whether a CREATED payment was abandoned for longer than lifetime
func (p *Payment) IsStale(now time.Time, lifetime time.Duration) bool {
	return p.State == PaymentStateCreated && !p.CreatedAt.After(now.Add(-lifetime))
}
