package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AgreementState is the lifecycle state of a recurring billing agreement
type AgreementState int

const (
	AgreementStateInit      AgreementState = 0
	AgreementStateCreated   AgreementState = 1
	AgreementStateApproved  AgreementState = 2
	AgreementStateCancelled AgreementState = 3
	AgreementStateErred     AgreementState = 4
)

var agreementStateNames = map[AgreementState]string{
	AgreementStateInit:      "INIT",
	AgreementStateCreated:   "CREATED",
	AgreementStateApproved:  "APPROVED",
	AgreementStateCancelled: "CANCELLED",
	AgreementStateErred:     "ERRED",
}

func (s AgreementState) String() string {
	if name, ok := agreementStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("AgreementState(%d)", int(s))
}

func (s AgreementState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AgreementState) UnmarshalText(b []byte) error {
	for state, name := range agreementStateNames {
		if strings.EqualFold(name, string(b)) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown agreement state %q", string(b))
}

// AgreementLifecycle is the agreement transition table
var AgreementLifecycle = NewStateMachine[AgreementState]("agreement").
	Permit(AgreementStateInit, TransitionCreate, AgreementStateCreated).
	Permit(AgreementStateCreated, TransitionApprove, AgreementStateApproved).
	Permit(AgreementStateCreated, TransitionCancel, AgreementStateCancelled).
	Permit(AgreementStateApproved, TransitionCancel, AgreementStateCancelled).
	PermitFromAny(TransitionErr, AgreementStateErred)

// ProcessorAgreementCancelled is the state string the processor reports for a cancelled agreement
const ProcessorAgreementCancelled = "Cancelled"

// Agreement is a customer's recurring billing agreement backed by a processor plan.
// BackendID is only known after the customer approves and the agreement is executed.
type Agreement struct {
	CreatedAt      time.Time       `json:"created_at"`
	ModifiedAt     time.Time       `json:"modified_at"`
	BackendID      *string         `json:"backend_id,omitempty"`
	Token          *string         `json:"token,omitempty"`
	ID             string          `json:"id"`
	CustomerID     string          `json:"customer_id"`
	Name           string          `json:"name"`
	PlanID         string          `json:"plan_id,omitempty"`
	ApprovalURL    string          `json:"approval_url,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	State          AgreementState  `json:"state"`
	CancelledByApp bool            `json:"cancelled_by_app"`
}

func (a *Agreement) Apply(t Transition, now time.Time) error {
	next, err := AgreementLifecycle.Next(a.State, t)
	if err != nil {
		return err
	}
	a.State = next
	a.ModifiedAt = now
	return nil
}

func (a *Agreement) Can(t Transition) bool {
	return AgreementLifecycle.Can(a.State, t)
}

func (a *Agreement) MarkCreated(planID, approvalURL, token string, now time.Time) error {
	if err := a.Apply(TransitionCreate, now); err != nil {
		return err
	}
	a.PlanID = planID
	a.ApprovalURL = approvalURL
	a.Token = &token
	return nil
}

func (a *Agreement) MarkApproved(backendID string, now time.Time) error {
	if err := a.Apply(TransitionApprove, now); err != nil {
		return err
	}
	a.BackendID = &backendID
	return nil
}

// MarkCancelled records a cancellation. byApp distinguishes our own cancel
// call from a cancellation observed at the processor.
func (a *Agreement) MarkCancelled(byApp bool, now time.Time) error {
	if err := a.Apply(TransitionCancel, now); err != nil {
		return err
	}
	a.CancelledByApp = byApp
	return nil
}

func (a *Agreement) MarkErred(reason string, now time.Time) {
	_ = a.Apply(TransitionErr, now)
	a.ErrorMessage = reason
}
