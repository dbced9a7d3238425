package agreement

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/observability"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
)

const entity = "agreement"

// CancelNote accompanies every cancellation the application initiates
const CancelNote = "Canceling the agreement by application"

// Service implements serviceports.AgreementService
type Service struct {
	agreements ports.AgreementRepository
	processor  ports.PaymentProcessor
	locker     ports.Locker
	timeouts   *resilience.TimeoutConfig
	logger     ports.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new agreement service
func NewService(
	agreements ports.AgreementRepository,
	processor ports.PaymentProcessor,
	locker ports.Locker,
	timeouts *resilience.TimeoutConfig,
	logger ports.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		agreements: agreements,
		processor:  processor,
		locker:     locker,
		timeouts:   timeouts,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ serviceports.AgreementService = (*Service)(nil)

// Start creates a plan billed monthly at req.Amount and an agreement on it.
// The returned agreement carries the approval URL the customer is sent to.
func (s *Service) Start(ctx context.Context, req serviceports.StartAgreementRequest) (*domain.Agreement, error) {
	switch {
	case strings.TrimSpace(req.CustomerID) == "":
		return nil, domain.NewValidationError("customer_id is required")
	case strings.TrimSpace(req.Name) == "":
		return nil, domain.NewValidationError("name is required")
	case !req.Amount.IsPositive():
		return nil, domain.NewValidationError("amount must be positive")
	}

	now := s.now().UTC()
	agreement := &domain.Agreement{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Name:       req.Name,
		Amount:     req.Amount,
		State:      domain.AgreementStateInit,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.agreements.Create(ctx, nil, agreement); err != nil {
		return nil, err
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	defer cancel()

	planID, err := s.processor.CreatePlan(callCtx, ports.CreatePlanRequest{
		Name:        req.Name,
		Description: req.Description,
		Amount:      req.Amount,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		return agreement, s.fail(ctx, agreement, err)
	}

	created, err := s.processor.CreateAgreement(callCtx, planID, req.Name)
	if err != nil {
		agreement.PlanID = planID
		return agreement, s.fail(ctx, agreement, err)
	}

	from := agreement.State
	if err := agreement.MarkCreated(planID, created.ApprovalURL, created.Token, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, agreement, from); err != nil {
		return nil, err
	}

	s.logger.Info("agreement created",
		ports.String("agreement_id", agreement.ID),
		ports.String("customer_id", agreement.CustomerID),
		ports.String("plan_id", planID),
	)
	return agreement, nil
}

// Approve executes the agreement and stores the processor agreement id
func (s *Service) Approve(ctx context.Context, token string) (*domain.Agreement, error) {
	agreement, release, err := s.lockByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := domain.AgreementLifecycle.Next(agreement.State, domain.TransitionApprove); err != nil {
		return agreement, err
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	backendID, err := s.processor.ExecuteAgreement(callCtx, token)
	cancel()
	if err != nil {
		return agreement, s.fail(ctx, agreement, err)
	}

	from := agreement.State
	if err := agreement.MarkApproved(backendID, s.now().UTC()); err != nil {
		return agreement, err
	}
	if err := s.commit(ctx, agreement, from); err != nil {
		return nil, err
	}

	s.logger.Info("agreement approved",
		ports.String("agreement_id", agreement.ID),
		ports.String("backend_id", backendID),
	)
	return agreement, nil
}

// AbortByToken cancels an agreement the customer never approved
func (s *Service) AbortByToken(ctx context.Context, token string) (*domain.Agreement, error) {
	agreement, release, err := s.lockByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	defer release()

	if agreement.State != domain.AgreementStateCreated {
		return agreement, domain.NewDomainError(domain.ErrorCodeInvalidStateTransition,
			"only an unapproved agreement can be aborted").
			WithDetail("entity", entity).
			WithDetail("state", agreement.State.String())
	}

	from := agreement.State
	if err := agreement.MarkCancelled(false, s.now().UTC()); err != nil {
		return agreement, err
	}
	if err := s.commit(ctx, agreement, from); err != nil {
		return nil, err
	}

	s.logger.Info("agreement approval abandoned", ports.String("agreement_id", agreement.ID))
	return agreement, nil
}

// Cancel cancels the agreement at the processor. An agreement the processor
// already reports as cancelled is closed locally without a second cancel call.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Agreement, error) {
	agreement, release, err := s.lockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := domain.AgreementLifecycle.Next(agreement.State, domain.TransitionCancel); err != nil {
		return agreement, err
	}

	byApp := true
	if agreement.BackendID != nil {
		callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
		defer cancel()

		record, err := s.processor.GetAgreement(callCtx, *agreement.BackendID)
		if err != nil {
			return agreement, s.fail(ctx, agreement, err)
		}
		if record.State == domain.ProcessorAgreementCancelled {
			byApp = false
		} else if err := s.processor.CancelAgreement(callCtx, *agreement.BackendID, CancelNote); err != nil {
			return agreement, s.fail(ctx, agreement, err)
		}
	}

	from := agreement.State
	if err := agreement.MarkCancelled(byApp, s.now().UTC()); err != nil {
		return agreement, err
	}
	if err := s.commit(ctx, agreement, from); err != nil {
		return nil, err
	}

	s.logger.Info("agreement cancelled",
		ports.String("agreement_id", agreement.ID),
		ports.Bool("cancelled_by_app", byApp),
	)
	return agreement, nil
}

// GetStatus queries the processor. Lookup failures leave the agreement untouched.
func (s *Service) GetStatus(ctx context.Context, id string) (*ports.AgreementRecord, error) {
	agreement, err := s.agreements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if agreement.BackendID == nil {
		return nil, agreementNotFound(id)
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	defer cancel()
	return s.processor.GetAgreement(callCtx, *agreement.BackendID)
}

// SyncStatus closes an APPROVED agreement the processor reports as cancelled.
// Agreements in any other state are returned unchanged.
func (s *Service) SyncStatus(ctx context.Context, id string) (*domain.Agreement, error) {
	agreement, err := s.agreements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if agreement.State != domain.AgreementStateApproved || agreement.BackendID == nil {
		return agreement, nil
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	record, err := s.processor.GetAgreement(callCtx, *agreement.BackendID)
	cancel()
	if err != nil {
		return agreement, err
	}
	if record.State != domain.ProcessorAgreementCancelled {
		return agreement, nil
	}

	agreement, release, err := s.lockByID(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	if agreement.State != domain.AgreementStateApproved {
		return agreement, nil
	}
	from := agreement.State
	if err := agreement.MarkCancelled(false, s.now().UTC()); err != nil {
		return agreement, err
	}
	if err := s.commit(ctx, agreement, from); err != nil {
		return nil, err
	}

	s.logger.Warn("agreement cancelled outside the application",
		ports.String("agreement_id", agreement.ID),
		ports.String("backend_id", *agreement.BackendID),
	)
	return agreement, nil
}

func (s *Service) ListTransactions(ctx context.Context, id string, start time.Time, end *time.Time) ([]ports.AgreementTransaction, error) {
	agreement, err := s.agreements.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if agreement.BackendID == nil {
		return nil, agreementNotFound(id)
	}
	if end != nil && end.Before(start) {
		return nil, domain.NewValidationError("end must not be before start")
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	defer cancel()
	return s.processor.SearchAgreementTransactions(callCtx, *agreement.BackendID, start, end)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Agreement, error) {
	return s.agreements.GetByID(ctx, nil, id)
}

func agreementNotFound(id string) error {
	return domain.NewDomainError(domain.ErrorCodeNotFound, domain.MsgAgreementNotFound).
		WithDetail("agreement_id", id)
}

func (s *Service) lockByToken(ctx context.Context, token string) (*domain.Agreement, func(), error) {
	if token == "" {
		return nil, nil, domain.NewValidationError("token is required")
	}
	found, err := s.agreements.GetByToken(ctx, nil, token)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, nil, domain.NewDomainError(domain.ErrorCodeNotFound, domain.MsgAgreementNotFound).
				WithDetail("token", token)
		}
		return nil, nil, err
	}
	return s.lockByID(ctx, found.ID)
}

// lockByID locks the agreement and loads it under the lock
func (s *Service) lockByID(ctx context.Context, id string) (*domain.Agreement, func(), error) {
	lockCtx, cancel := s.timeouts.LockWaitContext(ctx)
	defer cancel()
	release, err := s.locker.Lock(lockCtx, entity+":"+id, s.timeouts.LockTTL)
	if err != nil {
		return nil, nil, err
	}

	agreement, err := s.agreements.GetByID(ctx, nil, id)
	if err != nil {
		release()
		return nil, nil, err
	}
	return agreement, release, nil
}

func (s *Service) commit(ctx context.Context, agreement *domain.Agreement, from domain.AgreementState) error {
	if err := s.agreements.Update(ctx, nil, agreement, from); err != nil {
		return err
	}
	observability.RecordTransition(entity, from.String(), agreement.State.String())
	return nil
}

func (s *Service) fail(ctx context.Context, agreement *domain.Agreement, cause error) error {
	from := agreement.State
	agreement.MarkErred(domain.ErrorMessage(cause), s.now().UTC())

	s.logger.Error("agreement processor call failed",
		ports.String("agreement_id", agreement.ID),
		ports.String("state", from.String()),
		ports.Err(cause),
	)

	if err := s.commit(ctx, agreement, from); err != nil {
		s.logger.Error("failed to persist erred agreement",
			ports.String("agreement_id", agreement.ID),
			ports.Err(err),
		)
	}
	return cause
}
