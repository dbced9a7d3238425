package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/observability"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
)

const entity = "payment"

// Service implements serviceports.PaymentService
type Service struct {
	payments  ports.PaymentRepository
	processor ports.PaymentProcessor
	locker    ports.Locker
	timeouts  *resilience.TimeoutConfig
	logger    ports.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new payment service
func NewService(
	payments ports.PaymentRepository,
	processor ports.PaymentProcessor,
	locker ports.Locker,
	timeouts *resilience.TimeoutConfig,
	logger ports.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		payments:  payments,
		processor: processor,
		locker:    locker,
		timeouts:  timeouts,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ serviceports.PaymentService = (*Service)(nil)

func validateStart(req serviceports.StartPaymentRequest) error {
	switch {
	case strings.TrimSpace(req.CustomerID) == "":
		return domain.NewValidationError("customer_id is required")
	case !req.Total.IsPositive():
		return domain.NewValidationError("total must be positive")
	case req.Tax.IsNegative():
		return domain.NewValidationError("tax must not be negative")
	case req.Tax.GreaterThan(req.Total):
		return domain.NewValidationError("tax must not exceed total")
	}
	return nil
}

// Start persists an INIT payment, creates it at the processor and moves it to CREATED
func (s *Service) Start(ctx context.Context, req serviceports.StartPaymentRequest) (*domain.Payment, error) {
	if err := validateStart(req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	payment := &domain.Payment{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Amount:     req.Total,
		Tax:        req.Tax,
		State:      domain.PaymentStateInit,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	if err := s.payments.Create(ctx, nil, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	created, err := s.processor.CreatePayment(callCtx, ports.CreatePaymentRequest{
		Total:       payment.Amount,
		Subtotal:    payment.Subtotal(),
		Tax:         payment.Tax,
		Description: req.Description,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
	})
	cancel()
	if err != nil {
		return payment, s.fail(ctx, payment, err)
	}

	from := payment.State
	if err := payment.MarkCreated(created.BackendID, created.ApprovalURL, created.Token, s.now().UTC()); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, payment, from); err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		ports.String("payment_id", payment.ID),
		ports.String("customer_id", payment.CustomerID),
		ports.String("backend_id", created.BackendID),
	)
	return payment, nil
}

// Approve executes the payment identified by the callback token
func (s *Service) Approve(ctx context.Context, req serviceports.ApprovePaymentRequest) (*domain.Payment, error) {
	if req.Token == "" || req.PayerID == "" {
		return nil, domain.NewValidationError("token and payer id are required")
	}

	payment, release, err := s.lockByToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := domain.PaymentLifecycle.Next(payment.State, domain.TransitionApprove); err != nil {
		return payment, err
	}
	if req.PaymentID != "" && (payment.BackendID == nil || *payment.BackendID != req.PaymentID) {
		return payment, domain.NewValidationError("payment id does not match token").
			WithDetail("payment_id", req.PaymentID)
	}

	callCtx, cancel := s.timeouts.ExternalAPIContext(ctx)
	err = s.processor.ExecutePayment(callCtx, *payment.BackendID, req.PayerID)
	cancel()
	if err != nil {
		return payment, s.fail(ctx, payment, err)
	}

	from := payment.State
	if err := payment.Apply(domain.TransitionApprove, s.now().UTC()); err != nil {
		return payment, err
	}
	if err := s.commit(ctx, payment, from); err != nil {
		return nil, err
	}

	s.logger.Info("payment approved",
		ports.String("payment_id", payment.ID),
		ports.String("backend_id", *payment.BackendID),
	)
	return payment, nil
}

// Cancel moves a CREATED payment to CANCELLED. The processor is not called.
func (s *Service) Cancel(ctx context.Context, token string) (*domain.Payment, error) {
	if token == "" {
		return nil, domain.NewValidationError("token is required")
	}

	payment, release, err := s.lockByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	defer release()

	from := payment.State
	if err := payment.Apply(domain.TransitionCancel, s.now().UTC()); err != nil {
		return payment, err
	}
	if err := s.commit(ctx, payment, from); err != nil {
		return nil, err
	}

	s.logger.Info("payment cancelled by customer", ports.String("payment_id", payment.ID))
	return payment, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return s.payments.GetByID(ctx, nil, id)
}

func (s *Service) List(ctx context.Context, customerID string) ([]*domain.Payment, error) {
	if customerID == "" {
		return nil, domain.NewValidationError("customer_id is required")
	}
	return s.payments.ListByCustomer(ctx, nil, customerID)
}

// lockByToken resolves the payment, locks it and reloads it under the lock
func (s *Service) lockByToken(ctx context.Context, token string) (*domain.Payment, func(), error) {
	found, err := s.payments.GetByToken(ctx, nil, token)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return nil, nil, domain.NewDomainError(domain.ErrorCodeNotFound, domain.MsgPaymentNotFound).
				WithDetail("token", token)
		}
		return nil, nil, err
	}

	lockCtx, cancel := s.timeouts.LockWaitContext(ctx)
	defer cancel()
	release, err := s.locker.Lock(lockCtx, entity+":"+found.ID, s.timeouts.LockTTL)
	if err != nil {
		return nil, nil, err
	}

	payment, err := s.payments.GetByID(ctx, nil, found.ID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return payment, release, nil
}

// commit writes the payment if nobody moved it away from `from` meanwhile
func (s *Service) commit(ctx context.Context, payment *domain.Payment, from domain.PaymentState) error {
	if err := s.payments.Update(ctx, nil, payment, from); err != nil {
		return err
	}
	observability.RecordTransition(entity, from.String(), payment.State.String())
	return nil
}

// fail moves the payment to ERRED and returns cause
func (s *Service) fail(ctx context.Context, payment *domain.Payment, cause error) error {
	from := payment.State
	payment.MarkErred(domain.ErrorMessage(cause), s.now().UTC())

	s.logger.Error("payment processor call failed",
		ports.String("payment_id", payment.ID),
		ports.String("state", from.String()),
		ports.Err(cause),
	)

	if err := s.commit(ctx, payment, from); err != nil {
		s.logger.Error("failed to persist erred payment",
			ports.String("payment_id", payment.ID),
			ports.Err(err),
		)
	}
	return cause
}
