package memory

import (
	"context"
	"sort"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
)

var _ ports.PaymentRepository = (*PaymentStore)(nil)

type PaymentStore struct {
	s *Store
}

func (r *PaymentStore) Create(_ context.Context, _ ports.DBTX, payment *domain.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.payments[payment.ID]; exists {
		return domain.NewValidationError("payment already exists").WithDetail("id", payment.ID)
	}
	r.s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *PaymentStore) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if p, ok := r.s.payments[id]; ok {
		return clonePayment(p), nil
	}
	return nil, domain.NewNotFoundError("payment", id)
}

func (r *PaymentStore) GetByToken(_ context.Context, _ ports.DBTX, token string) (*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.payments {
		if p.Token != nil && *p.Token == token {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewNotFoundError("payment", token)
}

func (r *PaymentStore) Update(_ context.Context, _ ports.DBTX, payment *domain.Payment, expected domain.PaymentState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.payments[payment.ID]
	if !ok || stored.State != expected {
		return staleWrite("payment", payment.ID, expected)
	}
	r.s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *PaymentStore) ListByCustomer(_ context.Context, _ ports.DBTX, customerID string) ([]*domain.Payment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Payment
	for _, p := range r.s.payments {
		if p.CustomerID == customerID {
			result = append(result, clonePayment(p))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ModifiedAt.After(result[j].ModifiedAt)
	})
	return result, nil
}

func (r *PaymentStore) DeleteStale(_ context.Context, _ ports.DBTX, state domain.PaymentState, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for id, p := range r.s.payments {
		if p.State == state && !p.CreatedAt.After(cutoff) {
			delete(r.s.payments, id)
			deleted++
		}
	}
	return deleted, nil
}
