package memory

import (
	"context"
	"sort"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
)

var _ ports.AgreementRepository = (*AgreementStore)(nil)

type AgreementStore struct {
	s *Store
}

func (r *AgreementStore) Create(_ context.Context, _ ports.DBTX, agreement *domain.Agreement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.agreements[agreement.ID]; exists {
		return domain.NewValidationError("agreement already exists").WithDetail("id", agreement.ID)
	}
	r.s.agreements[agreement.ID] = cloneAgreement(agreement)
	return nil
}

func (r *AgreementStore) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Agreement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if a, ok := r.s.agreements[id]; ok {
		return cloneAgreement(a), nil
	}
	return nil, domain.NewNotFoundError("agreement", id)
}

func (r *AgreementStore) GetByToken(_ context.Context, _ ports.DBTX, token string) (*domain.Agreement, error) {
	return r.find(token, func(a *domain.Agreement) *string { return a.Token })
}

func (r *AgreementStore) GetByBackendID(_ context.Context, _ ports.DBTX, backendID string) (*domain.Agreement, error) {
	return r.find(backendID, func(a *domain.Agreement) *string { return a.BackendID })
}

func (r *AgreementStore) find(key string, field func(*domain.Agreement) *string) (*domain.Agreement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.agreements {
		if v := field(a); v != nil && *v == key {
			return cloneAgreement(a), nil
		}
	}
	return nil, domain.NewNotFoundError("agreement", key)
}

func (r *AgreementStore) Update(_ context.Context, _ ports.DBTX, agreement *domain.Agreement, expected domain.AgreementState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.agreements[agreement.ID]
	if !ok || stored.State != expected {
		return staleWrite("agreement", agreement.ID, expected)
	}
	r.s.agreements[agreement.ID] = cloneAgreement(agreement)
	return nil
}

func (r *AgreementStore) ListByState(_ context.Context, _ ports.DBTX, state domain.AgreementState, limit int32) ([]*domain.Agreement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Agreement
	for _, a := range r.s.agreements {
		if a.State == state {
			result = append(result, cloneAgreement(a))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ModifiedAt.Before(result[j].ModifiedAt)
	})
	if limit > 0 && len(result) > int(limit) {
		result = result[:limit]
	}
	return result, nil
}
