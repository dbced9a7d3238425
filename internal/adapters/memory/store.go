// Package memory implements the repository ports in process memory for the
// service and handler tests. Nothing survives a restart.
package memory

import (
	"sync"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
)

type resource struct {
	price *decimal.Decimal
	ports.BillableResource
}

// Store holds every table behind one lock. The DBTX arguments of the
// repository methods are ignored.
type Store struct {
	mu sync.RWMutex

	payments   map[string]*domain.Payment
	agreements map[string]*domain.Agreement
	invoices   map[string]*domain.Invoice
	items      map[string][]domain.InvoiceItem
	resources  []resource
	balances   map[string]decimal.Decimal

	now func() time.Time
}

func New() *Store {
	return &Store{
		payments:   make(map[string]*domain.Payment),
		agreements: make(map[string]*domain.Agreement),
		invoices:   make(map[string]*domain.Invoice),
		items:      make(map[string][]domain.InvoiceItem),
		balances:   make(map[string]decimal.Decimal),
		now:        time.Now,
	}
}

// Payments returns the ports.PaymentRepository view of the store
func (s *Store) Payments() *PaymentStore { return &PaymentStore{s} }

func (s *Store) Agreements() *AgreementStore { return &AgreementStore{s} }

func (s *Store) Invoices() *InvoiceStore { return &InvoiceStore{s} }

// Catalog returns the ports.ResourceCatalog view
func (s *Store) Catalog() *CatalogStore { return &CatalogStore{s} }

// Accounts returns the ports.CustomerAccounts view
func (s *Store) Accounts() *AccountStore { return &AccountStore{s} }

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	c.BackendID = cloneString(p.BackendID)
	c.Token = cloneString(p.Token)
	return &c
}

func cloneAgreement(a *domain.Agreement) *domain.Agreement {
	c := *a
	c.BackendID = cloneString(a.BackendID)
	c.Token = cloneString(a.Token)
	return &c
}

func staleWrite(entity, id string, expected interface{ String() string }) error {
	return domain.NewDomainError(domain.ErrorCodeInvalidStateTransition, entity+" is no longer in state "+expected.String()).
		WithDetail("entity", entity).
		WithDetail("id", id).
		WithDetail("state", expected.String())
}
