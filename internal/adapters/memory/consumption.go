package memory

import (
	"context"
	"math"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
)

var (
	_ ports.ResourceCatalog  = (*CatalogStore)(nil)
	_ ports.CustomerAccounts = (*AccountStore)(nil)
)

type CatalogStore struct {
	s *Store
}

// AddShared registers a shared resource. A nil dailyPrice makes it unpriceable.
func (c *CatalogStore) AddShared(res ports.BillableResource, dailyPrice *decimal.Decimal) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.resources = append(c.s.resources, resource{BillableResource: res, price: dailyPrice})
}

func (c *CatalogStore) ListShared(_ context.Context) ([]ports.BillableResource, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	result := make([]ports.BillableResource, 0, len(c.s.resources))
	for _, r := range c.s.resources {
		result = append(result, r.BillableResource)
	}
	return result, nil
}

func (c *CatalogStore) Cost(_ context.Context, res ports.BillableResource, start, end time.Time) (decimal.Decimal, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	for _, r := range c.s.resources {
		if r.ID != res.ID {
			continue
		}
		if r.price == nil {
			return decimal.Zero, ports.ErrCostNotSupported
		}
		if !end.After(start) {
			return decimal.Zero, nil
		}
		days := int64(math.Ceil(end.Sub(start).Hours() / 24))
		return r.price.Mul(decimal.NewFromInt(days)), nil
	}
	return decimal.Zero, domain.NewNotFoundError("resource", res.ID)
}

type AccountStore struct {
	s *Store
}

func (a *AccountStore) Debit(_ context.Context, customerID string, amount decimal.Decimal) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	a.s.balances[customerID] = a.s.balances[customerID].Sub(amount)
	return nil
}

// Balance returns the customer's balance, zero when never debited
func (a *AccountStore) Balance(customerID string) decimal.Decimal {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	return a.s.balances[customerID]
}
