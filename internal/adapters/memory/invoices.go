package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
)

var _ ports.InvoiceRepository = (*InvoiceStore)(nil)

type InvoiceStore struct {
	s *Store
}

// load copies an invoice with its items, newest item first. Caller holds the lock.
func (r *InvoiceStore) load(inv *domain.Invoice) *domain.Invoice {
	c := *inv
	c.DocumentRef = cloneString(inv.DocumentRef)
	items := r.s.items[inv.ID]
	c.Items = make([]domain.InvoiceItem, len(items))
	copy(c.Items, items)
	sort.SliceStable(c.Items, func(i, j int) bool {
		return c.Items[i].CreatedAt.After(c.Items[j].CreatedAt)
	})
	return &c
}

func (r *InvoiceStore) EnsureForPeriod(_ context.Context, _ ports.DBTX, customerID string, start, end time.Time) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, inv := range r.s.invoices {
		if inv.CustomerID == customerID && inv.StartDate.Equal(start) {
			return r.load(inv), nil
		}
	}

	inv := &domain.Invoice{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		StartDate:  start,
		EndDate:    end,
		CreatedAt:  r.s.now().UTC(),
	}
	r.s.invoices[inv.ID] = inv
	return r.load(inv), nil
}

func (r *InvoiceStore) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if inv, ok := r.s.invoices[id]; ok {
		return r.load(inv), nil
	}
	return nil, domain.NewNotFoundError("invoice", id)
}

func (r *InvoiceStore) ListByCustomer(_ context.Context, _ ports.DBTX, customerID string) ([]*domain.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Invoice
	for _, inv := range r.s.invoices {
		if inv.CustomerID == customerID {
			result = append(result, r.load(inv))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartDate.After(result[j].StartDate)
	})
	return result, nil
}

func (r *InvoiceStore) ListUndispatched(_ context.Context, _ ports.DBTX, closedBefore time.Time, after *ports.InvoiceCursor, limit int32) ([]*domain.Invoice, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []*domain.Invoice
	for _, inv := range r.s.invoices {
		if inv.BackendID != "" || !inv.EndDate.Before(closedBefore) || len(r.s.items[inv.ID]) == 0 {
			continue
		}
		if after != nil && !cursorBefore(after, inv) {
			continue
		}
		result = append(result, r.load(inv))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartDate.Before(result[j].StartDate)
	})
	if limit > 0 && len(result) > int(limit) {
		result = result[:limit]
	}
	return result, nil
}

// cursorBefore reports whether inv sorts strictly after the cursor
func cursorBefore(c *ports.InvoiceCursor, inv *domain.Invoice) bool {
	if inv.StartDate.Equal(c.StartDate) {
		return inv.ID > c.ID
	}
	return inv.StartDate.After(c.StartDate)
}

func (r *InvoiceStore) AddItem(_ context.Context, _ ports.DBTX, item *domain.InvoiceItem) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.invoices[item.InvoiceID]; !ok {
		return false, domain.NewNotFoundError("invoice", item.InvoiceID)
	}
	if item.BackendID != "" {
		for _, items := range r.s.items {
			for _, existing := range items {
				if existing.BackendID == item.BackendID {
					return false, nil
				}
			}
		}
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	r.s.items[item.InvoiceID] = append(r.s.items[item.InvoiceID], *item)
	return true, nil
}

func (r *InvoiceStore) SetDocument(_ context.Context, _ ports.DBTX, id string, ref *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invoices[id]
	if !ok {
		return domain.NewNotFoundError("invoice", id)
	}
	inv.DocumentRef = cloneString(ref)
	return nil
}

func (r *InvoiceStore) MarkDispatched(_ context.Context, _ ports.DBTX, id, backendID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invoices[id]
	if !ok {
		return domain.NewNotFoundError("invoice", id)
	}
	if inv.BackendID != "" {
		return domain.NewInvoiceDispatchedError(id)
	}
	inv.BackendID = backendID
	return nil
}

func (r *InvoiceStore) SetBackendState(_ context.Context, _ ports.DBTX, id, state string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invoices[id]
	if !ok || inv.BackendID == "" {
		return domain.NewNotFoundError("dispatched invoice", id)
	}
	inv.BackendState = state
	return nil
}
