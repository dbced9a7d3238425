package ports

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrCostNotSupported is returned by resources that cannot price a window.
// Consumption debiting skips such resources.
var ErrCostNotSupported = errors.New("cost calculation not supported for resource")

// BillableResource is a shared resource whose daily consumption is charged to a customer
type BillableResource struct {
	ID         string
	CustomerID string
	Kind       string
}

// ResourceCatalog lists shared resources and prices their consumption
type ResourceCatalog interface {
	ListShared(ctx context.Context) ([]BillableResource, error)
	Cost(ctx context.Context, resource BillableResource, start, end time.Time) (decimal.Decimal, error)
}

// CustomerAccounts debits a customer's prepaid balance
type CustomerAccounts interface {
	Debit(ctx context.Context, customerID string, amount decimal.Decimal) error
}
