package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// ResourceCatalog prices shared resources from their daily_price column
type ResourceCatalog struct {
	querier
}

func NewResourceCatalog(db ports.DBPort) *ResourceCatalog {
	return &ResourceCatalog{querier{db: db}}
}

// ListShared returns every resource billed under shared settings
func (c *ResourceCatalog) ListShared(ctx context.Context) ([]ports.BillableResource, error) {
	rows, err := c.conn(nil).Query(ctx, `
		SELECT id, customer_id, kind FROM billable_resources
		WHERE shared
		ORDER BY customer_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list shared resources: %w", err)
	}
	defer rows.Close()

	var resources []ports.BillableResource
	for rows.Next() {
		var (
			id  uuid.UUID
			res ports.BillableResource
		)
		if err := rows.Scan(&id, &res.CustomerID, &res.Kind); err != nil {
			return nil, fmt.Errorf("scan shared resource: %w", err)
		}
		res.ID = id.String()
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shared resources: %w", err)
	}
	return resources, nil
}

// Cost charges daily_price for every started day in [start, end].
// Resources without a price return ports.ErrCostNotSupported.
func (c *ResourceCatalog) Cost(ctx context.Context, resource ports.BillableResource, start, end time.Time) (decimal.Decimal, error) {
	id, err := parseID("resource", resource.ID)
	if err != nil {
		return decimal.Zero, err
	}

	var price pgtype.Numeric
	err = c.conn(nil).QueryRow(ctx, `SELECT daily_price FROM billable_resources WHERE id = $1`, id).Scan(&price)
	if err != nil {
		return decimal.Zero, notFound(err, "resource", resource.ID)
	}
	if !price.Valid {
		return decimal.Zero, ports.ErrCostNotSupported
	}

	daily, err := pgNumericToDecimal(price)
	if err != nil {
		return decimal.Zero, err
	}
	return daily.Mul(decimal.NewFromInt(billableDays(start, end))), nil
}

func billableDays(start, end time.Time) int64 {
	if !end.After(start) {
		return 0
	}
	return int64(math.Ceil(end.Sub(start).Hours() / 24))
}

// CustomerAccounts keeps prepaid balances in customer_accounts
type CustomerAccounts struct {
	querier
}

func NewCustomerAccounts(db ports.DBPort) *CustomerAccounts {
	return &CustomerAccounts{querier{db: db}}
}

// Debit subtracts amount from the customer's balance, opening the account if needed
func (a *CustomerAccounts) Debit(ctx context.Context, customerID string, amount decimal.Decimal) error {
	value, err := decimalToNumeric(amount)
	if err != nil {
		return err
	}
	_, err = a.conn(nil).Exec(ctx, `
		INSERT INTO customer_accounts (customer_id, balance, modified_at)
		VALUES ($1, -$2::numeric, now())
		ON CONFLICT (customer_id) DO UPDATE
		SET balance = customer_accounts.balance - $2::numeric, modified_at = now()`,
		customerID, value,
	)
	if err != nil {
		return fmt.Errorf("debit customer %s: %w", customerID, err)
	}
	return nil
}

// Balance returns the current balance, zero for unknown customers
func (a *CustomerAccounts) Balance(ctx context.Context, customerID string) (decimal.Decimal, error) {
	var balance pgtype.Numeric
	err := a.conn(nil).QueryRow(ctx,
		`SELECT balance FROM customer_accounts WHERE customer_id = $1`, customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return pgNumericToDecimal(balance)
}
