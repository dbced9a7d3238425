package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
)

const paymentColumns = `id, customer_id, amount, tax, backend_id, token, approval_url,
	state, error_message, created_at, modified_at`

// PaymentRepository implements ports.PaymentRepository on PostgreSQL
type PaymentRepository struct {
	querier
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db ports.DBPort) *PaymentRepository {
	return &PaymentRepository{querier{db: db}}
}

// Create inserts a new payment
func (r *PaymentRepository) Create(ctx context.Context, tx ports.DBTX, payment *domain.Payment) error {
	id, err := parseID("payment", payment.ID)
	if err != nil {
		return err
	}
	amount, err := decimalToNumeric(payment.Amount)
	if err != nil {
		return err
	}
	tax, err := decimalToNumeric(payment.Tax)
	if err != nil {
		return err
	}

	_, err = r.conn(tx).Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, payment.CustomerID, amount, tax, textPtr(payment.BackendID), textPtr(payment.Token),
		payment.ApprovalURL, int16(payment.State), payment.ErrorMessage, payment.CreatedAt, payment.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Payment, error) {
	pid, err := parseID("payment", id)
	if err != nil {
		return nil, err
	}
	row := r.conn(db).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, pid)
	payment, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return payment, nil
}

// GetByToken retrieves the payment an approval callback refers to
func (r *PaymentRepository) GetByToken(ctx context.Context, db ports.DBTX, token string) (*domain.Payment, error) {
	row := r.conn(db).QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE token = $1`, token)
	payment, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, "payment", token)
	}
	return payment, nil
}

// Update writes the payment only if the stored state still equals expected
func (r *PaymentRepository) Update(ctx context.Context, tx ports.DBTX, payment *domain.Payment, expected domain.PaymentState) error {
	id, err := parseID("payment", payment.ID)
	if err != nil {
		return err
	}

	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE payments
		SET backend_id = $3, token = $4, approval_url = $5, state = $6,
			error_message = $7, modified_at = $8
		WHERE id = $1 AND state = $2`,
		id, int16(expected), textPtr(payment.BackendID), textPtr(payment.Token), payment.ApprovalURL,
		int16(payment.State), payment.ErrorMessage, payment.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return staleWrite("payment", payment.ID, expected)
	}
	return nil
}

// ListByCustomer returns a customer's payments, most recently modified first
func (r *PaymentRepository) ListByCustomer(ctx context.Context, db ports.DBTX, customerID string) ([]*domain.Payment, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE customer_id = $1
		ORDER BY modified_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// DeleteStale removes payments left in state that were created at or before cutoff
func (r *PaymentRepository) DeleteStale(ctx context.Context, tx ports.DBTX, state domain.PaymentState, cutoff time.Time) (int64, error) {
	tag, err := r.conn(tx).Exec(ctx,
		`DELETE FROM payments WHERE state = $1 AND created_at <= $2`, int16(state), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale payments: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		id             uuid.UUID
		amount, tax    pgtype.Numeric
		backendID, tok pgtype.Text
		state          int16
		payment        domain.Payment
	)
	if err := row.Scan(&id, &payment.CustomerID, &amount, &tax, &backendID, &tok, &payment.ApprovalURL,
		&state, &payment.ErrorMessage, &payment.CreatedAt, &payment.ModifiedAt); err != nil {
		return nil, err
	}

	var err error
	if payment.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if payment.Tax, err = pgNumericToDecimal(tax); err != nil {
		return nil, err
	}
	payment.ID = id.String()
	payment.BackendID = stringPtr(backendID)
	payment.Token = stringPtr(tok)
	payment.State = domain.PaymentState(state)
	payment.CreatedAt = payment.CreatedAt.UTC()
	payment.ModifiedAt = payment.ModifiedAt.UTC()
	return &payment, nil
}

func staleWrite(entity, id string, expected fmt.Stringer) error {
	return domain.NewDomainError(domain.ErrorCodeInvalidStateTransition,
		fmt.Sprintf("%s is no longer in state %s", entity, expected)).
		WithDetail("entity", entity).
		WithDetail("id", id).
		WithDetail("state", expected.String())
}
