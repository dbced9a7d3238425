package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
)

const agreementColumns = `id, customer_id, name, amount, plan_id, backend_id, token, approval_url,
	state, error_message, cancelled_by_app, created_at, modified_at`

// AgreementRepository implements ports.AgreementRepository on PostgreSQL
type AgreementRepository struct {
	querier
}

func NewAgreementRepository(db ports.DBPort) *AgreementRepository {
	return &AgreementRepository{querier{db: db}}
}

func (r *AgreementRepository) Create(ctx context.Context, tx ports.DBTX, agreement *domain.Agreement) error {
	id, err := parseID("agreement", agreement.ID)
	if err != nil {
		return err
	}
	amount, err := decimalToNumeric(agreement.Amount)
	if err != nil {
		return err
	}

	_, err = r.conn(tx).Exec(ctx, `
		INSERT INTO agreements (`+agreementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		id, agreement.CustomerID, agreement.Name, amount, agreement.PlanID,
		textPtr(agreement.BackendID), textPtr(agreement.Token), agreement.ApprovalURL,
		int16(agreement.State), agreement.ErrorMessage, agreement.CancelledByApp,
		agreement.CreatedAt, agreement.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("create agreement: %w", err)
	}
	return nil
}

func (r *AgreementRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Agreement, error) {
	aid, err := parseID("agreement", id)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, db, `id = $1`, aid, id)
}

func (r *AgreementRepository) GetByToken(ctx context.Context, db ports.DBTX, token string) (*domain.Agreement, error) {
	return r.getOne(ctx, db, `token = $1`, token, token)
}

// GetByBackendID looks an agreement up by the processor agreement id
func (r *AgreementRepository) GetByBackendID(ctx context.Context, db ports.DBTX, backendID string) (*domain.Agreement, error) {
	return r.getOne(ctx, db, `backend_id = $1`, backendID, backendID)
}

func (r *AgreementRepository) getOne(ctx context.Context, db ports.DBTX, where string, arg any, key string) (*domain.Agreement, error) {
	row := r.conn(db).QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE `+where, arg)
	agreement, err := scanAgreement(row)
	if err != nil {
		return nil, notFound(err, "agreement", key)
	}
	return agreement, nil
}

// Update writes the agreement only if the stored state still equals expected
func (r *AgreementRepository) Update(ctx context.Context, tx ports.DBTX, agreement *domain.Agreement, expected domain.AgreementState) error {
	id, err := parseID("agreement", agreement.ID)
	if err != nil {
		return err
	}

	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE agreements
		SET plan_id = $3, backend_id = $4, token = $5, approval_url = $6, state = $7,
			error_message = $8, cancelled_by_app = $9, modified_at = $10
		WHERE id = $1 AND state = $2`,
		id, int16(expected), agreement.PlanID, textPtr(agreement.BackendID), textPtr(agreement.Token),
		agreement.ApprovalURL, int16(agreement.State), agreement.ErrorMessage, agreement.CancelledByApp,
		agreement.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update agreement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return staleWrite("agreement", agreement.ID, expected)
	}
	return nil
}

// ListByState returns agreements in state, least recently modified first
func (r *AgreementRepository) ListByState(ctx context.Context, db ports.DBTX, state domain.AgreementState, limit int32) ([]*domain.Agreement, error) {
	rows, err := r.conn(db).Query(ctx, `
		SELECT `+agreementColumns+` FROM agreements
		WHERE state = $1
		ORDER BY modified_at ASC
		LIMIT $2`, int16(state), limit)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var agreements []*domain.Agreement
	for rows.Next() {
		agreement, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		agreements = append(agreements, agreement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	return agreements, nil
}

func scanAgreement(row rowScanner) (*domain.Agreement, error) {
	var (
		id             uuid.UUID
		amount         pgtype.Numeric
		backendID, tok pgtype.Text
		state          int16
		agreement      domain.Agreement
	)
	if err := row.Scan(&id, &agreement.CustomerID, &agreement.Name, &amount, &agreement.PlanID,
		&backendID, &tok, &agreement.ApprovalURL, &state, &agreement.ErrorMessage,
		&agreement.CancelledByApp, &agreement.CreatedAt, &agreement.ModifiedAt); err != nil {
		return nil, err
	}

	var err error
	if agreement.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	agreement.ID = id.String()
	agreement.BackendID = stringPtr(backendID)
	agreement.Token = stringPtr(tok)
	agreement.State = domain.AgreementState(state)
	agreement.CreatedAt = agreement.CreatedAt.UTC()
	agreement.ModifiedAt = agreement.ModifiedAt.UTC()
	return &agreement, nil
}
