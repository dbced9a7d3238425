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

const (
	invoiceColumns = `id, customer_id, start_date, end_date, document_ref, backend_id, backend_state, created_at`
	itemColumns    = `id, invoice_id, description, amount, tax, backend_id, created_at`
)

// InvoiceRepository implements ports.InvoiceRepository on PostgreSQL
type InvoiceRepository struct {
	querier
}

func NewInvoiceRepository(db ports.DBPort) *InvoiceRepository {
	return &InvoiceRepository{querier{db: db}}
}

// EnsureForPeriod returns the customer's invoice for the period starting at start
func (r *InvoiceRepository) EnsureForPeriod(ctx context.Context, tx ports.DBTX, customerID string, start, end time.Time) (*domain.Invoice, error) {
	conn := r.conn(tx)
	_, err := conn.Exec(ctx, `
		INSERT INTO invoices (id, customer_id, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, start_date) DO NOTHING`,
		uuid.New(), customerID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure invoice: %w", err)
	}

	row := conn.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = $1 AND start_date = $2`, customerID, start)
	invoice, err := scanInvoice(row)
	if err != nil {
		return nil, fmt.Errorf("ensure invoice: %w", err)
	}
	if err := r.loadItems(ctx, conn, []*domain.Invoice{invoice}); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetByID loads the invoice with its items, newest item first
func (r *InvoiceRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*domain.Invoice, error) {
	iid, err := parseID("invoice", id)
	if err != nil {
		return nil, err
	}
	conn := r.conn(db)
	invoice, err := scanInvoice(conn.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, iid))
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	if err := r.loadItems(ctx, conn, []*domain.Invoice{invoice}); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListByCustomer returns invoices newest period first
func (r *InvoiceRepository) ListByCustomer(ctx context.Context, db ports.DBTX, customerID string) ([]*domain.Invoice, error) {
	return r.list(ctx, r.conn(db), `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE customer_id = $1
		ORDER BY start_date DESC`, customerID)
}

// ListUndispatched returns closed invoices with items that are not yet created
// at the processor, one keyset page at a time
func (r *InvoiceRepository) ListUndispatched(ctx context.Context, db ports.DBTX, closedBefore time.Time, after *ports.InvoiceCursor, limit int32) ([]*domain.Invoice, error) {
	const base = `
		SELECT ` + invoiceColumns + ` FROM invoices
		WHERE backend_id = ''
		  AND end_date < $1
		  AND EXISTS (SELECT 1 FROM invoice_items WHERE invoice_items.invoice_id = invoices.id)`
	const order = `
		ORDER BY start_date ASC, id ASC`

	if after == nil {
		return r.list(ctx, r.conn(db), base+order+` LIMIT $2`, closedBefore, limit)
	}
	afterID, err := parseID("invoice", after.ID)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, r.conn(db), base+`
		  AND (start_date, id) > ($2::date, $3::uuid)`+order+` LIMIT $4`,
		closedBefore, after.StartDate, afterID, limit)
}

func (r *InvoiceRepository) list(ctx context.Context, conn ports.DBTX, query string, args ...any) ([]*domain.Invoice, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	rows.Close()

	if err := r.loadItems(ctx, conn, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// loadItems fills Items for every invoice with a single query
func (r *InvoiceRepository) loadItems(ctx context.Context, conn ports.DBTX, invoices []*domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(invoices))
	byID := make(map[string]*domain.Invoice, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, uuid.MustParse(inv.ID))
		byID[inv.ID] = inv
		inv.Items = []domain.InvoiceItem{}
	}

	rows, err := conn.Query(ctx, `
		SELECT `+itemColumns+` FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY created_at DESC`, ids)
	if err != nil {
		return fmt.Errorf("load invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return err
		}
		if inv, ok := byID[item.InvoiceID]; ok {
			inv.Items = append(inv.Items, *item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load invoice items: %w", err)
	}
	return nil
}

// AddItem inserts a line, skipping lines whose backend id is already recorded
func (r *InvoiceRepository) AddItem(ctx context.Context, tx ports.DBTX, item *domain.InvoiceItem) (bool, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	id, err := parseID("invoice item", item.ID)
	if err != nil {
		return false, err
	}
	invoiceID, err := parseID("invoice", item.InvoiceID)
	if err != nil {
		return false, err
	}
	amount, err := decimalToNumeric(item.Amount)
	if err != nil {
		return false, err
	}
	tax, err := decimalToNumeric(item.Tax)
	if err != nil {
		return false, err
	}

	tag, err := r.conn(tx).Exec(ctx, `
		INSERT INTO invoice_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (backend_id) WHERE backend_id <> '' DO NOTHING`,
		id, invoiceID, item.Description, amount, tax, item.BackendID, item.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("add invoice item: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetDocument replaces the rendered document reference; nil clears it
func (r *InvoiceRepository) SetDocument(ctx context.Context, tx ports.DBTX, id string, ref *string) error {
	iid, err := parseID("invoice", id)
	if err != nil {
		return err
	}
	tag, err := r.conn(tx).Exec(ctx, `UPDATE invoices SET document_ref = $2 WHERE id = $1`, iid, textPtr(ref))
	if err != nil {
		return fmt.Errorf("set invoice document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("invoice", id)
	}
	return nil
}

// MarkDispatched records the processor invoice id once
func (r *InvoiceRepository) MarkDispatched(ctx context.Context, tx ports.DBTX, id, backendID string) error {
	iid, err := parseID("invoice", id)
	if err != nil {
		return err
	}
	tag, err := r.conn(tx).Exec(ctx,
		`UPDATE invoices SET backend_id = $2 WHERE id = $1 AND backend_id = ''`, iid, backendID)
	if err != nil {
		return fmt.Errorf("mark invoice dispatched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewInvoiceDispatchedError(id)
	}
	return nil
}

// SetBackendState records the pulled processor status; the invoice must be dispatched
func (r *InvoiceRepository) SetBackendState(ctx context.Context, tx ports.DBTX, id, state string) error {
	iid, err := parseID("invoice", id)
	if err != nil {
		return err
	}
	tag, err := r.conn(tx).Exec(ctx,
		`UPDATE invoices SET backend_state = $2 WHERE id = $1 AND backend_id <> ''`, iid, state)
	if err != nil {
		return fmt.Errorf("set invoice backend state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("dispatched invoice", id)
	}
	return nil
}

func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	var (
		id      uuid.UUID
		doc     pgtype.Text
		invoice domain.Invoice
	)
	if err := row.Scan(&id, &invoice.CustomerID, &invoice.StartDate, &invoice.EndDate, &doc,
		&invoice.BackendID, &invoice.BackendState, &invoice.CreatedAt); err != nil {
		return nil, err
	}
	invoice.ID = id.String()
	invoice.DocumentRef = stringPtr(doc)
	invoice.StartDate = invoice.StartDate.UTC()
	invoice.EndDate = invoice.EndDate.UTC()
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	return &invoice, nil
}

func scanItem(row rowScanner) (*domain.InvoiceItem, error) {
	var (
		id, invoiceID uuid.UUID
		amount, tax   pgtype.Numeric
		item          domain.InvoiceItem
	)
	if err := row.Scan(&id, &invoiceID, &item.Description, &amount, &tax, &item.BackendID, &item.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan invoice item: %w", err)
	}

	var err error
	if item.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, err
	}
	if item.Tax, err = pgNumericToDecimal(tax); err != nil {
		return nil, err
	}
	item.ID = id.String()
	item.InvoiceID = invoiceID.String()
	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}
