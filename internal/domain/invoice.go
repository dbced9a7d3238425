package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice groups the line items billed to one customer for a period
type Invoice struct {
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	CreatedAt   time.Time `json:"created_at"`
	DocumentRef *string   `json:"document_ref,omitempty"`
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	BackendID   string    `json:"backend_id"`
	// BackendState is the processor status last pulled, e.g. SENT or PAID
	BackendState string        `json:"backend_state,omitempty"`
	Items        []InvoiceItem `json:"items"`
}

// InvoiceItem is a single billed line. BackendID holds the processor
// transaction id when the line was imported from an agreement.
type InvoiceItem struct {
	CreatedAt   time.Time       `json:"created_at"`
	ID          string          `json:"id"`
	InvoiceID   string          `json:"invoice_id"`
	Description string          `json:"description"`
	BackendID   string          `json:"backend_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Tax         decimal.Decimal `json:"tax"`
}

func (i *Invoice) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Amount)
	}
	return total
}

func (i *Invoice) TotalTax() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Tax)
	}
	return total
}

// IsDispatched reports whether the invoice was already handed to the processor
func (i *Invoice) IsDispatched() bool {
	return i.BackendID != ""
}

// FileName is the storage name of the rendered document
func (i *Invoice) FileName() string {
	return fmt.Sprintf("%s-invoice-%s.pdf", i.StartDate.UTC().Format("2006-01-02"), i.ID)
}
