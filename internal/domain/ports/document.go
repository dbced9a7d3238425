package ports

import (
	"context"

	"github.com/kevin07696/paypal-billing/internal/domain"
)

// InvoiceIssuer is the merchant block printed on rendered invoices
type InvoiceIssuer struct {
	Name     string
	Address  string
	Email    string
	LogoPath string
	Currency string
}

// DocumentRenderer produces the printable form of an invoice
type DocumentRenderer interface {
	Render(ctx context.Context, invoice *domain.Invoice, issuer InvoiceIssuer) ([]byte, error)
}

// DocumentStore persists rendered documents and returns an opaque reference
type DocumentStore interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
