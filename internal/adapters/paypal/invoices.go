package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/timeutil"
)

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type invoiceLine struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity"`
	ItemDate    string `json:"item_date,omitempty"`
	UnitAmount  money  `json:"unit_amount"`
}

type invoiceDetail struct {
	CurrencyCode string `json:"currency_code"`
	Reference    string `json:"reference,omitempty"`
	InvoiceDate  string `json:"invoice_date,omitempty"`
	Note         string `json:"note,omitempty"`
}

type createInvoiceRequest struct {
	Detail invoiceDetail `json:"detail"`
	Items  []invoiceLine `json:"items"`
}

type invoiceResponse struct {
	ID     string `json:"id"`
	Href   string `json:"href"`
	Status string `json:"status"`
}

// CreateInvoice registers a draft invoice and returns the PayPal invoice id
func (c *Client) CreateInvoice(ctx context.Context, invoice *domain.Invoice) (string, error) {
	currency := c.cfg.currency()

	lines := make([]invoiceLine, 0, len(invoice.Items)+1)
	for _, item := range invoice.Items {
		name := item.Description
		if name == "" {
			name = "Service charge"
		}
		lines = append(lines, invoiceLine{
			Name:       name,
			Quantity:   "1",
			ItemDate:   timeutil.FormatDate(item.CreatedAt),
			UnitAmount: money{CurrencyCode: currency, Value: formatAmount(item.Amount)},
		})
	}
	if tax := invoice.TotalTax(); tax.IsPositive() {
		lines = append(lines, invoiceLine{
			Name:       "Tax",
			Quantity:   "1",
			UnitAmount: money{CurrencyCode: currency, Value: formatAmount(tax)},
		})
	}

	body := createInvoiceRequest{
		Detail: invoiceDetail{
			CurrencyCode: currency,
			Reference:    invoice.ID,
			InvoiceDate:  timeutil.FormatDate(invoice.EndDate),
			Note: fmt.Sprintf("Billing period %s to %s",
				timeutil.FormatDate(invoice.StartDate), timeutil.FormatDate(invoice.EndDate)),
		},
		Items: lines,
	}

	var resp invoiceResponse
	if _, err := c.do(ctx, "create_invoice", http.MethodPost, "/v2/invoicing/invoices", body, &resp,
		withHeader("Prefer", "return=representation")); err != nil {
		return "", err
	}

	id := resp.ID
	if id == "" && resp.Href != "" {
		id = path.Base(resp.Href)
	}
	if id == "" {
		return "", domain.NewBackendError("PayPal returned an invoice without an id", nil)
	}

	c.logger.Info("PayPal invoice created",
		ports.String("invoice_id", invoice.ID),
		ports.String("backend_id", id),
	)
	return id, nil
}

// GetInvoice reads the invoice status; 404 or an empty body is NOT_FOUND
func (c *Client) GetInvoice(ctx context.Context, backendID string) (*ports.InvoiceRecord, error) {
	var resp invoiceResponse
	status, err := c.do(ctx, "get_invoice", http.MethodGet, "/v2/invoicing/invoices/"+url.PathEscape(backendID), nil, &resp)
	if status == http.StatusNotFound || (err == nil && resp.ID == "") {
		return nil, domain.NewDomainError(domain.ErrorCodeNotFound, domain.MsgInvoiceNotFound).
			WithDetail("backend_id", backendID)
	}
	if err != nil {
		return nil, err
	}
	return &ports.InvoiceRecord{ID: resp.ID, Status: resp.Status}, nil
}
