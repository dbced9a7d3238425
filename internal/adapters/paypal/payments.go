package paypal

import (
	"context"
	"net/http"
	"net/url"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
)

type payer struct {
	PaymentMethod string `json:"payment_method"`
}

var paypalPayer = payer{PaymentMethod: "paypal"}

type amountDetails struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
}

type paymentAmount struct {
	Details  *amountDetails `json:"details,omitempty"`
	Total    string         `json:"total"`
	Currency string         `json:"currency"`
}

type paymentTransaction struct {
	Description string        `json:"description,omitempty"`
	Amount      paymentAmount `json:"amount"`
}

type redirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type createPaymentRequest struct {
	Intent       string               `json:"intent"`
	Payer        payer                `json:"payer"`
	Transactions []paymentTransaction `json:"transactions"`
	RedirectURLs redirectURLs         `json:"redirect_urls"`
}

type executePaymentRequest struct {
	PayerID string `json:"payer_id"`
}

type paymentResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Links []link `json:"links"`
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// CreatePayment creates a sale and returns the approval redirect
func (c *Client) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.CreatedPayment, error) {
	body := createPaymentRequest{
		Intent: "sale",
		Payer:  paypalPayer,
		Transactions: []paymentTransaction{{
			Description: req.Description,
			Amount: paymentAmount{
				Total:    formatAmount(req.Total),
				Currency: c.cfg.currency(),
				Details: &amountDetails{
					Subtotal: formatAmount(req.Subtotal),
					Tax:      formatAmount(req.Tax),
				},
			},
		}},
		RedirectURLs: redirectURLs{ReturnURL: req.ReturnURL, CancelURL: req.CancelURL},
	}

	var resp paymentResponse
	if _, err := c.do(ctx, "create_payment", http.MethodPost, "/v1/payments/payment", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, domain.NewBackendError("PayPal returned a payment without an id", nil)
	}

	approvalURL, token, err := approvalFromLinks(resp.Links)
	if err != nil {
		return nil, err
	}

	c.logger.Info("PayPal payment created",
		resp.idField(),
		ports.String("state", resp.State),
	)

	return &ports.CreatedPayment{
		BackendID:   resp.ID,
		ApprovalURL: approvalURL,
		Token:       token,
	}, nil
}

// ExecutePayment looks the payment up and executes it for the approving payer
func (c *Client) ExecutePayment(ctx context.Context, backendID, payerID string) error {
	path := "/v1/payments/payment/" + url.PathEscape(backendID)

	var found paymentResponse
	status, err := c.do(ctx, "get_payment", http.MethodGet, path, nil, &found)
	if status == http.StatusNotFound || (err == nil && found.ID == "") {
		return domain.NewBackendError(domain.MsgPaymentNotFound, err).WithDetail("backend_id", backendID)
	}
	if err != nil {
		return err
	}

	var executed paymentResponse
	if _, err := c.do(ctx, "execute_payment", http.MethodPost, path+"/execute", executePaymentRequest{PayerID: payerID}, &executed); err != nil {
		return err
	}

	c.logger.Info("PayPal payment executed",
		executed.idField(),
		ports.String("state", executed.State),
	)
	return nil
}

func (r paymentResponse) idField() ports.Field {
	return ports.String("backend_id", r.ID)
}
