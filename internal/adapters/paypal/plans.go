package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
)

type currencyValue struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type paymentDefinition struct {
	Name              string        `json:"name"`
	Type              string        `json:"type"`
	Frequency         string        `json:"frequency"`
	FrequencyInterval string        `json:"frequency_interval"`
	Cycles            string        `json:"cycles"`
	Amount            currencyValue `json:"amount"`
}

type merchantPreferences struct {
	ReturnURL      string `json:"return_url"`
	CancelURL      string `json:"cancel_url"`
	AutoBillAmount string `json:"auto_bill_amount"`
}

type createPlanRequest struct {
	Name                string              `json:"name"`
	Description         string              `json:"description"`
	Type                string              `json:"type"`
	PaymentDefinitions  []paymentDefinition `json:"payment_definitions"`
	MerchantPreferences merchantPreferences `json:"merchant_preferences"`
}

type planResponse struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type patchOperation struct {
	Value interface{} `json:"value"`
	Op    string      `json:"op"`
	Path  string      `json:"path"`
}

// CreatePlan creates an infinite monthly plan and activates it.
// A plan that is created but fails activation is reported as a failure.
func (c *Client) CreatePlan(ctx context.Context, req ports.CreatePlanRequest) (string, error) {
	description := req.Description
	if description == "" {
		description = req.Name
	}

	body := createPlanRequest{
		Name:        req.Name,
		Description: description,
		Type:        "INFINITE",
		PaymentDefinitions: []paymentDefinition{{
			Name:              fmt.Sprintf("Monthly payment for %s", req.Name),
			Type:              "REGULAR",
			Frequency:         "MONTH",
			FrequencyInterval: "1",
			Cycles:            "0",
			Amount: currencyValue{
				Currency: c.cfg.currency(),
				Value:    formatAmount(req.Amount),
			},
		}},
		MerchantPreferences: merchantPreferences{
			ReturnURL:      req.ReturnURL,
			CancelURL:      req.CancelURL,
			AutoBillAmount: "YES",
		},
	}

	var plan planResponse
	if _, err := c.do(ctx, "create_plan", http.MethodPost, "/v1/payments/billing-plans", body, &plan); err != nil {
		return "", err
	}
	if plan.ID == "" {
		return "", domain.NewBackendError("PayPal returned a plan without an id", nil)
	}

	activate := []patchOperation{{
		Op:    "replace",
		Path:  "/",
		Value: map[string]string{"state": "ACTIVE"},
	}}
	if _, err := c.do(ctx, "activate_plan", http.MethodPatch, "/v1/payments/billing-plans/"+url.PathEscape(plan.ID), activate, nil); err != nil {
		return "", err
	}

	c.logger.Info("PayPal billing plan activated", ports.String("plan_id", plan.ID))
	return plan.ID, nil
}
