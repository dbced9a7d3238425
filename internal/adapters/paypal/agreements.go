package paypal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/timeutil"
)

// agreementStartDelay pushes the start date past "now"; PayPal rejects immediate starts
const agreementStartDelay = time.Minute

type agreementPlan struct {
	ID string `json:"id"`
}

type createAgreementRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	StartDate   string        `json:"start_date"`
	Payer       payer         `json:"payer"`
	Plan        agreementPlan `json:"plan"`
}

type agreementDetails struct {
	NextBillingDate string `json:"next_billing_date"`
	LastPaymentDate string `json:"last_payment_date"`
}

type agreementResponse struct {
	Payer struct {
		PayerInfo struct {
			Email string `json:"email"`
		} `json:"payer_info"`
	} `json:"payer"`
	Plan             agreementPlan    `json:"plan"`
	ID               string           `json:"id"`
	State            string           `json:"state"`
	Description      string           `json:"description"`
	StartDate        string           `json:"start_date"`
	AgreementDetails agreementDetails `json:"agreement_details"`
	Links            []link           `json:"links"`
}

type cancelAgreementRequest struct {
	Note string `json:"note"`
}

func agreementPath(id string) string {
	return "/v1/payments/billing-agreements/" + url.PathEscape(id)
}

// CreateAgreement creates an agreement on planID starting one minute from now
func (c *Client) CreateAgreement(ctx context.Context, planID, name string) (*ports.CreatedAgreement, error) {
	body := createAgreementRequest{
		Name:        name,
		Description: fmt.Sprintf("Agreement for %s", name),
		StartDate:   timeutil.FormatTimestamp(c.now().Add(agreementStartDelay)),
		Payer:       paypalPayer,
		Plan:        agreementPlan{ID: planID},
	}

	var resp agreementResponse
	if _, err := c.do(ctx, "create_agreement", http.MethodPost, "/v1/payments/billing-agreements", body, &resp); err != nil {
		return nil, err
	}

	approvalURL, token, err := approvalFromLinks(resp.Links)
	if err != nil {
		return nil, err
	}

	return &ports.CreatedAgreement{ApprovalURL: approvalURL, Token: token}, nil
}

// ExecuteAgreement finalises an approved agreement and returns its id
func (c *Client) ExecuteAgreement(ctx context.Context, token string) (string, error) {
	var resp agreementResponse
	if _, err := c.do(ctx, "execute_agreement", http.MethodPost, agreementPath(token)+"/agreement-execute", struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", domain.NewBackendError(domain.MsgAgreementNotExecuted, nil)
	}

	c.logger.Info("PayPal agreement executed",
		ports.String("agreement_id", resp.ID),
		ports.String("state", resp.State),
	)
	return resp.ID, nil
}

// GetAgreement returns NOT_FOUND when PayPal has no such agreement
func (c *Client) GetAgreement(ctx context.Context, agreementID string) (*ports.AgreementRecord, error) {
	var resp agreementResponse
	status, err := c.do(ctx, "get_agreement", http.MethodGet, agreementPath(agreementID), nil, &resp)
	if status == http.StatusNotFound || (err == nil && resp.ID == "") {
		return nil, domain.NewDomainError(domain.ErrorCodeNotFound, domain.MsgAgreementNotFound).
			WithDetail("agreement_id", agreementID)
	}
	if err != nil {
		return nil, err
	}

	return &ports.AgreementRecord{
		ID:              resp.ID,
		State:           resp.State,
		Description:     resp.Description,
		PayerEmail:      resp.Payer.PayerInfo.Email,
		PlanID:          resp.Plan.ID,
		StartDate:       parseOptionalTime(resp.StartDate),
		NextBillingDate: parseOptionalTime(resp.AgreementDetails.NextBillingDate),
		LastPaymentDate: parseOptionalTime(resp.AgreementDetails.LastPaymentDate),
	}, nil
}

// CancelAgreement cancels the agreement; note is shown to the payer
func (c *Client) CancelAgreement(ctx context.Context, agreementID, note string) error {
	_, err := c.do(ctx, "cancel_agreement", http.MethodPost, agreementPath(agreementID)+"/cancel",
		cancelAgreementRequest{Note: note}, nil)
	if err != nil {
		return err
	}

	c.logger.Info("PayPal agreement cancelled", ports.String("agreement_id", agreementID))
	return nil
}

func parseOptionalTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := parseTimestamp(value)
	if err != nil {
		return nil
	}
	return &t
}
