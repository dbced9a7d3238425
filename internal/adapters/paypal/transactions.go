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
	"github.com/shopspring/decimal"
)

const transactionStatusCompleted = "Completed"

type agreementTransaction struct {
	Amount          currencyValue `json:"amount"`
	TransactionID   string        `json:"transaction_id"`
	Status          string        `json:"status"`
	TransactionType string        `json:"transaction_type"`
	PayerEmail      string        `json:"payer_email"`
	TimeStamp       string        `json:"time_stamp"`
}

type transactionListResponse struct {
	Transactions []agreementTransaction `json:"agreement_transaction_list"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	timeutil.DateLayout,
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// searchWindow resolves the date range sent to PayPal. A nil end means now,
// and a range shorter than one day has one day added to its end.
func searchWindow(start time.Time, end *time.Time, now time.Time) (time.Time, time.Time) {
	to := now
	if end != nil {
		to = *end
	}
	if to.Sub(start) < 24*time.Hour {
		to = to.Add(24 * time.Hour)
	}
	return start, to
}

// SearchAgreementTransactions returns the completed transactions of an agreement
func (c *Client) SearchAgreementTransactions(ctx context.Context, agreementID string, start time.Time, end *time.Time) ([]ports.AgreementTransaction, error) {
	if _, err := c.GetAgreement(ctx, agreementID); err != nil {
		return nil, err
	}

	from, to := searchWindow(start, end, c.now())
	query := url.Values{}
	query.Set("start_date", timeutil.FormatDate(from))
	query.Set("end_date", timeutil.FormatDate(to))

	var resp transactionListResponse
	if _, err := c.do(ctx, "search_transactions", http.MethodGet,
		agreementPath(agreementID)+"/transactions?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	result := make([]ports.AgreementTransaction, 0, len(resp.Transactions))
	for _, tx := range resp.Transactions {
		if tx.Status != transactionStatusCompleted {
			continue
		}

		ts, err := parseTimestamp(tx.TimeStamp)
		if err != nil {
			return nil, domain.NewBackendError("invalid transaction timestamp from PayPal", err).
				WithDetail("transaction_id", tx.TransactionID)
		}
		amount, err := decimal.NewFromString(tx.Amount.Value)
		if err != nil {
			return nil, domain.NewBackendError("invalid transaction amount from PayPal", err).
				WithDetail("transaction_id", tx.TransactionID)
		}

		result = append(result, ports.AgreementTransaction{
			Timestamp:     ts,
			TransactionID: tx.TransactionID,
			Amount:        amount,
			PayerEmail:    tx.PayerEmail,
		})
	}

	return result, nil
}
