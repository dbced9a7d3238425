package paypal

import (
	"net/http"
	"testing"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInvoice() *domain.Invoice {
	return &domain.Invoice{
		ID:         "inv-1",
		CustomerID: "cust-1",
		StartDate:  time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		Items: []domain.InvoiceItem{
			{Description: "Gold plan", Amount: decimal.RequireFromString("49.9"), Tax: decimal.RequireFromString("5"), CreatedAt: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)},
			{Amount: decimal.RequireFromString("10"), Tax: decimal.Zero},
		},
	}
}

func TestCreateInvoice_Representation(t *testing.T) {
	client, _ := setupPayPalTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/invoicing/invoices", r.URL.Path)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		body := decodeBody(t, r)
		detail := body["detail"].(map[string]interface{})
		assert.Equal(t, "USD", detail["currency_code"])
		assert.Equal(t, "inv-1", detail["reference"])
		assert.Equal(t, "2025-02-28", detail["invoice_date"])

		items := body["items"].([]interface{})
		require.Len(t, items, 3)
		first := items[0].(map[string]interface{})
		assert.Equal(t, "Gold plan", first["name"])
		assert.Equal(t, map[string]interface{}{"currency_code": "USD", "value": "49.90"}, first["unit_amount"])
		assert.Equal(t, "Service charge", items[1].(map[string]interface{})["name"])
		tax := items[2].(map[string]interface{})
		assert.Equal(t, "Tax", tax["name"])
		assert.Equal(t, "5.00", tax["unit_amount"].(map[string]interface{})["value"])

		writeJSON(w, http.StatusCreated, `{"id":"INV2-Z56S-5LLA-Q52L-CPZ5","status":"DRAFT"}`)
	})

	id, err := client.CreateInvoice(t.Context(), sampleInvoice())

	require.NoError(t, err)
	assert.Equal(t, "INV2-Z56S-5LLA-Q52L-CPZ5", id)
}

func TestCreateInvoice_MinimalResponse(t *testing.T) {
	client, _ := setupPayPalTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"rel":"self","href":"https://api-m.sandbox.paypal.com/v2/invoicing/invoices/INV2-AAAA","method":"GET"}`)
	})

	id, err := client.CreateInvoice(t.Context(), sampleInvoice())

	require.NoError(t, err)
	assert.Equal(t, "INV2-AAAA", id)
}

func TestCreateInvoice_NoID(t *testing.T) {
	client, _ := setupPayPalTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{}`)
	})

	_, err := client.CreateInvoice(t.Context(), sampleInvoice())

	assert.True(t, domain.IsBackendError(err))
}

func TestGetInvoice(t *testing.T) {
	client, _ := setupPayPalTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/invoicing/invoices/INV2-Z56S", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"id":"INV2-Z56S","status":"PAID","detail":{"invoice_number":"0001"}}`)
	})

	record, err := client.GetInvoice(t.Context(), "INV2-Z56S")

	require.NoError(t, err)
	assert.Equal(t, "INV2-Z56S", record.ID)
	assert.Equal(t, "PAID", record.Status)
}

func TestGetInvoice_NotFound(t *testing.T) {
	client, _ := setupPayPalTest(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"name":"RESOURCE_NOT_FOUND","message":"The specified resource does not exist."}`)
	})

	_, err := client.GetInvoice(t.Context(), "INV2-GONE")

	assert.True(t, domain.IsNotFoundError(err))
	assert.Equal(t, domain.MsgInvoiceNotFound, domain.ErrorMessage(err))
}
