package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInvoice_Totals(t *testing.T) {
	inv := &Invoice{
		Items: []InvoiceItem{
			{Amount: decimal.RequireFromString("10.50"), Tax: decimal.RequireFromString("1.05")},
			{Amount: decimal.RequireFromString("4.50"), Tax: decimal.RequireFromString("0.45")},
		},
	}

	assert.Equal(t, "15", inv.TotalAmount().String())
	assert.Equal(t, "1.5", inv.TotalTax().String())
}

func TestInvoice_EmptyTotals(t *testing.T) {
	inv := &Invoice{}
	assert.True(t, inv.TotalAmount().IsZero())
	assert.True(t, inv.TotalTax().IsZero())
}

func TestInvoice_FileName(t *testing.T) {
	inv := &Invoice{ID: "42", StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "2025-01-01-invoice-42.pdf", inv.FileName())
}

func TestInvoice_IsDispatched(t *testing.T) {
	assert.False(t, (&Invoice{}).IsDispatched())
	assert.True(t, (&Invoice{BackendID: "INV2-X"}).IsDispatched())
}
