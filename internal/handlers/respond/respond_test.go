package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("bad"), http.StatusBadRequest},
		{domain.NewNotFoundError("payment", "1"), http.StatusNotFound},
		{domain.NewInvoiceDispatchedError("1"), http.StatusConflict},
		{domain.NewBackendError("down", nil), http.StatusBadGateway},
		{domain.NewRenderError("1", fmt.Errorf("font")), http.StatusInternalServerError},
		{fmt.Errorf("lock: %w", ports.ErrLockNotAcquired), http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestError_HidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, zaptest.NewLogger(t), fmt.Errorf("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestError_BackendMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	Error(rec, zaptest.NewLogger(t), domain.NewBackendError(domain.MsgPaymentNotFound, nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.MsgPaymentNotFound, body.Error)
	assert.Equal(t, "BACKEND_ERROR", body.Code)
}

type sample struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Amount     string `json:"amount" validate:"required,numeric"`
}

func TestDecode(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_id":"c","amount":"12.50"}`))
	var s sample
	require.NoError(t, Decode(httptest.NewRecorder(), req, &s))
	assert.Equal(t, "c", s.CustomerID)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"x"}`))
	err := Decode(httptest.NewRecorder(), req, &sample{})
	require.True(t, domain.IsValidationError(err))
	assert.Contains(t, err.Error(), "CustomerID failed required")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"customer_id":"c","amount":"1","extra":1}`))
	assert.True(t, domain.IsValidationError(Decode(httptest.NewRecorder(), req, &sample{})))
}
