package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockInvoiceService struct {
	mock.Mock
}

func invoiceResult(args mock.Arguments) (*domain.Invoice, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *mockInvoiceService) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	return invoiceResult(m.Called(ctx, id))
}

func (m *mockInvoiceService) List(ctx context.Context, customerID string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *mockInvoiceService) GenerateDocument(ctx context.Context, id string) (*domain.Invoice, error) {
	return invoiceResult(m.Called(ctx, id))
}

func (m *mockInvoiceService) Document(ctx context.Context, id string) ([]byte, string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *mockInvoiceService) Dispatch(ctx context.Context, id string) (*domain.Invoice, error) {
	return invoiceResult(m.Called(ctx, id))
}

func (m *mockInvoiceService) Pull(ctx context.Context, id string) (*domain.Invoice, error) {
	return invoiceResult(m.Called(ctx, id))
}

func (m *mockInvoiceService) RecordTransaction(ctx context.Context, agreement *domain.Agreement, tx ports.AgreementTransaction) (bool, error) {
	args := m.Called(ctx, agreement, tx)
	return args.Bool(0), args.Error(1)
}

func setupHandler(t *testing.T) (*mockInvoiceService, http.Handler) {
	t.Helper()
	svc := new(mockInvoiceService)
	t.Cleanup(func() { svc.AssertExpectations(t) })

	mux := http.NewServeMux()
	NewHandler(svc, zaptest.NewLogger(t)).RegisterRoutes(mux)
	return svc, mux
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func sampleInvoice() *domain.Invoice {
	return &domain.Invoice{
		ID:         "inv-1",
		CustomerID: "cust-1",
		Items: []domain.InvoiceItem{
			{Amount: decimal.RequireFromString("10"), Tax: decimal.RequireFromString("2")},
			{Amount: decimal.RequireFromString("5.5"), Tax: decimal.Zero},
		},
	}
}

func TestGet_IncludesTotals(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Get", mock.Anything, "inv-1").Return(sampleInvoice(), nil)

	rec := serve(h, http.MethodGet, "/api/v1/invoices/inv-1")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "inv-1", body["id"])
	assert.Equal(t, "15.50", body["total_amount"])
	assert.Equal(t, "2.00", body["total_tax"])
}

func TestDownload(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Document", mock.Anything, "inv-1").Return([]byte("%PDF-1.3"), "2025-03-01-invoice-inv-1.pdf", nil)

	rec := serve(h, http.MethodGet, "/api/v1/invoices/inv-1/document")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "2025-03-01-invoice-inv-1.pdf")
	assert.Equal(t, "%PDF-1.3", rec.Body.String())
}

func TestDownload_NoDocument(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Document", mock.Anything, "inv-1").Return(nil, "", domain.NewNotFoundError("invoice document", "inv-1"))

	rec := serve(h, http.MethodGet, "/api/v1/invoices/inv-1/document")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegenerate_RenderFailure(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("GenerateDocument", mock.Anything, "inv-1").
		Return(sampleInvoice(), domain.NewRenderError("inv-1", errors.New("logo missing")))

	rec := serve(h, http.MethodPost, "/api/v1/invoices/inv-1/document")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDispatch_AlreadyDispatchedIsOK(t *testing.T) {
	svc, h := setupHandler(t)
	inv := sampleInvoice()
	inv.BackendID = "INV2-1"
	svc.On("Dispatch", mock.Anything, "inv-1").Return(inv, nil)

	rec := serve(h, http.MethodPost, "/api/v1/invoices/inv-1/dispatch")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend_id":"INV2-1"`)
}

func TestList(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("List", mock.Anything, "cust-1").Return([]*domain.Invoice{sampleInvoice()}, nil)

	rec := serve(h, http.MethodGet, "/api/v1/invoices?customer_id=cust-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_amount":"15.50"`)
}

func TestPull(t *testing.T) {
	svc, h := setupHandler(t)
	inv := sampleInvoice()
	inv.BackendID = "INV2-1"
	inv.BackendState = "PAID"
	svc.On("Pull", mock.Anything, "inv-1").Return(inv, nil)

	rec := serve(h, http.MethodPost, "/api/v1/invoices/inv-1/pull")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"backend_state":"PAID"`)
}

func TestPull_NotDispatched(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Pull", mock.Anything, "inv-1").Return(sampleInvoice(),
		domain.NewDomainError(domain.ErrorCodeInvalidStateTransition, "invoice has not been dispatched"))

	rec := serve(h, http.MethodPost, "/api/v1/invoices/inv-1/pull")

	assert.Equal(t, http.StatusConflict, rec.Code)
}
