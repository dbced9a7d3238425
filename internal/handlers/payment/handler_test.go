package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kevin07696/paypal-billing/internal/domain"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) result(args mock.Arguments) (*domain.Payment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *mockPaymentService) Start(ctx context.Context, req serviceports.StartPaymentRequest) (*domain.Payment, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockPaymentService) Approve(ctx context.Context, req serviceports.ApprovePaymentRequest) (*domain.Payment, error) {
	return m.result(m.Called(ctx, req))
}

func (m *mockPaymentService) Cancel(ctx context.Context, token string) (*domain.Payment, error) {
	return m.result(m.Called(ctx, token))
}

func (m *mockPaymentService) Get(ctx context.Context, id string) (*domain.Payment, error) {
	return m.result(m.Called(ctx, id))
}

func (m *mockPaymentService) List(ctx context.Context, customerID string) ([]*domain.Payment, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func setupHandler(t *testing.T) (*mockPaymentService, http.Handler) {
	t.Helper()
	svc := new(mockPaymentService)
	t.Cleanup(func() { svc.AssertExpectations(t) })

	h := NewHandler(svc, "https://billing.test"+ReturnPath, "https://billing.test"+CancelPath, zaptest.NewLogger(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })
	return svc, mux
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStart(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Start", mock.Anything, mock.MatchedBy(func(req serviceports.StartPaymentRequest) bool {
		return req.CustomerID == "cust-1" &&
			req.Total.Equal(decimal.RequireFromString("110.00")) &&
			req.ReturnURL == "https://billing.test/api/v1/payments/return"
	})).Return(&domain.Payment{
		ID: "p-1", State: domain.PaymentStateCreated, ApprovalURL: "https://paypal.test/checkout?token=EC-1",
	}, nil)

	rec := serve(h, http.MethodPost, "/api/v1/payments", `{"customer_id":"cust-1","total":"110.00","tax":"10.00"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		ApprovalURL string `json:"approval_url"`
		Payment     struct {
			State string `json:"state"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://paypal.test/checkout?token=EC-1", resp.ApprovalURL)
	assert.Equal(t, "CREATED", resp.Payment.State)
}

func TestStart_InvalidBody(t *testing.T) {
	_, h := setupHandler(t)

	rec := serve(h, http.MethodPost, "/api/v1/payments", `{"total":"1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStart_BackendError(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Start", mock.Anything, mock.Anything).Return(nil, domain.NewBackendError(domain.MsgApprovalURLNotFound, nil))

	rec := serve(h, http.MethodPost, "/api/v1/payments", `{"customer_id":"cust-1","total":5}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.MsgApprovalURLNotFound)
}

func TestReturn(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Approve", mock.Anything, serviceports.ApprovePaymentRequest{
		Token: "EC-1", PaymentID: "PAY-1", PayerID: "PAYER-9",
	}).Return(&domain.Payment{ID: "p-1", State: domain.PaymentStateApproved}, nil)

	rec := serve(h, http.MethodGet, "/api/v1/payments/return?token=EC-1&paymentId=PAY-1&PayerID=PAYER-9", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"APPROVED"`)
}

func TestReturn_MissingToken(t *testing.T) {
	_, h := setupHandler(t)

	rec := serve(h, http.MethodGet, "/api/v1/payments/return?PayerID=P", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelCallback_WrongState(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Cancel", mock.Anything, "EC-1").Return(nil,
		domain.NewDomainError(domain.ErrorCodeInvalidStateTransition, "payment cannot cancel from state APPROVED"))

	rec := serve(h, http.MethodGet, "/api/v1/payments/cancel?token=EC-1", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGet_NotFound(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("Get", mock.Anything, "missing").Return(nil, domain.NewNotFoundError("payment", "missing"))

	rec := serve(h, http.MethodGet, "/api/v1/payments/missing", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestList(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("List", mock.Anything, "cust-1").Return([]*domain.Payment{{ID: "p-2"}, {ID: "p-1"}}, nil)

	rec := serve(h, http.MethodGet, "/api/v1/payments?customer_id=cust-1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Payments []domain.Payment `json:"payments"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Payments, 2)
	assert.Equal(t, "p-2", resp.Payments[0].ID)
}
