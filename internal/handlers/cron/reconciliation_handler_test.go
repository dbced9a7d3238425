package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kevin07696/paypal-billing/internal/adapters/memory"
	"github.com/kevin07696/paypal-billing/internal/domain"
	domainports "github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/internal/services/reconciliation"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/kevin07696/paypal-billing/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "cron-secret"

type mockReconciliationService struct {
	mock.Mock
}

func (m *mockReconciliationService) task(ctx context.Context, name string) (*ports.TaskResult, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TaskResult), args.Error(1)
}

func (m *mockReconciliationService) CleanupStalePayments(ctx context.Context) (*ports.TaskResult, error) {
	return m.task(ctx, ports.TaskCleanupStalePayments)
}

func (m *mockReconciliationService) DispatchInvoices(ctx context.Context) (*ports.TaskResult, error) {
	return m.task(ctx, ports.TaskDispatchInvoices)
}

func (m *mockReconciliationService) DebitConsumption(ctx context.Context) (*ports.TaskResult, error) {
	return m.task(ctx, ports.TaskDebitConsumption)
}

func (m *mockReconciliationService) SyncAgreementTransactions(ctx context.Context) (*ports.TaskResult, error) {
	return m.task(ctx, ports.TaskSyncAgreements)
}

func (m *mockReconciliationService) RunAll(ctx context.Context) ([]*ports.TaskResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ports.TaskResult), args.Error(1)
}

func setupHandler(t *testing.T) (*mockReconciliationService, http.Handler) {
	t.Helper()
	svc := new(mockReconciliationService)
	t.Cleanup(func() { svc.AssertExpectations(t) })

	mux := http.NewServeMux()
	NewReconciliationHandler(svc, resilience.TestTimeoutConfig(), zaptest.NewLogger(t), testSecret).RegisterRoutes(mux)
	return svc, mux
}

func post(h http.Handler, target string, header, value string) (*httptest.ResponseRecorder, ReconcileResponse) {
	req := httptest.NewRequest(http.MethodPost, target, nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp ReconcileResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestReconcile_RequiresSecret(t *testing.T) {
	_, h := setupHandler(t)

	tests := []struct {
		name, header, value string
	}{
		{"missing", "", ""},
		{"wrong header", "X-Cron-Secret", "nope"},
		{"wrong bearer", "Authorization", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := post(h, "/cron/reconcile", tt.header, tt.value)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.False(t, resp.Success)
		})
	}
}

func TestReconcile_EmptySecretRejects(t *testing.T) {
	svc := new(mockReconciliationService)
	mux := http.NewServeMux()
	NewReconciliationHandler(svc, resilience.TestTimeoutConfig(), zaptest.NewLogger(t), "").RegisterRoutes(mux)

	rec, _ := post(mux, "/cron/reconcile", "X-Cron-Secret", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "RunAll", mock.Anything)
}

func TestReconcileAll_Success(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("RunAll", mock.Anything).Return([]*ports.TaskResult{
		{Task: ports.TaskCleanupStalePayments, Succeeded: 3},
		{Task: ports.TaskDispatchInvoices, Skipped: 1},
	}, nil)

	rec, resp := post(h, "/cron/reconcile", "Authorization", "Bearer "+testSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 3, resp.Results[0].Succeeded)
}

func TestReconcileAll_PartialFailure(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("RunAll", mock.Anything).Return([]*ports.TaskResult{
		{Task: ports.TaskDispatchInvoices, Succeeded: 1, Failed: 1, Errors: []string{"inv-1: boom"}},
	}, nil)

	rec, resp := post(h, "/cron/reconcile", "X-Cron-Secret", testSecret)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.False(t, resp.Success)
}

func TestReconcileAll_TaskErrorWithResults(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("RunAll", mock.Anything).Return([]*ports.TaskResult{
		{Task: ports.TaskCleanupStalePayments, Succeeded: 1},
	}, errors.New("list agreements: connection refused"))

	rec, resp := post(h, "/cron/reconcile", "X-Cron-Secret", testSecret)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "connection refused")
	assert.Len(t, resp.Results, 1)
}

func TestReconcileTask(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("task", mock.Anything, ports.TaskSyncAgreements).
		Return(&ports.TaskResult{Task: ports.TaskSyncAgreements, Succeeded: 2}, nil)

	rec, resp := post(h, "/cron/reconcile/"+ports.TaskSyncAgreements, "X-Cron-Secret", testSecret)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, ports.TaskSyncAgreements, resp.Results[0].Task)
}

func TestReconcileTask_Failure(t *testing.T) {
	svc, h := setupHandler(t)
	svc.On("task", mock.Anything, ports.TaskCleanupStalePayments).Return(&ports.TaskResult{
		Task:   ports.TaskCleanupStalePayments,
		Errors: []string{"db down"},
	}, errors.New("db down"))

	rec, resp := post(h, "/cron/reconcile/"+ports.TaskCleanupStalePayments, "X-Cron-Secret", testSecret)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "db down", resp.Error)
	require.Len(t, resp.Results, 1)
}

type unavailablePayments struct {
	domainports.PaymentRepository
}

func (unavailablePayments) DeleteStale(context.Context, domainports.DBTX, domain.PaymentState, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestReconcileTask_ServiceFailureIsServerError(t *testing.T) {
	store := memory.New()
	svc := reconciliation.NewService(reconciliation.Dependencies{
		Payments:   unavailablePayments{store.Payments()},
		Agreements: store.Agreements(),
		Invoices:   store.Invoices(),
		Catalog:    store.Catalog(),
		Accounts:   store.Accounts(),
		Logger:     mocks.NewMockLogger(),
	}, reconciliation.Config{})

	mux := http.NewServeMux()
	NewReconciliationHandler(svc, resilience.TestTimeoutConfig(), zaptest.NewLogger(t), testSecret).RegisterRoutes(mux)

	rec, resp := post(mux, "/cron/reconcile/"+ports.TaskCleanupStalePayments, "X-Cron-Secret", testSecret)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "delete stale payments: db down", resp.Error)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, ports.TaskCleanupStalePayments, resp.Results[0].Task)
}

func TestReconcileTask_Unknown(t *testing.T) {
	_, h := setupHandler(t)

	rec, _ := post(h, "/cron/reconcile/rebuild_everything", "X-Cron-Secret", testSecret)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
