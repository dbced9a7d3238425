package agreement

import (
	"sync"
	"testing"
	"time"

	"github.com/kevin07696/paypal-billing/internal/adapters/locking"
	"github.com/kevin07696/paypal-billing/internal/adapters/memory"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	serviceports "github.com/kevin07696/paypal-billing/internal/services/ports"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/kevin07696/paypal-billing/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	store     *memory.AgreementStore
	processor *mocks.MockPaymentProcessor
	logger    *mocks.MockLogger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New().Agreements(),
		processor: new(mocks.MockPaymentProcessor),
		logger:    mocks.NewMockLogger(),
	}
	f.svc = NewService(f.store, f.processor, locking.NewLocalLocker(),
		resilience.TestTimeoutConfig(), f.logger, WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(func() { f.processor.AssertExpectations(t) })
	return f
}

func startRequest() serviceports.StartAgreementRequest {
	return serviceports.StartAgreementRequest{
		CustomerID:  "cust-1",
		Name:        "Gold",
		Description: "Gold monthly plan",
		ReturnURL:   "https://billing.test/api/v1/agreements/return",
		CancelURL:   "https://billing.test/api/v1/agreements/cancel",
		Amount:      decimal.RequireFromString("19.99"),
	}
}

func (f *fixture) started(t *testing.T) *domain.Agreement {
	t.Helper()
	f.processor.On("CreatePlan", mock.Anything, mock.Anything).Return("P-1", nil).Once()
	f.processor.On("CreateAgreement", mock.Anything, "P-1", "Gold").Return(&ports.CreatedAgreement{
		ApprovalURL: "https://paypal.test/agreements/approve?token=EC-A",
		Token:       "EC-A",
	}, nil).Once()

	a, err := f.svc.Start(t.Context(), startRequest())
	require.NoError(t, err)
	return a
}

func (f *fixture) approved(t *testing.T) *domain.Agreement {
	t.Helper()
	f.started(t)
	f.processor.On("ExecuteAgreement", mock.Anything, "EC-A").Return("I-1", nil).Once()

	a, err := f.svc.Approve(t.Context(), "EC-A")
	require.NoError(t, err)
	return a
}

func (f *fixture) stored(t *testing.T, id string) *domain.Agreement {
	t.Helper()
	a, err := f.store.GetByID(t.Context(), nil, id)
	require.NoError(t, err)
	return a
}

func TestStart_Success(t *testing.T) {
	f := setup(t)
	f.processor.On("CreatePlan", mock.Anything, mock.MatchedBy(func(req ports.CreatePlanRequest) bool {
		return req.Name == "Gold" && req.Amount.Equal(decimal.RequireFromString("19.99")) &&
			req.ReturnURL == "https://billing.test/api/v1/agreements/return"
	})).Return("P-1", nil)
	f.processor.On("CreateAgreement", mock.Anything, "P-1", "Gold").Return(&ports.CreatedAgreement{
		ApprovalURL: "https://paypal.test/agreements/approve?token=EC-A",
		Token:       "EC-A",
	}, nil)

	a, err := f.svc.Start(t.Context(), startRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateCreated, a.State)
	assert.Equal(t, "P-1", a.PlanID)
	require.NotNil(t, a.Token)
	assert.Equal(t, "EC-A", *a.Token)
	assert.Nil(t, a.BackendID)

	byToken, err := f.store.GetByToken(t.Context(), nil, "EC-A")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byToken.ID)
}

func TestStart_PlanFailureMarksErred(t *testing.T) {
	f := setup(t)
	f.processor.On("CreatePlan", mock.Anything, mock.Anything).
		Return("", domain.NewBackendError("Plan rejected", nil))

	a, err := f.svc.Start(t.Context(), startRequest())

	assert.True(t, domain.IsBackendError(err))
	stored := f.stored(t, a.ID)
	assert.Equal(t, domain.AgreementStateErred, stored.State)
	assert.Equal(t, "Plan rejected", stored.ErrorMessage)
	f.processor.AssertNotCalled(t, "CreateAgreement", mock.Anything, mock.Anything, mock.Anything)
}

func TestStart_Validation(t *testing.T) {
	f := setup(t)
	req := startRequest()
	req.Amount = decimal.Zero

	_, err := f.svc.Start(t.Context(), req)

	assert.True(t, domain.IsValidationError(err))
}

func TestApprove_Success(t *testing.T) {
	f := setup(t)
	a := f.approved(t)

	assert.Equal(t, domain.AgreementStateApproved, a.State)
	require.NotNil(t, a.BackendID)
	assert.Equal(t, "I-1", *a.BackendID)

	byBackend, err := f.store.GetByBackendID(t.Context(), nil, "I-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byBackend.ID)
}

func TestApprove_ProcessorFailureMarksErred(t *testing.T) {
	f := setup(t)
	a := f.started(t)
	f.processor.On("ExecuteAgreement", mock.Anything, "EC-A").
		Return("", domain.NewBackendError(domain.MsgAgreementNotExecuted, nil))

	_, err := f.svc.Approve(t.Context(), "EC-A")

	assert.True(t, domain.IsBackendError(err))
	assert.Equal(t, domain.AgreementStateErred, f.stored(t, a.ID).State)
}

func TestApprove_Twice(t *testing.T) {
	f := setup(t)
	f.approved(t)

	_, err := f.svc.Approve(t.Context(), "EC-A")

	assert.True(t, domain.IsInvalidStateTransition(err))
}

func TestAbortByToken(t *testing.T) {
	f := setup(t)
	a := f.started(t)

	aborted, err := f.svc.AbortByToken(t.Context(), "EC-A")

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateCancelled, aborted.State)
	assert.False(t, aborted.CancelledByApp)
	assert.Equal(t, domain.AgreementStateCancelled, f.stored(t, a.ID).State)
}

func TestAbortByToken_AfterApproval(t *testing.T) {
	f := setup(t)
	a := f.approved(t)

	_, err := f.svc.AbortByToken(t.Context(), "EC-A")

	assert.True(t, domain.IsInvalidStateTransition(err))
	assert.Equal(t, domain.AgreementStateApproved, f.stored(t, a.ID).State)
}

func TestCancel_Success(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").Return(&ports.AgreementRecord{ID: "I-1", State: "Active"}, nil)
	f.processor.On("CancelAgreement", mock.Anything, "I-1", CancelNote).Return(nil)

	cancelled, err := f.svc.Cancel(t.Context(), a.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateCancelled, cancelled.State)
	assert.True(t, cancelled.CancelledByApp)
	assert.True(t, f.stored(t, a.ID).CancelledByApp)
}

func TestCancel_AlreadyCancelledAtProcessor(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").
		Return(&ports.AgreementRecord{ID: "I-1", State: domain.ProcessorAgreementCancelled}, nil)

	cancelled, err := f.svc.Cancel(t.Context(), a.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateCancelled, cancelled.State)
	assert.False(t, cancelled.CancelledByApp)
	f.processor.AssertNotCalled(t, "CancelAgreement", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_ProcessorFailureMarksErred(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").Return(&ports.AgreementRecord{ID: "I-1", State: "Active"}, nil)
	f.processor.On("CancelAgreement", mock.Anything, "I-1", CancelNote).Return(domain.NewBackendError("Cannot cancel", nil))

	_, err := f.svc.Cancel(t.Context(), a.ID)

	assert.True(t, domain.IsBackendError(err))
	assert.Equal(t, domain.AgreementStateErred, f.stored(t, a.ID).State)
}

func TestCancel_BeforeApprovalStaysLocal(t *testing.T) {
	f := setup(t)
	a := f.started(t)

	cancelled, err := f.svc.Cancel(t.Context(), a.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateCancelled, cancelled.State)
	assert.True(t, cancelled.CancelledByApp)
	f.processor.AssertNotCalled(t, "GetAgreement", mock.Anything, mock.Anything)
}

func TestCancel_FromCancelledRejected(t *testing.T) {
	f := setup(t)
	a := f.started(t)
	_, err := f.svc.Cancel(t.Context(), a.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(t.Context(), a.ID)

	assert.True(t, domain.IsInvalidStateTransition(err))
}

func TestGetStatus(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").Return(&ports.AgreementRecord{ID: "I-1", State: "Active"}, nil)

	record, err := f.svc.GetStatus(t.Context(), a.ID)

	require.NoError(t, err)
	assert.Equal(t, "Active", record.State)
}

func TestGetStatus_NotExecuted(t *testing.T) {
	f := setup(t)
	a := f.started(t)

	_, err := f.svc.GetStatus(t.Context(), a.ID)

	assert.True(t, domain.IsNotFoundError(err))
	assert.Equal(t, domain.MsgAgreementNotFound, domain.ErrorMessage(err))
}

func TestGetStatus_ProcessorNotFoundKeepsState(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").
		Return(nil, domain.NewDomainError(domain.ErrorCodeNotFound, domain.MsgAgreementNotFound))

	_, err := f.svc.GetStatus(t.Context(), a.ID)

	assert.True(t, domain.IsNotFoundError(err))
	assert.Equal(t, domain.AgreementStateApproved, f.stored(t, a.ID).State)
}

func TestSyncStatus_ObservesProcessorCancellation(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").
		Return(&ports.AgreementRecord{ID: "I-1", State: domain.ProcessorAgreementCancelled}, nil)

	synced, err := f.svc.SyncStatus(t.Context(), a.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateCancelled, synced.State)
	assert.False(t, synced.CancelledByApp)
	assert.Len(t, f.logger.WarnCalls, 1)
}

func TestSyncStatus_ActiveUnchanged(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	f.processor.On("GetAgreement", mock.Anything, "I-1").Return(&ports.AgreementRecord{ID: "I-1", State: "Active"}, nil)

	synced, err := f.svc.SyncStatus(t.Context(), a.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStateApproved, synced.State)
}

func TestListTransactions(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	start := fixedNow.AddDate(0, -1, 0)
	txs := []ports.AgreementTransaction{{TransactionID: "TX-1", Amount: decimal.RequireFromString("19.99")}}
	f.processor.On("SearchAgreementTransactions", mock.Anything, "I-1", start, (*time.Time)(nil)).Return(txs, nil)

	got, err := f.svc.ListTransactions(t.Context(), a.ID, start, nil)

	require.NoError(t, err)
	assert.Equal(t, txs, got)
}

func TestListTransactions_EndBeforeStart(t *testing.T) {
	f := setup(t)
	a := f.approved(t)
	end := fixedNow.AddDate(0, 0, -2)

	_, err := f.svc.ListTransactions(t.Context(), a.ID, fixedNow, &end)

	assert.True(t, domain.IsValidationError(err))
}

func TestApprove_ConcurrentCallbacksApproveOnce(t *testing.T) {
	f := setup(t)
	started := f.started(t)
	f.processor.On("ExecuteAgreement", mock.Anything, "EC-A").Return("I-1", nil)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(t.Context(), "EC-A")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, domain.IsInvalidStateTransition(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	f.processor.AssertNumberOfCalls(t, "ExecuteAgreement", 1)

	stored := f.stored(t, started.ID)
	assert.Equal(t, domain.AgreementStateApproved, stored.State)
	require.NotNil(t, stored.BackendID)
	assert.Equal(t, "I-1", *stored.BackendID)
}
