package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kevin07696/paypal-billing/internal/adapters/locking"
	"github.com/kevin07696/paypal-billing/internal/adapters/memory"
	"github.com/kevin07696/paypal-billing/internal/adapters/storage"
	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/kevin07696/paypal-billing/pkg/resilience"
	"github.com/kevin07696/paypal-billing/test/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	err   error
	calls int
}

func (r *stubRenderer) Render(_ context.Context, inv *domain.Invoice, _ ports.InvoiceIssuer) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, domain.NewRenderError(inv.ID, r.err)
	}
	return []byte("%PDF-1.3 " + inv.ID), nil
}

type fixture struct {
	svc       *Service
	invoices  *memory.InvoiceStore
	documents *storage.LocalStore
	renderer  *stubRenderer
	processor *mocks.MockPaymentProcessor
	logger    *mocks.MockLogger
}

func setup(t *testing.T) *fixture {
	t.Helper()
	documents, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		invoices:  memory.New().Invoices(),
		documents: documents,
		renderer:  &stubRenderer{},
		processor: new(mocks.MockPaymentProcessor),
		logger:    mocks.NewMockLogger(),
	}
	f.svc = NewService(Dependencies{
		Invoices:  f.invoices,
		Processor: f.processor,
		Renderer:  f.renderer,
		Documents: f.documents,
		Locker:    locking.NewLocalLocker(),
		Timeouts:  resilience.TestTimeoutConfig(),
		Logger:    f.logger,
	}, ports.InvoiceIssuer{Name: "Billing Ltd", Currency: "USD"})
	t.Cleanup(func() { f.processor.AssertExpectations(t) })
	return f
}

var (
	march     = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	marchEnd  = time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	agreement = &domain.Agreement{ID: "agr-1", CustomerID: "cust-1", Name: "Gold"}
)

func transaction(id string, at time.Time) ports.AgreementTransaction {
	return ports.AgreementTransaction{
		TransactionID: id,
		Timestamp:     at,
		Amount:        decimal.RequireFromString("19.99"),
	}
}

// invoiceWithItem books one transaction and returns the resulting invoice
func (f *fixture) invoiceWithItem(t *testing.T) *domain.Invoice {
	t.Helper()
	added, err := f.svc.RecordTransaction(t.Context(), agreement, transaction("TX-1", march.AddDate(0, 0, 4)))
	require.NoError(t, err)
	require.True(t, added)

	inv, err := f.invoices.EnsureForPeriod(t.Context(), nil, "cust-1", march, marchEnd)
	require.NoError(t, err)
	return inv
}

func TestRecordTransaction_BooksOnMonthInvoice(t *testing.T) {
	f := setup(t)

	inv := f.invoiceWithItem(t)

	assert.Equal(t, march, inv.StartDate)
	assert.Equal(t, marchEnd, inv.EndDate)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "Gold subscription", inv.Items[0].Description)
	assert.Equal(t, "TX-1", inv.Items[0].BackendID)
	assert.True(t, inv.TotalAmount().Equal(decimal.RequireFromString("19.99")))
}

func TestRecordTransaction_Idempotent(t *testing.T) {
	f := setup(t)
	f.invoiceWithItem(t)

	added, err := f.svc.RecordTransaction(t.Context(), agreement, transaction("TX-1", march.AddDate(0, 0, 4)))

	require.NoError(t, err)
	assert.False(t, added)
	inv, _ := f.invoices.EnsureForPeriod(t.Context(), nil, "cust-1", march, marchEnd)
	assert.Len(t, inv.Items, 1)
}

func TestRecordTransaction_LateChargeCarriedToNextOpenInvoice(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	require.NoError(t, f.invoices.MarkDispatched(t.Context(), nil, inv.ID, "INV2-1"))
	late := transaction("TX-LATE", marchEnd.Add(20*time.Hour))

	added, err := f.svc.RecordTransaction(t.Context(), agreement, late)
	require.NoError(t, err)
	assert.True(t, added)

	april := march.AddDate(0, 1, 0)
	next, err := f.invoices.EnsureForPeriod(t.Context(), nil, "cust-1", april, april.AddDate(0, 1, -1))
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Equal(t, "TX-LATE", next.Items[0].BackendID)
	assert.Equal(t, "Gold subscription (charged 2025-03-31)", next.Items[0].Description)

	dispatched, err := f.invoices.GetByID(t.Context(), nil, inv.ID)
	require.NoError(t, err)
	assert.Len(t, dispatched.Items, 1, "dispatched invoice is left untouched")

	again, err := f.svc.RecordTransaction(t.Context(), agreement, late)
	require.NoError(t, err)
	assert.False(t, again)
	next, err = f.invoices.GetByID(t.Context(), nil, next.ID)
	require.NoError(t, err)
	assert.Len(t, next.Items, 1)
}

func TestRecordTransaction_SkipsSeveralDispatchedPeriods(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	require.NoError(t, f.invoices.MarkDispatched(t.Context(), nil, inv.ID, "INV2-1"))

	april := march.AddDate(0, 1, 0)
	aprilInv, err := f.invoices.EnsureForPeriod(t.Context(), nil, "cust-1", april, april.AddDate(0, 1, -1))
	require.NoError(t, err)
	require.NoError(t, f.invoices.MarkDispatched(t.Context(), nil, aprilInv.ID, "INV2-2"))

	added, err := f.svc.RecordTransaction(t.Context(), agreement, transaction("TX-LATE", march.AddDate(0, 0, 20)))
	require.NoError(t, err)
	assert.True(t, added)

	may := march.AddDate(0, 2, 0)
	mayInv, err := f.invoices.EnsureForPeriod(t.Context(), nil, "cust-1", may, may.AddDate(0, 1, -1))
	require.NoError(t, err)
	require.Len(t, mayInv.Items, 1)
	assert.Equal(t, "TX-LATE", mayInv.Items[0].BackendID)
}

func TestGenerateDocument(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)

	generated, err := f.svc.GenerateDocument(t.Context(), inv.ID)
	require.NoError(t, err)
	require.NotNil(t, generated.DocumentRef)
	first := *generated.DocumentRef

	data, name, err := f.svc.Document(t.Context(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01-invoice-"+inv.ID+".pdf", name)
	assert.Contains(t, string(data), inv.ID)

	regenerated, err := f.svc.GenerateDocument(t.Context(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *regenerated.DocumentRef)
	assert.Equal(t, 2, f.renderer.calls)
}

func TestGenerateDocument_RenderFailureLeavesNoDocument(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	_, err := f.svc.GenerateDocument(t.Context(), inv.ID)
	require.NoError(t, err)

	f.renderer.err = errors.New("logo missing")
	got, err := f.svc.GenerateDocument(t.Context(), inv.ID)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeRender))
	assert.Nil(t, got.DocumentRef)
	assert.True(t, f.logger.HasError("rendering failed"))

	stored, _ := f.invoices.GetByID(t.Context(), nil, inv.ID)
	assert.Nil(t, stored.DocumentRef)

	_, _, err = f.svc.Document(t.Context(), inv.ID)
	assert.True(t, domain.IsNotFoundError(err))
}

func TestDispatch(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	f.processor.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(i *domain.Invoice) bool {
		return i.ID == inv.ID && len(i.Items) == 1
	})).Return("INV2-1", nil).Once()

	dispatched, err := f.svc.Dispatch(t.Context(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV2-1", dispatched.BackendID)
	assert.NotNil(t, dispatched.DocumentRef)

	again, err := f.svc.Dispatch(t.Context(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV2-1", again.BackendID)
}

func TestDispatch_RenderFailureStillDispatches(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	f.renderer.err = errors.New("font missing")
	f.processor.On("CreateInvoice", mock.Anything, mock.Anything).Return("INV2-2", nil)

	dispatched, err := f.svc.Dispatch(t.Context(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, "INV2-2", dispatched.BackendID)
	assert.Nil(t, dispatched.DocumentRef)
}

func TestDispatch_ProcessorFailure(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	f.processor.On("CreateInvoice", mock.Anything, mock.Anything).
		Return("", domain.NewBackendError("invoice rejected", nil))

	_, err := f.svc.Dispatch(t.Context(), inv.ID)

	assert.True(t, domain.IsBackendError(err))
	stored, _ := f.invoices.GetByID(t.Context(), nil, inv.ID)
	assert.False(t, stored.IsDispatched())
}

func TestDispatch_EmptyInvoice(t *testing.T) {
	f := setup(t)
	inv, err := f.invoices.EnsureForPeriod(t.Context(), nil, "cust-2", march, marchEnd)
	require.NoError(t, err)

	_, err = f.svc.Dispatch(t.Context(), inv.ID)

	assert.True(t, domain.IsValidationError(err))
}

func TestList(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)

	invoices, err := f.svc.List(t.Context(), "cust-1")

	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, inv.ID, invoices[0].ID)
}

func TestPull_StoresProcessorStatus(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	require.NoError(t, f.invoices.MarkDispatched(t.Context(), nil, inv.ID, "INV2-1"))
	f.processor.On("GetInvoice", mock.Anything, "INV2-1").
		Return(&ports.InvoiceRecord{ID: "INV2-1", Status: "PAID"}, nil).Once()

	pulled, err := f.svc.Pull(t.Context(), inv.ID)

	require.NoError(t, err)
	assert.Equal(t, "PAID", pulled.BackendState)
	stored, err := f.invoices.GetByID(t.Context(), nil, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", stored.BackendState)
}

func TestPull_NotDispatched(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)

	_, err := f.svc.Pull(t.Context(), inv.ID)

	assert.True(t, domain.IsInvalidStateTransition(err))
	f.processor.AssertNotCalled(t, "GetInvoice", mock.Anything, mock.Anything)
}

func TestPull_ProcessorFailureKeepsState(t *testing.T) {
	f := setup(t)
	inv := f.invoiceWithItem(t)
	require.NoError(t, f.invoices.MarkDispatched(t.Context(), nil, inv.ID, "INV2-1"))
	require.NoError(t, f.invoices.SetBackendState(t.Context(), nil, inv.ID, "SENT"))
	f.processor.On("GetInvoice", mock.Anything, "INV2-1").
		Return(nil, domain.NewBackendError("PayPal returned HTTP 503", nil)).Once()

	_, err := f.svc.Pull(t.Context(), inv.ID)

	assert.True(t, domain.IsBackendError(err))
	stored, err := f.invoices.GetByID(t.Context(), nil, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "SENT", stored.BackendState)
}
