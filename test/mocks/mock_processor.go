package mocks

import (
	"context"
	"time"

	"github.com/kevin07696/paypal-billing/internal/domain"
	"github.com/kevin07696/paypal-billing/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockPaymentProcessor is a testify mock of ports.PaymentProcessor
type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*ports.CreatedPayment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CreatedPayment), args.Error(1)
}

func (m *MockPaymentProcessor) ExecutePayment(ctx context.Context, backendID, payerID string) error {
	args := m.Called(ctx, backendID, payerID)
	return args.Error(0)
}

func (m *MockPaymentProcessor) CreatePlan(ctx context.Context, req ports.CreatePlanRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProcessor) CreateAgreement(ctx context.Context, planID, name string) (*ports.CreatedAgreement, error) {
	args := m.Called(ctx, planID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CreatedAgreement), args.Error(1)
}

func (m *MockPaymentProcessor) ExecuteAgreement(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProcessor) GetAgreement(ctx context.Context, agreementID string) (*ports.AgreementRecord, error) {
	args := m.Called(ctx, agreementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.AgreementRecord), args.Error(1)
}

func (m *MockPaymentProcessor) CancelAgreement(ctx context.Context, agreementID, note string) error {
	args := m.Called(ctx, agreementID, note)
	return args.Error(0)
}

func (m *MockPaymentProcessor) SearchAgreementTransactions(ctx context.Context, agreementID string, start time.Time, end *time.Time) ([]ports.AgreementTransaction, error) {
	args := m.Called(ctx, agreementID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.AgreementTransaction), args.Error(1)
}

func (m *MockPaymentProcessor) CreateInvoice(ctx context.Context, invoice *domain.Invoice) (string, error) {
	args := m.Called(ctx, invoice)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProcessor) GetInvoice(ctx context.Context, backendID string) (*ports.InvoiceRecord, error) {
	args := m.Called(ctx, backendID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.InvoiceRecord), args.Error(1)
}
