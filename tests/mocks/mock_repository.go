package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/policycore/billing-engine/internal/domain"
	"github.com/policycore/billing-engine/internal/service"
)

type MockBillingRepository struct {
	mock.Mock
}

func (m *MockBillingRepository) Create(ctx context.Context, billing *domain.BillingAggregate) error {
	args := m.Called(ctx, billing)
	return args.Error(0)
}

func (m *MockBillingRepository) GetByPolicyID(ctx context.Context, policyID string) (*domain.BillingAggregate, error) {
	args := m.Called(ctx, policyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BillingAggregate), args.Error(1)
}

func (m *MockBillingRepository) Update(ctx context.Context, billing *domain.BillingAggregate) error {
	args := m.Called(ctx, billing)
	return args.Error(0)
}

func (m *MockBillingRepository) AcquireLock(ctx context.Context, policyID string, now time.Time, ttl time.Duration) (*domain.BillingAggregate, bool, error) {
	args := m.Called(ctx, policyID, now, ttl)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.BillingAggregate), args.Bool(1), args.Error(2)
}

func (m *MockBillingRepository) ReleaseLock(ctx context.Context, policyID string, final domain.LockStatus, now time.Time) error {
	args := m.Called(ctx, policyID, final, now)
	return args.Error(0)
}

func (m *MockBillingRepository) ListByCancelDate(ctx context.Context, product string, through time.Time) ([]string, error) {
	args := m.Called(ctx, product, through)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBillingRepository) ListByDueDate(ctx context.Context, product string, through time.Time) ([]string, error) {
	args := m.Called(ctx, product, through)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *domain.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveAll(ctx context.Context, invoices []*domain.Invoice) error {
	args := m.Called(ctx, invoices)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByNumber(ctx context.Context, policyID, invoiceNumber string) (*domain.Invoice, error) {
	args := m.Called(ctx, policyID, invoiceNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListByPolicy(ctx context.Context, policyID string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, policyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListOpenByPolicy(ctx context.Context, policyID string) ([]*domain.Invoice, error) {
	args := m.Called(ctx, policyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) AppendCharge(ctx context.Context, charge *domain.Charge) error {
	args := m.Called(ctx, charge)
	return args.Error(0)
}

func (m *MockLedgerRepository) AppendPayment(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetPayment(ctx context.Context, policyID string, paymentID uuid.UUID) (*domain.Payment, error) {
	args := m.Called(ctx, policyID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockLedgerRepository) MarkPaymentReversed(ctx context.Context, policyID string, paymentID uuid.UUID) error {
	args := m.Called(ctx, policyID, paymentID)
	return args.Error(0)
}

func (m *MockLedgerRepository) TermPremiumTotal(ctx context.Context, policyID string) (decimal.Decimal, error) {
	args := m.Called(ctx, policyID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) TermPaymentTotal(ctx context.Context, policyID string) (decimal.Decimal, error) {
	args := m.Called(ctx, policyID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockActivityLogRepository struct {
	mock.Mock
}

func (m *MockActivityLogRepository) Record(ctx context.Context, policyID, agencyID, template string, properties map[string]any) error {
	args := m.Called(ctx, policyID, agencyID, template, properties)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, detailType string, payload any) error {
	args := m.Called(ctx, detailType, payload)
	return args.Error(0)
}

type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) ChargeStoredMethod(ctx context.Context, policyID string, amount decimal.Decimal) (*service.ChargeResult, error) {
	args := m.Called(ctx, policyID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChargeResult), args.Error(1)
}
