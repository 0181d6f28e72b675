package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/policycore/billing-engine/internal/config"
	"github.com/policycore/billing-engine/internal/domain"
	"github.com/policycore/billing-engine/internal/service"
	"github.com/policycore/billing-engine/tests/mocks"
)

type serviceMocks struct {
	billing  *mocks.MockBillingRepository
	invoices *mocks.MockInvoiceRepository
	ledger   *mocks.MockLedgerRepository
	activity *mocks.MockActivityLogRepository
	events   *mocks.MockPublisher
}

func newService() (*service.BillingService, *serviceMocks) {
	m := &serviceMocks{
		billing:  &mocks.MockBillingRepository{},
		invoices: &mocks.MockInvoiceRepository{},
		ledger:   &mocks.MockLedgerRepository{},
		activity: &mocks.MockActivityLogRepository{},
		events:   &mocks.MockPublisher{},
	}
	cfg := &config.Config{
		Scheduler: config.SchedulerConfig{LockTTL: 10 * time.Minute, Products: []string{"homeowners"}},
	}
	svc := service.NewBillingService(m.billing, m.invoices, m.ledger, m.activity, m.events, cfg)
	return svc, m
}

func premiumInput(amount string) domain.LineItemInput {
	return domain.LineItemInput{
		Amount:         amount,
		ItemType:       "premium",
		Account:        "main_premium",
		WritingCompany: "WC1",
	}
}

func createRequest(policyID, plan string) *domain.CreateBillingRequest {
	return &domain.CreateBillingRequest{
		PolicyID:         policyID,
		ProductCode:      "homeowners",
		AgencyID:         "AGY-1",
		EffectiveDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PaymentPlan:      plan,
		ResponsibleParty: "insured",
		LineItems:        []domain.LineItemInput{premiumInput("1800")},
	}
}

func elevenPayBilling(policyID string) *domain.BillingAggregate {
	balance := domain.NewLineItems(domain.LineItem{
		Amount:         decimal.NewFromInt(1800),
		ItemType:       domain.ItemTypePremium,
		Account:        domain.AccountMainPremium,
		WritingCompany: "WC1",
	})
	b := &domain.BillingAggregate{
		PolicyID:       policyID,
		ProductCode:    "homeowners",
		AgencyID:       "AGY-1",
		EffectiveDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		PaymentPlan:    domain.PaymentPlan{Type: domain.PlanElevenPay, ResponsibleParty: domain.PartyInsured},
		BillingStatus: domain.BillingStatus{
			LockStatus:        domain.LockNone,
			PaymentStatus:     domain.PaymentInitiated,
			DelinquencyStatus: domain.DelinquencyNotStarted,
			InvoiceStatus:     domain.InvoicePending,
		},
	}
	b.PaymentDetail.AmountDue = balance.Subtotal
	b.PaymentDetail.TotalAmountPaid = decimal.Zero
	b.PaymentDetail.BalanceDue = balance
	b.PaymentDetail.Installments = domain.BuildSchedule(balance, decimal.NewFromInt(4), b.EffectiveDate)
	b.PaymentDetail.InstallmentsLeft = domain.InstallmentCount
	b.NextInvoiceSeq = 1
	return b
}

func TestCreateBilling(t *testing.T) {
	tests := []struct {
		name           string
		request        *domain.CreateBillingRequest
		setupMocks     func(*serviceMocks)
		expectedError  bool
		errorContains  string
		validateResult func(*testing.T, *domain.BillingAggregate)
	}{
		{
			name:    "Success - eleven pay builds schedule and down payment invoice",
			request: createRequest("POL-100", "eleven_pay"),
			setupMocks: func(m *serviceMocks) {
				m.billing.On("GetByPolicyID", mock.Anything, "POL-100").Return(nil, sql.ErrNoRows)
				m.ledger.On("AppendCharge", mock.Anything, mock.MatchedBy(func(c *domain.Charge) bool {
					return c.Type == domain.ChargeTypeNewBusiness && c.LineItems.Subtotal.Equal(decimal.NewFromInt(1800))
				})).Return(nil)
				m.invoices.On("Save", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
					return inv.InstallmentNumber == 1 && inv.AmountDue.Equal(decimal.NewFromFloat(300.60))
				})).Return(nil)
				m.billing.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.events.On("Publish", mock.Anything, "billing.statement-ready", mock.Anything).Return(nil)
				m.activity.On("Record", mock.Anything, "POL-100", "AGY-1", mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, b *domain.BillingAggregate) {
				assert.Equal(t, domain.InstallmentCount, b.PaymentDetail.InstallmentsLeft)
				assert.True(t, b.PaymentDetail.Installments[0].InvoiceCreated)
				assert.True(t, b.PaymentDetail.AmountDue.Equal(decimal.NewFromInt(1800)))
				assert.Equal(t, b.EffectiveDate, b.DueDate)
			},
		},
		{
			name:    "Success - full pay gets a single invoice",
			request: createRequest("POL-101", "full_pay"),
			setupMocks: func(m *serviceMocks) {
				m.billing.On("GetByPolicyID", mock.Anything, "POL-101").Return(nil, sql.ErrNoRows)
				m.ledger.On("AppendCharge", mock.Anything, mock.Anything).Return(nil)
				m.invoices.On("Save", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
					return inv.InvoiceType == domain.InvoiceTypeNewBusiness && inv.AmountDue.Equal(decimal.NewFromInt(1800))
				})).Return(nil)
				m.billing.On("Create", mock.Anything, mock.Anything).Return(nil)
				m.events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
				m.activity.On("Record", mock.Anything, "POL-101", "AGY-1", mock.Anything, mock.Anything).Return(nil)
			},
			validateResult: func(t *testing.T, b *domain.BillingAggregate) {
				assert.Equal(t, 0, b.PaymentDetail.InstallmentsLeft)
				assert.True(t, b.PaymentDetail.AmountDue.Equal(decimal.NewFromInt(1800)))
			},
		},
		{
			name:    "Failure - billing already exists",
			request: createRequest("POL-102", "eleven_pay"),
			setupMocks: func(m *serviceMocks) {
				m.billing.On("GetByPolicyID", mock.Anything, "POL-102").
					Return(&domain.BillingAggregate{PolicyID: "POL-102"}, nil)
			},
			expectedError: true,
			errorContains: "already exists",
		},
		{
			name: "Failure - unknown account rejected before any mutation",
			request: &domain.CreateBillingRequest{
				PolicyID:         "POL-103",
				ProductCode:      "homeowners",
				AgencyID:         "AGY-1",
				EffectiveDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				ExpirationDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				PaymentPlan:      "eleven_pay",
				ResponsibleParty: "insured",
				LineItems: []domain.LineItemInput{{
					Amount: "100", ItemType: "premium", Account: "mystery", WritingCompany: "WC1",
				}},
			},
			setupMocks: func(m *serviceMocks) {
				m.billing.On("GetByPolicyID", mock.Anything, "POL-103").Return(nil, sql.ErrNoRows)
			},
			expectedError: true,
			errorContains: "validation",
		},
		{
			name:    "Failure - database error on lookup",
			request: createRequest("POL-104", "eleven_pay"),
			setupMocks: func(m *serviceMocks) {
				m.billing.On("GetByPolicyID", mock.Anything, "POL-104").
					Return(nil, errors.New("connection refused"))
			},
			expectedError: true,
			errorContains: "database",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService()
			tt.setupMocks(m)

			b, err := svc.CreateBilling(context.Background(), tt.request)

			if tt.expectedError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Nil(t, b)
			} else {
				assert.NoError(t, err)
				tt.validateResult(t, b)
			}
			m.billing.AssertExpectations(t)
			m.invoices.AssertExpectations(t)
			m.ledger.AssertExpectations(t)
		})
	}
}

func TestProcessPayment(t *testing.T) {
	t.Run("Success - settles the open invoice and marks the slot paid", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-200")
		slot1 := b.PaymentDetail.Installments[0]
		open := domain.NewInvoice("POL-200", "POL-200-0001", domain.InvoiceTypeInstallment, slot1.DueDate, slot1.LineItems)
		open.InstallmentNumber = 1

		m.billing.On("GetByPolicyID", mock.Anything, "POL-200").Return(b, nil)
		m.invoices.On("ListOpenByPolicy", mock.Anything, "POL-200").Return([]*domain.Invoice{open}, nil)
		m.ledger.On("AppendPayment", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Amount.Equal(decimal.NewFromFloat(300.60)) && p.Method == domain.PaymentMethodACH
		})).Return(nil)
		m.invoices.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
		m.ledger.On("TermPremiumTotal", mock.Anything, "POL-200").Return(decimal.NewFromInt(1800), nil)
		m.ledger.On("TermPaymentTotal", mock.Anything, "POL-200").Return(decimal.NewFromFloat(300.60), nil)
		m.events.On("Publish", mock.Anything, "billing.payment-received", mock.Anything).Return(nil)
		m.activity.On("Record", mock.Anything, "POL-200", "AGY-1", mock.Anything, mock.Anything).Return(nil)
		m.billing.On("Update", mock.Anything, b).Return(nil)

		payment, err := svc.ProcessPayment(context.Background(), "POL-200", &domain.PaymentRequest{
			Amount: "300.60",
			Method: "ach",
		})

		assert.NoError(t, err)
		assert.NotNil(t, payment)
		assert.Equal(t, domain.InvoiceStatusPaid, open.PaymentStatus)
		assert.True(t, b.PaymentDetail.Installments[0].Paid)
		assert.Equal(t, domain.InstallmentCount-1, b.PaymentDetail.InstallmentsLeft)
		assert.True(t, b.PaymentDetail.TotalAmountPaid.Equal(decimal.NewFromFloat(300.60)))
		m.billing.AssertExpectations(t)
		m.ledger.AssertExpectations(t)
	})

	t.Run("Success - overpayment still persists and reports out of balance", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-201")
		slot1 := b.PaymentDetail.Installments[0]
		open := domain.NewInvoice("POL-201", "POL-201-0001", domain.InvoiceTypeInstallment, slot1.DueDate, slot1.LineItems)
		open.InstallmentNumber = 1

		m.billing.On("GetByPolicyID", mock.Anything, "POL-201").Return(b, nil)
		m.invoices.On("ListOpenByPolicy", mock.Anything, "POL-201").Return([]*domain.Invoice{open}, nil)
		m.ledger.On("AppendPayment", mock.Anything, mock.Anything).Return(nil)
		m.invoices.On("SaveAll", mock.Anything, mock.Anything).Return(nil)
		m.ledger.On("TermPremiumTotal", mock.Anything, "POL-201").Return(decimal.NewFromInt(1800), nil)
		m.ledger.On("TermPaymentTotal", mock.Anything, "POL-201").Return(decimal.NewFromInt(500), nil)
		m.events.On("Publish", mock.Anything, "billing.payment-out-of-balance", mock.Anything).Return(nil)
		m.events.On("Publish", mock.Anything, "billing.payment-received", mock.Anything).Return(nil)
		m.activity.On("Record", mock.Anything, "POL-201", "AGY-1", mock.Anything, mock.Anything).Return(nil)
		m.billing.On("Update", mock.Anything, b).Return(nil)

		payment, err := svc.ProcessPayment(context.Background(), "POL-201", &domain.PaymentRequest{
			Amount: "500",
			Method: "check",
		})

		assert.NoError(t, err)
		assert.NotNil(t, payment)
		m.events.AssertCalled(t, "Publish", mock.Anything, "billing.payment-out-of-balance", mock.Anything)
		m.billing.AssertExpectations(t)
	})

	t.Run("Failure - invalid amount", func(t *testing.T) {
		svc, m := newService()
		m.billing.On("GetByPolicyID", mock.Anything, "POL-202").Return(elevenPayBilling("POL-202"), nil)

		_, err := svc.ProcessPayment(context.Background(), "POL-202", &domain.PaymentRequest{
			Amount: "-5",
			Method: "ach",
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid amount")
	})

	t.Run("Failure - policy not found", func(t *testing.T) {
		svc, m := newService()
		m.billing.On("GetByPolicyID", mock.Anything, "POL-203").Return(nil, sql.ErrNoRows)

		_, err := svc.ProcessPayment(context.Background(), "POL-203", &domain.PaymentRequest{
			Amount: "100",
			Method: "ach",
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestReturnPayment(t *testing.T) {
	appliedPayment := func(policyID, invoiceNumber string, id uuid.UUID) *domain.Payment {
		return &domain.Payment{
			ID:       id,
			PolicyID: policyID,
			Amount:   decimal.NewFromFloat(300.60),
			Method:   domain.PaymentMethodACH,
			LineItems: []domain.PaymentLineItem{{
				InvoiceNumber: invoiceNumber,
				LineItem: domain.LineItem{
					Amount:         decimal.NewFromFloat(300.60),
					ItemType:       domain.ItemTypePremium,
					Account:        domain.AccountMainPremium,
					WritingCompany: "WC1",
				},
			}},
		}
	}

	t.Run("Success - NSF reverts the slot and realigns every pending invoice", func(t *testing.T) {
		svc, m := newService()
		paymentID := uuid.New()
		b := elevenPayBilling("POL-900")

		// Down payment collected, slot 2 already invoiced ahead of its
		// due date by the statement job.
		now := time.Now().UTC()
		b.PaymentDetail.Installments[0].Paid = true
		b.PaymentDetail.Installments[0].InvoiceCreated = true
		b.PaymentDetail.Installments[0].ProcessedAt = &now
		b.PaymentDetail.Installments[1].InvoiceCreated = true
		b.PaymentDetail.InstallmentsLeft = domain.InstallmentCount - 1
		b.PaymentDetail.TotalAmountPaid = decimal.NewFromFloat(300.60)
		b.PaymentDetail.BalanceDue.Subtract(domain.LineItem{
			Amount:   decimal.NewFromFloat(300.60),
			ItemType: domain.ItemTypePremium,
			Account:  domain.AccountMainPremium,
		})

		paidInv := domain.NewInvoice("POL-900", "POL-900-0001", domain.InvoiceTypeInstallment,
			b.EffectiveDate, b.PaymentDetail.Installments[0].LineItems)
		paidInv.InstallmentNumber = 1
		paidInv.ApplyAmount(decimal.NewFromFloat(300.60))
		paidInv.MarkPaidIfSettled()

		pending := domain.NewInvoice("POL-900", "POL-900-0002", domain.InvoiceTypeInstallment,
			b.PaymentDetail.Installments[1].DueDate, b.PaymentDetail.Installments[1].LineItems)
		pending.InstallmentNumber = 2

		m.billing.On("GetByPolicyID", mock.Anything, "POL-900").Return(b, nil)
		m.ledger.On("GetPayment", mock.Anything, "POL-900", paymentID).
			Return(appliedPayment("POL-900", "POL-900-0001", paymentID), nil)
		m.invoices.On("GetByNumber", mock.Anything, "POL-900", "POL-900-0001").Return(paidInv, nil)
		m.ledger.On("AppendCharge", mock.Anything, mock.MatchedBy(func(c *domain.Charge) bool {
			return c.Type == domain.ChargeTypeNSFFee && c.LineItems.Subtotal.Equal(domain.NSFFeeAmount)
		})).Return(nil)
		m.ledger.On("AppendPayment", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Method == domain.PaymentMethodNSFReverse && p.Amount.Equal(decimal.NewFromFloat(-300.60))
		})).Return(nil)
		m.ledger.On("MarkPaymentReversed", mock.Anything, "POL-900", paymentID).Return(nil)
		m.invoices.On("ListOpenByPolicy", mock.Anything, "POL-900").Return([]*domain.Invoice{pending}, nil)
		m.invoices.On("SaveAll", mock.Anything, mock.MatchedBy(func(invs []*domain.Invoice) bool {
			for _, inv := range invs {
				if inv.InvoiceNumber == "POL-900-0002" {
					return true
				}
			}
			return false
		})).Return(nil)
		m.ledger.On("TermPremiumTotal", mock.Anything, "POL-900").Return(decimal.NewFromInt(1800), nil)
		m.ledger.On("TermPaymentTotal", mock.Anything, "POL-900").Return(decimal.Zero, nil)
		m.billing.On("Update", mock.Anything, b).Return(nil)
		m.events.On("Publish", mock.Anything, "billing.payment-failed", mock.Anything).Return(nil)
		m.activity.On("Record", mock.Anything, "POL-900", "AGY-1", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.ReturnPayment(context.Background(), "POL-900", paymentID)

		assert.NoError(t, err)
		assert.False(t, got.PaymentDetail.Installments[0].Paid)
		assert.Equal(t, domain.InstallmentCount, got.PaymentDetail.InstallmentsLeft)
		// 1800 restored plus the 25 NSF fee, spread over eleven slots.
		assert.True(t, got.PaymentDetail.AmountDue.Equal(decimal.NewFromInt(1825)))
		assert.True(t, got.PaymentDetail.TotalAmountPaid.IsZero())
		assert.True(t, got.PaymentDetail.Installments[1].Subtotal.Equal(decimal.NewFromFloat(165.91)),
			"got %s", got.PaymentDetail.Installments[1].Subtotal)

		// The slot-2 invoice the payment never touched tracks its
		// slot's recalculated amount.
		assert.True(t, pending.AmountDue.Equal(decimal.NewFromFloat(165.91)), "got %s", pending.AmountDue)
		assert.True(t, pending.AmountDue.Sub(pending.AmountPaid).Equal(got.PaymentDetail.Installments[1].Subtotal))

		// The reverted down-payment invoice bills its slot's new amount.
		assert.Equal(t, domain.InvoiceStatusPending, paidInv.PaymentStatus)
		assert.True(t, paidInv.AmountDue.Sub(paidInv.AmountPaid).Equal(decimal.NewFromFloat(165.91)))

		assert.Equal(t, domain.PaymentFailure, got.BillingStatus.PaymentStatus)
		m.ledger.AssertExpectations(t)
		m.invoices.AssertExpectations(t)
	})

	t.Run("Failure - payment already reversed", func(t *testing.T) {
		svc, m := newService()
		paymentID := uuid.New()
		payment := appliedPayment("POL-901", "POL-901-0001", paymentID)
		payment.Reversed = true

		m.billing.On("GetByPolicyID", mock.Anything, "POL-901").Return(elevenPayBilling("POL-901"), nil)
		m.ledger.On("GetPayment", mock.Anything, "POL-901", paymentID).Return(payment, nil)

		_, err := svc.ReturnPayment(context.Background(), "POL-901", paymentID)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already reversed")
	})

	t.Run("Failure - applied invoice record missing", func(t *testing.T) {
		svc, m := newService()
		paymentID := uuid.New()

		m.billing.On("GetByPolicyID", mock.Anything, "POL-902").Return(elevenPayBilling("POL-902"), nil)
		m.ledger.On("GetPayment", mock.Anything, "POL-902", paymentID).
			Return(appliedPayment("POL-902", "POL-902-0001", paymentID), nil)
		m.invoices.On("GetByNumber", mock.Anything, "POL-902", "POL-902-0001").Return(nil, sql.ErrNoRows)

		_, err := svc.ReturnPayment(context.Background(), "POL-902", paymentID)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Invoice POL-902-0001 not found")
	})
}

func TestGetSchedule(t *testing.T) {
	t.Run("Success - eleven pay returns the slots", func(t *testing.T) {
		svc, m := newService()
		m.billing.On("GetByPolicyID", mock.Anything, "POL-300").Return(elevenPayBilling("POL-300"), nil)

		schedule, err := svc.GetSchedule(context.Background(), "POL-300")

		assert.NoError(t, err)
		assert.Len(t, schedule.Schedule, domain.InstallmentCount)
		assert.Equal(t, domain.InstallmentCount, schedule.InstallmentsLeft)
	})

	t.Run("Failure - full pay has no schedule", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-301")
		b.PaymentPlan.Type = domain.PlanFullPay
		m.billing.On("GetByPolicyID", mock.Anything, "POL-301").Return(b, nil)

		_, err := svc.GetSchedule(context.Background(), "POL-301")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not supported")
	})
}

func TestCancelPolicy(t *testing.T) {
	cancelDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Success - closes open invoices and completes delinquency", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-400")
		slot2 := b.PaymentDetail.Installments[1]
		open := domain.NewInvoice("POL-400", "POL-400-0002", domain.InvoiceTypeInstallment, slot2.DueDate, slot2.LineItems)
		open.InstallmentNumber = 2

		m.billing.On("GetByPolicyID", mock.Anything, "POL-400").Return(b, nil)
		m.invoices.On("ListOpenByPolicy", mock.Anything, "POL-400").Return([]*domain.Invoice{open}, nil)
		m.invoices.On("SaveAll", mock.Anything, mock.MatchedBy(func(invs []*domain.Invoice) bool {
			return len(invs) == 2 // the closed invoice plus its offset
		})).Return(nil)
		m.billing.On("Update", mock.Anything, b).Return(nil)
		m.events.On("Publish", mock.Anything, "billing.delinquency-status-changed", mock.Anything).Return(nil)
		m.activity.On("Record", mock.Anything, "POL-400", "AGY-1", mock.Anything, mock.Anything).Return(nil)

		got, err := svc.CancelPolicy(context.Background(), "POL-400", cancelDate)

		assert.NoError(t, err)
		assert.NotNil(t, got.CancellationDate)
		assert.Equal(t, cancelDate, *got.CancellationDate)
		assert.Equal(t, domain.DelinquencyCompleted, got.BillingStatus.DelinquencyStatus)
		assert.Equal(t, domain.InvoiceStatusClosed, open.PaymentStatus)
		assert.True(t, open.AmountDue.Equal(open.AmountPaid))
		m.invoices.AssertExpectations(t)
	})

	t.Run("Failure - already cancelled", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-401")
		b.CancellationDate = &cancelDate
		m.billing.On("GetByPolicyID", mock.Anything, "POL-401").Return(b, nil)

		_, err := svc.CancelPolicy(context.Background(), "POL-401", cancelDate)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already cancelled")
	})
}

func TestRefund(t *testing.T) {
	t.Run("Success - refunds available credit", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-500")
		b.PaymentDetail.TotalAmountPaid = decimal.NewFromInt(2000)

		m.billing.On("GetByPolicyID", mock.Anything, "POL-500").Return(b, nil)
		m.ledger.On("AppendPayment", mock.Anything, mock.MatchedBy(func(p *domain.Payment) bool {
			return p.Method == domain.PaymentMethodRefund && p.Amount.Equal(decimal.NewFromInt(-200))
		})).Return(nil)
		m.ledger.On("TermPremiumTotal", mock.Anything, "POL-500").Return(decimal.NewFromInt(1800), nil)
		m.ledger.On("TermPaymentTotal", mock.Anything, "POL-500").Return(decimal.NewFromInt(1800), nil)
		m.invoices.On("ListOpenByPolicy", mock.Anything, "POL-500").Return([]*domain.Invoice{}, nil)
		m.billing.On("Update", mock.Anything, b).Return(nil)
		m.events.On("Publish", mock.Anything, "billing.refund-initiated", mock.Anything).Return(nil)
		m.activity.On("Record", mock.Anything, "POL-500", "AGY-1", mock.Anything, mock.Anything).Return(nil)

		refund, err := svc.Refund(context.Background(), "POL-500", &domain.RefundRequest{Amount: "200"})

		assert.NoError(t, err)
		assert.True(t, refund.Amount.Equal(decimal.NewFromInt(-200)))
		assert.True(t, b.PaymentDetail.TotalAmountPaid.Equal(decimal.NewFromInt(1800)))
		m.ledger.AssertExpectations(t)
	})

	t.Run("Failure - refund exceeds credit", func(t *testing.T) {
		svc, m := newService()
		b := elevenPayBilling("POL-501")
		b.PaymentDetail.TotalAmountPaid = decimal.NewFromInt(1900) // credit of 100

		m.billing.On("GetByPolicyID", mock.Anything, "POL-501").Return(b, nil)

		_, err := svc.Refund(context.Background(), "POL-501", &domain.RefundRequest{Amount: "200"})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid amount")
	})
}
