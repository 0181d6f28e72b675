package service

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/config"
	"github.com/policycore/billing-engine/internal/domain"
	"github.com/policycore/billing-engine/internal/events"
	customError "github.com/policycore/billing-engine/pkg/errors"
	"github.com/policycore/billing-engine/pkg/utils"
)

// ChargeStatusApproved is the provider's success code; anything else
// is a typed failure.
const ChargeStatusApproved = "approved"

// ChargeResult is what the payment provider reports back for a stored
// payment method charge.
type ChargeResult struct {
	Status             string
	ConfirmationNumber string
	AmountPaid         decimal.Decimal
	Fee                decimal.Decimal
}

// PaymentProvider moves money externally. The core treats it as a
// black box returning success or a typed failure.
type PaymentProvider interface {
	ChargeStoredMethod(ctx context.Context, policyID string, amount decimal.Decimal) (*ChargeResult, error)
}

// SweepService runs the scheduled batch jobs. Each job iterates a
// date index per product and runs lock, mutate, release per policy.
// A failed lock acquisition skips the policy for this run; a failed
// mutation releases the lock in Error state so the policy is
// retryable after the TTL.
type SweepService struct {
	billing  *BillingService
	provider PaymentProvider
	config   *config.Config
}

func NewSweepService(billing *BillingService, provider PaymentProvider, config *config.Config) *SweepService {
	return &SweepService{
		billing:  billing,
		provider: provider,
		config:   config,
	}
}

// runLocked wraps one policy mutation in the lock lease. Contention is
// a normal skip, never an error.
func (s *SweepService) runLocked(ctx context.Context, policyID string, fn func(b *domain.BillingAggregate) error) {
	now := time.Now().UTC()
	b, acquired, err := s.billing.BillingRepo.AcquireLock(ctx, policyID, now, s.config.Scheduler.LockTTL)
	if err != nil {
		log.Printf("sweep: lock acquire failed for policy %s: %v", policyID, err)
		return
	}
	if !acquired {
		return
	}

	final := domain.LockNone
	if err := fn(b); err != nil {
		log.Printf("sweep: policy %s failed: %v", policyID, err)
		final = domain.LockError
	}
	if err := s.billing.BillingRepo.ReleaseLock(ctx, policyID, final, time.Now().UTC()); err != nil {
		log.Printf("sweep: lock release failed for policy %s: %v", policyID, err)
	}
}

// DelinquencySweep walks the cancel-date index: first pass starts the
// delinquency workflow for a policy, the next pass past the cancel
// date completes it by cancelling.
func (s *SweepService) DelinquencySweep(ctx context.Context, asOf time.Time) {
	for _, product := range s.config.Scheduler.Products {
		ids, err := s.billing.BillingRepo.ListByCancelDate(ctx, product, asOf)
		if err != nil {
			log.Printf("delinquency sweep: index query failed for product %s: %v", product, err)
			continue
		}
		for _, policyID := range ids {
			s.runLocked(ctx, policyID, func(b *domain.BillingAggregate) error {
				return s.advanceDelinquency(ctx, b, asOf)
			})
		}
	}
}

func (s *SweepService) advanceDelinquency(ctx context.Context, b *domain.BillingAggregate, asOf time.Time) error {
	if b.CancellationDate != nil {
		return nil
	}

	switch b.BillingStatus.DelinquencyStatus {
	// A record written before the status field existed rehydrates with
	// the zero value; treat it as not started.
	case domain.DelinquencyNotStarted, "":
		b.BillingStatus.DelinquencyStatus = domain.DelinquencyStarted
		if err := s.billing.BillingRepo.Update(ctx, b); err != nil {
			return customError.WrapDatabaseError(err)
		}
		s.billing.publish(ctx, events.DetailDelinquencyChanged, map[string]any{
			"policy_id": b.PolicyID,
			"status":    string(domain.DelinquencyStarted),
		})
		s.billing.logActivity(ctx, b, "Delinquency started, cancel date {date}", map[string]any{
			"date": b.CancelDate.Format(time.DateOnly),
		})
	case domain.DelinquencyStarted:
		if err := s.billing.closeOpenInvoices(ctx, b); err != nil {
			return err
		}
		cancellation := asOf
		b.CancellationDate = &cancellation
		b.BillingStatus.DelinquencyStatus = domain.DelinquencyCompleted
		if err := s.billing.BillingRepo.Update(ctx, b); err != nil {
			return customError.WrapDatabaseError(err)
		}
		s.billing.publish(ctx, events.DetailDelinquencyChanged, map[string]any{
			"policy_id":         b.PolicyID,
			"status":            string(domain.DelinquencyCompleted),
			"cancellation_date": cancellation,
		})
		s.billing.logActivity(ctx, b, "Policy cancelled for non-payment", nil)
	}
	return nil
}

// InvoiceSweep walks the due-date index and generates the next
// installment invoice for each eleven-pay policy. The slot's
// InvoiceCreated flag makes a crashed run safe to repeat.
func (s *SweepService) InvoiceSweep(ctx context.Context, asOf time.Time) {
	horizon := asOf.AddDate(0, 0, s.config.Business.CollectionLeadDays)
	for _, product := range s.config.Scheduler.Products {
		ids, err := s.billing.BillingRepo.ListByDueDate(ctx, product, horizon)
		if err != nil {
			log.Printf("invoice sweep: index query failed for product %s: %v", product, err)
			continue
		}
		for _, policyID := range ids {
			s.runLocked(ctx, policyID, func(b *domain.BillingAggregate) error {
				return s.generateNextInvoice(ctx, b, horizon)
			})
		}
	}
}

func (s *SweepService) generateNextInvoice(ctx context.Context, b *domain.BillingAggregate, horizon time.Time) error {
	if b.PaymentPlan.Type != domain.PlanElevenPay || b.CancellationDate != nil {
		return nil
	}

	slotIndex := -1
	for i := range b.PaymentDetail.Installments {
		slot := &b.PaymentDetail.Installments[i]
		if slot.Paid || slot.InvoiceCreated {
			continue
		}
		if !utils.IsDateOverdue(slot.DueDate, horizon) {
			break
		}
		slotIndex = i
		break
	}
	if slotIndex < 0 {
		return nil
	}

	slot := b.PaymentDetail.Installments[slotIndex]
	invoice := s.billing.invoiceForInstallment(b, &slot)

	// The flat fee becomes money owed only once it is billed.
	if slot.InstallmentFee.IsPositive() {
		feeItem := domain.LineItem{
			Amount:   slot.InstallmentFee,
			ItemType: domain.ItemTypeFee,
			Account:  domain.AccountInstallmentFee,
		}
		feeItems := domain.NewLineItems(feeItem)
		charge := domain.NewCharge(b.PolicyID, domain.ChargeTypeMidtermChange, feeItems)
		if err := s.billing.LedgerRepo.AppendCharge(ctx, charge); err != nil {
			return customError.WrapDatabaseError(err)
		}
		b.PaymentDetail.AmountDue = money(b.PaymentDetail.AmountDue.Add(slot.InstallmentFee))
		b.PaymentDetail.BalanceDue.Add(feeItem)
	}

	slot.InvoiceCreated = true
	b.PaymentDetail.Installments[slotIndex] = slot
	b.BillingStatus.InvoiceStatus = domain.InvoiceSent
	b.IsStatementSent = true

	// Invoice record first, aggregate second: if we crash in between,
	// the InvoiceCreated flag is unset and the next run regenerates
	// rather than double-bills.
	if err := s.billing.InvoiceRepo.Save(ctx, invoice); err != nil {
		b.BillingStatus.InvoiceStatus = domain.InvoiceError
		return customError.WrapDatabaseError(err)
	}
	if err := s.billing.refreshDates(ctx, b, nil); err != nil {
		return err
	}
	if err := s.billing.BillingRepo.Update(ctx, b); err != nil {
		return customError.WrapDatabaseError(err)
	}

	s.billing.publish(ctx, events.DetailStatementReady, invoice)
	s.billing.logActivity(ctx, b, "Installment {number} invoiced as {invoice}", map[string]any{
		"number":  slot.Number,
		"invoice": invoice.InvoiceNumber,
	})
	return nil
}

// CollectionSweep charges the stored payment method for invoices that
// have come due. The invoice's PaymentAttempted flag keeps a policy
// from being charged twice for the same invoice.
func (s *SweepService) CollectionSweep(ctx context.Context, asOf time.Time) {
	for _, product := range s.config.Scheduler.Products {
		ids, err := s.billing.BillingRepo.ListByDueDate(ctx, product, asOf)
		if err != nil {
			log.Printf("collection sweep: index query failed for product %s: %v", product, err)
			continue
		}
		for _, policyID := range ids {
			s.runLocked(ctx, policyID, func(b *domain.BillingAggregate) error {
				return s.collectDueInvoice(ctx, b, asOf)
			})
		}
	}
}

func (s *SweepService) collectDueInvoice(ctx context.Context, b *domain.BillingAggregate, asOf time.Time) error {
	// Mortgagee-billed policies are paid by statement, never charged.
	if b.PaymentPlan.ResponsibleParty != domain.PartyInsured || b.CancellationDate != nil {
		return nil
	}

	openInvoices, err := s.billing.InvoiceRepo.ListOpenByPolicy(ctx, b.PolicyID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	var due *domain.Invoice
	for _, inv := range openInvoices {
		if inv.PaymentAttempted || !utils.IsDateOverdue(inv.DueDate, asOf) {
			continue
		}
		if due == nil || inv.DueDate.Before(due.DueDate) {
			due = inv
		}
	}
	if due == nil {
		return nil
	}

	amount := money(due.AmountDue.Sub(due.AmountPaid))
	if !amount.IsPositive() {
		return nil
	}

	b.BillingStatus.PaymentStatus = domain.PaymentInProcess
	due.PaymentAttempted = true
	if err = s.billing.InvoiceRepo.Save(ctx, due); err != nil {
		return customError.WrapDatabaseError(err)
	}

	result, err := s.provider.ChargeStoredMethod(ctx, b.PolicyID, amount)
	if err != nil || result.Status != ChargeStatusApproved {
		// No money moved: leave paymentStatus as-is and announce the
		// failure for the notification pipeline.
		status := "error"
		if result != nil {
			status = result.Status
		}
		s.billing.publish(ctx, events.DetailPaymentFailed, map[string]any{
			"policy_id": b.PolicyID,
			"invoice":   due.InvoiceNumber,
			"status":    status,
		})
		s.billing.logActivity(ctx, b, "Collection attempt for invoice {invoice} failed: {status}", map[string]any{
			"invoice": due.InvoiceNumber,
			"status":  status,
		})
		return s.billing.BillingRepo.Update(ctx, b)
	}

	if _, err = s.billing.applyPayment(ctx, b, result.AmountPaid, domain.PaymentMethodACH, result.ConfirmationNumber); err != nil {
		return err
	}
	if err = s.billing.BillingRepo.Update(ctx, b); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}
