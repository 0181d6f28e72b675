package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/config"
	"github.com/policycore/billing-engine/internal/domain"
	"github.com/policycore/billing-engine/internal/events"
	"github.com/policycore/billing-engine/internal/repository"
	customError "github.com/policycore/billing-engine/pkg/errors"
	"github.com/policycore/billing-engine/pkg/utils"
)

type BillingService struct {
	BillingRepo  repository.BillingRepository
	InvoiceRepo  repository.InvoiceRepository
	LedgerRepo   repository.LedgerRepository
	ActivityRepo repository.ActivityLogRepository
	publisher    events.Publisher
	config       *config.Config
}

func NewBillingService(
	billingRepo repository.BillingRepository,
	invoiceRepo repository.InvoiceRepository,
	ledgerRepo repository.LedgerRepository,
	activityRepo repository.ActivityLogRepository,
	publisher events.Publisher,
	config *config.Config,
) *BillingService {
	return &BillingService{
		BillingRepo:  billingRepo,
		InvoiceRepo:  invoiceRepo,
		LedgerRepo:   ledgerRepo,
		ActivityRepo: activityRepo,
		publisher:    publisher,
		config:       config,
	}
}

// logActivity writes an audit trail entry, best-effort.
func (s *BillingService) logActivity(ctx context.Context, b *domain.BillingAggregate, template string, props map[string]any) {
	if s.ActivityRepo == nil {
		return
	}
	if err := s.ActivityRepo.Record(ctx, b.PolicyID, b.AgencyID, template, props); err != nil {
		log.Printf("activity log failed for policy %s: %v", b.PolicyID, err)
	}
}

func (s *BillingService) publish(ctx context.Context, detailType string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, detailType, payload); err != nil {
		log.Printf("event publish %s failed: %v", detailType, err)
	}
}

// refreshDates recomputes equity-based due and cancel dates from the
// term's ledger totals and the current open invoices.
func (s *BillingService) refreshDates(ctx context.Context, b *domain.BillingAggregate, openInvoices []*domain.Invoice) error {
	totalPremium, err := s.LedgerRepo.TermPremiumTotal(ctx, b.PolicyID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	totalPaid, err := s.LedgerRepo.TermPaymentTotal(ctx, b.PolicyID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}
	if openInvoices == nil {
		openInvoices, err = s.InvoiceRepo.ListOpenByPolicy(ctx, b.PolicyID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
	}
	b.UpdateDates(totalPremium, totalPaid, openInvoices)
	return nil
}

// CreateBilling sets up billing for a newly written policy: posts the
// initial balance due, builds the installment schedule or the full-pay
// invoice, and computes the first due and cancel dates.
func (s *BillingService) CreateBilling(ctx context.Context, request *domain.CreateBillingRequest) (*domain.BillingAggregate, error) {
	existing, err := s.BillingRepo.GetByPolicyID(ctx, request.PolicyID)
	if err == nil && existing != nil {
		return nil, customError.WrapBillingAlreadyExists(request.PolicyID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	items, err := domain.ParseLineItems(request.LineItems)
	if err != nil {
		return nil, customError.WrapUnknownAccount(err)
	}

	plan, err := domain.ParsePlanType(request.PaymentPlan)
	if err != nil {
		return nil, customError.WrapUnknownAccount(err)
	}
	party, err := domain.ParseResponsibleParty(request.ResponsibleParty)
	if err != nil {
		return nil, customError.WrapUnknownAccount(err)
	}

	b := &domain.BillingAggregate{
		PolicyID:       request.PolicyID,
		ProductCode:    request.ProductCode,
		AgencyID:       request.AgencyID,
		EffectiveDate:  request.EffectiveDate,
		ExpirationDate: request.ExpirationDate,
		PaymentPlan:    domain.PaymentPlan{Type: plan, ResponsibleParty: party},
		BillingStatus: domain.BillingStatus{
			LockStatus:        domain.LockNone,
			PaymentStatus:     domain.PaymentInitiated,
			DelinquencyStatus: domain.DelinquencyNotStarted,
			InvoiceStatus:     domain.InvoicePending,
		},
	}
	b.PaymentDetail.AmountDue = items.Subtotal
	b.PaymentDetail.TotalAmountPaid = decimal.Zero
	b.PaymentDetail.BalanceDue = items

	charge := domain.NewCharge(request.PolicyID, domain.ChargeTypeNewBusiness, items)
	if err = s.LedgerRepo.AppendCharge(ctx, charge); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var invoice *domain.Invoice
	switch plan {
	case domain.PlanFullPay:
		invoice = domain.NewInvoice(b.PolicyID, b.NextInvoiceNumber(), domain.InvoiceTypeNewBusiness, request.EffectiveDate, items)
	case domain.PlanElevenPay:
		totalPremium := items.TotalsByType(domain.ItemTypePremium)
		fee := domain.InstallmentFeeFor(totalPremium)
		b.PaymentDetail.Installments = domain.BuildSchedule(items, fee, request.EffectiveDate)
		b.PaymentDetail.InstallmentsLeft = domain.InstallmentCount

		invoice = s.invoiceForInstallment(b, &b.PaymentDetail.Installments[0])
		b.PaymentDetail.Installments[0].InvoiceCreated = true
	}

	if err = s.InvoiceRepo.Save(ctx, invoice); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	b.UpdateDates(items.TotalsByType(domain.ItemTypePremium), decimal.Zero, []*domain.Invoice{invoice})

	if err = s.BillingRepo.Create(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.publish(ctx, events.DetailStatementReady, invoice)
	s.logActivity(ctx, b, "Billing created with {plan} plan, first invoice {invoice}", map[string]any{
		"plan":    string(plan),
		"invoice": invoice.InvoiceNumber,
	})

	return b, nil
}

// invoiceForInstallment builds the invoice for a schedule slot: the
// slot's staged line items plus its flat fee as an installment-fee
// line.
func (s *BillingService) invoiceForInstallment(b *domain.BillingAggregate, slot *domain.Installment) *domain.Invoice {
	items := domain.NewLineItems(slot.Items...)
	if slot.InstallmentFee.IsPositive() {
		items.Add(domain.LineItem{
			Amount:   slot.InstallmentFee,
			ItemType: domain.ItemTypeFee,
			Account:  domain.AccountInstallmentFee,
		})
	}
	inv := domain.NewInvoice(b.PolicyID, b.NextInvoiceNumber(), domain.InvoiceTypeInstallment, slot.DueDate, items)
	inv.InstallmentNumber = slot.Number
	return inv
}

// PostBalanceDue records new money owed (or a reduction, with negative
// line items) and reshapes the open invoices or the installment
// schedule around the new outstanding balance.
func (s *BillingService) PostBalanceDue(ctx context.Context, policyID string, request *domain.PostChargeRequest) (*domain.BillingAggregate, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}

	items, err := domain.ParseLineItems(request.LineItems)
	if err != nil {
		return nil, customError.WrapUnknownAccount(err)
	}

	charge := domain.NewCharge(policyID, domain.ChargeType(request.ChargeType), items)
	if err = s.LedgerRepo.AppendCharge(ctx, charge); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	b.PaymentDetail.AmountDue = money(b.PaymentDetail.AmountDue.Add(items.Subtotal))
	b.PaymentDetail.BalanceDue.AddMany(items.Items)

	openInvoices, err := s.InvoiceRepo.ListOpenByPolicy(ctx, policyID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var toSave []*domain.Invoice
	switch b.PaymentPlan.Type {
	case domain.PlanFullPay:
		// The open invoice is superseded: void it and regenerate from
		// the new outstanding balance.
		for _, inv := range openInvoices {
			inv.PaymentStatus = domain.InvoiceStatusVoid
			b.PaymentDetail.VoidedInvoices = append(b.PaymentDetail.VoidedInvoices, inv.InvoiceNumber)
			toSave = append(toSave, inv)
		}
		replacement := domain.NewInvoice(policyID, b.NextInvoiceNumber(), domain.InvoiceTypeMidtermChange, b.DueDate, b.PaymentDetail.BalanceDue)
		toSave = append(toSave, replacement)
		openInvoices = []*domain.Invoice{replacement}
	case domain.PlanElevenPay:
		result := domain.RecalculateSchedule(b, invoicesBySlot(openInvoices), b.NextInvoiceNumber, time.Now().UTC())
		toSave = append(toSave, result.ForceSettled...)
		toSave = append(toSave, result.Offsets...)
		toSave = append(toSave, result.Adjusted...)
	}

	if err = s.InvoiceRepo.SaveAll(ctx, toSave); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if err = s.refreshDates(ctx, b, nil); err != nil {
		return nil, err
	}
	if err = s.BillingRepo.Update(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logActivity(ctx, b, "Balance due posted: {type} for {amount}", map[string]any{
		"type":   request.ChargeType,
		"amount": items.Subtotal.String(),
	})

	return b, nil
}

func invoicesBySlot(invoices []*domain.Invoice) map[int]*domain.Invoice {
	bySlot := make(map[int]*domain.Invoice)
	for _, inv := range invoices {
		if inv.InstallmentNumber > 0 && inv.PaymentStatus == domain.InvoiceStatusPending {
			bySlot[inv.InstallmentNumber] = inv
		}
	}
	return bySlot
}

// ProcessPayment applies a received amount across the policy's open
// invoices and records the payment posting.
func (s *BillingService) ProcessPayment(ctx context.Context, policyID string, request *domain.PaymentRequest) (*domain.Payment, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}

	amount, err := utils.DecimalFromString(request.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount(request.Amount)
	}

	payment, err := s.applyPayment(ctx, b, amount, domain.PaymentMethod(request.Method), request.ConfirmationNumber)
	if err != nil {
		return nil, err
	}

	if err = s.BillingRepo.Update(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payment, nil
}

// applyPayment distributes amount across open invoices, updates the
// aggregate's money position and persists the invoice and ledger
// records. The caller persists the aggregate. A positive leftover is
// out-of-balance: reported and flagged for manual reconciliation, but
// the partially-applied state is still kept. Money movement is never
// blocked.
func (s *BillingService) applyPayment(ctx context.Context, b *domain.BillingAggregate, amount decimal.Decimal, method domain.PaymentMethod, confirmation string) (*domain.Payment, error) {
	openInvoices, err := s.InvoiceRepo.ListOpenByPolicy(ctx, b.PolicyID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	payment := domain.NewPayment(b.PolicyID, amount, method)
	payment.ConfirmationNumber = confirmation

	leftover := domain.ApplyPaymentToInvoices(openInvoices, amount, payment)

	b.PaymentDetail.TotalAmountPaid = money(b.PaymentDetail.TotalAmountPaid.Add(amount))
	for _, item := range payment.LineItems {
		b.PaymentDetail.BalanceDue.Subtract(item.LineItem)
	}

	now := time.Now().UTC()
	for _, inv := range openInvoices {
		if inv.PaymentStatus == domain.InvoiceStatusPaid && inv.InstallmentNumber > 0 {
			slot := b.PaymentDetail.Installments[inv.InstallmentNumber-1]
			if !slot.Paid {
				slot.Paid = true
				slot.ProcessedAt = &now
				b.PaymentDetail.Installments[inv.InstallmentNumber-1] = slot
				b.PaymentDetail.InstallmentsLeft--
			}
		}
	}

	if err = s.LedgerRepo.AppendPayment(ctx, payment); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err = s.InvoiceRepo.SaveAll(ctx, openInvoices); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	b.BillingStatus.PaymentStatus = domain.PaymentCompleted

	if leftover.IsPositive() {
		s.publish(ctx, events.DetailPaymentOutOfBalance, map[string]any{
			"policy_id":  b.PolicyID,
			"payment_id": payment.ID,
			"leftover":   leftover.String(),
		})
		s.logActivity(ctx, b, "Payment {payment} left {leftover} unapplied, flagged for reconciliation", map[string]any{
			"payment":  payment.ID.String(),
			"leftover": leftover.String(),
		})
	}

	if err = s.refreshDates(ctx, b, nil); err != nil {
		return nil, err
	}

	s.publish(ctx, events.DetailPaymentReceived, payment)
	s.logActivity(ctx, b, "Payment of {amount} received via {method}", map[string]any{
		"amount": amount.String(),
		"method": string(method),
	})

	return payment, nil
}

// ReturnPayment reverses a returned (NSF) payment: backs the applied
// line items out of their invoices, posts the NSF fee, and reshapes
// the schedule around the restored balance.
func (s *BillingService) ReturnPayment(ctx context.Context, policyID string, paymentID uuid.UUID) (*domain.BillingAggregate, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}

	original, err := s.LedgerRepo.GetPayment(ctx, policyID, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPaymentNotFound(paymentID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	if original.Reversed {
		return nil, customError.WrapPaymentAlreadyReversed(paymentID.String())
	}

	// Back the exact application out, invoice by invoice.
	byInvoice := make(map[string][]domain.LineItem)
	for _, item := range original.LineItems {
		byInvoice[item.InvoiceNumber] = append(byInvoice[item.InvoiceNumber], item.LineItem)
	}

	var toSave []*domain.Invoice
	for number, items := range byInvoice {
		inv, err := s.InvoiceRepo.GetByNumber(ctx, policyID, number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, customError.WrapInvoiceNotFound(number)
			}
			return nil, customError.WrapDatabaseError(err)
		}
		wasPaid := inv.PaymentStatus == domain.InvoiceStatusPaid
		inv.RevertPayment(items)
		if wasPaid && inv.InstallmentNumber > 0 {
			slot := b.PaymentDetail.Installments[inv.InstallmentNumber-1]
			if slot.Paid {
				slot.Paid = false
				slot.ProcessedAt = nil
				b.PaymentDetail.Installments[inv.InstallmentNumber-1] = slot
				b.PaymentDetail.InstallmentsLeft++
			}
		}
		for _, item := range items {
			b.PaymentDetail.BalanceDue.Add(item)
		}
		toSave = append(toSave, inv)
	}

	b.PaymentDetail.TotalAmountPaid = money(b.PaymentDetail.TotalAmountPaid.Sub(original.Amount))

	// The NSF fee is new money owed on top of the restored balance.
	nsfFee := domain.LineItem{
		Amount:   domain.NSFFeeAmount,
		ItemType: domain.ItemTypeFee,
		Account:  domain.AccountNSFFee,
	}
	feeItems := domain.NewLineItems(nsfFee)
	feeCharge := domain.NewCharge(policyID, domain.ChargeTypeNSFFee, feeItems)
	if err = s.LedgerRepo.AppendCharge(ctx, feeCharge); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	b.PaymentDetail.AmountDue = money(b.PaymentDetail.AmountDue.Add(feeItems.Subtotal))
	b.PaymentDetail.BalanceDue.Add(nsfFee)

	reversal := domain.NewPayment(policyID, original.Amount.Neg(), domain.PaymentMethodNSFReverse)
	if err = s.LedgerRepo.AppendPayment(ctx, reversal); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	if err = s.LedgerRepo.MarkPaymentReversed(ctx, policyID, paymentID); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if b.PaymentPlan.Type == domain.PlanElevenPay {
		// Every open invoice joins the recalculation, the in-memory
		// reverted copies standing in for their stored rows. A pending
		// invoice the payment never touched still has to track its
		// slot's new amount.
		openInvoices, err := s.InvoiceRepo.ListOpenByPolicy(ctx, policyID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		reverted := make(map[string]bool, len(toSave))
		for _, inv := range toSave {
			reverted[inv.InvoiceNumber] = true
		}
		merged := append([]*domain.Invoice{}, toSave...)
		for _, inv := range openInvoices {
			if !reverted[inv.InvoiceNumber] {
				merged = append(merged, inv)
			}
		}

		result := domain.RecalculateSchedule(b, invoicesBySlot(merged), b.NextInvoiceNumber, time.Now().UTC())
		for _, inv := range result.ForceSettled {
			if !reverted[inv.InvoiceNumber] {
				toSave = append(toSave, inv)
			}
		}
		for _, inv := range result.Adjusted {
			if !reverted[inv.InvoiceNumber] {
				toSave = append(toSave, inv)
			}
		}
		toSave = append(toSave, result.Offsets...)
	}
	if err = s.InvoiceRepo.SaveAll(ctx, toSave); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	b.BillingStatus.PaymentStatus = domain.PaymentFailure

	if err = s.refreshDates(ctx, b, nil); err != nil {
		return nil, err
	}
	if err = s.BillingRepo.Update(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.publish(ctx, events.DetailPaymentFailed, map[string]any{
		"policy_id":  policyID,
		"payment_id": paymentID,
		"reason":     "nsf",
	})
	s.logActivity(ctx, b, "Payment {payment} returned NSF, fee of {fee} posted", map[string]any{
		"payment": paymentID.String(),
		"fee":     domain.NSFFeeAmount.String(),
	})

	return b, nil
}

// CancelPolicy stops billing: open invoices are closed out with
// offsets and the delinquency workflow completes. The schedule itself
// is left in place so a reinstatement can recalculate from it.
func (s *BillingService) CancelPolicy(ctx context.Context, policyID string, cancellationDate time.Time) (*domain.BillingAggregate, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if b.CancellationDate != nil {
		return nil, customError.NewBusinessError(customError.ErrCodePolicyCancelled, "policy "+policyID+" is already cancelled", customError.ErrPolicyCancelled)
	}

	if err = s.closeOpenInvoices(ctx, b); err != nil {
		return nil, err
	}

	b.CancellationDate = &cancellationDate
	b.BillingStatus.DelinquencyStatus = domain.DelinquencyCompleted

	if err = s.BillingRepo.Update(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.publish(ctx, events.DetailDelinquencyChanged, map[string]any{
		"policy_id":         policyID,
		"status":            string(domain.DelinquencyCompleted),
		"cancellation_date": cancellationDate,
	})
	s.logActivity(ctx, b, "Policy cancelled effective {date}", map[string]any{
		"date": cancellationDate.Format(time.DateOnly),
	})

	return b, nil
}

// closeOpenInvoices force-settles every Pending invoice with an
// offset, transitioning each to Closed without moving money.
func (s *BillingService) closeOpenInvoices(ctx context.Context, b *domain.BillingAggregate) error {
	openInvoices, err := s.InvoiceRepo.ListOpenByPolicy(ctx, b.PolicyID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	now := time.Now().UTC()
	var toSave []*domain.Invoice
	for _, inv := range openInvoices {
		offset := inv.CreateOffset(b.NextInvoiceNumber(), now)
		inv.ApplyAmount(inv.AmountDue.Sub(inv.AmountPaid))
		inv.PaymentStatus = domain.InvoiceStatusClosed
		toSave = append(toSave, inv, offset)
	}
	if err = s.InvoiceRepo.SaveAll(ctx, toSave); err != nil {
		return customError.WrapDatabaseError(err)
	}
	return nil
}

// ReinstatePolicy reverses a cancellation and reshapes the schedule
// around whatever balance remains outstanding.
func (s *BillingService) ReinstatePolicy(ctx context.Context, policyID string) (*domain.BillingAggregate, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if b.CancellationDate == nil {
		return nil, customError.NewBusinessError(customError.ErrCodePolicyNotCancelled, "policy "+policyID+" is not cancelled", customError.ErrPolicyNotCancelled)
	}

	b.CancellationDate = nil
	b.BillingStatus.DelinquencyStatus = domain.DelinquencyNotStarted

	if b.PaymentPlan.Type == domain.PlanElevenPay {
		result := domain.RecalculateSchedule(b, map[int]*domain.Invoice{}, b.NextInvoiceNumber, time.Now().UTC())
		if err = s.InvoiceRepo.SaveAll(ctx, result.Offsets); err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
	}

	if err = s.refreshDates(ctx, b, nil); err != nil {
		return nil, err
	}
	if err = s.BillingRepo.Update(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.publish(ctx, events.DetailDelinquencyChanged, map[string]any{
		"policy_id":  policyID,
		"status":     string(domain.DelinquencyNotStarted),
		"reinstated": true,
	})
	s.logActivity(ctx, b, "Policy reinstated", nil)

	return b, nil
}

// Refund returns credit on the term to the insured and announces the
// disbursement.
func (s *BillingService) Refund(ctx context.Context, policyID string, request *domain.RefundRequest) (*domain.Payment, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}

	amount, err := utils.DecimalFromString(request.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, customError.WrapInvalidAmount(request.Amount)
	}

	credit := b.PaymentDetail.TotalAmountPaid.Sub(b.PaymentDetail.AmountDue)
	if amount.GreaterThan(credit) {
		return nil, customError.WrapInvalidAmount(request.Amount)
	}

	refund := domain.NewPayment(policyID, amount.Neg(), domain.PaymentMethodRefund)
	if err = s.LedgerRepo.AppendPayment(ctx, refund); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	b.PaymentDetail.TotalAmountPaid = money(b.PaymentDetail.TotalAmountPaid.Sub(amount))

	if err = s.refreshDates(ctx, b, nil); err != nil {
		return nil, err
	}
	if err = s.BillingRepo.Update(ctx, b); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.publish(ctx, events.DetailRefundInitiated, refund)
	s.logActivity(ctx, b, "Refund of {amount} initiated", map[string]any{
		"amount": amount.String(),
	})

	return refund, nil
}

// GetOutstanding returns the policy's money position.
func (s *BillingService) GetOutstanding(ctx context.Context, policyID string) (*domain.OutstandingResponse, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}
	return &domain.OutstandingResponse{
		PolicyID:    policyID,
		Outstanding: money(b.PaymentDetail.AmountDue.Sub(b.PaymentDetail.TotalAmountPaid)),
		DueDate:     b.DueDate,
		CancelDate:  b.CancelDate,
	}, nil
}

// GetSchedule returns the eleven-pay schedule. Full-pay policies have
// no schedule: a checkable precondition, not an exceptional fault.
func (s *BillingService) GetSchedule(ctx context.Context, policyID string) (*domain.ScheduleResponse, error) {
	b, err := s.getBilling(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if b.PaymentPlan.Type != domain.PlanElevenPay {
		return nil, customError.WrapUnsupportedPlanOperation(policyID, "get_schedule")
	}
	return &domain.ScheduleResponse{
		PolicyID:         policyID,
		InstallmentsLeft: b.PaymentDetail.InstallmentsLeft,
		Schedule:         b.PaymentDetail.Installments[:],
	}, nil
}

// ListInvoices returns all invoice records for a policy.
func (s *BillingService) ListInvoices(ctx context.Context, policyID string) ([]*domain.Invoice, error) {
	if _, err := s.getBilling(ctx, policyID); err != nil {
		return nil, err
	}
	invoices, err := s.InvoiceRepo.ListByPolicy(ctx, policyID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return invoices, nil
}

func (s *BillingService) getBilling(ctx context.Context, policyID string) (*domain.BillingAggregate, error) {
	b, err := s.BillingRepo.GetByPolicyID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapPolicyNotFound(policyID)
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return b, nil
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}
