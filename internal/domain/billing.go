package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlanType is the payment plan a policy is billed under.
type PlanType string

const (
	PlanFullPay   PlanType = "full_pay"
	PlanElevenPay PlanType = "eleven_pay"
)

func ParsePlanType(s string) (PlanType, error) {
	switch PlanType(s) {
	case PlanFullPay, PlanElevenPay:
		return PlanType(s), nil
	}
	return "", fmt.Errorf("unknown payment plan %q", s)
}

// ResponsibleParty is who the bill goes to.
type ResponsibleParty string

const (
	PartyInsured   ResponsibleParty = "insured"
	PartyMortgagee ResponsibleParty = "mortgagee"
)

func ParseResponsibleParty(s string) (ResponsibleParty, error) {
	switch ResponsibleParty(s) {
	case PartyInsured, PartyMortgagee:
		return ResponsibleParty(s), nil
	}
	return "", fmt.Errorf("unknown responsible party %q", s)
}

// LockStatus is the scheduler lease state stored on the aggregate.
type LockStatus string

const (
	LockNone      LockStatus = "none"
	LockInProcess LockStatus = "in_process"
	LockError     LockStatus = "error"
)

// PaymentProgress tracks an in-flight collection attempt.
type PaymentProgress string

const (
	PaymentInitiated PaymentProgress = "initiated"
	PaymentInProcess PaymentProgress = "in_process"
	PaymentCompleted PaymentProgress = "completed"
	PaymentFailure   PaymentProgress = "failure"
)

// DelinquencyStatus tracks the delinquency workflow for a term.
type DelinquencyStatus string

const (
	DelinquencyNotStarted DelinquencyStatus = "not_started"
	DelinquencyStarted    DelinquencyStatus = "started"
	DelinquencyCompleted  DelinquencyStatus = "completed"
)

// InvoiceProgress tracks statement generation for the current cycle.
type InvoiceProgress string

const (
	InvoicePending InvoiceProgress = "pending"
	InvoiceSent    InvoiceProgress = "sent"
	InvoiceError   InvoiceProgress = "error"
)

// PaymentPlan pairs the plan type with the billed party.
type PaymentPlan struct {
	Type             PlanType         `json:"type" db:"plan_type"`
	ResponsibleParty ResponsibleParty `json:"responsible_party" db:"responsible_party"`
}

// PaymentDetail is the aggregate's money position: total due and paid
// for the term, the outstanding balance by line item, and the eleven
// installment slots.
type PaymentDetail struct {
	AmountDue        decimal.Decimal              `json:"amount_due"`
	TotalAmountPaid  decimal.Decimal              `json:"total_amount_paid"`
	InstallmentsLeft int                          `json:"installments_left"`
	BalanceDue       LineItems                    `json:"balance_due"`
	Installments     [InstallmentCount]Installment `json:"list_of_installments"`
	VoidedInvoices   []string                     `json:"list_of_voided_invoices,omitempty"`
}

// BillingStatus groups the per-policy workflow flags batch jobs act on.
type BillingStatus struct {
	LockStatus        LockStatus        `json:"lock_status" db:"lock_status"`
	PaymentStatus     PaymentProgress   `json:"payment_status" db:"payment_progress"`
	DelinquencyStatus DelinquencyStatus `json:"delinquency_status" db:"delinquency_status"`
	InvoiceStatus     InvoiceProgress   `json:"invoice_status" db:"invoice_progress"`
}

// BillingAggregate is the per-policy billing root. It exclusively owns
// its installment array and lock fields; invoices are separate records
// referenced by policy id plus invoice number.
type BillingAggregate struct {
	PolicyID         string          `json:"policy_id" db:"policy_id"`
	ProductCode      string          `json:"product_code" db:"product_code"`
	AgencyID         string          `json:"agency_id" db:"agency_id"`
	DueDate          time.Time       `json:"due_date" db:"due_date"`
	CancelDate       time.Time       `json:"cancel_date" db:"cancel_date"`
	CancellationDate *time.Time      `json:"cancellation_date,omitempty" db:"cancellation_date"`
	EffectiveDate    time.Time       `json:"effective_date" db:"effective_date"`
	ExpirationDate   time.Time       `json:"expiration_date" db:"expiration_date"`
	PolicyEquity     decimal.Decimal `json:"policy_equity" db:"policy_equity"`
	PaymentPlan      PaymentPlan     `json:"payment_plan"`
	PaymentDetail    PaymentDetail   `json:"payment_detail"`
	BillingStatus    BillingStatus   `json:"billing_status"`
	IsStatementSent  bool            `json:"is_statement_sent" db:"is_statement_sent"`
	NextInvoiceSeq   int             `json:"next_invoice_seq" db:"next_invoice_seq"`
	// Timestamp is the lock-acquired instant in epoch millis.
	Timestamp int64 `json:"timestamp" db:"lock_timestamp"`
}

// NextInvoiceNumber mints the next monotonic invoice number for this
// aggregate.
func (b *BillingAggregate) NextInvoiceNumber() string {
	b.NextInvoiceSeq++
	return fmt.Sprintf("%s-%04d", b.PolicyID, b.NextInvoiceSeq)
}

// MortgageeGracePeriod is the fixed grace window applied when a
// lender-billed term has received no money yet: nothing to compute
// equity from.
const (
	MortgageeGraceDueDays    = 15
	MortgageeGraceCancelDays = 30
)

var daysPerTerm = decimal.NewFromInt(365)

// UpdateEquity recomputes the premium-per-day rate for the term.
func (b *BillingAggregate) UpdateEquity(totalPremium decimal.Decimal) {
	if totalPremium.LessThanOrEqual(decimal.Zero) {
		b.PolicyEquity = decimal.Zero
		return
	}
	b.PolicyEquity = totalPremium.Div(daysPerTerm)
}

// UpdateDates recomputes the due date and the equity-based cancel date
// from the term's posted premium and payments plus the current open
// invoices.
func (b *BillingAggregate) UpdateDates(totalPremium, totalPaid decimal.Decimal, openInvoices []*Invoice) {
	if b.PaymentPlan.ResponsibleParty == PartyMortgagee && totalPaid.IsZero() {
		b.DueDate = b.EffectiveDate.AddDate(0, 0, MortgageeGraceDueDays)
		b.CancelDate = b.EffectiveDate.AddDate(0, 0, MortgageeGraceCancelDays)
		return
	}

	b.UpdateEquity(totalPremium)

	equityDays := 0
	if b.PolicyEquity.IsPositive() {
		equityDays = int(totalPaid.Abs().Div(b.PolicyEquity).IntPart())
	}
	if b.PaymentPlan.Type == PlanElevenPay {
		// One extra day on eleven-pay, always. Intentional rounding in
		// the insured's favor.
		equityDays++
	}
	cancel := b.EffectiveDate.AddDate(0, 0, equityDays)
	if cancel.After(b.ExpirationDate) {
		cancel = b.ExpirationDate
	}
	b.CancelDate = cancel

	b.DueDate = b.ExpirationDate
	earliest := earliestOpenInvoiceDue(openInvoices)
	switch {
	case earliest != nil:
		b.DueDate = *earliest
	case b.PaymentPlan.Type == PlanElevenPay && b.PaymentPlan.ResponsibleParty == PartyInsured:
		for _, slot := range b.PaymentDetail.Installments {
			if !slot.Paid {
				b.DueDate = slot.DueDate
				break
			}
		}
	}
}

func earliestOpenInvoiceDue(invoices []*Invoice) *time.Time {
	var earliest *time.Time
	for _, inv := range invoices {
		if inv.PaymentStatus != InvoiceStatusPending {
			continue
		}
		due := inv.DueDate
		if earliest == nil || due.Before(*earliest) {
			earliest = &due
		}
	}
	return earliest
}

// LockTTL is the stale-lock safety window: a lease older than this is
// treated as abandoned by a crashed worker and may be reacquired.
const LockTTL = 10 * time.Minute

// CanAcquireLock decides whether a lease may be taken given the stored
// lock fields. Contention is a skip signal for the caller, never an
// error.
func CanAcquireLock(status LockStatus, lockedAtMillis int64, now time.Time, ttl time.Duration) bool {
	if status != LockInProcess {
		return true
	}
	lockedAt := time.UnixMilli(lockedAtMillis)
	return now.Sub(lockedAt) >= ttl
}
