package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the invoice lifecycle state.
type PaymentStatus string

const (
	InvoiceStatusPending PaymentStatus = "pending"
	InvoiceStatusPaid    PaymentStatus = "paid"
	InvoiceStatusVoid    PaymentStatus = "void"
	InvoiceStatusClosed  PaymentStatus = "closed"
	InvoiceStatusApplied PaymentStatus = "applied"
)

// InvoiceType identifies the business event that produced an invoice.
type InvoiceType string

const (
	InvoiceTypeNewBusiness   InvoiceType = "new_business"
	InvoiceTypeInstallment   InvoiceType = "installment"
	InvoiceTypeMidtermChange InvoiceType = "midterm_change"
	InvoiceTypeCancellation  InvoiceType = "cancellation"
	InvoiceTypeReinstatement InvoiceType = "reinstatement"
	InvoiceTypeOffset        InvoiceType = "offset"
)

// InvoiceLineItem is a ledger entry with per-line paid tracking.
type InvoiceLineItem struct {
	LineItem
	AmountPaid decimal.Decimal `json:"amount_paid" db:"amount_paid"`
}

// Invoice is an invoice-shaped ledger. AmountDue always equals the
// rounded sum of line item amounts and AmountPaid the rounded sum of
// per-line paid amounts.
type Invoice struct {
	PolicyID          string            `json:"policy_id" db:"policy_id"`
	InvoiceNumber     string            `json:"invoice_number" db:"invoice_number"`
	InvoiceType       InvoiceType       `json:"invoice_type" db:"invoice_type"`
	DueDate           time.Time         `json:"due_date" db:"due_date"`
	AmountDue         decimal.Decimal   `json:"amount_due" db:"amount_due"`
	AmountPaid        decimal.Decimal   `json:"amount_paid" db:"amount_paid"`
	PaymentStatus     PaymentStatus     `json:"payment_status" db:"payment_status"`
	InstallmentNumber int               `json:"installment_number,omitempty" db:"installment_number"`
	PaymentAttempted  bool              `json:"payment_attempted" db:"payment_attempted"`
	LineItems         []InvoiceLineItem `json:"line_items"`
}

// NewInvoice builds a Pending invoice from a ledger collection.
func NewInvoice(policyID, number string, invoiceType InvoiceType, dueDate time.Time, items LineItems) *Invoice {
	inv := &Invoice{
		PolicyID:      policyID,
		InvoiceNumber: number,
		InvoiceType:   invoiceType,
		DueDate:       dueDate,
		AmountDue:     items.Subtotal,
		AmountPaid:    decimal.Zero,
		PaymentStatus: InvoiceStatusPending,
	}
	for _, item := range items.Items {
		inv.LineItems = append(inv.LineItems, InvoiceLineItem{LineItem: item})
	}
	return inv
}

// AddLineItem accumulates an entry onto the invoice, preserving the
// account ordering and the amount-due invariant. Paid-to-date on an
// existing entry is untouched.
func (inv *Invoice) AddLineItem(item LineItem) {
	if item.Amount.IsZero() {
		return
	}
	delta := money(item.Amount)
	found := false
	for i := range inv.LineItems {
		if inv.LineItems[i].Account == item.Account && inv.LineItems[i].ItemType == item.ItemType {
			inv.LineItems[i].Amount = money(inv.LineItems[i].Amount.Add(delta))
			found = true
			break
		}
	}
	if !found {
		item.Amount = delta
		inv.LineItems = append(inv.LineItems, InvoiceLineItem{LineItem: item})
		sort.SliceStable(inv.LineItems, func(i, j int) bool {
			return inv.LineItems[i].Account < inv.LineItems[j].Account
		})
	}
	inv.AmountDue = money(inv.AmountDue.Add(delta))
}

// ApplyAmount distributes amount across the invoice's line items in
// account order, greedily paying each entry's shortfall. A credit
// entry is consumed by folding its negative unpaid delta into the
// running amount. Returns whatever is left after all entries are
// visited; zero means fully absorbed.
func (inv *Invoice) ApplyAmount(amount decimal.Decimal) decimal.Decimal {
	remaining := money(amount)
	for i := range inv.LineItems {
		entry := &inv.LineItems[i]
		if entry.Amount.IsNegative() && entry.AmountPaid.GreaterThan(entry.Amount) {
			delta := entry.Amount.Sub(entry.AmountPaid)
			entry.AmountPaid = entry.Amount
			inv.AmountPaid = money(inv.AmountPaid.Add(delta))
			remaining = money(remaining.Add(delta))
			continue
		}
		if remaining.LessThanOrEqual(decimal.Zero) {
			continue
		}
		shortfall := entry.Amount.Sub(entry.AmountPaid)
		if shortfall.LessThanOrEqual(decimal.Zero) {
			continue
		}
		pay := shortfall
		if remaining.LessThan(shortfall) {
			pay = remaining
		}
		entry.AmountPaid = money(entry.AmountPaid.Add(pay))
		inv.AmountPaid = money(inv.AmountPaid.Add(pay))
		remaining = money(remaining.Sub(pay))
	}
	return remaining
}

// RevertPayment backs previously applied amounts out of the invoice,
// line by line. Used when a payment is returned (NSF). A settled
// invoice reopens as Pending.
func (inv *Invoice) RevertPayment(items []LineItem) {
	for _, item := range items {
		for i := range inv.LineItems {
			if inv.LineItems[i].Account == item.Account && inv.LineItems[i].ItemType == item.ItemType {
				inv.LineItems[i].AmountPaid = money(inv.LineItems[i].AmountPaid.Sub(item.Amount))
				inv.AmountPaid = money(inv.AmountPaid.Sub(item.Amount))
				break
			}
		}
	}
	if inv.PaymentStatus == InvoiceStatusPaid {
		inv.PaymentStatus = InvoiceStatusPending
	}
}

// MarkPaidIfSettled transitions a Pending invoice to Paid when it is
// fully paid or is a credit invoice.
func (inv *Invoice) MarkPaidIfSettled() {
	if inv.PaymentStatus != InvoiceStatusPending {
		return
	}
	if inv.AmountDue.IsNegative() || inv.AmountDue.Equal(inv.AmountPaid) {
		inv.PaymentStatus = InvoiceStatusPaid
	}
}

// CreateOffset produces an Applied invoice whose line items negate the
// source invoice's unpaid deltas. Applying the offset's subtotal to
// the source force-settles it without moving money.
func (inv *Invoice) CreateOffset(number string, dueDate time.Time) *Invoice {
	offset := &Invoice{
		PolicyID:          inv.PolicyID,
		InvoiceNumber:     number,
		InvoiceType:       InvoiceTypeOffset,
		DueDate:           dueDate,
		AmountPaid:        decimal.Zero,
		PaymentStatus:     InvoiceStatusApplied,
		InstallmentNumber: inv.InstallmentNumber,
	}
	total := decimal.Zero
	for _, entry := range inv.LineItems {
		delta := entry.Amount.Sub(entry.AmountPaid)
		if delta.IsZero() {
			continue
		}
		offset.LineItems = append(offset.LineItems, InvoiceLineItem{
			LineItem: LineItem{
				Amount:         money(delta.Neg()),
				ItemType:       entry.ItemType,
				Account:        entry.Account,
				WritingCompany: entry.WritingCompany,
			},
		})
		total = total.Add(delta.Neg())
	}
	offset.AmountDue = money(total)
	return offset
}

// SortOpenInvoices orders invoices for payment application: credits
// first, then ascending amount due, ties broken by earliest due date.
func SortOpenInvoices(invoices []*Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		if !invoices[i].AmountDue.Equal(invoices[j].AmountDue) {
			return invoices[i].AmountDue.LessThan(invoices[j].AmountDue)
		}
		return invoices[i].DueDate.Before(invoices[j].DueDate)
	})
}

// ApplyPaymentToInvoices walks the open invoices in application order,
// applying amount to each and recording the per-invoice applied line
// items on the payment. Settled invoices are marked Paid. The leftover
// amount is returned; a positive leftover is an overpayment the caller
// reports as out-of-balance.
func ApplyPaymentToInvoices(invoices []*Invoice, amount decimal.Decimal, payment *Payment) decimal.Decimal {
	SortOpenInvoices(invoices)
	remaining := money(amount)
	for _, inv := range invoices {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if inv.PaymentStatus != InvoiceStatusPending {
			continue
		}
		before := make([]decimal.Decimal, len(inv.LineItems))
		for i, entry := range inv.LineItems {
			before[i] = entry.AmountPaid
		}
		remaining = inv.ApplyAmount(remaining)
		for i, entry := range inv.LineItems {
			delta := entry.AmountPaid.Sub(before[i])
			if delta.IsZero() {
				continue
			}
			payment.LineItems = append(payment.LineItems, PaymentLineItem{
				InvoiceNumber: inv.InvoiceNumber,
				LineItem: LineItem{
					Amount:         delta,
					ItemType:       entry.ItemType,
					Account:        entry.Account,
					WritingCompany: entry.WritingCompany,
				},
			})
		}
		inv.MarkPaidIfSettled()
	}
	return remaining
}
