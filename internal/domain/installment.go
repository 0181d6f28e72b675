package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/pkg/utils"
)

// InstallmentCount is fixed for the eleven-pay plan: one down payment
// slot plus ten recurring slots.
const InstallmentCount = 11

var (
	downPaymentPct = decimal.NewFromFloat(16.7)
	recurringPct   = decimal.NewFromFloat(8.33)
)

// Installment is one of the eleven schedule slots. Slots live in a
// fixed array on the aggregate, addressed by Number-1 and replaced
// wholesale, never aliased.
type Installment struct {
	LineItems
	Number         int             `json:"installment_number"`
	DueDate        time.Time       `json:"due_date"`
	InstallmentFee decimal.Decimal `json:"installment_fee"`
	Paid           bool            `json:"paid"`
	InvoiceCreated bool            `json:"invoice_created"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
}

// TotalDue is the slot's line item subtotal plus its flat fee.
func (ins *Installment) TotalDue() decimal.Decimal {
	return money(ins.Subtotal.Add(ins.InstallmentFee))
}

type feeBand struct {
	floor decimal.Decimal
	fee   decimal.Decimal
}

// Bands are checked highest floor first; premiums below the lowest
// band carry no fee.
var installmentFeeBands = []feeBand{
	{decimal.NewFromInt(10000), decimal.NewFromInt(14)},
	{decimal.NewFromInt(7500), decimal.NewFromInt(12)},
	{decimal.NewFromInt(5000), decimal.NewFromInt(10)},
	{decimal.NewFromInt(3000), decimal.NewFromInt(8)},
	{decimal.NewFromInt(2000), decimal.NewFromInt(6)},
	{decimal.NewFromInt(1000), decimal.NewFromInt(4)},
	{decimal.NewFromInt(500), decimal.NewFromInt(2)},
	{decimal.NewFromInt(150), decimal.NewFromInt(1)},
}

// InstallmentFeeFor looks up the flat per-installment fee for a total
// term premium.
func InstallmentFeeFor(totalPremium decimal.Decimal) decimal.Decimal {
	for _, band := range installmentFeeBands {
		if totalPremium.GreaterThanOrEqual(band.floor) {
			return band.fee
		}
	}
	return decimal.Zero
}

// BuildSchedule generates the eleven-pay schedule for a term balance.
// Slot 1 stages 16.7% of every premium entry plus 100% of every fee
// and tax entry, due immediately. Slots 2-11 each stage 8.33% of every
// premium entry plus the flat installment fee, due every 30 days.
// A remainder-correction pass pushes any rounding drift onto the last
// slot so the schedule total reproduces the balance exactly.
func BuildSchedule(balance LineItems, installmentFee decimal.Decimal, effectiveDate time.Time) [InstallmentCount]Installment {
	var premiums, nonPremiums LineItems
	for _, item := range balance.Items {
		if item.ItemType == ItemTypePremium {
			premiums.Add(item)
		} else {
			nonPremiums.Add(item)
		}
	}

	var schedule [InstallmentCount]Installment
	for n := 1; n <= InstallmentCount; n++ {
		slot := Installment{
			Number:  n,
			DueDate: utils.InstallmentDueDate(effectiveDate, n),
		}
		if n == 1 {
			slot.LineItems = premiums.TakePercentage(downPaymentPct)
			slot.AddMany(nonPremiums.Items)
			slot.InstallmentFee = decimal.Zero
		} else {
			slot.LineItems = premiums.TakePercentage(recurringPct)
			slot.InstallmentFee = installmentFee
		}
		schedule[n-1] = slot
	}

	correctRemainder(balance, &schedule)
	return schedule
}

// lineKey identifies a ledger entry across collections.
type lineKey struct {
	account  Account
	itemType ItemType
}

// correctRemainder reconciles the unpaid slots against the target
// balance per (account, itemType) and adds each delta onto the last
// unpaid slot. The last installment may end up larger than the others;
// it is not rebalanced further.
func correctRemainder(target LineItems, schedule *[InstallmentCount]Installment) {
	last := -1
	staged := make(map[lineKey]decimal.Decimal)
	companies := make(map[lineKey]string)
	for i := range schedule {
		if schedule[i].Paid {
			continue
		}
		last = i
		for _, item := range schedule[i].Items {
			k := lineKey{item.Account, item.ItemType}
			staged[k] = staged[k].Add(item.Amount)
			companies[k] = item.WritingCompany
		}
	}
	if last < 0 {
		return
	}

	seen := make(map[lineKey]bool)
	for _, item := range target.Items {
		k := lineKey{item.Account, item.ItemType}
		seen[k] = true
		delta := money(item.Amount.Sub(staged[k]))
		if delta.IsZero() {
			continue
		}
		schedule[last].Add(LineItem{
			Amount:         delta,
			ItemType:       item.ItemType,
			Account:        item.Account,
			WritingCompany: item.WritingCompany,
		})
	}
	// Entries staged on slots but absent from the target net to zero.
	for k, amount := range staged {
		if seen[k] || amount.IsZero() {
			continue
		}
		schedule[last].Add(LineItem{
			Amount:         money(amount.Neg()),
			ItemType:       k.itemType,
			Account:        k.account,
			WritingCompany: companies[k],
		})
	}
}

// RecalcResult carries the invoice side effects of a schedule
// recalculation for the caller to persist.
type RecalcResult struct {
	// ForceSettled are previously generated invoices closed out by an
	// offset because their slot went to zero.
	ForceSettled []*Invoice
	// Offsets are the generated Applied offset invoices.
	Offsets []*Invoice
	// Adjusted are previously generated invoices whose amounts were
	// aligned with their slot's new amount.
	Adjusted []*Invoice
}

// RecalculateSchedule redistributes the outstanding balance across the
// unpaid slots after the balance changed mid-schedule (premium change,
// NSF, write-off). invoicesBySlot holds the open invoice already
// generated for a slot, keyed by installment number. nextNumber mints
// invoice numbers for offsets.
func RecalculateSchedule(b *BillingAggregate, invoicesBySlot map[int]*Invoice, nextNumber func() string, now time.Time) *RecalcResult {
	result := &RecalcResult{}
	detail := &b.PaymentDetail

	amountLeft := money(detail.AmountDue.Sub(detail.TotalAmountPaid))
	if amountLeft.LessThanOrEqual(decimal.Zero) {
		for i := range detail.Installments {
			slot := detail.Installments[i]
			if slot.Paid {
				continue
			}
			slot.Clear()
			slot.InstallmentFee = decimal.Zero
			slot.Paid = true
			detail.Installments[i] = slot

			if inv, ok := invoicesBySlot[slot.Number]; ok && inv.PaymentStatus == InvoiceStatusPending {
				offset := inv.CreateOffset(nextNumber(), now)
				inv.ApplyAmount(inv.AmountDue.Sub(inv.AmountPaid))
				inv.PaymentStatus = InvoiceStatusClosed
				result.ForceSettled = append(result.ForceSettled, inv)
				result.Offsets = append(result.Offsets, offset)
			}
		}
		detail.InstallmentsLeft = 0
		return result
	}

	installmentsLeft := 0
	for i := range detail.Installments {
		if !detail.Installments[i].Paid {
			installmentsLeft++
		}
	}
	if installmentsLeft == 0 {
		return result
	}
	detail.InstallmentsLeft = installmentsLeft

	// The new per-slot amount, expressed as a percentage of the
	// outstanding balance and cut uniformly from its line items.
	perSlot := amountLeft.Div(decimal.NewFromInt(int64(installmentsLeft)))
	pct := perSlot.Mul(decimal.NewFromInt(100)).Div(amountLeft)

	for i := range detail.Installments {
		slot := detail.Installments[i]
		if slot.Paid {
			continue
		}
		oldTotal := slot.Subtotal
		newItems := detail.BalanceDue.TakePercentage(pct)

		if inv, ok := invoicesBySlot[slot.Number]; ok && inv.PaymentStatus == InvoiceStatusPending {
			delta := money(oldTotal.Sub(newItems.Subtotal))
			if delta.IsPositive() {
				inv.ApplyAmount(delta)
				inv.MarkPaidIfSettled()
			} else if delta.IsNegative() {
				growBy := growthItems(slot.LineItems, newItems)
				for _, item := range growBy {
					inv.AddLineItem(item)
				}
			}
			result.Adjusted = append(result.Adjusted, inv)
		}

		slot.LineItems = newItems
		detail.Installments[i] = slot
	}

	correctRemainder(detail.BalanceDue, &detail.Installments)
	return result
}

// growthItems returns the per-entry increase from old to new.
func growthItems(old, new LineItems) []LineItem {
	var out []LineItem
	for _, item := range new.Items {
		prior := decimal.Zero
		if i := old.find(item.Account, item.ItemType); i >= 0 {
			prior = old.Items[i].Amount
		}
		delta := money(item.Amount.Sub(prior))
		if delta.IsPositive() {
			grown := item
			grown.Amount = delta
			out = append(out, grown)
		}
	}
	return out
}
