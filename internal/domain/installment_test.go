package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var effectiveDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestInstallmentFeeFor(t *testing.T) {
	tests := []struct {
		premium  string
		expected int64
	}{
		{"0", 0},
		{"149.99", 0},
		{"150", 1},
		{"499.99", 1},
		{"500", 2},
		{"999.99", 2},
		{"1000", 4},
		{"1800", 4},
		{"2000", 6},
		{"3000", 8},
		{"5000", 10},
		{"7499.99", 10},
		{"7500", 12},
		{"9999.99", 12},
		{"10000", 14},
		{"250000", 14},
	}

	for _, tt := range tests {
		t.Run(tt.premium, func(t *testing.T) {
			fee := InstallmentFeeFor(decimal.RequireFromString(tt.premium))
			assert.True(t, fee.Equal(decimal.NewFromInt(tt.expected)),
				"premium %s: fee %s, want %d", tt.premium, fee, tt.expected)
		})
	}
}

func TestBuildScheduleSplits(t *testing.T) {
	balance := NewLineItems(premium(1800))
	schedule := BuildSchedule(balance, InstallmentFeeFor(decimal.NewFromInt(1800)), effectiveDate)

	// Down payment: 16.7% of the premium, no flat fee, due immediately.
	down := schedule[0]
	assert.Equal(t, 1, down.Number)
	assert.Equal(t, effectiveDate, down.DueDate)
	assert.True(t, down.Subtotal.Equal(decimal.NewFromFloat(300.60)), "got %s", down.Subtotal)
	assert.True(t, down.InstallmentFee.IsZero())

	// Recurring slots: 8.33% each plus the flat fee, every 30 days.
	for i := 1; i < InstallmentCount; i++ {
		slot := schedule[i]
		assert.Equal(t, i+1, slot.Number)
		assert.Equal(t, effectiveDate.AddDate(0, 0, 30*i), slot.DueDate)
		assert.True(t, slot.Subtotal.Equal(decimal.NewFromFloat(149.94)),
			"slot %d staged %s", slot.Number, slot.Subtotal)
		assert.True(t, slot.InstallmentFee.Equal(decimal.NewFromInt(4)))
	}

	// 300.60 + 10 * 149.94 lands on 1800 exactly.
	total := decimal.Zero
	for _, slot := range schedule {
		total = total.Add(slot.Subtotal)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(1800)), "schedule total %s", total)
}

func TestBuildScheduleNonPremiumsOnDownPayment(t *testing.T) {
	balance := NewLineItems(
		premium(1800),
		item(50, ItemTypeTax, AccountPremiumTax),
		item(25, ItemTypeFee, AccountPolicyFee),
	)
	schedule := BuildSchedule(balance, decimal.NewFromInt(4), effectiveDate)

	// Fees and taxes are staged entirely on slot 1.
	down := schedule[0]
	assert.True(t, down.TotalsByType(ItemTypeTax).Equal(decimal.NewFromInt(50)))
	assert.True(t, down.TotalsByType(ItemTypeFee).Equal(decimal.NewFromInt(25)))
	for i := 1; i < InstallmentCount; i++ {
		assert.True(t, schedule[i].TotalsByType(ItemTypeTax).IsZero(), "slot %d", i+1)
		assert.True(t, schedule[i].TotalsByType(ItemTypeFee).IsZero(), "slot %d", i+1)
	}
}

func TestBuildScheduleRemainderCorrection(t *testing.T) {
	tests := []struct {
		name    string
		premium string
	}{
		{"Odd cents", "1000.01"},
		{"Drifts upward", "999.99"},
		{"Small balance", "151.37"},
		{"Large balance", "123456.78"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := decimal.RequireFromString(tt.premium)
			balance := NewLineItems(LineItem{
				Amount:         target,
				ItemType:       ItemTypePremium,
				Account:        AccountMainPremium,
				WritingCompany: "WC1",
			})
			schedule := BuildSchedule(balance, InstallmentFeeFor(target), effectiveDate)

			total := decimal.Zero
			for _, slot := range schedule {
				total = total.Add(slot.Subtotal)
			}
			assert.True(t, total.Equal(target.RoundBank(2)),
				"schedule total %s, want %s", total, target)

			// Drift lands on the last slot only.
			base := balance.TakePercentage(recurringPct).Subtotal
			for i := 1; i < InstallmentCount-1; i++ {
				assert.True(t, schedule[i].Subtotal.Equal(base), "slot %d", i+1)
			}
		})
	}
}

func elevenPayAggregate(balance LineItems) *BillingAggregate {
	b := &BillingAggregate{
		PolicyID:       "POL-1",
		EffectiveDate:  effectiveDate,
		ExpirationDate: effectiveDate.AddDate(1, 0, 0),
		PaymentPlan:    PaymentPlan{Type: PlanElevenPay, ResponsibleParty: PartyInsured},
	}
	b.PaymentDetail.AmountDue = balance.Subtotal
	b.PaymentDetail.TotalAmountPaid = decimal.Zero
	b.PaymentDetail.BalanceDue = balance
	b.PaymentDetail.Installments = BuildSchedule(balance, decimal.NewFromInt(4), effectiveDate)
	b.PaymentDetail.InstallmentsLeft = InstallmentCount
	return b
}

func TestRecalculateScheduleZeroBalance(t *testing.T) {
	balance := NewLineItems(premium(1800))
	b := elevenPayAggregate(balance)

	// Six slots already collected; the rest written off.
	now := effectiveDate.AddDate(0, 6, 0)
	for i := 0; i < 6; i++ {
		b.PaymentDetail.Installments[i].Paid = true
	}
	b.PaymentDetail.TotalAmountPaid = b.PaymentDetail.AmountDue

	// Slot 7 already has a generated invoice outstanding.
	slot7 := b.PaymentDetail.Installments[6]
	inv := NewInvoice("POL-1", "POL-1-0007", InvoiceTypeInstallment, slot7.DueDate, slot7.LineItems)
	inv.InstallmentNumber = 7

	result := RecalculateSchedule(b, map[int]*Invoice{7: inv}, b.NextInvoiceNumber, now)

	for i := 6; i < InstallmentCount; i++ {
		slot := b.PaymentDetail.Installments[i]
		assert.True(t, slot.Paid, "slot %d", i+1)
		assert.Empty(t, slot.Items, "slot %d", i+1)
		assert.True(t, slot.InstallmentFee.IsZero(), "slot %d", i+1)
	}
	assert.Equal(t, 0, b.PaymentDetail.InstallmentsLeft)

	// The outstanding invoice is force-settled through an offset.
	assert.Len(t, result.ForceSettled, 1)
	assert.Len(t, result.Offsets, 1)
	assert.Equal(t, InvoiceStatusClosed, inv.PaymentStatus)
	assert.True(t, inv.AmountDue.Equal(inv.AmountPaid))
	assert.True(t, result.Offsets[0].AmountDue.Equal(inv.AmountDue.Neg()))
}

func TestRecalculateScheduleRedistributes(t *testing.T) {
	balance := NewLineItems(premium(1800))
	b := elevenPayAggregate(balance)
	now := effectiveDate.AddDate(0, 1, 0)

	// Two slots collected, then the premium drops by 600.
	paid := decimal.Zero
	for i := 0; i < 2; i++ {
		b.PaymentDetail.Installments[i].Paid = true
		paid = paid.Add(b.PaymentDetail.Installments[i].Subtotal)
		b.PaymentDetail.BalanceDue.ReduceBy(b.PaymentDetail.Installments[i].Subtotal)
	}
	b.PaymentDetail.TotalAmountPaid = paid

	reduction := NewLineItems(premium(-600))
	b.PaymentDetail.AmountDue = b.PaymentDetail.AmountDue.Add(reduction.Subtotal).RoundBank(2)
	b.PaymentDetail.BalanceDue.AddMany(reduction.Items)

	RecalculateSchedule(b, map[int]*Invoice{}, b.NextInvoiceNumber, now)

	assert.Equal(t, 9, b.PaymentDetail.InstallmentsLeft)

	// The unpaid slots reproduce the outstanding balance exactly.
	expected := b.PaymentDetail.AmountDue.Sub(b.PaymentDetail.TotalAmountPaid)
	total := decimal.Zero
	for _, slot := range b.PaymentDetail.Installments {
		if !slot.Paid {
			total = total.Add(slot.Subtotal)
		}
	}
	assert.True(t, total.Equal(expected), "unpaid slots stage %s, want %s", total, expected)

	// Paid slots are left alone.
	assert.True(t, b.PaymentDetail.Installments[0].Paid)
	assert.True(t, b.PaymentDetail.Installments[0].Subtotal.Equal(decimal.NewFromFloat(300.60)))
}

func TestRecalculateScheduleShrinksOpenInvoice(t *testing.T) {
	balance := NewLineItems(premium(1800))
	b := elevenPayAggregate(balance)
	now := effectiveDate.AddDate(0, 1, 0)

	slot2 := b.PaymentDetail.Installments[1]
	inv := NewInvoice("POL-1", "POL-1-0002", InvoiceTypeInstallment, slot2.DueDate, slot2.LineItems)
	inv.InstallmentNumber = 2

	reduction := NewLineItems(premium(-900))
	b.PaymentDetail.AmountDue = b.PaymentDetail.AmountDue.Add(reduction.Subtotal).RoundBank(2)
	b.PaymentDetail.BalanceDue.AddMany(reduction.Items)

	result := RecalculateSchedule(b, map[int]*Invoice{2: inv}, b.NextInvoiceNumber, now)

	assert.Len(t, result.Adjusted, 1)
	// Half the balance is gone, so the staged slot shrank; the open
	// invoice was part-settled down to the new slot amount.
	newAmount := b.PaymentDetail.Installments[1].Subtotal
	assert.True(t, newAmount.LessThan(decimal.NewFromFloat(149.94)))
	assert.True(t, inv.AmountDue.Sub(inv.AmountPaid).Equal(newAmount),
		"invoice outstanding %s, slot %s", inv.AmountDue.Sub(inv.AmountPaid), newAmount)
}

func TestInstallmentTotalDue(t *testing.T) {
	slot := Installment{
		LineItems:      NewLineItems(premium(149.94)),
		Number:         2,
		InstallmentFee: decimal.NewFromInt(4),
	}
	assert.True(t, slot.TotalDue().Equal(decimal.NewFromFloat(153.94)))
}
