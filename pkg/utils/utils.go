package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// TruncateToDay drops the time-of-day component.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// InstallmentDueDate calculates the due date for an installment slot.
// Slot 1 is due on the effective date, each following slot 30 days
// after the previous one.
func InstallmentDueDate(effectiveDate time.Time, installmentNumber int) time.Time {
	return effectiveDate.AddDate(0, 0, 30*(installmentNumber-1))
}

// IsDateOverdue reports whether a due date has been reached, at day
// granularity. A date due today counts.
func IsDateOverdue(dueDate, now time.Time) bool {
	return !TruncateToDay(dueDate).After(TruncateToDay(now))
}

// DecimalFromString converts string to decimal.Decimal.
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
