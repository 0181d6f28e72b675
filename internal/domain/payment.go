package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how money arrived.
type PaymentMethod string

const (
	PaymentMethodACH        PaymentMethod = "ach"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodCheck      PaymentMethod = "check"
	PaymentMethodMortgagee  PaymentMethod = "mortgagee"
	PaymentMethodWriteOff   PaymentMethod = "write_off"
	PaymentMethodRefund     PaymentMethod = "refund"
	PaymentMethodNSFReverse PaymentMethod = "nsf_reverse"
)

// PaymentLineItem records an amount applied against one invoice line,
// keyed by the invoice it was applied to. The per-invoice breakdown is
// what makes an NSF reversal able to back the exact application out.
type PaymentLineItem struct {
	InvoiceNumber string `json:"invoice_number" db:"invoice_number"`
	LineItem
}

// Payment is an append-only record of money received (or reversed,
// with a negative amount) for a policy term.
type Payment struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	PolicyID           string            `json:"policy_id" db:"policy_id"`
	Amount             decimal.Decimal   `json:"amount" db:"amount"`
	Method             PaymentMethod     `json:"method" db:"method"`
	ConfirmationNumber string            `json:"confirmation_number,omitempty" db:"confirmation_number"`
	Reversed           bool              `json:"reversed" db:"reversed"`
	LineItems          []PaymentLineItem `json:"line_items"`
	PostedAt           time.Time         `json:"posted_at" db:"posted_at"`
}

// NewPayment creates a payment posting for a policy.
func NewPayment(policyID string, amount decimal.Decimal, method PaymentMethod) *Payment {
	return &Payment{
		ID:       uuid.New(),
		PolicyID: policyID,
		Amount:   money(amount),
		Method:   method,
		PostedAt: time.Now().UTC(),
	}
}

// NSFFeeAmount is the flat fee posted when a payment is returned.
var NSFFeeAmount = decimal.NewFromInt(25)

// ChargeType classifies an append-only charge posting.
type ChargeType string

const (
	ChargeTypeNewBusiness   ChargeType = "new_business"
	ChargeTypeMidtermChange ChargeType = "midterm_change"
	ChargeTypeCancellation  ChargeType = "cancellation"
	ChargeTypeReinstatement ChargeType = "reinstatement"
	ChargeTypeNSFFee        ChargeType = "nsf_fee"
	ChargeTypeWriteOff      ChargeType = "write_off"
)

// Charge is an append-only balance-due posting: new money owed (or a
// reduction, with negative line items) for a policy term.
type Charge struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	PolicyID  string     `json:"policy_id" db:"policy_id"`
	Type      ChargeType `json:"charge_type" db:"charge_type"`
	LineItems LineItems  `json:"line_items"`
	PostedAt  time.Time  `json:"posted_at" db:"posted_at"`
}

// NewCharge creates a charge posting for a policy.
func NewCharge(policyID string, chargeType ChargeType, items LineItems) *Charge {
	return &Charge{
		ID:        uuid.New(),
		PolicyID:  policyID,
		Type:      chargeType,
		LineItems: items,
		PostedAt:  time.Now().UTC(),
	}
}
