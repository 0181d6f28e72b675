package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/pkg/utils"
)

// LineItemInput is an unvalidated line item crossing the API boundary.
// It is converted through ParseLineItems before touching the ledger.
type LineItemInput struct {
	Amount         string `json:"amount" validate:"required"`
	ItemType       string `json:"item_type" validate:"required"`
	Account        string `json:"account" validate:"required"`
	WritingCompany string `json:"writing_company" validate:"required"`
}

// ParseLineItems validates and converts boundary inputs into a ledger
// collection. Any unknown category rejects the whole batch before any
// mutation happens.
func ParseLineItems(inputs []LineItemInput) (LineItems, error) {
	var items LineItems
	for _, in := range inputs {
		amount, err := utils.DecimalFromString(in.Amount)
		if err != nil {
			return LineItems{}, err
		}
		account, err := ParseAccount(in.Account)
		if err != nil {
			return LineItems{}, err
		}
		itemType, err := ParseItemType(in.ItemType)
		if err != nil {
			return LineItems{}, err
		}
		items.Add(LineItem{
			Amount:         amount,
			ItemType:       itemType,
			Account:        account,
			WritingCompany: in.WritingCompany,
		})
	}
	return items, nil
}

// DTOs for requests and responses

type CreateBillingRequest struct {
	PolicyID         string          `json:"policy_id" validate:"required"`
	ProductCode      string          `json:"product_code" validate:"required"`
	AgencyID         string          `json:"agency_id" validate:"required"`
	EffectiveDate    time.Time       `json:"effective_date" validate:"required"`
	ExpirationDate   time.Time       `json:"expiration_date" validate:"required,gtfield=EffectiveDate"`
	PaymentPlan      string          `json:"payment_plan" validate:"required,oneof=full_pay eleven_pay"`
	ResponsibleParty string          `json:"responsible_party" validate:"required,oneof=insured mortgagee"`
	LineItems        []LineItemInput `json:"line_items" validate:"required,min=1,dive"`
}

type PostChargeRequest struct {
	ChargeType string          `json:"charge_type" validate:"required,oneof=midterm_change cancellation reinstatement write_off"`
	LineItems  []LineItemInput `json:"line_items" validate:"required,min=1,dive"`
}

type PaymentRequest struct {
	Amount             string `json:"amount" validate:"required"`
	Method             string `json:"method" validate:"required,oneof=ach card check mortgagee"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`
}

type RefundRequest struct {
	Amount string `json:"amount" validate:"required"`
}

type CancelRequest struct {
	CancellationDate time.Time `json:"cancellation_date" validate:"required"`
}

type OutstandingResponse struct {
	PolicyID    string          `json:"policy_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
	DueDate     time.Time       `json:"due_date"`
	CancelDate  time.Time       `json:"cancel_date"`
}

type ScheduleResponse struct {
	PolicyID         string        `json:"policy_id"`
	InstallmentsLeft int           `json:"installments_left"`
	Schedule         []Installment `json:"schedule"`
}
