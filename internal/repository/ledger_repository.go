package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/domain"
)

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Charge and payment postings are append-only, keyed by policy id plus
// posting id. The per-term totals the date engine needs are kept as
// plain columns so they can be summed without unpacking the JSON.

func (r *ledgerRepository) AppendCharge(ctx context.Context, charge *domain.Charge) error {
	items, err := json.Marshal(charge.LineItems)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ledger_charges (id, policy_id, charge_type, premium_total, subtotal, line_items, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		charge.ID,
		charge.PolicyID,
		string(charge.Type),
		charge.LineItems.TotalsByType(domain.ItemTypePremium),
		charge.LineItems.Subtotal,
		items,
		charge.PostedAt,
	)
	return err
}

func (r *ledgerRepository) AppendPayment(ctx context.Context, payment *domain.Payment) error {
	items, err := json.Marshal(payment.LineItems)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ledger_payments (id, policy_id, amount, method, confirmation_number, reversed, line_items, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		payment.ID,
		payment.PolicyID,
		payment.Amount,
		string(payment.Method),
		payment.ConfirmationNumber,
		payment.Reversed,
		items,
		payment.PostedAt,
	)
	return err
}

type paymentRow struct {
	ID                 uuid.UUID       `db:"id"`
	PolicyID           string          `db:"policy_id"`
	Amount             decimal.Decimal `db:"amount"`
	Method             string          `db:"method"`
	ConfirmationNumber string          `db:"confirmation_number"`
	Reversed           bool            `db:"reversed"`
	LineItems          []byte          `db:"line_items"`
	PostedAt           time.Time       `db:"posted_at"`
}

func (r *ledgerRepository) GetPayment(ctx context.Context, policyID string, paymentID uuid.UUID) (*domain.Payment, error) {
	query := `
		SELECT id, policy_id, amount, method, confirmation_number, reversed, line_items, posted_at
		FROM ledger_payments
		WHERE policy_id = $1 AND id = $2
	`

	var row paymentRow
	if err := r.db.GetContext(ctx, &row, query, policyID, paymentID); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:                 row.ID,
		PolicyID:           row.PolicyID,
		Amount:             row.Amount,
		Method:             domain.PaymentMethod(row.Method),
		ConfirmationNumber: row.ConfirmationNumber,
		Reversed:           row.Reversed,
		PostedAt:           row.PostedAt,
	}
	if err := json.Unmarshal(row.LineItems, &payment.LineItems); err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *ledgerRepository) MarkPaymentReversed(ctx context.Context, policyID string, paymentID uuid.UUID) error {
	query := `
		UPDATE ledger_payments
		SET reversed = TRUE
		WHERE policy_id = $1 AND id = $2
	`

	_, err := r.db.ExecContext(ctx, query, policyID, paymentID)
	return err
}

func (r *ledgerRepository) TermPremiumTotal(ctx context.Context, policyID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(premium_total), 0)
		FROM ledger_charges
		WHERE policy_id = $1
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, policyID); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// TermPaymentTotal sums every posting, reversed ones included: an NSF
// reversal is its own negative posting, so the pair nets to zero.
func (r *ledgerRepository) TermPaymentTotal(ctx context.Context, policyID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_payments
		WHERE policy_id = $1
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, policyID); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}
