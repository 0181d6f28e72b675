package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/domain"
)

type invoiceRepository struct {
	db *sqlx.DB
}

func NewInvoiceRepository(db *sqlx.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

type invoiceRow struct {
	PolicyID          string          `db:"policy_id"`
	InvoiceNumber     string          `db:"invoice_number"`
	InvoiceType       string          `db:"invoice_type"`
	DueDate           time.Time       `db:"due_date"`
	AmountDue         decimal.Decimal `db:"amount_due"`
	AmountPaid        decimal.Decimal `db:"amount_paid"`
	PaymentStatus     string          `db:"payment_status"`
	InstallmentNumber int             `db:"installment_number"`
	PaymentAttempted  bool            `db:"payment_attempted"`
	LineItems         []byte          `db:"line_items"`
}

func toInvoiceRow(inv *domain.Invoice) (*invoiceRow, error) {
	items, err := json.Marshal(inv.LineItems)
	if err != nil {
		return nil, err
	}
	return &invoiceRow{
		PolicyID:          inv.PolicyID,
		InvoiceNumber:     inv.InvoiceNumber,
		InvoiceType:       string(inv.InvoiceType),
		DueDate:           inv.DueDate,
		AmountDue:         inv.AmountDue,
		AmountPaid:        inv.AmountPaid,
		PaymentStatus:     string(inv.PaymentStatus),
		InstallmentNumber: inv.InstallmentNumber,
		PaymentAttempted:  inv.PaymentAttempted,
		LineItems:         items,
	}, nil
}

func (r *invoiceRow) toDomain() (*domain.Invoice, error) {
	inv := &domain.Invoice{
		PolicyID:          r.PolicyID,
		InvoiceNumber:     r.InvoiceNumber,
		InvoiceType:       domain.InvoiceType(r.InvoiceType),
		DueDate:           r.DueDate,
		AmountDue:         r.AmountDue,
		AmountPaid:        r.AmountPaid,
		PaymentStatus:     domain.PaymentStatus(r.PaymentStatus),
		InstallmentNumber: r.InstallmentNumber,
		PaymentAttempted:  r.PaymentAttempted,
	}
	if err := json.Unmarshal(r.LineItems, &inv.LineItems); err != nil {
		return nil, err
	}
	return inv, nil
}

const invoiceColumns = `
	policy_id, invoice_number, invoice_type, due_date, amount_due,
	amount_paid, payment_status, installment_number, payment_attempted,
	line_items
`

const invoiceUpsert = `
	INSERT INTO invoices (` + invoiceColumns + `)
	VALUES (:policy_id, :invoice_number, :invoice_type, :due_date, :amount_due,
		:amount_paid, :payment_status, :installment_number, :payment_attempted,
		:line_items)
	ON CONFLICT (policy_id, invoice_number) DO UPDATE
	SET due_date = EXCLUDED.due_date,
		amount_due = EXCLUDED.amount_due,
		amount_paid = EXCLUDED.amount_paid,
		payment_status = EXCLUDED.payment_status,
		payment_attempted = EXCLUDED.payment_attempted,
		line_items = EXCLUDED.line_items
`

func (r *invoiceRepository) Save(ctx context.Context, invoice *domain.Invoice) error {
	row, err := toInvoiceRow(invoice)
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx, invoiceUpsert, row)
	return err
}

func (r *invoiceRepository) SaveAll(ctx context.Context, invoices []*domain.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, invoice := range invoices {
		row, err := toInvoiceRow(invoice)
		if err != nil {
			return err
		}
		if _, err = tx.NamedExecContext(ctx, invoiceUpsert, row); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, policyID, invoiceNumber string) (*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE policy_id = $1 AND invoice_number = $2
	`

	var row invoiceRow
	if err := r.db.GetContext(ctx, &row, query, policyID, invoiceNumber); err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *invoiceRepository) ListByPolicy(ctx context.Context, policyID string) ([]*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE policy_id = $1
		ORDER BY invoice_number
	`

	return r.list(ctx, query, policyID)
}

func (r *invoiceRepository) ListOpenByPolicy(ctx context.Context, policyID string) ([]*domain.Invoice, error) {
	query := `
		SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE policy_id = $1 AND payment_status = 'pending'
		ORDER BY due_date
	`

	return r.list(ctx, query, policyID)
}

func (r *invoiceRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invoice, error) {
	var rows []invoiceRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	invoices := make([]*domain.Invoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}
