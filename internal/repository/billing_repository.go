package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/domain"
)

type billingRepository struct {
	db *sqlx.DB
}

func NewBillingRepository(db *sqlx.DB) BillingRepository {
	return &billingRepository{db: db}
}

// billingRow maps the aggregate onto the policy_billing table. The
// nested plan/detail/status structures are stored as JSONB documents;
// the columns the indexes and the lock condition need stay relational.
type billingRow struct {
	PolicyID         string          `db:"policy_id"`
	ProductCode      string          `db:"product_code"`
	AgencyID         string          `db:"agency_id"`
	DueDate          time.Time       `db:"due_date"`
	CancelDate       time.Time       `db:"cancel_date"`
	CancellationDate *time.Time      `db:"cancellation_date"`
	EffectiveDate    time.Time       `db:"effective_date"`
	ExpirationDate   time.Time       `db:"expiration_date"`
	PolicyEquity     decimal.Decimal `db:"policy_equity"`
	PaymentPlan      []byte          `db:"payment_plan"`
	PaymentDetail    []byte          `db:"payment_detail"`
	LockStatus       string          `db:"lock_status"`
	PaymentProgress  string          `db:"payment_progress"`
	Delinquency      string          `db:"delinquency_status"`
	InvoiceProgress  string          `db:"invoice_progress"`
	IsStatementSent  bool            `db:"is_statement_sent"`
	NextInvoiceSeq   int             `db:"next_invoice_seq"`
	LockTimestamp    int64           `db:"lock_timestamp"`
}

func toRow(b *domain.BillingAggregate) (*billingRow, error) {
	plan, err := json.Marshal(b.PaymentPlan)
	if err != nil {
		return nil, err
	}
	detail, err := json.Marshal(b.PaymentDetail)
	if err != nil {
		return nil, err
	}
	return &billingRow{
		PolicyID:         b.PolicyID,
		ProductCode:      b.ProductCode,
		AgencyID:         b.AgencyID,
		DueDate:          b.DueDate,
		CancelDate:       b.CancelDate,
		CancellationDate: b.CancellationDate,
		EffectiveDate:    b.EffectiveDate,
		ExpirationDate:   b.ExpirationDate,
		PolicyEquity:     b.PolicyEquity,
		PaymentPlan:      plan,
		PaymentDetail:    detail,
		LockStatus:       string(b.BillingStatus.LockStatus),
		PaymentProgress:  string(b.BillingStatus.PaymentStatus),
		Delinquency:      string(b.BillingStatus.DelinquencyStatus),
		InvoiceProgress:  string(b.BillingStatus.InvoiceStatus),
		IsStatementSent:  b.IsStatementSent,
		NextInvoiceSeq:   b.NextInvoiceSeq,
		LockTimestamp:    b.Timestamp,
	}, nil
}

func (r *billingRow) toDomain() (*domain.BillingAggregate, error) {
	b := &domain.BillingAggregate{
		PolicyID:         r.PolicyID,
		ProductCode:      r.ProductCode,
		AgencyID:         r.AgencyID,
		DueDate:          r.DueDate,
		CancelDate:       r.CancelDate,
		CancellationDate: r.CancellationDate,
		EffectiveDate:    r.EffectiveDate,
		ExpirationDate:   r.ExpirationDate,
		PolicyEquity:     r.PolicyEquity,
		IsStatementSent:  r.IsStatementSent,
		NextInvoiceSeq:   r.NextInvoiceSeq,
		Timestamp:        r.LockTimestamp,
	}
	if err := json.Unmarshal(r.PaymentPlan, &b.PaymentPlan); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.PaymentDetail, &b.PaymentDetail); err != nil {
		return nil, err
	}
	b.BillingStatus = domain.BillingStatus{
		LockStatus:        domain.LockStatus(r.LockStatus),
		PaymentStatus:     domain.PaymentProgress(r.PaymentProgress),
		DelinquencyStatus: domain.DelinquencyStatus(r.Delinquency),
		InvoiceStatus:     domain.InvoiceProgress(r.InvoiceProgress),
	}
	return b, nil
}

const billingColumns = `
	policy_id, product_code, agency_id, due_date, cancel_date,
	cancellation_date, effective_date, expiration_date, policy_equity,
	payment_plan, payment_detail, lock_status, payment_progress,
	delinquency_status, invoice_progress, is_statement_sent,
	next_invoice_seq, lock_timestamp
`

func (r *billingRepository) Create(ctx context.Context, billing *domain.BillingAggregate) error {
	row, err := toRow(billing)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO policy_billing (` + billingColumns + `)
		VALUES (:policy_id, :product_code, :agency_id, :due_date, :cancel_date,
			:cancellation_date, :effective_date, :expiration_date, :policy_equity,
			:payment_plan, :payment_detail, :lock_status, :payment_progress,
			:delinquency_status, :invoice_progress, :is_statement_sent,
			:next_invoice_seq, :lock_timestamp)
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *billingRepository) GetByPolicyID(ctx context.Context, policyID string) (*domain.BillingAggregate, error) {
	query := `SELECT ` + billingColumns + ` FROM policy_billing WHERE policy_id = $1`

	var row billingRow
	if err := r.db.GetContext(ctx, &row, query, policyID); err != nil {
		return nil, err
	}

	return row.toDomain()
}

func (r *billingRepository) Update(ctx context.Context, billing *domain.BillingAggregate) error {
	row, err := toRow(billing)
	if err != nil {
		return err
	}

	query := `
		UPDATE policy_billing
		SET due_date = :due_date,
			cancel_date = :cancel_date,
			cancellation_date = :cancellation_date,
			policy_equity = :policy_equity,
			payment_plan = :payment_plan,
			payment_detail = :payment_detail,
			payment_progress = :payment_progress,
			delinquency_status = :delinquency_status,
			invoice_progress = :invoice_progress,
			is_statement_sent = :is_statement_sent,
			next_invoice_seq = :next_invoice_seq
		WHERE policy_id = :policy_id
	`

	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

// AcquireLock is a single conditional update: it only succeeds when the
// stored lease is not in_process, or was taken longer ago than the TTL
// (a crashed worker must not wedge the policy out of future runs). The
// post-update snapshot is returned so the caller works from the state
// it locked.
func (r *billingRepository) AcquireLock(ctx context.Context, policyID string, now time.Time, ttl time.Duration) (*domain.BillingAggregate, bool, error) {
	query := `
		UPDATE policy_billing
		SET lock_status = $2, lock_timestamp = $3
		WHERE policy_id = $1
		  AND (lock_status <> $2 OR lock_timestamp < $4)
		RETURNING ` + billingColumns

	cutoff := now.Add(-ttl).UnixMilli()

	var row billingRow
	err := r.db.GetContext(ctx, &row, query,
		policyID,
		string(domain.LockInProcess),
		now.UnixMilli(),
		cutoff,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	billing, err := row.toDomain()
	if err != nil {
		return nil, false, err
	}
	return billing, true, nil
}

func (r *billingRepository) ReleaseLock(ctx context.Context, policyID string, final domain.LockStatus, now time.Time) error {
	query := `
		UPDATE policy_billing
		SET lock_status = $2, lock_timestamp = $3
		WHERE policy_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, policyID, string(final), now.UnixMilli())
	return err
}

func (r *billingRepository) ListByCancelDate(ctx context.Context, product string, through time.Time) ([]string, error) {
	query := `
		SELECT policy_id
		FROM policy_billing
		WHERE product_code = $1 AND cancel_date <= $2 AND cancellation_date IS NULL
		ORDER BY cancel_date
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, product, through); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *billingRepository) ListByDueDate(ctx context.Context, product string, through time.Time) ([]string, error) {
	query := `
		SELECT policy_id
		FROM policy_billing
		WHERE product_code = $1 AND due_date <= $2 AND cancellation_date IS NULL
		ORDER BY due_date
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, product, through); err != nil {
		return nil, err
	}
	return ids, nil
}
