package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/policycore/billing-engine/internal/domain"
)

// BillingRepository defines the interface for billing aggregate operations
type BillingRepository interface {
	// Create creates a new billing aggregate
	Create(ctx context.Context, billing *domain.BillingAggregate) error

	// GetByPolicyID retrieves the billing aggregate for a policy
	GetByPolicyID(ctx context.Context, policyID string) (*domain.BillingAggregate, error)

	// Update persists the full aggregate state
	Update(ctx context.Context, billing *domain.BillingAggregate) error

	// AcquireLock takes the scheduler lease via a conditional update.
	// A false return means the lease is held and fresh: skip the
	// policy, it is not an error.
	AcquireLock(ctx context.Context, policyID string, now time.Time, ttl time.Duration) (*domain.BillingAggregate, bool, error)

	// ReleaseLock unconditionally sets the final lock status
	ReleaseLock(ctx context.Context, policyID string, final domain.LockStatus, now time.Time) error

	// ListByCancelDate lists policy ids for a product whose cancel date
	// is on or before the given date
	ListByCancelDate(ctx context.Context, product string, through time.Time) ([]string, error)

	// ListByDueDate lists policy ids for a product whose due date is on
	// or before the given date
	ListByDueDate(ctx context.Context, product string, through time.Time) ([]string, error)
}

// InvoiceRepository defines the interface for invoice records
type InvoiceRepository interface {
	// Save upserts one invoice record
	Save(ctx context.Context, invoice *domain.Invoice) error

	// SaveAll upserts a batch of invoice records in one transaction
	SaveAll(ctx context.Context, invoices []*domain.Invoice) error

	// GetByNumber retrieves an invoice by policy id and invoice number
	GetByNumber(ctx context.Context, policyID, invoiceNumber string) (*domain.Invoice, error)

	// ListByPolicy retrieves all invoices for a policy
	ListByPolicy(ctx context.Context, policyID string) ([]*domain.Invoice, error)

	// ListOpenByPolicy retrieves the Pending invoices for a policy
	ListOpenByPolicy(ctx context.Context, policyID string) ([]*domain.Invoice, error)
}

// LedgerRepository holds the append-only charge and payment postings
// for a policy term
type LedgerRepository interface {
	// AppendCharge appends a balance-due posting
	AppendCharge(ctx context.Context, charge *domain.Charge) error

	// AppendPayment appends a payment posting
	AppendPayment(ctx context.Context, payment *domain.Payment) error

	// GetPayment retrieves a payment posting
	GetPayment(ctx context.Context, policyID string, paymentID uuid.UUID) (*domain.Payment, error)

	// MarkPaymentReversed flags a payment posting as reversed
	MarkPaymentReversed(ctx context.Context, policyID string, paymentID uuid.UUID) error

	// TermPremiumTotal sums the premium posted for the term
	TermPremiumTotal(ctx context.Context, policyID string) (decimal.Decimal, error)

	// TermPaymentTotal sums the payments posted for the term
	TermPaymentTotal(ctx context.Context, policyID string) (decimal.Decimal, error)
}

// ActivityLogRepository records the human-readable audit trail.
// Best-effort: callers log failures and continue.
type ActivityLogRepository interface {
	Record(ctx context.Context, policyID, agencyID, template string, properties map[string]any) error
}
