package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrPolicyNotFound           = errors.New("policy billing not found")
	ErrBillingAlreadyExists     = errors.New("billing already exists for policy")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrUnknownAccount           = errors.New("unknown account or item type")
	ErrUnsupportedPlanOperation = errors.New("operation not supported for payment plan")
	ErrInvoiceNotFound          = errors.New("invoice not found")
	ErrPaymentNotFound          = errors.New("payment not found")
	ErrPaymentAlreadyReversed   = errors.New("payment already reversed")
	ErrPolicyCancelled          = errors.New("policy is cancelled")
	ErrPolicyNotCancelled       = errors.New("policy is not cancelled")
	ErrProviderFailure          = errors.New("payment provider call failed")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodePolicyNotFound           = "POLICY_NOT_FOUND"
	ErrCodeBillingAlreadyExists     = "BILLING_ALREADY_EXISTS"
	ErrCodeInvalidAmount            = "INVALID_AMOUNT"
	ErrCodeUnknownAccount           = "UNKNOWN_ACCOUNT"
	ErrCodeUnsupportedPlanOperation = "UNSUPPORTED_PLAN_OPERATION"
	ErrCodeInvoiceNotFound          = "INVOICE_NOT_FOUND"
	ErrCodePaymentNotFound          = "PAYMENT_NOT_FOUND"
	ErrCodePaymentAlreadyReversed   = "PAYMENT_ALREADY_REVERSED"
	ErrCodePolicyCancelled          = "POLICY_CANCELLED"
	ErrCodePolicyNotCancelled       = "POLICY_NOT_CANCELLED"
	ErrCodeProviderFailure          = "PROVIDER_FAILURE"
	ErrCodeDatabaseError            = "DATABASE_ERROR"
	ErrCodeCacheError               = "CACHE_ERROR"
)

// Wrap common errors with business context

func WrapPolicyNotFound(policyID string) *BusinessError {
	return NewBusinessError(
		ErrCodePolicyNotFound,
		fmt.Sprintf("Billing for policy %s not found", policyID),
		ErrPolicyNotFound,
	)
}

func WrapBillingAlreadyExists(policyID string) *BusinessError {
	return NewBusinessError(
		ErrCodeBillingAlreadyExists,
		fmt.Sprintf("Billing for policy %s already exists", policyID),
		ErrBillingAlreadyExists,
	)
}

func WrapUnsupportedPlanOperation(policyID, operation string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnsupportedPlanOperation,
		fmt.Sprintf("Operation %s is not supported by the payment plan on policy %s", operation, policyID),
		ErrUnsupportedPlanOperation,
	)
}

func WrapUnknownAccount(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeUnknownAccount,
		"Line item category failed validation",
		errors.Join(ErrUnknownAccount, err),
	)
}

func WrapInvalidAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidAmount,
		fmt.Sprintf("Invalid amount: %s", amount),
		ErrInvalidAmount,
	)
}

func WrapInvoiceNotFound(invoiceNumber string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvoiceNotFound,
		fmt.Sprintf("Invoice %s not found", invoiceNumber),
		ErrInvoiceNotFound,
	)
}

func WrapPaymentNotFound(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment %s not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapPaymentAlreadyReversed(paymentID string) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentAlreadyReversed,
		fmt.Sprintf("Payment %s was already reversed", paymentID),
		ErrPaymentAlreadyReversed,
	)
}

func WrapProviderFailure(status string) *BusinessError {
	return NewBusinessError(
		ErrCodeProviderFailure,
		fmt.Sprintf("Payment provider returned %s", status),
		ErrProviderFailure,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
