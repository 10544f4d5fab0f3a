package credits

import (
	"errors"
	"fmt"

	"github.com/xraph/credits/pricing"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("credits: not found")
	ErrInvalidInput = errors.New("credits: invalid input")

	// Account errors
	ErrAccountNotFound = errors.New("credits: account not found")

	// Plan errors
	ErrPlanNotFound = errors.New("credits: plan not found")
	ErrPlanInactive = errors.New("credits: plan is inactive")

	// Coupon errors
	ErrCouponNotFound = errors.New("credits: coupon not found")
	ErrCouponExpired  = errors.New("credits: coupon not redeemable")

	// Ledger errors
	ErrEntryNotFound = errors.New("credits: ledger entry not found")

	// ErrDuplicateEntry signals that the entry id already exists for the
	// user. Idempotent writes treat it as success, not failure; the
	// engine swallows it and returns current state.
	ErrDuplicateEntry = errors.New("credits: duplicate ledger entry")

	// ErrInsufficientBalance is the conditional-decrement failure: the
	// balance was below the debit amount at commit time.
	ErrInsufficientBalance = errors.New("credits: insufficient balance")

	// ErrPaymentRequired is the pre-authorization rejection: the balance
	// cannot cover the priced request. No mutation has occurred.
	ErrPaymentRequired = errors.New("credits: payment required")

	// ErrUnsupportedModel is re-exported from pricing for callers that
	// only import the root package.
	ErrUnsupportedModel = pricing.ErrUnsupportedModel

	// Store errors
	ErrStoreNotReady = errors.New("credits: store not ready")
	ErrStoreClosed   = errors.New("credits: store is closed")
)

// PaymentRequiredError carries the numbers a 402 response needs.
// It unwraps to ErrPaymentRequired.
type PaymentRequiredError struct {
	RequiredCredits int64
	CurrentBalance  int64
}

func (e *PaymentRequiredError) Error() string {
	return fmt.Sprintf("credits: payment required: need %d, balance %d",
		e.RequiredCredits, e.CurrentBalance)
}

func (e *PaymentRequiredError) Unwrap() error { return ErrPaymentRequired }

// InsufficientBalanceError reports a debit that lost the race since
// pre-authorization: the conditional decrement found the balance below
// the amount. The paid action is unbilled; the caller must report that
// upstream. It unwraps to ErrInsufficientBalance.
type InsufficientBalanceError struct {
	UID     string
	EntryID string
	Amount  int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("credits: insufficient balance at debit: uid=%s entry=%s amount=%d",
		e.UID, e.EntryID, e.Amount)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// IsNotFound returns true if the error is any not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrCouponNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsPaymentError returns true for errors that represent a legitimate
// business rejection of a paid operation rather than a fault: the caller
// should surface them, not retry them.
func IsPaymentError(err error) bool {
	return errors.Is(err, ErrPaymentRequired) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrUnsupportedModel)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried. Retries of ConfirmDebit must reuse the same
// idempotency key so the at-most-once guarantee holds.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady)
}
