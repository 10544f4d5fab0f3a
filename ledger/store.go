package ledger

import (
	"context"
	"time"
)

// Store is the ledger slice of the unified store interface. All three
// Apply methods are idempotent on the entry id: a duplicate id returns
// credits.ErrDuplicateEntry and writes nothing.
type Store interface {
	// ApplyReset appends a reset GRANT and overwrites the account's
	// balance to the entry amount, setting planCode. Used by plan
	// switches and monthly rerolls.
	ApplyReset(ctx context.Context, e *Entry, planCode string) error

	// ApplyCredit appends an additive GRANT (manual top-up) and
	// increments the balance by the entry amount.
	ApplyCredit(ctx context.Context, e *Entry) error

	// ApplyDebit appends a DEBIT and decrements the balance, committing
	// only if the balance is at least the entry amount at write time
	// (conditional decrement). Returns credits.ErrInsufficientBalance
	// when the condition fails; nothing is written in that case.
	ApplyDebit(ctx context.Context, e *Entry) error

	Get(ctx context.Context, uid, entryID string) (*Entry, error)

	// List returns the user's entries in creation order.
	List(ctx context.Context, uid string, opts ListOpts) ([]*Entry, error)
}

// ListOpts filters ledger listings.
type ListOpts struct {
	Since  time.Time // inclusive lower bound on CreatedAt; zero means all
	Type   Type      // empty means both
	Limit  int
	Offset int
}
