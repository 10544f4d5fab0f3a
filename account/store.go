package account

import "context"

// Store is the account slice of the unified store interface.
type Store interface {
	Get(ctx context.Context, uid string) (*Account, error)

	// Init creates the account if absent and returns the stored state
	// either way, plus whether this call created it. Concurrent calls
	// for the same uid converge: every caller writes the same target
	// state, so no mutual exclusion is required beyond the single
	// document write.
	Init(ctx context.Context, acct *Account) (*Account, bool, error)

	// SetBalance overwrites the cached balance. Reserved for the
	// reconciler; all other balance mutation goes through ledger writes.
	SetBalance(ctx context.Context, uid string, balance int64) error
}
