package store

import (
	"context"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
)

// Store is the unified storage interface for all credit entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Plan methods
	UpsertPlans(ctx context.Context, plans []*plan.Plan) error
	GetPlan(ctx context.Context, code string) (*plan.Plan, error)
	ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error)

	// Account methods
	GetAccount(ctx context.Context, uid string) (*account.Account, error)
	InitAccount(ctx context.Context, acct *account.Account) (*account.Account, bool, error)
	SetBalance(ctx context.Context, uid string, balance int64) error

	// Ledger methods. Entries are append-only and keyed by (uid, entry id);
	// a duplicate id returns credits.ErrDuplicateEntry with no mutation.
	ApplyReset(ctx context.Context, e *ledger.Entry, planCode string) error
	ApplyCredit(ctx context.Context, e *ledger.Entry) error
	ApplyDebit(ctx context.Context, e *ledger.Entry) error
	GetEntry(ctx context.Context, uid, entryID string) (*ledger.Entry, error)
	ListEntries(ctx context.Context, uid string, opts ledger.ListOpts) ([]*ledger.Entry, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
