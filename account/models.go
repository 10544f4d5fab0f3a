// Package account defines the per-user credit account record.
package account

import (
	"github.com/xraph/credits/types"
)

// Account is the cached view of one user's credit state. It is created
// lazily on first touch and mutated only through ledger operations —
// CreditBalance is a read optimization over the ledger, never a second
// source of truth (the reconciler can rebuild it at any time).
type Account struct {
	types.Entity
	UID           string `json:"uid"`
	CreditBalance int64  `json:"credit_balance"`
	PlanCode      string `json:"plan_code"`
}
