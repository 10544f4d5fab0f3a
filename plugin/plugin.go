// Package plugin provides an extensible plugin system for the credit
// engine. Plugins can hook into various lifecycle events to extend
// functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called the first time a user's account is seeded.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, acct interface{}) error
}

// OnPlanSwitched is called after a user moves to a new plan.
type OnPlanSwitched interface {
	Plugin
	OnPlanSwitched(ctx context.Context, uid, fromPlan, toPlan string) error
}

// OnMonthlyRerolled is called after a cycle's balance reset is written.
type OnMonthlyRerolled interface {
	Plugin
	OnMonthlyRerolled(ctx context.Context, uid, cycle string, balance int64) error
}

// ──────────────────────────────────────────────────
// Charging hooks
// ──────────────────────────────────────────────────

// OnPreAuthorized is called when a priced request passes the balance check.
type OnPreAuthorized interface {
	Plugin
	OnPreAuthorized(ctx context.Context, uid, key string, cost int64) error
}

// OnPaymentRequired is called when a priced request is rejected for
// insufficient balance before any work runs.
type OnPaymentRequired interface {
	Plugin
	OnPaymentRequired(ctx context.Context, uid string, required, balance int64) error
}

// OnDebitConfirmed is called after a debit entry commits. Replays of an
// already-recorded idempotency key do not re-fire it.
type OnDebitConfirmed interface {
	Plugin
	OnDebitConfirmed(ctx context.Context, entry interface{}) error
}

// OnInsufficientBalance is called when the conditional decrement at
// confirmation time finds the balance below the debit amount.
type OnInsufficientBalance interface {
	Plugin
	OnInsufficientBalance(ctx context.Context, uid, entryID string, amount int64) error
}

// ──────────────────────────────────────────────────
// Grant and reconciliation hooks
// ──────────────────────────────────────────────────

// OnManualGranted is called after a manual top-up commits.
type OnManualGranted interface {
	Plugin
	OnManualGranted(ctx context.Context, entry interface{}) error
}

// OnReconciled is called when a ledger replay corrected a drifted
// cached balance. Clean reconciliations do not fire it.
type OnReconciled interface {
	Plugin
	OnReconciled(ctx context.Context, uid string, previous, replayed int64) error
}
