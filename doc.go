// Package credits provides an embeddable prepaid credit engine for Go
// applications.
//
// Credits is designed as a library, not a service. Import it directly into
// your Go application and put it in front of any operation with a per-use
// cost. It provides:
//
//   - Per-user integer credit balances backed by an append-only ledger
//   - Idempotent charging keyed on caller-chosen entry ids
//   - Plan switching and monthly allowance rerolls with exactly-once resets
//   - Versioned, deterministic pricing for generation-style workloads
//   - Manual top-ups and redeemable promo coupons
//   - Ledger replay reconciliation that heals cached-balance drift
//   - Pluggable lifecycle hooks for audit trails and metrics
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/credits"
//	    "github.com/xraph/credits/store/postgres"
//	)
//
//	// db is the application's *grove.DB, opened on the postgres driver.
//	store := postgres.New(db)
//
//	// Create engine
//	eng := credits.New(store)
//
//	// Start (migrates the schema and seeds the plan catalog)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Every balance change is a ledger entry, and every entry id is an
// idempotency key: writing an id that already exists for the user is a
// no-op. Deterministic ids make the scheduled operations self-deduping:
//
//	PLAN_SWITCH_PRO_2          // the account's third plan switch, to PRO
//	PLAN_MONTHLY_RESET_2026-08 // at most one reroll per UTC month
//
// Charging a paid operation is a two-phase flow:
//
//	auth, err := eng.PreAuthorize(ctx, uid, pricing.Request{
//	    Provider:  "flux",
//	    Operation: "image.generate",
//	    Model:     "flux-pro",
//	})
//	if err != nil {
//	    // credits.ErrPaymentRequired means the balance cannot cover it
//	    return err
//	}
//
//	// ... run the paid operation ...
//
//	if err := eng.Confirm(ctx, auth); err != nil {
//	    return err
//	}
//
// Nothing is reserved between the two phases. A concurrent spender can
// drain the balance after PreAuthorize succeeds; the debit's conditional
// decrement then fails with credits.ErrInsufficientBalance instead of
// taking the balance negative.
//
// The cached balance on the account is a view, not the source of truth.
// Reconcile replays the ledger in order and corrects the cached value
// whenever the two disagree.
//
// # Integration
//
// The extension subpackage adapts the engine to Forge applications with
// configuration-driven store selection, and the observability and
// audit_hook subpackages ship ready-made plugins for metrics and audit
// trails.
package credits
