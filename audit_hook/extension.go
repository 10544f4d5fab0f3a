// Package audithook bridges Credits lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnAccountCreated      = (*Extension)(nil)
	_ plugin.OnPlanSwitched        = (*Extension)(nil)
	_ plugin.OnMonthlyRerolled     = (*Extension)(nil)
	_ plugin.OnPaymentRequired     = (*Extension)(nil)
	_ plugin.OnDebitConfirmed      = (*Extension)(nil)
	_ plugin.OnInsufficientBalance = (*Extension)(nil)
	_ plugin.OnManualGranted       = (*Extension)(nil)
	_ plugin.OnReconciled          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Credits lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, acct interface{}) error {
	var uid string
	var planCode string
	if a, ok := acct.(*account.Account); ok {
		uid = a.UID
		planCode = a.PlanCode
	}
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, uid, CategoryBilling, nil,
		"uid", uid,
		"plan", planCode,
	)
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanSwitched implements plugin.OnPlanSwitched.
func (e *Extension) OnPlanSwitched(ctx context.Context, uid, fromPlan, toPlan string) error {
	return e.record(ctx, ActionPlanSwitched, SeverityInfo, OutcomeSuccess,
		ResourcePlan, uid, CategoryBilling, nil,
		"uid", uid,
		"from_plan", fromPlan,
		"to_plan", toPlan,
	)
}

// OnMonthlyRerolled implements plugin.OnMonthlyRerolled.
func (e *Extension) OnMonthlyRerolled(ctx context.Context, uid, cycle string, balance int64) error {
	return e.record(ctx, ActionMonthlyReroll, SeverityInfo, OutcomeSuccess,
		ResourcePlan, uid, CategoryBilling, nil,
		"uid", uid,
		"cycle", cycle,
		"balance", balance,
	)
}

// ──────────────────────────────────────────────────
// Charge lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentRequired implements plugin.OnPaymentRequired.
func (e *Extension) OnPaymentRequired(ctx context.Context, uid string, required, balance int64) error {
	return e.record(ctx, ActionPaymentRequired, SeverityWarning, OutcomeFailure,
		ResourceCharge, uid, CategoryPayment, nil,
		"uid", uid,
		"required", required,
		"balance", balance,
	)
}

// OnDebitConfirmed implements plugin.OnDebitConfirmed.
func (e *Extension) OnDebitConfirmed(ctx context.Context, entry interface{}) error {
	var entryID, uid, reason string
	var amount int64
	if ent, ok := entry.(*ledger.Entry); ok {
		entryID = ent.ID
		uid = ent.UID
		reason = ent.Reason
		amount = ent.Amount
	}
	return e.record(ctx, ActionDebitConfirmed, SeverityInfo, OutcomeSuccess,
		ResourceCharge, entryID, CategoryPayment, nil,
		"uid", uid,
		"amount", amount,
		"reason", reason,
	)
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (e *Extension) OnInsufficientBalance(ctx context.Context, uid, entryID string, amount int64) error {
	return e.record(ctx, ActionInsufficientBalance, SeverityWarning, OutcomeFailure,
		ResourceCharge, entryID, CategoryPayment, nil,
		"uid", uid,
		"amount", amount,
	)
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// OnManualGranted implements plugin.OnManualGranted.
func (e *Extension) OnManualGranted(ctx context.Context, entry interface{}) error {
	var entryID, uid, reason string
	var amount int64
	if ent, ok := entry.(*ledger.Entry); ok {
		entryID = ent.ID
		uid = ent.UID
		reason = ent.Reason
		amount = ent.Amount
	}
	return e.record(ctx, ActionManualGranted, SeverityInfo, OutcomeSuccess,
		ResourceGrant, entryID, CategoryBilling, nil,
		"uid", uid,
		"amount", amount,
		"reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnReconciled implements plugin.OnReconciled.
func (e *Extension) OnReconciled(ctx context.Context, uid string, previous, replayed int64) error {
	return e.record(ctx, ActionReconciled, SeverityWarning, OutcomeSuccess,
		ResourceBalance, uid, CategoryBilling, nil,
		"uid", uid,
		"previous", previous,
		"replayed", replayed,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
