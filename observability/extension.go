// Package observability provides a metrics plugin for Credits that records
// lifecycle event counts via a caller-supplied MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated      = (*MetricsExtension)(nil)
	_ plugin.OnPlanSwitched        = (*MetricsExtension)(nil)
	_ plugin.OnMonthlyRerolled     = (*MetricsExtension)(nil)
	_ plugin.OnPreAuthorized       = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRequired     = (*MetricsExtension)(nil)
	_ plugin.OnDebitConfirmed      = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientBalance = (*MetricsExtension)(nil)
	_ plugin.OnManualGranted       = (*MetricsExtension)(nil)
	_ plugin.OnReconciled          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Credits plugin to automatically track billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountCreated Counter

	// Plan metrics
	PlanSwitched  Counter
	MonthlyReroll Counter
	RerollBalance Histogram

	// Charge metrics
	PreAuthorized       Counter
	PaymentRequired     Counter
	DebitConfirmed      Counter
	DebitAmount         Histogram
	InsufficientBalance Counter

	// Grant metrics
	ManualGranted Counter
	GrantAmount   Histogram

	// Reconciliation metrics
	Reconciled     Counter
	ReconcileDrift Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountCreated: factory.Counter("credits.account.created"),

		// Plan metrics
		PlanSwitched:  factory.Counter("credits.plan.switched"),
		MonthlyReroll: factory.Counter("credits.plan.monthly_reroll"),
		RerollBalance: factory.Histogram("credits.plan.reroll.balance"),

		// Charge metrics
		PreAuthorized:       factory.Counter("credits.charge.preauthorized"),
		PaymentRequired:     factory.Counter("credits.charge.payment_required"),
		DebitConfirmed:      factory.Counter("credits.charge.confirmed"),
		DebitAmount:         factory.Histogram("credits.charge.amount"),
		InsufficientBalance: factory.Counter("credits.charge.insufficient_balance"),

		// Grant metrics
		ManualGranted: factory.Counter("credits.grant.manual"),
		GrantAmount:   factory.Histogram("credits.grant.amount"),

		// Reconciliation metrics
		Reconciled:     factory.Counter("credits.reconcile.adjusted"),
		ReconcileDrift: factory.Histogram("credits.reconcile.drift"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Account lifecycle hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ interface{}) error {
	m.AccountCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanSwitched implements plugin.OnPlanSwitched.
func (m *MetricsExtension) OnPlanSwitched(_ context.Context, _, _, _ string) error {
	m.PlanSwitched.Inc()
	return nil
}

// OnMonthlyRerolled implements plugin.OnMonthlyRerolled.
func (m *MetricsExtension) OnMonthlyRerolled(_ context.Context, _, _ string, balance int64) error {
	m.MonthlyReroll.Inc()
	m.RerollBalance.Observe(float64(balance))
	return nil
}

// ──────────────────────────────────────────────────
// Charge lifecycle hooks
// ──────────────────────────────────────────────────

// OnPreAuthorized implements plugin.OnPreAuthorized.
func (m *MetricsExtension) OnPreAuthorized(_ context.Context, _, _ string, _ int64) error {
	m.PreAuthorized.Inc()
	return nil
}

// OnPaymentRequired implements plugin.OnPaymentRequired.
func (m *MetricsExtension) OnPaymentRequired(_ context.Context, _ string, _, _ int64) error {
	m.PaymentRequired.Inc()
	return nil
}

// OnDebitConfirmed implements plugin.OnDebitConfirmed.
func (m *MetricsExtension) OnDebitConfirmed(_ context.Context, entry interface{}) error {
	m.DebitConfirmed.Inc()
	if e, ok := entry.(*ledger.Entry); ok {
		m.DebitAmount.Observe(float64(e.Amount))
	}
	return nil
}

// OnInsufficientBalance implements plugin.OnInsufficientBalance.
func (m *MetricsExtension) OnInsufficientBalance(_ context.Context, _, _ string, _ int64) error {
	m.InsufficientBalance.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// OnManualGranted implements plugin.OnManualGranted.
func (m *MetricsExtension) OnManualGranted(_ context.Context, entry interface{}) error {
	m.ManualGranted.Inc()
	if e, ok := entry.(*ledger.Entry); ok {
		m.GrantAmount.Observe(float64(e.Amount))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Reconciliation hooks
// ──────────────────────────────────────────────────

// OnReconciled implements plugin.OnReconciled.
func (m *MetricsExtension) OnReconciled(_ context.Context, _ string, previous, replayed int64) error {
	m.Reconciled.Inc()
	drift := replayed - previous
	if drift < 0 {
		drift = -drift
	}
	m.ReconcileDrift.Observe(float64(drift))
	return nil
}
