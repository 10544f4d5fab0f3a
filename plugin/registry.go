package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onAccountCreated      []OnAccountCreated
	onPlanSwitched        []OnPlanSwitched
	onMonthlyRerolled     []OnMonthlyRerolled
	onPreAuthorized       []OnPreAuthorized
	onPaymentRequired     []OnPaymentRequired
	onDebitConfirmed      []OnDebitConfirmed
	onInsufficientBalance []OnInsufficientBalance
	onManualGranted       []OnManualGranted
	onReconciled          []OnReconciled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnPlanSwitched); ok {
		r.onPlanSwitched = append(r.onPlanSwitched, v)
	}
	if v, ok := p.(OnMonthlyRerolled); ok {
		r.onMonthlyRerolled = append(r.onMonthlyRerolled, v)
	}
	if v, ok := p.(OnPreAuthorized); ok {
		r.onPreAuthorized = append(r.onPreAuthorized, v)
	}
	if v, ok := p.(OnPaymentRequired); ok {
		r.onPaymentRequired = append(r.onPaymentRequired, v)
	}
	if v, ok := p.(OnDebitConfirmed); ok {
		r.onDebitConfirmed = append(r.onDebitConfirmed, v)
	}
	if v, ok := p.(OnInsufficientBalance); ok {
		r.onInsufficientBalance = append(r.onInsufficientBalance, v)
	}
	if v, ok := p.(OnManualGranted); ok {
		r.onManualGranted = append(r.onManualGranted, v)
	}
	if v, ok := p.(OnReconciled); ok {
		r.onReconciled = append(r.onReconciled, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnAccountCreated)(nil)).Elem(), "OnAccountCreated")
	checkInterface(reflect.TypeOf((*OnPlanSwitched)(nil)).Elem(), "OnPlanSwitched")
	checkInterface(reflect.TypeOf((*OnMonthlyRerolled)(nil)).Elem(), "OnMonthlyRerolled")
	checkInterface(reflect.TypeOf((*OnPreAuthorized)(nil)).Elem(), "OnPreAuthorized")
	checkInterface(reflect.TypeOf((*OnPaymentRequired)(nil)).Elem(), "OnPaymentRequired")
	checkInterface(reflect.TypeOf((*OnDebitConfirmed)(nil)).Elem(), "OnDebitConfirmed")
	checkInterface(reflect.TypeOf((*OnInsufficientBalance)(nil)).Elem(), "OnInsufficientBalance")
	checkInterface(reflect.TypeOf((*OnManualGranted)(nil)).Elem(), "OnManualGranted")
	checkInterface(reflect.TypeOf((*OnReconciled)(nil)).Elem(), "OnReconciled")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, acct interface{}) {
	r.mu.RLock()
	plugins := r.onAccountCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAccountCreated(ctx, acct)
		}); err != nil {
			r.logger.Warn("plugin OnAccountCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPlanSwitched emits a plan switched event.
func (r *Registry) EmitPlanSwitched(ctx context.Context, uid, fromPlan, toPlan string) {
	r.mu.RLock()
	plugins := r.onPlanSwitched
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPlanSwitched(ctx, uid, fromPlan, toPlan)
		}); err != nil {
			r.logger.Warn("plugin OnPlanSwitched failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitMonthlyRerolled emits a monthly reroll event.
func (r *Registry) EmitMonthlyRerolled(ctx context.Context, uid, cycle string, balance int64) {
	r.mu.RLock()
	plugins := r.onMonthlyRerolled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnMonthlyRerolled(ctx, uid, cycle, balance)
		}); err != nil {
			r.logger.Warn("plugin OnMonthlyRerolled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPreAuthorized emits a pre-authorization event.
func (r *Registry) EmitPreAuthorized(ctx context.Context, uid, key string, cost int64) {
	r.mu.RLock()
	plugins := r.onPreAuthorized
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPreAuthorized(ctx, uid, key, cost)
		}); err != nil {
			r.logger.Warn("plugin OnPreAuthorized failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRequired emits a payment required event.
func (r *Registry) EmitPaymentRequired(ctx context.Context, uid string, required, balance int64) {
	r.mu.RLock()
	plugins := r.onPaymentRequired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRequired(ctx, uid, required, balance)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRequired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDebitConfirmed emits a debit confirmed event.
func (r *Registry) EmitDebitConfirmed(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onDebitConfirmed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDebitConfirmed(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnDebitConfirmed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientBalance emits an insufficient balance event.
func (r *Registry) EmitInsufficientBalance(ctx context.Context, uid, entryID string, amount int64) {
	r.mu.RLock()
	plugins := r.onInsufficientBalance
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientBalance(ctx, uid, entryID, amount)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientBalance failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitManualGranted emits a manual grant event.
func (r *Registry) EmitManualGranted(ctx context.Context, entry interface{}) {
	r.mu.RLock()
	plugins := r.onManualGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnManualGranted(ctx, entry)
		}); err != nil {
			r.logger.Warn("plugin OnManualGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitReconciled emits a reconciliation event.
func (r *Registry) EmitReconciled(ctx context.Context, uid string, previous, replayed int64) {
	r.mu.RLock()
	plugins := r.onReconciled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnReconciled(ctx, uid, previous, replayed)
		}); err != nil {
			r.logger.Warn("plugin OnReconciled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the charging pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
