package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/coupon"
	"github.com/xraph/credits/id"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/plugin"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store"
	"github.com/xraph/credits/types"
)

// Engine is the main credit engine.
type Engine struct {
	store   store.Store
	pricer  *pricing.Registry
	plugins *plugin.Registry
	logger  *slog.Logger

	// Configuration
	catalog            []*plan.Plan
	coupons            map[string]*coupon.Coupon
	now                func() time.Time
	reconcileOnConfirm bool
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		pricer:  pricing.Default(),
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		catalog: plan.Builtin(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPricing replaces the default pricing registry.
func WithPricing(r *pricing.Registry) Option {
	return func(e *Engine) {
		e.pricer = r
	}
}

// WithPlans adds plans to the seeded catalog. Plans with a code already
// in the catalog override the built-in definition.
func WithPlans(plans ...*plan.Plan) Option {
	return func(e *Engine) {
		for _, p := range plans {
			replaced := false
			for i, existing := range e.catalog {
				if existing.Code == p.Code {
					e.catalog[i] = p
					replaced = true
					break
				}
			}
			if !replaced {
				e.catalog = append(e.catalog, p)
			}
		}
	}
}

// WithCoupons registers redeemable promo codes. Coupons are configured
// reference data like the plan catalog; redemption state lives on the
// ledger, keyed per user by the coupon's deterministic entry id.
func WithCoupons(coupons ...*coupon.Coupon) Option {
	return func(e *Engine) {
		if e.coupons == nil {
			e.coupons = make(map[string]*coupon.Coupon, len(coupons))
		}
		for _, c := range coupons {
			e.coupons[c.Code] = c
		}
	}
}

// WithClock overrides the time source. Billing cycles are derived from
// this clock, so tests can pin the month.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithReconcileOnConfirm replays the ledger after every confirmed debit.
// Expensive on long histories; meant for low-volume deployments that
// want drift corrected immediately instead of at the next reroll.
func WithReconcileOnConfirm() Option {
	return func(e *Engine) {
		e.reconcileOnConfirm = true
	}
}

// Start migrates the store, seeds the plan catalog and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	if err := e.SeedPlans(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("credits engine started",
		"plans", len(e.catalog),
		"reconcile_on_confirm", e.reconcileOnConfirm,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Plan Catalog
// ──────────────────────────────────────────────────

// SeedPlans upserts the configured catalog into the store. Safe to call
// repeatedly; existing rows are overwritten with the catalog definition.
func (e *Engine) SeedPlans(ctx context.Context) error {
	return e.store.UpsertPlans(ctx, e.catalog)
}

// Plans lists the active plans, cheapest first.
func (e *Engine) Plans(ctx context.Context) ([]*plan.Plan, error) {
	return e.store.ListPlans(ctx, plan.ListOpts{ActiveOnly: true})
}

// lookupPlan resolves a plan code against the store, falling back to the
// in-memory catalog when the store has not been seeded yet.
func (e *Engine) lookupPlan(ctx context.Context, code string) (*plan.Plan, error) {
	p, err := e.store.GetPlan(ctx, code)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrPlanNotFound) {
		return nil, err
	}

	for _, c := range e.catalog {
		if c.Code == code {
			return c, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, code)
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// EnsureAccount creates the account on first sight, seeded with the free
// plan's monthly allowance. Existing accounts with a corrupt balance are
// repaired in place to their plan's monthly amount. Concurrent calls for
// the same uid converge on the same state.
func (e *Engine) EnsureAccount(ctx context.Context, uid string) (*account.Account, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrInvalidInput)
	}

	free, err := e.lookupPlan(ctx, plan.FreeCode)
	if err != nil {
		return nil, err
	}

	acct, created, err := e.store.InitAccount(ctx, &account.Account{
		Entity:        types.NewEntity(),
		UID:           uid,
		CreditBalance: free.MonthlyCredits,
		PlanCode:      free.Code,
	})
	if err != nil {
		return nil, err
	}

	if created {
		// The signup allotment is recorded as the current cycle's reset
		// entry. The ledger then replays to the cached balance, and the
		// first reroll waits until the next cycle.
		now := e.now().UTC()
		entry := &ledger.Entry{
			ID:        ledger.ResetID(ledger.Cycle(now)),
			UID:       uid,
			Type:      ledger.TypeGrant,
			Amount:    free.MonthlyCredits,
			Reason:    "plan.monthly_reroll",
			CreatedAt: now,
		}
		if err := e.store.ApplyReset(ctx, entry, free.Code); err != nil && !errors.Is(err, ErrDuplicateEntry) {
			return nil, err
		}

		e.logger.Info("account created", "uid", uid, "plan", free.Code, "balance", free.MonthlyCredits)
		e.plugins.EmitAccountCreated(ctx, acct)
		return acct, nil
	}

	// A document written outside this engine may carry an empty plan or
	// a negative balance. Treat both as corrupt and repair.
	if acct.PlanCode == "" {
		acct.PlanCode = plan.FreeCode
	}
	if acct.CreditBalance < 0 {
		p, err := e.lookupPlan(ctx, acct.PlanCode)
		if err != nil {
			return nil, err
		}
		if err := e.store.SetBalance(ctx, uid, p.MonthlyCredits); err != nil {
			return nil, err
		}
		e.logger.Warn("repaired corrupt balance",
			"uid", uid,
			"was", acct.CreditBalance,
			"now", p.MonthlyCredits,
		)
		acct.CreditBalance = p.MonthlyCredits
	}

	return acct, nil
}

// Balance returns the cached balance, creating the account if needed.
// The cached value can drift behind the ledger between reconciliations;
// use Reconcile for the authoritative number.
func (e *Engine) Balance(ctx context.Context, uid string) (int64, error) {
	acct, err := e.EnsureAccount(ctx, uid)
	if err != nil {
		return 0, err
	}
	return acct.CreditBalance, nil
}

// History lists the user's ledger entries, oldest first.
func (e *Engine) History(ctx context.Context, uid string, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrInvalidInput)
	}
	return e.store.ListEntries(ctx, uid, opts)
}

// ──────────────────────────────────────────────────
// Monthly Reroll
// ──────────────────────────────────────────────────

// Reroll reports the outcome of EnsureMonthlyReroll.
type Reroll struct {
	Cycle    string
	PlanCode string
	Balance  int64

	// Applied is true when this call wrote the cycle's reset.
	Applied bool

	// ManualHold is true when a manual grant in the current cycle
	// suppressed the reset; the ledger was reconciled instead.
	ManualHold bool
}

// EnsureMonthlyReroll resets the balance to the plan's monthly allowance
// once per UTC calendar month. The reset's ledger id is derived from the
// cycle, so concurrent and repeated calls within a month apply at most
// one reset. A manual grant earlier in the cycle holds the reset back
// and triggers a reconcile instead, so topped-up credits survive until
// the next cycle.
func (e *Engine) EnsureMonthlyReroll(ctx context.Context, uid string) (*Reroll, error) {
	acct, err := e.EnsureAccount(ctx, uid)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	cycle := ledger.Cycle(now)
	entryID := ledger.ResetID(cycle)

	// Fast path: this cycle's reset already exists.
	if _, err := e.store.GetEntry(ctx, uid, entryID); err == nil {
		return &Reroll{Cycle: cycle, PlanCode: acct.PlanCode, Balance: acct.CreditBalance}, nil
	} else if !errors.Is(err, ErrEntryNotFound) {
		return nil, err
	}

	manual, err := e.manualGrantInCycle(ctx, uid, now)
	if err != nil {
		return nil, err
	}
	if manual {
		rec, err := e.Reconcile(ctx, uid)
		if err != nil {
			return nil, err
		}
		return &Reroll{
			Cycle:      cycle,
			PlanCode:   acct.PlanCode,
			Balance:    rec.Balance,
			ManualHold: true,
		}, nil
	}

	p, err := e.lookupPlan(ctx, acct.PlanCode)
	if err != nil {
		return nil, err
	}

	entry := &ledger.Entry{
		ID:        entryID,
		UID:       uid,
		Type:      ledger.TypeGrant,
		Amount:    p.MonthlyCredits,
		Reason:    "plan.monthly_reroll",
		CreatedAt: now,
	}
	if err := e.store.ApplyReset(ctx, entry, acct.PlanCode); err != nil {
		// Another caller won the race for this cycle.
		if errors.Is(err, ErrDuplicateEntry) {
			fresh, err := e.store.GetAccount(ctx, uid)
			if err != nil {
				return nil, err
			}
			return &Reroll{Cycle: cycle, PlanCode: fresh.PlanCode, Balance: fresh.CreditBalance}, nil
		}
		return nil, err
	}

	e.logger.Info("monthly reroll applied", "uid", uid, "cycle", cycle, "balance", p.MonthlyCredits)
	e.plugins.EmitMonthlyRerolled(ctx, uid, cycle, p.MonthlyCredits)

	return &Reroll{Cycle: cycle, PlanCode: acct.PlanCode, Balance: p.MonthlyCredits, Applied: true}, nil
}

// manualGrantInCycle reports whether the user received a manual grant
// since the start of the current UTC month.
func (e *Engine) manualGrantInCycle(ctx context.Context, uid string, now time.Time) (bool, error) {
	grants, err := e.store.ListEntries(ctx, uid, ledger.ListOpts{
		Since: cycleStart(now),
		Type:  ledger.TypeGrant,
	})
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if g.Manual {
			return true, nil
		}
	}
	return false, nil
}

func cycleStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ──────────────────────────────────────────────────
// Plan Switching
// ──────────────────────────────────────────────────

// SwitchPlan moves the user onto the named plan and resets the balance to
// that plan's monthly allowance. The ledger id carries the plan code and
// the account's switch sequence, so retries of the same switch apply
// once while a later return to a previously held plan re-grants its
// allowance as a fresh reset.
func (e *Engine) SwitchPlan(ctx context.Context, uid, code string) (*account.Account, error) {
	acct, err := e.EnsureAccount(ctx, uid)
	if err != nil {
		return nil, err
	}

	p, err := e.lookupPlan(ctx, code)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, fmt.Errorf("%w: %s", ErrPlanInactive, code)
	}
	if p.Code == acct.PlanCode {
		return acct, nil
	}

	seq, err := e.switchCount(ctx, uid)
	if err != nil {
		return nil, err
	}

	entry := &ledger.Entry{
		ID:        ledger.SwitchID(p.Code, seq),
		UID:       uid,
		Type:      ledger.TypeGrant,
		Amount:    p.MonthlyCredits,
		Reason:    "plan.switch",
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.ApplyReset(ctx, entry, p.Code); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			// Lost a race against a concurrent switch to the same
			// plan; the winner's reset stands.
			return e.store.GetAccount(ctx, uid)
		}
		return nil, err
	}

	e.logger.Info("plan switched", "uid", uid, "from", acct.PlanCode, "to", p.Code)
	e.plugins.EmitPlanSwitched(ctx, uid, acct.PlanCode, p.Code)

	return e.store.GetAccount(ctx, uid)
}

// switchCount returns how many plan-switch entries the account already
// holds. Used as the sequence component of the next switch id.
func (e *Engine) switchCount(ctx context.Context, uid string) (int, error) {
	grants, err := e.store.ListEntries(ctx, uid, ledger.ListOpts{Type: ledger.TypeGrant})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range grants {
		if strings.HasPrefix(g.ID, ledger.SwitchIDPrefix) {
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Pre-Authorization
// ──────────────────────────────────────────────────

// Authorization is the grant to proceed with a priced operation. The Key
// must be passed to Confirm after the operation succeeds so the debit is
// recorded exactly once.
type Authorization struct {
	UID            string
	Key            id.ChargeID
	Cost           int64
	Reason         string
	PricingVersion string
	Meta           map[string]string
}

// PreAuthorize prices the request and checks the balance covers it. The
// balance is refreshed through the monthly reroll first, so a stale
// cycle cannot produce a spurious rejection. No credits move here; the
// returned key reserves nothing and expires with the caller.
func (e *Engine) PreAuthorize(ctx context.Context, uid string, req pricing.Request) (*Authorization, error) {
	quote, err := e.pricer.Compute(req)
	if err != nil {
		return nil, err
	}

	roll, err := e.EnsureMonthlyReroll(ctx, uid)
	if err != nil {
		return nil, err
	}

	if roll.Balance < quote.Cost {
		e.plugins.EmitPaymentRequired(ctx, uid, quote.Cost, roll.Balance)
		return nil, &PaymentRequiredError{
			RequiredCredits: quote.Cost,
			CurrentBalance:  roll.Balance,
		}
	}

	auth := &Authorization{
		UID:            uid,
		Key:            id.NewChargeID(),
		Cost:           quote.Cost,
		Reason:         req.Reason(),
		PricingVersion: quote.Version,
		Meta:           quote.Meta,
	}

	e.plugins.EmitPreAuthorized(ctx, uid, auth.Key.String(), auth.Cost)

	return auth, nil
}

// Confirm records the debit for a completed authorization.
func (e *Engine) Confirm(ctx context.Context, auth *Authorization) error {
	if auth == nil || auth.Key.IsNil() {
		return fmt.Errorf("%w: nil authorization", ErrInvalidInput)
	}
	return e.confirm(ctx, &ledger.Entry{
		ID:             auth.Key.String(),
		UID:            auth.UID,
		Type:           ledger.TypeDebit,
		Amount:         auth.Cost,
		Reason:         auth.Reason,
		PricingVersion: auth.PricingVersion,
		Meta:           auth.Meta,
		CreatedAt:      e.now().UTC(),
	})
}

// ConfirmDebit records a debit under a caller-chosen idempotency key.
// Replaying the same key is a no-op success regardless of the amount,
// so a retried confirmation after a pricing change cannot double-charge.
func (e *Engine) ConfirmDebit(ctx context.Context, uid, key string, amount int64, reason string, meta map[string]string) error {
	if uid == "" || key == "" {
		return fmt.Errorf("%w: empty uid or key", ErrInvalidInput)
	}
	return e.confirm(ctx, &ledger.Entry{
		ID:        key,
		UID:       uid,
		Type:      ledger.TypeDebit,
		Amount:    amount,
		Reason:    reason,
		Meta:      meta,
		CreatedAt: e.now().UTC(),
	})
}

func (e *Engine) confirm(ctx context.Context, entry *ledger.Entry) error {
	if entry.Amount <= 0 {
		return fmt.Errorf("%w: debit amount must be positive", ErrInvalidInput)
	}

	err := e.store.ApplyDebit(ctx, entry)
	switch {
	case errors.Is(err, ErrDuplicateEntry):
		e.logger.Debug("debit replayed", "uid", entry.UID, "entry_id", entry.ID)
		return nil
	case errors.Is(err, ErrInsufficientBalance):
		e.plugins.EmitInsufficientBalance(ctx, entry.UID, entry.ID, entry.Amount)
		return &InsufficientBalanceError{UID: entry.UID, EntryID: entry.ID, Amount: entry.Amount}
	case err != nil:
		return err
	}

	e.plugins.EmitDebitConfirmed(ctx, entry)

	if e.reconcileOnConfirm {
		if _, err := e.Reconcile(ctx, entry.UID); err != nil {
			e.logger.Warn("post-debit reconcile failed", "uid", entry.UID, "error", err)
		}
	}

	return nil
}

// ──────────────────────────────────────────────────
// Manual Grants
// ──────────────────────────────────────────────────

// TopUp adds credits on top of the current balance. Unlike plan resets,
// a top-up is additive, and its presence in a cycle holds back that
// cycle's monthly reset. Pass an empty entryID to mint one; pass your
// payment reference to make retried webhooks idempotent.
func (e *Engine) TopUp(ctx context.Context, uid, entryID string, amount int64, reason string, meta map[string]string) (*ledger.Entry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: grant amount must be positive", ErrInvalidInput)
	}
	if _, err := e.EnsureAccount(ctx, uid); err != nil {
		return nil, err
	}

	if entryID == "" {
		entryID = id.NewGrantID().String()
	}
	if reason == "" {
		reason = "credit.topup"
	}

	entry := &ledger.Entry{
		ID:        entryID,
		UID:       uid,
		Type:      ledger.TypeGrant,
		Amount:    amount,
		Reason:    reason,
		Manual:    true,
		Meta:      meta,
		CreatedAt: e.now().UTC(),
	}
	if err := e.store.ApplyCredit(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			return e.store.GetEntry(ctx, uid, entryID)
		}
		return nil, err
	}

	e.logger.Info("manual grant applied", "uid", uid, "entry_id", entryID, "amount", amount)
	e.plugins.EmitManualGranted(ctx, entry)

	return entry, nil
}

// Redeem grants the coupon's credits to the user. Each user can redeem a
// code once; the deterministic entry id makes replays return the original
// grant. A redemption counts as a manual grant, so it holds back the
// cycle's monthly reroll like any other top-up.
func (e *Engine) Redeem(ctx context.Context, uid, code string) (*ledger.Entry, error) {
	c, ok := e.coupons[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCouponNotFound, code)
	}
	if !c.ValidAt(e.now().UTC()) {
		return nil, fmt.Errorf("%w: %s", ErrCouponExpired, code)
	}

	return e.TopUp(ctx, uid, coupon.EntryID(code), c.Credits, "coupon.redeem", c.Meta)
}

// ──────────────────────────────────────────────────
// Reconciliation
// ──────────────────────────────────────────────────

// Reconciliation reports a ledger replay against the cached balance.
type Reconciliation struct {
	UID         string
	Balance     int64
	TotalDebits int64
	Previous    int64

	// Adjusted is true when the cached balance was corrected.
	Adjusted bool
}

// Reconcile replays the full ledger in order and overwrites the cached
// balance when it has drifted. Resets anchor the running balance, manual
// grants add, debits subtract; the replayed value is authoritative.
func (e *Engine) Reconcile(ctx context.Context, uid string) (*Reconciliation, error) {
	acct, err := e.EnsureAccount(ctx, uid)
	if err != nil {
		return nil, err
	}

	entries, err := e.store.ListEntries(ctx, uid, ledger.ListOpts{})
	if err != nil {
		return nil, err
	}

	balance, debits := ledger.Replay(entries)
	rec := &Reconciliation{
		UID:         uid,
		Balance:     balance,
		TotalDebits: debits,
		Previous:    acct.CreditBalance,
	}

	if balance != acct.CreditBalance {
		if err := e.store.SetBalance(ctx, uid, balance); err != nil {
			return nil, err
		}
		rec.Adjusted = true
		e.logger.Warn("balance drift corrected",
			"uid", uid,
			"stored", acct.CreditBalance,
			"replayed", balance,
		)
		e.plugins.EmitReconciled(ctx, uid, acct.CreditBalance, balance)
	}

	return rec, nil
}
