package credits_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/coupon"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/pricing"
	"github.com/xraph/credits/store/memory"
)

func newEngine(t *testing.T, opts ...credits.Option) *credits.Engine {
	t.Helper()

	opts = append([]credits.Option{
		credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)

	e := credits.New(memory.New(), opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e
}

// fixedClock returns a clock pinned to the given instant. Successive
// calls advance by a nanosecond so entries never share a timestamp.
func fixedClock(at time.Time) func() time.Time {
	var n int64
	return func() time.Time {
		n++
		return at.Add(time.Duration(n))
	}
}

func TestEnsureAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("SeedsFreeAllowance", func(t *testing.T) {
		e := newEngine(t)

		acct, err := e.EnsureAccount(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if acct.PlanCode != plan.FreeCode {
			t.Errorf("plan = %q, want %q", acct.PlanCode, plan.FreeCode)
		}
		if acct.CreditBalance != 4120 {
			t.Errorf("balance = %d, want 4120", acct.CreditBalance)
		}

		// The signup allotment is on the ledger, so a replay of a fresh
		// account reproduces the cached balance.
		entries, err := e.History(ctx, "user_1", ledger.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Fatalf("entries = %d, want 1", len(entries))
		}
		if !entries[0].Reset() {
			t.Error("signup grant is not a reset")
		}
		if bal, _ := ledger.Replay(entries); bal != acct.CreditBalance {
			t.Errorf("replayed = %d, cached = %d", bal, acct.CreditBalance)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.EnsureAccount(ctx, "user_1"); err != nil {
			t.Fatal(err)
		}
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 100, "test", nil); err != nil {
			t.Fatal(err)
		}

		// A second ensure must not reseed the balance.
		acct, err := e.EnsureAccount(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if acct.CreditBalance != 4020 {
			t.Errorf("balance = %d, want 4020", acct.CreditBalance)
		}
	})

	t.Run("EmptyUID", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.EnsureAccount(ctx, ""); !errors.Is(err, credits.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestSwitchPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("ResetsToNewAllowance", func(t *testing.T) {
		e := newEngine(t)

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 100, "test", nil); err != nil {
			t.Fatal(err)
		}

		acct, err := e.SwitchPlan(ctx, "user_1", "PRO")
		if err != nil {
			t.Fatal(err)
		}
		if acct.PlanCode != "PRO" {
			t.Errorf("plan = %q, want PRO", acct.PlanCode)
		}
		// A switch sets the balance; the earlier debit does not carry over.
		if acct.CreditBalance != 50000 {
			t.Errorf("balance = %d, want 50000", acct.CreditBalance)
		}
	})

	t.Run("RetryIsNoOp", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.SwitchPlan(ctx, "user_1", "PRO"); err != nil {
			t.Fatal(err)
		}
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 1000, "test", nil); err != nil {
			t.Fatal(err)
		}

		// Replaying the switch must not reset the balance again.
		acct, err := e.SwitchPlan(ctx, "user_1", "PRO")
		if err != nil {
			t.Fatal(err)
		}
		if acct.CreditBalance != 49000 {
			t.Errorf("balance = %d, want 49000", acct.CreditBalance)
		}
	})

	t.Run("SwitchBackRegrants", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.SwitchPlan(ctx, "user_1", "PRO"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.SwitchPlan(ctx, "user_1", "MAX"); err != nil {
			t.Fatal(err)
		}
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 5000, "test", nil); err != nil {
			t.Fatal(err)
		}

		// Returning to a previously held plan writes a fresh switch
		// entry and resets the balance to that plan's allowance.
		acct, err := e.SwitchPlan(ctx, "user_1", "PRO")
		if err != nil {
			t.Fatal(err)
		}
		if acct.PlanCode != "PRO" {
			t.Errorf("plan = %q, want PRO", acct.PlanCode)
		}
		if acct.CreditBalance != 50000 {
			t.Errorf("balance = %d, want 50000", acct.CreditBalance)
		}

		// Retrying the switch back must still be a no-op.
		if err := e.ConfirmDebit(ctx, "user_1", "op_2", 1000, "test", nil); err != nil {
			t.Fatal(err)
		}
		acct, err = e.SwitchPlan(ctx, "user_1", "PRO")
		if err != nil {
			t.Fatal(err)
		}
		if acct.CreditBalance != 49000 {
			t.Errorf("balance after retry = %d, want 49000", acct.CreditBalance)
		}

		// The ledger holds one entry per switch, none collapsed.
		entries, err := e.History(ctx, "user_1", ledger.ListOpts{Type: ledger.TypeGrant})
		if err != nil {
			t.Fatal(err)
		}
		var switches []string
		for _, en := range entries {
			if strings.HasPrefix(en.ID, ledger.SwitchIDPrefix) {
				switches = append(switches, en.ID)
			}
		}
		want := []string{"PLAN_SWITCH_PRO_0", "PLAN_SWITCH_MAX_1", "PLAN_SWITCH_PRO_2"}
		if !slices.Equal(switches, want) {
			t.Errorf("switch entries = %v, want %v", switches, want)
		}
	})

	t.Run("UnknownPlan", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.SwitchPlan(ctx, "user_1", "ENTERPRISE"); !errors.Is(err, credits.ErrPlanNotFound) {
			t.Errorf("err = %v, want ErrPlanNotFound", err)
		}
	})

	t.Run("InactivePlan", func(t *testing.T) {
		e := newEngine(t, credits.WithPlans(
			&plan.Plan{Code: "LEGACY", Name: "Legacy", MonthlyCredits: 1000, Active: false},
		))

		if _, err := e.SwitchPlan(ctx, "user_1", "LEGACY"); !errors.Is(err, credits.ErrPlanInactive) {
			t.Errorf("err = %v, want ErrPlanInactive", err)
		}
	})
}

func TestConfirmDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("Debits", func(t *testing.T) {
		e := newEngine(t)

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 120, "flux.image.generate", nil); err != nil {
			t.Fatal(err)
		}
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4000 {
			t.Errorf("balance = %d, want 4000", bal)
		}
	})

	t.Run("ReplayIsNoOp", func(t *testing.T) {
		e := newEngine(t)

		for i := 0; i < 3; i++ {
			if err := e.ConfirmDebit(ctx, "user_1", "op_1", 120, "flux.image.generate", nil); err != nil {
				t.Fatal(err)
			}
		}
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4000 {
			t.Errorf("balance = %d, want 4000 after replays", bal)
		}
	})

	t.Run("ReplayIgnoresAmount", func(t *testing.T) {
		e := newEngine(t)

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 120, "flux.image.generate", nil); err != nil {
			t.Fatal(err)
		}
		// A retry priced under a newer table must not charge again.
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 999, "flux.image.generate", nil); err != nil {
			t.Fatal(err)
		}
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4000 {
			t.Errorf("balance = %d, want 4000", bal)
		}
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		e := newEngine(t)

		err := e.ConfirmDebit(ctx, "user_1", "op_1", 5000, "flux.image.generate", nil)
		if !errors.Is(err, credits.ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}

		var ibe *credits.InsufficientBalanceError
		if !errors.As(err, &ibe) {
			t.Fatalf("err = %v, want *InsufficientBalanceError", err)
		}
		if ibe.Amount != 5000 {
			t.Errorf("amount = %d, want 5000", ibe.Amount)
		}

		// The failed debit must leave no trace.
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4120 {
			t.Errorf("balance = %d, want 4120", bal)
		}
		entries, err := e.History(ctx, "user_1", ledger.ListOpts{Type: ledger.TypeDebit})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("debit entries = %d, want 0", len(entries))
		}
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		e := newEngine(t)

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 0, "test", nil); !errors.Is(err, credits.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
		if err := e.ConfirmDebit(ctx, "user_1", "op_2", -5, "test", nil); !errors.Is(err, credits.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestPreAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("AuthorizeThenConfirm", func(t *testing.T) {
		e := newEngine(t)

		auth, err := e.PreAuthorize(ctx, "user_1", pricing.Request{
			Provider:  "flux",
			Operation: "image.generate",
			Model:     "flux-pro",
			Quantity:  4,
		})
		if err != nil {
			t.Fatal(err)
		}
		if auth.Cost != 100 {
			t.Errorf("cost = %d, want 100", auth.Cost)
		}
		if auth.Key.IsNil() {
			t.Error("authorization key is nil")
		}
		if auth.Reason != "flux.image.generate" {
			t.Errorf("reason = %q, want flux.image.generate", auth.Reason)
		}

		if err := e.Confirm(ctx, auth); err != nil {
			t.Fatal(err)
		}
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4020 {
			t.Errorf("balance = %d, want 4020", bal)
		}

		entry, err := e.History(ctx, "user_1", ledger.ListOpts{Type: ledger.TypeDebit})
		if err != nil {
			t.Fatal(err)
		}
		if len(entry) != 1 {
			t.Fatalf("debit entries = %d, want 1", len(entry))
		}
		if entry[0].PricingVersion == "" {
			t.Error("pricing version not stamped on entry")
		}
	})

	t.Run("ConfirmReplayIsNoOp", func(t *testing.T) {
		e := newEngine(t)

		auth, err := e.PreAuthorize(ctx, "user_1", pricing.Request{
			Provider: "chat", Operation: "complete", Model: "chat-large", Quantity: 10,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := e.Confirm(ctx, auth); err != nil {
			t.Fatal(err)
		}
		if err := e.Confirm(ctx, auth); err != nil {
			t.Fatal(err)
		}

		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4080 {
			t.Errorf("balance = %d, want 4080", bal)
		}
	})

	t.Run("PaymentRequired", func(t *testing.T) {
		e := newEngine(t)

		_, err := e.PreAuthorize(ctx, "user_1", pricing.Request{
			Provider:  "flux",
			Operation: "image.generate",
			Model:     "flux-pro-ultra",
			Quantity:  200, // 8000 credits, above the free allowance
		})
		if !errors.Is(err, credits.ErrPaymentRequired) {
			t.Fatalf("err = %v, want ErrPaymentRequired", err)
		}

		var pre *credits.PaymentRequiredError
		if !errors.As(err, &pre) {
			t.Fatalf("err = %v, want *PaymentRequiredError", err)
		}
		if pre.RequiredCredits != 8000 {
			t.Errorf("required = %d, want 8000", pre.RequiredCredits)
		}
		if pre.CurrentBalance != 4120 {
			t.Errorf("balance = %d, want 4120", pre.CurrentBalance)
		}
	})

	t.Run("UnsupportedModel", func(t *testing.T) {
		e := newEngine(t)

		_, err := e.PreAuthorize(ctx, "user_1", pricing.Request{
			Provider: "flux", Operation: "image.generate", Model: "flux-99",
		})
		if !errors.Is(err, credits.ErrUnsupportedModel) {
			t.Fatalf("err = %v, want ErrUnsupportedModel", err)
		}
		if !credits.IsPaymentError(err) {
			t.Error("unsupported model should classify as a payment error")
		}
	})

	t.Run("NilConfirm", func(t *testing.T) {
		e := newEngine(t)

		if err := e.Confirm(ctx, nil); !errors.Is(err, credits.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestEnsureMonthlyReroll(t *testing.T) {
	ctx := context.Background()

	t.Run("SignupCoversCycle", func(t *testing.T) {
		e := newEngine(t, credits.WithClock(fixedClock(
			time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
		)))

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 1000, "test", nil); err != nil {
			t.Fatal(err)
		}

		// The signup allotment is the cycle's reset; a reroll in the
		// same month must not refill.
		roll, err := e.EnsureMonthlyReroll(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if roll.Applied {
			t.Error("reroll applied in the signup cycle")
		}
		if roll.Cycle != "2026-03" {
			t.Errorf("cycle = %q, want 2026-03", roll.Cycle)
		}
		if roll.Balance != 3120 {
			t.Errorf("balance = %d, want 3120", roll.Balance)
		}
	})

	t.Run("NewCycleResetsOnce", func(t *testing.T) {
		at := time.Date(2026, time.March, 28, 0, 0, 0, 0, time.UTC)
		e := newEngine(t, credits.WithClock(func() time.Time { return at }))

		if _, err := e.EnsureMonthlyReroll(ctx, "user_1"); err != nil {
			t.Fatal(err)
		}
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 4000, "test", nil); err != nil {
			t.Fatal(err)
		}

		at = time.Date(2026, time.April, 1, 0, 0, 1, 0, time.UTC)
		roll, err := e.EnsureMonthlyReroll(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if !roll.Applied {
			t.Error("new cycle reroll not applied")
		}
		if roll.Cycle != "2026-04" {
			t.Errorf("cycle = %q, want 2026-04", roll.Cycle)
		}
		if roll.Balance != 4120 {
			t.Errorf("balance = %d, want 4120", roll.Balance)
		}

		// Second call in the same cycle is a no-op.
		if err := e.ConfirmDebit(ctx, "user_1", "op_2", 100, "test", nil); err != nil {
			t.Fatal(err)
		}
		roll, err = e.EnsureMonthlyReroll(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if roll.Applied {
			t.Error("reroll applied twice in one cycle")
		}
		if roll.Balance != 4020 {
			t.Errorf("balance = %d, want 4020", roll.Balance)
		}
	})

	t.Run("ManualGrantHoldsReset", func(t *testing.T) {
		at := time.Date(2026, time.May, 3, 9, 0, 0, 0, time.UTC)
		e := newEngine(t, credits.WithClock(func() time.Time { return at }))

		if _, err := e.Balance(ctx, "user_1"); err != nil {
			t.Fatal(err)
		}

		at = time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)
		if _, err := e.TopUp(ctx, "user_1", "stripe_evt_1", 10000, "", nil); err != nil {
			t.Fatal(err)
		}
		at = at.Add(time.Second)
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 2000, "test", nil); err != nil {
			t.Fatal(err)
		}
		at = at.Add(time.Second)

		roll, err := e.EnsureMonthlyReroll(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if roll.Applied {
			t.Error("reroll applied despite manual grant in cycle")
		}
		if !roll.ManualHold {
			t.Error("manual hold not reported")
		}
		// 4120 signup + 10000 top-up - 2000 debit; the reset did not fire.
		if roll.Balance != 12120 {
			t.Errorf("balance = %d, want 12120", roll.Balance)
		}
	})

	t.Run("GrantInPreviousCycleDoesNotHold", func(t *testing.T) {
		at := time.Date(2026, time.May, 3, 9, 0, 0, 0, time.UTC)
		e := newEngine(t, credits.WithClock(func() time.Time { return at }))

		if _, err := e.TopUp(ctx, "user_1", "stripe_evt_1", 10000, "", nil); err != nil {
			t.Fatal(err)
		}

		at = time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
		roll, err := e.EnsureMonthlyReroll(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if !roll.Applied {
			t.Error("last month's top-up held back this cycle's reroll")
		}
		if roll.Balance != 4120 {
			t.Errorf("balance = %d, want 4120", roll.Balance)
		}
	})
}

func TestTopUp(t *testing.T) {
	ctx := context.Background()

	t.Run("Adds", func(t *testing.T) {
		e := newEngine(t)

		entry, err := e.TopUp(ctx, "user_1", "", 500, "support.goodwill", nil)
		if err != nil {
			t.Fatal(err)
		}
		if !entry.Manual {
			t.Error("top-up entry not marked manual")
		}
		if entry.ID == "" {
			t.Error("no entry id minted")
		}

		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4620 {
			t.Errorf("balance = %d, want 4620", bal)
		}
	})

	t.Run("RetryByReference", func(t *testing.T) {
		e := newEngine(t)

		first, err := e.TopUp(ctx, "user_1", "stripe_evt_42", 1000, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		second, err := e.TopUp(ctx, "user_1", "stripe_evt_42", 1000, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		if second.ID != first.ID {
			t.Errorf("replay returned entry %q, want %q", second.ID, first.ID)
		}

		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 5120 {
			t.Errorf("balance = %d, want 5120", bal)
		}
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.TopUp(ctx, "user_1", "", 0, "", nil); !errors.Is(err, credits.ErrInvalidInput) {
			t.Errorf("err = %v, want ErrInvalidInput", err)
		}
	})
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()
	launch := &coupon.Coupon{Code: "LAUNCH500", Name: "Launch promo", Credits: 500}

	t.Run("OncePerUser", func(t *testing.T) {
		e := newEngine(t, credits.WithCoupons(launch))

		entry, err := e.Redeem(ctx, "user_1", "LAUNCH500")
		if err != nil {
			t.Fatal(err)
		}
		if entry.ID != "COUPON_LAUNCH500" {
			t.Errorf("entry id = %q", entry.ID)
		}

		// A replay returns the original grant without paying out again.
		if _, err := e.Redeem(ctx, "user_1", "LAUNCH500"); err != nil {
			t.Fatal(err)
		}
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4620 {
			t.Errorf("balance = %d, want 4620", bal)
		}

		// A different user redeems independently.
		if _, err := e.Redeem(ctx, "user_2", "LAUNCH500"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("UnknownCode", func(t *testing.T) {
		e := newEngine(t)

		if _, err := e.Redeem(ctx, "user_1", "NOPE"); !errors.Is(err, credits.ErrCouponNotFound) {
			t.Errorf("err = %v, want ErrCouponNotFound", err)
		}
	})

	t.Run("ExpiredCode", func(t *testing.T) {
		until := time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
		e := newEngine(t,
			credits.WithCoupons(&coupon.Coupon{Code: "JAN", Credits: 100, ValidUntil: &until}),
			credits.WithClock(fixedClock(time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC))),
		)

		if _, err := e.Redeem(ctx, "user_1", "JAN"); !errors.Is(err, credits.ErrCouponExpired) {
			t.Errorf("err = %v, want ErrCouponExpired", err)
		}
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("CleanLedgerUntouched", func(t *testing.T) {
		e := newEngine(t)

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 100, "test", nil); err != nil {
			t.Fatal(err)
		}

		rec, err := e.Reconcile(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if rec.Adjusted {
			t.Error("clean ledger reported as adjusted")
		}
		if rec.Balance != 4020 {
			t.Errorf("balance = %d, want 4020", rec.Balance)
		}
		if rec.TotalDebits != 100 {
			t.Errorf("total debits = %d, want 100", rec.TotalDebits)
		}
	})

	t.Run("DriftCorrected", func(t *testing.T) {
		st := memory.New()
		e := credits.New(st, credits.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = e.Stop() })

		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 100, "test", nil); err != nil {
			t.Fatal(err)
		}

		// Skew the cached balance behind the ledger's back.
		if err := st.SetBalance(ctx, "user_1", 999999); err != nil {
			t.Fatal(err)
		}

		rec, err := e.Reconcile(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if !rec.Adjusted {
			t.Fatal("skewed cache not reported as adjusted")
		}
		if rec.Previous != 999999 {
			t.Errorf("previous = %d, want 999999", rec.Previous)
		}
		if rec.Balance != 4020 {
			t.Errorf("balance = %d, want 4020", rec.Balance)
		}

		// The replayed value is persisted, not just reported.
		bal, err := e.Balance(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		if bal != 4020 {
			t.Errorf("stored balance = %d, want 4020", bal)
		}
	})

	t.Run("ReplayIsOrderAware", func(t *testing.T) {
		e := newEngine(t, credits.WithClock(fixedClock(
			time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		)))

		// debit, then reset, then manual grant, then debit.
		if err := e.ConfirmDebit(ctx, "user_1", "op_1", 1000, "test", nil); err != nil {
			t.Fatal(err)
		}
		if _, err := e.SwitchPlan(ctx, "user_1", "STARTER"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.TopUp(ctx, "user_1", "", 500, "", nil); err != nil {
			t.Fatal(err)
		}
		if err := e.ConfirmDebit(ctx, "user_1", "op_2", 300, "test", nil); err != nil {
			t.Fatal(err)
		}

		rec, err := e.Reconcile(ctx, "user_1")
		if err != nil {
			t.Fatal(err)
		}
		// The reset anchors at 20000; the pre-switch debit is absorbed.
		if rec.Balance != 20200 {
			t.Errorf("balance = %d, want 20200", rec.Balance)
		}
		if rec.Adjusted {
			t.Error("consistent cache reported as adjusted")
		}
	})
}

func TestWithPlansOverride(t *testing.T) {
	ctx := context.Background()

	e := newEngine(t, credits.WithPlans(
		&plan.Plan{Code: plan.FreeCode, Name: "Free", MonthlyCredits: 100, Active: true},
		&plan.Plan{Code: "TEAM", Name: "Team", MonthlyCredits: 75000, Active: true, SortOrder: 4},
	))

	bal, err := e.Balance(ctx, "user_1")
	if err != nil {
		t.Fatal(err)
	}
	if bal != 100 {
		t.Errorf("balance = %d, want overridden free allowance 100", bal)
	}

	acct, err := e.SwitchPlan(ctx, "user_1", "TEAM")
	if err != nil {
		t.Fatal(err)
	}
	if acct.CreditBalance != 75000 {
		t.Errorf("balance = %d, want 75000", acct.CreditBalance)
	}
}
