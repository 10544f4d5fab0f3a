package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/types"
)

func seedAccount(t *testing.T, s *Store, uid string, balance int64) {
	t.Helper()
	_, _, err := s.InitAccount(context.Background(), &account.Account{
		Entity:        types.NewEntity(),
		UID:           uid,
		CreditBalance: balance,
		PlanCode:      plan.FreeCode,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInitAccount(t *testing.T) {
	ctx := context.Background()
	s := New()

	acct, created, err := s.InitAccount(ctx, &account.Account{UID: "u1", CreditBalance: 4120, PlanCode: "FREE"})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("first init should create")
	}
	if acct.CreditBalance != 4120 {
		t.Errorf("balance = %d, want 4120", acct.CreditBalance)
	}

	// Re-init returns the existing row untouched.
	acct, created, err = s.InitAccount(ctx, &account.Account{UID: "u1", CreditBalance: 999, PlanCode: "PRO"})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("second init should not create")
	}
	if acct.CreditBalance != 4120 || acct.PlanCode != "FREE" {
		t.Errorf("existing row overwritten: %+v", acct)
	}
}

func TestApplyDebit(t *testing.T) {
	ctx := context.Background()

	t.Run("Decrements", func(t *testing.T) {
		s := New()
		seedAccount(t, s, "u1", 1000)

		if err := s.ApplyDebit(ctx, &ledger.Entry{ID: "op_1", UID: "u1", Type: ledger.TypeDebit, Amount: 300}); err != nil {
			t.Fatal(err)
		}
		acct, err := s.GetAccount(ctx, "u1")
		if err != nil {
			t.Fatal(err)
		}
		if acct.CreditBalance != 700 {
			t.Errorf("balance = %d, want 700", acct.CreditBalance)
		}
	})

	t.Run("DuplicateID", func(t *testing.T) {
		s := New()
		seedAccount(t, s, "u1", 1000)

		if err := s.ApplyDebit(ctx, &ledger.Entry{ID: "op_1", UID: "u1", Type: ledger.TypeDebit, Amount: 300}); err != nil {
			t.Fatal(err)
		}
		err := s.ApplyDebit(ctx, &ledger.Entry{ID: "op_1", UID: "u1", Type: ledger.TypeDebit, Amount: 300})
		if !errors.Is(err, credits.ErrDuplicateEntry) {
			t.Fatalf("err = %v, want ErrDuplicateEntry", err)
		}

		// The duplicate must not double-charge.
		acct, _ := s.GetAccount(ctx, "u1")
		if acct.CreditBalance != 700 {
			t.Errorf("balance = %d, want 700", acct.CreditBalance)
		}
	})

	t.Run("ConditionalDecrement", func(t *testing.T) {
		s := New()
		seedAccount(t, s, "u1", 100)

		err := s.ApplyDebit(ctx, &ledger.Entry{ID: "op_1", UID: "u1", Type: ledger.TypeDebit, Amount: 101})
		if !errors.Is(err, credits.ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}

		// Rejected debits leave neither an entry nor a balance change.
		acct, _ := s.GetAccount(ctx, "u1")
		if acct.CreditBalance != 100 {
			t.Errorf("balance = %d, want 100", acct.CreditBalance)
		}
		entries, _ := s.ListEntries(ctx, "u1", ledger.ListOpts{})
		if len(entries) != 0 {
			t.Errorf("entries = %d, want 0", len(entries))
		}

		// Exact balance is spendable.
		if err := s.ApplyDebit(ctx, &ledger.Entry{ID: "op_2", UID: "u1", Type: ledger.TypeDebit, Amount: 100}); err != nil {
			t.Fatal(err)
		}
		acct, _ = s.GetAccount(ctx, "u1")
		if acct.CreditBalance != 0 {
			t.Errorf("balance = %d, want 0", acct.CreditBalance)
		}
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		s := New()

		err := s.ApplyDebit(ctx, &ledger.Entry{ID: "op_1", UID: "ghost", Type: ledger.TypeDebit, Amount: 1})
		if !errors.Is(err, credits.ErrAccountNotFound) {
			t.Fatalf("err = %v, want ErrAccountNotFound", err)
		}
	})
}

func TestApplyReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedAccount(t, s, "u1", 700)

	entry := &ledger.Entry{ID: "PLAN_SWITCH_PRO_0", UID: "u1", Type: ledger.TypeGrant, Amount: 50000}
	if err := s.ApplyReset(ctx, entry, "PRO"); err != nil {
		t.Fatal(err)
	}

	acct, err := s.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if acct.CreditBalance != 50000 {
		t.Errorf("balance = %d, want 50000 (set, not added)", acct.CreditBalance)
	}
	if acct.PlanCode != "PRO" {
		t.Errorf("plan = %q, want PRO", acct.PlanCode)
	}

	if err := s.ApplyReset(ctx, entry, "PRO"); !errors.Is(err, credits.ErrDuplicateEntry) {
		t.Fatalf("err = %v, want ErrDuplicateEntry", err)
	}
}

func TestApplyCredit(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedAccount(t, s, "u1", 700)

	entry := &ledger.Entry{ID: "gnt_1", UID: "u1", Type: ledger.TypeGrant, Amount: 500, Manual: true}
	if err := s.ApplyCredit(ctx, entry); err != nil {
		t.Fatal(err)
	}

	acct, _ := s.GetAccount(ctx, "u1")
	if acct.CreditBalance != 1200 {
		t.Errorf("balance = %d, want 1200 (added, not set)", acct.CreditBalance)
	}
}

func TestListEntries(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedAccount(t, s, "u1", 100000)

	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range []*ledger.Entry{
		{ID: "g1", Type: ledger.TypeGrant, Amount: 4120},
		{ID: "d1", Type: ledger.TypeDebit, Amount: 10},
		{ID: "g2", Type: ledger.TypeGrant, Amount: 500, Manual: true},
		{ID: "d2", Type: ledger.TypeDebit, Amount: 20},
	} {
		e.UID = "u1"
		e.CreatedAt = base.AddDate(0, 0, i)
		var err error
		if e.Type == ledger.TypeDebit {
			err = s.ApplyDebit(ctx, e)
		} else {
			err = s.ApplyCredit(ctx, e)
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	t.Run("CreationOrder", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, "u1", ledger.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"g1", "d1", "g2", "d2"}
		if len(entries) != len(want) {
			t.Fatalf("entries = %d, want %d", len(entries), len(want))
		}
		for i, id := range want {
			if entries[i].ID != id {
				t.Errorf("entries[%d] = %q, want %q", i, entries[i].ID, id)
			}
		}
	})

	t.Run("TypeFilter", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, "u1", ledger.ListOpts{Type: ledger.TypeDebit})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("debits = %d, want 2", len(entries))
		}
	})

	t.Run("SinceFilter", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, "u1", ledger.ListOpts{Since: base.AddDate(0, 0, 2)})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].ID != "g2" {
			t.Errorf("entries[0] = %q, want g2", entries[0].ID)
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, "u1", ledger.ListOpts{Offset: 1, Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].ID != "d1" || entries[1].ID != "g2" {
			t.Errorf("page = [%q, %q], want [d1, g2]", entries[0].ID, entries[1].ID)
		}
	})

	t.Run("OtherUserEmpty", func(t *testing.T) {
		entries, err := s.ListEntries(ctx, "u2", ledger.ListOpts{})
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("entries = %d, want 0", len(entries))
		}
	})
}

func TestPlans(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.UpsertPlans(ctx, plan.Builtin()); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetPlan(ctx, "PRO")
	if err != nil {
		t.Fatal(err)
	}
	if p.MonthlyCredits != 50000 {
		t.Errorf("PRO credits = %d, want 50000", p.MonthlyCredits)
	}

	if _, err := s.GetPlan(ctx, "ENTERPRISE"); !errors.Is(err, credits.ErrPlanNotFound) {
		t.Errorf("err = %v, want ErrPlanNotFound", err)
	}

	// Upsert overwrites in place.
	p.MonthlyCredits = 60000
	if err := s.UpsertPlans(ctx, []*plan.Plan{p}); err != nil {
		t.Fatal(err)
	}
	p, _ = s.GetPlan(ctx, "PRO")
	if p.MonthlyCredits != 60000 {
		t.Errorf("PRO credits = %d, want 60000 after upsert", p.MonthlyCredits)
	}

	plans, err := s.ListPlans(ctx, plan.ListOpts{ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 4 {
		t.Fatalf("plans = %d, want 4", len(plans))
	}
	if plans[0].Code != plan.FreeCode {
		t.Errorf("plans[0] = %q, want FREE first by sort order", plans[0].Code)
	}
}

func TestEntriesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedAccount(t, s, "u1", 1000)

	src := &ledger.Entry{ID: "op_1", UID: "u1", Type: ledger.TypeDebit, Amount: 100, Reason: "test"}
	if err := s.ApplyDebit(ctx, src); err != nil {
		t.Fatal(err)
	}
	src.Amount = 999

	got, err := s.GetEntry(ctx, "u1", "op_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 100 {
		t.Errorf("stored entry mutated through caller pointer: %d", got.Amount)
	}
	got.Reason = "mutated"

	again, _ := s.GetEntry(ctx, "u1", "op_1")
	if again.Reason != "test" {
		t.Errorf("stored entry mutated through returned pointer: %q", again.Reason)
	}
}
