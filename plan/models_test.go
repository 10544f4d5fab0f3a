package plan

import "testing"

func TestBuiltin(t *testing.T) {
	plans := Builtin()
	if len(plans) != 4 {
		t.Fatalf("plans = %d, want 4", len(plans))
	}

	want := map[string]int64{
		"FREE":    4120,
		"STARTER": 20000,
		"PRO":     50000,
		"MAX":     200000,
	}
	for _, p := range plans {
		if p.MonthlyCredits != want[p.Code] {
			t.Errorf("%s monthly credits = %d, want %d", p.Code, p.MonthlyCredits, want[p.Code])
		}
		if !p.Active {
			t.Errorf("%s should be active", p.Code)
		}
	}
}

func TestBuiltinByCode(t *testing.T) {
	if p := BuiltinByCode(FreeCode); p == nil || p.MonthlyCredits != 4120 {
		t.Errorf("FREE lookup = %+v", p)
	}
	if p := BuiltinByCode("ENTERPRISE"); p != nil {
		t.Errorf("unknown code = %+v, want nil", p)
	}
}

func TestBuiltinReturnsFreshCopies(t *testing.T) {
	Builtin()[0].MonthlyCredits = 1

	if got := Builtin()[0].MonthlyCredits; got != 4120 {
		t.Errorf("catalog mutated through caller copy: %d", got)
	}
}
