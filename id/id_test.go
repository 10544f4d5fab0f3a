package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/credits/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"ChargeID", id.NewChargeID, "chg_"},
		{"GrantID", id.NewGrantID, "gnt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixCharge)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixCharge {
		t.Errorf("expected prefix %q, got %q", id.PrefixCharge, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"ChargeID", id.NewChargeID, id.ParseChargeID},
		{"GrantID", id.NewGrantID, id.ParseGrantID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := tt.newFn()
			parsed, err := tt.parseFn(orig.String())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.String() != orig.String() {
				t.Errorf("round trip mismatch: %q != %q", parsed.String(), orig.String())
			}
		})
	}
}

func TestParseWithPrefixRejectsMismatch(t *testing.T) {
	chg := id.NewChargeID()
	if _, err := id.ParseGrantID(chg.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "nope", "chg_", "chg_!!!!"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestNilID(t *testing.T) {
	var nilID id.ID
	if !nilID.IsNil() {
		t.Fatal("zero value should be nil")
	}
	if nilID.String() != "" {
		t.Errorf("nil ID should stringify to empty, got %q", nilID.String())
	}

	b, err := nilID.MarshalText()
	if err != nil {
		t.Fatalf("marshal nil: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("nil ID should marshal to empty, got %q", b)
	}
}

func TestScanValue(t *testing.T) {
	orig := id.NewChargeID()

	v, err := orig.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if scanned.String() != orig.String() {
		t.Errorf("scan round trip mismatch: %q != %q", scanned.String(), orig.String())
	}

	var fromNull id.ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !fromNull.IsNil() {
		t.Error("scanning NULL should produce the nil ID")
	}
}
