// Package plan defines billing plans and the built-in plan catalog.
package plan

import (
	"github.com/xraph/credits/types"
)

// FreeCode is the plan every account starts on.
const FreeCode = "FREE"

// Plan is immutable reference data: one row per purchasable tier.
// MonthlyCredits is the allotment a switch or monthly reroll resets
// the balance to — not a top-up.
type Plan struct {
	types.Entity
	Code           string `json:"code"`
	Name           string `json:"name"`
	MonthlyCredits int64  `json:"monthly_credits"`
	Active         bool   `json:"active"`
	SortOrder      int    `json:"sort_order"`
}

// Builtin returns the compiled-in plan table. It is the seed source and the
// lookup fallback: even with an empty or partially seeded store, FREE must
// always resolve so that new accounts get a sane default allotment.
func Builtin() []*Plan {
	return []*Plan{
		{Code: FreeCode, Name: "Free", MonthlyCredits: 4120, Active: true, SortOrder: 0},
		{Code: "STARTER", Name: "Starter", MonthlyCredits: 20000, Active: true, SortOrder: 1},
		{Code: "PRO", Name: "Pro", MonthlyCredits: 50000, Active: true, SortOrder: 2},
		{Code: "MAX", Name: "Max", MonthlyCredits: 200000, Active: true, SortOrder: 3},
	}
}

// BuiltinByCode returns the compiled-in plan for code, or nil.
func BuiltinByCode(code string) *Plan {
	for _, p := range Builtin() {
		if p.Code == code {
			return p
		}
	}
	return nil
}
