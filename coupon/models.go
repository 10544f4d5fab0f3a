// Package coupon defines promotional credit codes. A coupon is a fixed
// credit amount a user can redeem once; redemption state lives on the
// ledger via the deterministic entry id, not in a separate table.
package coupon

import (
	"time"

	"github.com/xraph/credits/types"
)

// EntryIDPrefix + coupon code: at most one redemption per user per code.
const EntryIDPrefix = "COUPON_"

// EntryID returns the deterministic ledger entry id for redeeming code.
func EntryID(code string) string { return EntryIDPrefix + code }

// Coupon is one redeemable promo code.
type Coupon struct {
	types.Entity
	Code       string            `json:"code"`
	Name       string            `json:"name"`
	Credits    int64             `json:"credits"`
	ValidFrom  *time.Time        `json:"valid_from,omitempty"`
	ValidUntil *time.Time        `json:"valid_until,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// ValidAt reports whether the coupon can be redeemed at t. Nil bounds
// are open.
func (c *Coupon) ValidAt(t time.Time) bool {
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}
