// Package ledger defines the append-only per-user ledger of
// balance-affecting events.
package ledger

import (
	"strconv"
	"time"
)

// Type discriminates balance-affecting events. Amounts are unsigned;
// the sign is implied by the type.
type Type string

const (
	// TypeGrant increases or resets the balance (plan switch, monthly
	// reroll, manual top-up).
	TypeGrant Type = "GRANT"
	// TypeDebit charges the balance for a confirmed paid operation.
	TypeDebit Type = "DEBIT"
)

// Well-known deterministic entry id prefixes. Deterministic ids are the
// idempotency mechanism: at most one entry per (uid, id) ever exists.
const (
	// SwitchIDPrefix + plan code + switch sequence: at most one entry
	// per (target plan, sequence) pair.
	SwitchIDPrefix = "PLAN_SWITCH_"
	// ResetIDPrefix + cycle (UTC year-month): at most one reroll per cycle.
	ResetIDPrefix = "PLAN_MONTHLY_RESET_"
)

// SwitchID returns the deterministic entry id for the seq'th plan switch
// on an account, targeting planCode. The sequence keeps a retry of the
// same switch colliding on the id while letting a later return to a
// previously held plan write a fresh reset.
func SwitchID(planCode string, seq int) string {
	return SwitchIDPrefix + planCode + "_" + strconv.Itoa(seq)
}

// ResetID returns the deterministic entry id for the given cycle key.
func ResetID(cycle string) string { return ResetIDPrefix + cycle }

// Cycle returns the billing cycle key for t: the UTC year-month, e.g.
// "2026-08". Wall-clock timezones never shift the cycle boundary.
func Cycle(t time.Time) string { return t.UTC().Format("2006-01") }

// Entry is one immutable ledger event. The ID doubles as the idempotency
// key: writes with an ID that already exists for the user are no-ops.
type Entry struct {
	ID             string            `json:"id"`
	UID            string            `json:"uid"`
	Type           Type              `json:"type"`
	Amount         int64             `json:"amount"`
	Reason         string            `json:"reason"`
	PricingVersion string            `json:"pricing_version,omitempty"`
	Manual         bool              `json:"manual"`
	Meta           map[string]string `json:"meta,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Reset reports whether this grant overwrites the balance rather than
// adding to it. Plan switches and monthly rerolls reset; manual
// (support-issued) grants add.
func (e *Entry) Reset() bool {
	return e.Type == TypeGrant && !e.Manual
}

// Replay folds entries, in creation order, into the balance the cached
// field should hold, plus the total of all debits. Reset grants set the
// running balance to their amount, manual grants add, debits subtract.
// This is the authoritative balance: the cached account field is only
// ever a copy of this fold.
func Replay(entries []*Entry) (balance, totalDebits int64) {
	for _, e := range entries {
		switch {
		case e.Type == TypeDebit:
			balance -= e.Amount
			totalDebits += e.Amount
		case e.Manual:
			balance += e.Amount
		default:
			balance = e.Amount
		}
	}
	return balance, totalDebits
}
