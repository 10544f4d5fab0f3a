package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/types"
)

// ==================== Plan models ====================

type planModel struct {
	grove.BaseModel `grove:"table:credit_plans"`

	Code           string    `grove:"code,pk"`
	Name           string    `grove:"name"`
	MonthlyCredits int64     `grove:"monthly_credits"`
	Active         bool      `grove:"active"`
	SortOrder      int       `grove:"sort_order"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		Code:           p.Code,
		Name:           p.Name,
		MonthlyCredits: p.MonthlyCredits,
		Active:         p.Active,
		SortOrder:      p.SortOrder,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) *plan.Plan {
	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Code:           m.Code,
		Name:           m.Name,
		MonthlyCredits: m.MonthlyCredits,
		Active:         m.Active,
		SortOrder:      m.SortOrder,
	}
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:credit_accounts"`

	UID           string    `grove:"uid,pk"`
	CreditBalance int64     `grove:"credit_balance"`
	PlanCode      string    `grove:"plan_code"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		UID:           a.UID,
		CreditBalance: a.CreditBalance,
		PlanCode:      a.PlanCode,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	return &account.Account{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		UID:           m.UID,
		CreditBalance: m.CreditBalance,
		PlanCode:      m.PlanCode,
	}
}

// ==================== Ledger entry models ====================

type entryModel struct {
	grove.BaseModel `grove:"table:credit_ledger_entries"`

	UID            string          `grove:"uid,pk"`
	EntryID        string          `grove:"entry_id,pk"`
	Type           string          `grove:"type"`
	Amount         int64           `grove:"amount"`
	Reason         string          `grove:"reason"`
	PricingVersion string          `grove:"pricing_version"`
	Manual         bool            `grove:"manual"`
	Meta           json.RawMessage `grove:"meta,type:jsonb"`
	CreatedAt      time.Time       `grove:"created_at"`
}

func toEntryModel(e *ledger.Entry) *entryModel {
	meta, _ := json.Marshal(e.Meta) //nolint:errcheck // best-effort

	return &entryModel{
		UID:            e.UID,
		EntryID:        e.ID,
		Type:           string(e.Type),
		Amount:         e.Amount,
		Reason:         e.Reason,
		PricingVersion: e.PricingVersion,
		Manual:         e.Manual,
		Meta:           meta,
		CreatedAt:      e.CreatedAt,
	}
}

func fromEntryModel(m *entryModel) *ledger.Entry {
	var meta map[string]string
	if len(m.Meta) > 0 && string(m.Meta) != "null" {
		_ = json.Unmarshal(m.Meta, &meta) //nolint:errcheck // best-effort
	}

	return &ledger.Entry{
		ID:             m.EntryID,
		UID:            m.UID,
		Type:           ledger.Type(m.Type),
		Amount:         m.Amount,
		Reason:         m.Reason,
		PricingVersion: m.PricingVersion,
		Manual:         m.Manual,
		Meta:           meta,
		CreatedAt:      m.CreatedAt,
	}
}
