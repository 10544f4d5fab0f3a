package mongo

import (
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

	Code           string    `grove:"code,pk"         bson:"_id"`
	Name           string    `grove:"name"            bson:"name"`
	MonthlyCredits int64     `grove:"monthly_credits" bson:"monthly_credits"`
	Active         bool      `grove:"active"          bson:"active"`
	SortOrder      int       `grove:"sort_order"      bson:"sort_order"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
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

	UID           string    `grove:"uid,pk"         bson:"_id"`
	CreditBalance int64     `grove:"credit_balance" bson:"credit_balance"`
	PlanCode      string    `grove:"plan_code"      bson:"plan_code"`
	CreatedAt     time.Time `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"     bson:"updated_at"`
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

// The document id is uid + ":" + entry_id so duplicate detection rides
// on the _id unique constraint; uid and entry_id are kept as separate
// fields for queries.
type entryModel struct {
	grove.BaseModel `grove:"table:credit_ledger_entries"`

	DocID          string            `grove:"doc_id,pk"       bson:"_id"`
	UID            string            `grove:"uid"             bson:"uid"`
	EntryID        string            `grove:"entry_id"        bson:"entry_id"`
	Type           string            `grove:"type"            bson:"type"`
	Amount         int64             `grove:"amount"          bson:"amount"`
	Reason         string            `grove:"reason"          bson:"reason"`
	PricingVersion string            `grove:"pricing_version" bson:"pricing_version"`
	Manual         bool              `grove:"manual"          bson:"manual"`
	Meta           map[string]string `grove:"meta"            bson:"meta,omitempty"`
	CreatedAt      time.Time         `grove:"created_at"      bson:"created_at"`
}

func entryDocID(uid, entryID string) string {
	return uid + ":" + entryID
}

func toEntryModel(e *ledger.Entry) *entryModel {
	return &entryModel{
		DocID:          entryDocID(e.UID, e.ID),
		UID:            e.UID,
		EntryID:        e.ID,
		Type:           string(e.Type),
		Amount:         e.Amount,
		Reason:         e.Reason,
		PricingVersion: e.PricingVersion,
		Manual:         e.Manual,
		Meta:           e.Meta,
		CreatedAt:      e.CreatedAt,
	}
}

func fromEntryModel(m *entryModel) *ledger.Entry {
	return &ledger.Entry{
		ID:             m.EntryID,
		UID:            m.UID,
		Type:           ledger.Type(m.Type),
		Amount:         m.Amount,
		Reason:         m.Reason,
		PricingVersion: m.PricingVersion,
		Manual:         m.Manual,
		Meta:           m.Meta,
		CreatedAt:      m.CreatedAt,
	}
}
