// Package mongo implements the store on MongoDB via the Grove ORM.
//
// Entry idempotency rides on the _id unique constraint (uid joined with
// the entry id). Balance mutations are single-document updates, and the
// debit's $gte filter makes the decrement conditional, so the balance
// stays non-negative without transactions.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
	creditstore "github.com/xraph/credits/store"
)

// Collection name constants.
const (
	colPlans    = "credit_plans"
	colAccounts = "credit_accounts"
	colEntries  = "credit_ledger_entries"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all credit collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("credits/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Plan Store ====================

func (s *Store) UpsertPlans(ctx context.Context, plans []*plan.Plan) error {
	t := now()
	for _, p := range plans {
		m := toPlanModel(p)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = t
		}
		m.UpdatedAt = t

		_, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.Code}).
			SetUpdate(bson.M{
				"$set": bson.M{
					"name":            m.Name,
					"monthly_credits": m.MonthlyCredits,
					"active":          m.Active,
					"sort_order":      m.SortOrder,
					"updated_at":      m.UpdatedAt,
				},
				"$setOnInsert": bson.M{
					"created_at": m.CreatedAt,
				},
			}).
			Upsert().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("credits/mongo: upsert plan %s: %w", p.Code, err)
		}
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, code string) (*plan.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": code}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrPlanNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m), nil
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "sort_order", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list plans: %w", err)
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		result[i] = fromPlanModel(&models[i])
	}
	return result, nil
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, uid string) (*account.Account, error) {
	var m accountModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": uid}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) InitAccount(ctx context.Context, acct *account.Account) (*account.Account, bool, error) {
	m := toAccountModel(acct)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
		m.UpdatedAt = m.CreatedAt
	}

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		// Lost the create race; the winner wrote the same seed state.
		if mongo.IsDuplicateKeyError(err) {
			existing, err := s.GetAccount(ctx, acct.UID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("credits/mongo: init account: %w", err)
	}
	return fromAccountModel(m), true, nil
}

func (s *Store) SetBalance(ctx context.Context, uid string, balance int64) error {
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": uid}).
		Set("credit_balance", balance).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: set balance: %w", err)
	}
	if res.MatchedCount() == 0 {
		return credits.ErrAccountNotFound
	}
	return nil
}

// ==================== Ledger Store ====================

// insertEntry writes the entry document, reporting
// credits.ErrDuplicateEntry when the id already exists for the user.
func (s *Store) insertEntry(ctx context.Context, e *ledger.Entry) error {
	m := toEntryModel(e)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}

	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return credits.ErrDuplicateEntry
		}
		return fmt.Errorf("credits/mongo: insert entry: %w", err)
	}
	return nil
}

// deleteEntry compensates a failed balance update. The gap between the
// two writes is not transactional; a crash inside it leaves drift that
// Reconcile repairs from the ledger.
func (s *Store) deleteEntry(ctx context.Context, uid, entryID string) error {
	_, err := s.mdb.NewDelete((*entryModel)(nil)).
		Filter(bson.M{"_id": entryDocID(uid, entryID)}).
		Exec(ctx)
	return err
}

func (s *Store) ApplyReset(ctx context.Context, e *ledger.Entry, planCode string) error {
	if err := s.insertEntry(ctx, e); err != nil {
		return err
	}

	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": e.UID}).
		Set("credit_balance", e.Amount).
		Set("plan_code", planCode).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: apply reset: %w", err)
	}
	if res.MatchedCount() == 0 {
		_ = s.deleteEntry(ctx, e.UID, e.ID) //nolint:errcheck // best-effort compensation
		return credits.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ApplyCredit(ctx context.Context, e *ledger.Entry) error {
	if err := s.insertEntry(ctx, e); err != nil {
		return err
	}

	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": e.UID}).
		SetUpdate(bson.M{
			"$inc": bson.M{"credit_balance": e.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: apply credit: %w", err)
	}
	if res.MatchedCount() == 0 {
		_ = s.deleteEntry(ctx, e.UID, e.ID) //nolint:errcheck // best-effort compensation
		return credits.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ApplyDebit(ctx context.Context, e *ledger.Entry) error {
	if err := s.insertEntry(ctx, e); err != nil {
		return err
	}

	// The $gte filter makes the decrement conditional: a concurrent
	// spender that drained the balance leaves nothing to match.
	res, err := s.mdb.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{
			"_id":            e.UID,
			"credit_balance": bson.M{"$gte": e.Amount},
		}).
		SetUpdate(bson.M{
			"$inc": bson.M{"credit_balance": -e.Amount},
			"$set": bson.M{"updated_at": now()},
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("credits/mongo: apply debit: %w", err)
	}
	if res.MatchedCount() == 0 {
		_ = s.deleteEntry(ctx, e.UID, e.ID) //nolint:errcheck // best-effort compensation
		if _, err := s.GetAccount(ctx, e.UID); err != nil {
			return err
		}
		return credits.ErrInsufficientBalance
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, uid, entryID string) (*ledger.Entry, error) {
	var m entryModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": entryDocID(uid, entryID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, credits.ErrEntryNotFound
		}
		return nil, fmt.Errorf("credits/mongo: get entry: %w", err)
	}
	return fromEntryModel(&m), nil
}

func (s *Store) ListEntries(ctx context.Context, uid string, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	var models []entryModel

	filter := bson.M{"uid": uid}
	if !opts.Since.IsZero() {
		filter["created_at"] = bson.M{"$gte": opts.Since}
	}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}

	// Replay depends on creation order; entry_id breaks same-instant ties.
	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "entry_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("credits/mongo: list entries: %w", err)
	}

	result := make([]*ledger.Entry, len(models))
	for i := range models {
		result[i] = fromEntryModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all credit collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPlans: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "sort_order", Value: 1}}},
		},
		colAccounts: {
			{Keys: bson.D{{Key: "plan_code", Value: 1}}},
		},
		colEntries: {
			{
				Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "entry_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "uid", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "uid", Value: 1}, {Key: "type", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}
}
