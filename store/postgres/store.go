// Package postgres implements the store on PostgreSQL via the Grove ORM.
//
// Idempotency rides on the (uid, entry_id) primary key: entry inserts use
// ON CONFLICT DO NOTHING and report zero affected rows as a duplicate.
// Debits decrement the cached balance with a conditional update so the
// balance can never go negative, whatever the callers race.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
	creditstore "github.com/xraph/credits/store"
)

// compile-time interface check
var _ creditstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("credits/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("credits/postgres: migration failed: %w", err)
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
	for _, p := range plans {
		m := toPlanModel(p)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now()
		}
		m.UpdatedAt = now()

		_, err := s.pg.NewInsert(m).
			OnConflict("(code) DO UPDATE").
			Set("name = EXCLUDED.name").
			Set("monthly_credits = EXCLUDED.monthly_credits").
			Set("active = EXCLUDED.active").
			Set("sort_order = EXCLUDED.sort_order").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, code string) (*plan.Plan, error) {
	m := new(planModel)
	err := s.pg.NewSelect(m).
		Where("code = $1", code).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrPlanNotFound
		}
		return nil, err
	}
	return fromPlanModel(m), nil
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel
	q := s.pg.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = $1", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("sort_order ASC, code ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		result[i] = fromPlanModel(&models[i])
	}
	return result, nil
}

// ==================== Account Store ====================

func (s *Store) GetAccount(ctx context.Context, uid string) (*account.Account, error) {
	m := new(accountModel)
	err := s.pg.NewSelect(m).
		Where("uid = $1", uid).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m), nil
}

func (s *Store) InitAccount(ctx context.Context, acct *account.Account) (*account.Account, bool, error) {
	m := toAccountModel(acct)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
		m.UpdatedAt = m.CreatedAt
	}

	res, err := s.pg.NewInsert(m).
		OnConflict("(uid) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows > 0 {
		return fromAccountModel(m), true, nil
	}

	existing, err := s.GetAccount(ctx, acct.UID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) SetBalance(ctx context.Context, uid string, balance int64) error {
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("credit_balance = $1", balance).
		Set("updated_at = $2", now()).
		Where("uid = $3", uid).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrAccountNotFound
	}
	return nil
}

// ==================== Ledger Store ====================

// insertEntry writes the entry row, reporting credits.ErrDuplicateEntry
// when the (uid, entry_id) key already exists.
func (s *Store) insertEntry(ctx context.Context, e *ledger.Entry) error {
	m := toEntryModel(e)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now()
	}

	res, err := s.pg.NewInsert(m).
		OnConflict("(uid, entry_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return credits.ErrDuplicateEntry
	}
	return nil
}

// deleteEntry compensates a failed balance update. The window between
// entry insert and balance update is not transactional; a crash inside
// it leaves drift that Reconcile repairs from the ledger.
func (s *Store) deleteEntry(ctx context.Context, uid, entryID string) error {
	_, err := s.pg.NewDelete((*entryModel)(nil)).
		Where("uid = $1", uid).
		Where("entry_id = $2", entryID).
		Exec(ctx)
	return err
}

func (s *Store) ApplyReset(ctx context.Context, e *ledger.Entry, planCode string) error {
	if err := s.insertEntry(ctx, e); err != nil {
		return err
	}

	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("credit_balance = $1", e.Amount).
		Set("plan_code = $2", planCode).
		Set("updated_at = $3", now()).
		Where("uid = $4", e.UID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_ = s.deleteEntry(ctx, e.UID, e.ID) //nolint:errcheck // best-effort compensation
		return credits.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ApplyCredit(ctx context.Context, e *ledger.Entry) error {
	if err := s.insertEntry(ctx, e); err != nil {
		return err
	}

	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("credit_balance = credit_balance + $1", e.Amount).
		Set("updated_at = $2", now()).
		Where("uid = $3", e.UID).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_ = s.deleteEntry(ctx, e.UID, e.ID) //nolint:errcheck // best-effort compensation
		return credits.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ApplyDebit(ctx context.Context, e *ledger.Entry) error {
	if err := s.insertEntry(ctx, e); err != nil {
		return err
	}

	// Conditional decrement: only commits while the balance covers the
	// amount, so concurrent spenders cannot take it negative.
	res, err := s.pg.NewUpdate((*accountModel)(nil)).
		Set("credit_balance = credit_balance - $1", e.Amount).
		Set("updated_at = $2", now()).
		Where("uid = $3", e.UID).
		Where("credit_balance >= $4", e.Amount).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		_ = s.deleteEntry(ctx, e.UID, e.ID) //nolint:errcheck // best-effort compensation
		if _, err := s.GetAccount(ctx, e.UID); err != nil {
			return err
		}
		return credits.ErrInsufficientBalance
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, uid, entryID string) (*ledger.Entry, error) {
	m := new(entryModel)
	err := s.pg.NewSelect(m).
		Where("uid = $1", uid).
		Where("entry_id = $2", entryID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, credits.ErrEntryNotFound
		}
		return nil, err
	}
	return fromEntryModel(m), nil
}

func (s *Store) ListEntries(ctx context.Context, uid string, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	var models []entryModel
	q := s.pg.NewSelect(&models).Where("uid = $1", uid)

	argIdx := 1
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("created_at >= $%d", argIdx), opts.Since)
	}
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	// Replay depends on creation order; entry_id breaks same-instant ties.
	q = q.OrderExpr("created_at ASC, entry_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
