// Package memory implements the store on process-local maps. It is the
// reference implementation of the store semantics and the backend used
// in tests; every guarantee the SQL and Mongo stores enforce with
// constraints is enforced here under one mutex.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/ledger"
	"github.com/xraph/credits/plan"
)

type Store struct {
	mu sync.RWMutex

	// Plan storage
	plans map[string]*plan.Plan

	// Account storage
	accounts map[string]*account.Account

	// Ledger storage, per uid in insertion order. The index set backs
	// the duplicate-id check.
	entries map[string][]*ledger.Entry
	seen    map[string]map[string]struct{}
}

func New() *Store {
	return &Store{
		plans:    make(map[string]*plan.Plan),
		accounts: make(map[string]*account.Account),
		entries:  make(map[string][]*ledger.Entry),
		seen:     make(map[string]map[string]struct{}),
	}
}

// Plan Store implementation

func (s *Store) UpsertPlans(_ context.Context, plans []*plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range plans {
		cp := *p
		s.plans[p.Code] = &cp
	}
	return nil
}

func (s *Store) GetPlan(_ context.Context, code string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[code]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, credits.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*plan.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if opts.ActiveOnly && !p.Active {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SortOrder != result[j].SortOrder {
			return result[i].SortOrder < result[j].SortOrder
		}
		return result[i].Code < result[j].Code
	})

	return paginate(result, opts.Offset, opts.Limit), nil
}

// Account Store implementation

func (s *Store) GetAccount(_ context.Context, uid string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if acct, ok := s.accounts[uid]; ok {
		cp := *acct
		return &cp, nil
	}
	return nil, credits.ErrAccountNotFound
}

func (s *Store) InitAccount(_ context.Context, acct *account.Account) (*account.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[acct.UID]; ok {
		cp := *existing
		return &cp, false, nil
	}

	cp := *acct
	s.accounts[acct.UID] = &cp
	out := cp
	return &out, true, nil
}

func (s *Store) SetBalance(_ context.Context, uid string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[uid]
	if !ok {
		return credits.ErrAccountNotFound
	}
	acct.CreditBalance = balance
	acct.Touch()
	return nil
}

// Ledger Store implementation

func (s *Store) ApplyReset(_ context.Context, e *ledger.Entry, planCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[e.UID]
	if !ok {
		return credits.ErrAccountNotFound
	}
	if s.exists(e.UID, e.ID) {
		return credits.ErrDuplicateEntry
	}

	s.append(e)
	acct.CreditBalance = e.Amount
	acct.PlanCode = planCode
	acct.Touch()
	return nil
}

func (s *Store) ApplyCredit(_ context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[e.UID]
	if !ok {
		return credits.ErrAccountNotFound
	}
	if s.exists(e.UID, e.ID) {
		return credits.ErrDuplicateEntry
	}

	s.append(e)
	acct.CreditBalance += e.Amount
	acct.Touch()
	return nil
}

func (s *Store) ApplyDebit(_ context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[e.UID]
	if !ok {
		return credits.ErrAccountNotFound
	}
	if s.exists(e.UID, e.ID) {
		return credits.ErrDuplicateEntry
	}
	// Conditional decrement: the balance can never go negative.
	if acct.CreditBalance < e.Amount {
		return credits.ErrInsufficientBalance
	}

	s.append(e)
	acct.CreditBalance -= e.Amount
	acct.Touch()
	return nil
}

func (s *Store) GetEntry(_ context.Context, uid, entryID string) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[uid] {
		if e.ID == entryID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, credits.ErrEntryNotFound
}

func (s *Store) ListEntries(_ context.Context, uid string, opts ledger.ListOpts) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*ledger.Entry, 0, len(s.entries[uid]))
	for _, e := range s.entries[uid] {
		if !opts.Since.IsZero() && e.CreatedAt.Before(opts.Since) {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	return paginate(result, opts.Offset, opts.Limit), nil
}

// exists and append assume s.mu is held for writing.

func (s *Store) exists(uid, entryID string) bool {
	_, ok := s.seen[uid][entryID]
	return ok
}

func (s *Store) append(e *ledger.Entry) {
	cp := *e
	s.entries[e.UID] = append(s.entries[e.UID], &cp)
	if s.seen[e.UID] == nil {
		s.seen[e.UID] = make(map[string]struct{})
	}
	s.seen[e.UID][e.ID] = struct{}{}
}

// Store management

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

func paginate[T any](in []T, offset, limit int) []T {
	start := offset
	if start > len(in) {
		start = len(in)
	}
	end := start + limit
	if limit == 0 || end > len(in) {
		end = len(in)
	}
	return in[start:end]
}
