package plan

import "context"

// Store is the plan slice of the unified store interface.
type Store interface {
	// Upsert merges the given plans into the catalog. Safe to call
	// repeatedly and concurrently (seed-on-start semantics).
	Upsert(ctx context.Context, plans []*Plan) error
	Get(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context, opts ListOpts) ([]*Plan, error)
}

// ListOpts filters plan listings.
type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
