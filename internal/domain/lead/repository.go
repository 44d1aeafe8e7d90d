package lead

import (
	"context"
)

// Filter narrows a lead listing.  Zero values mean "any".
type Filter struct {
	AccountID string
	Type      Type
	Priority  Priority
	Limit     int
}

// Repository stores the derived lead set.  ReplaceAll swaps the whole set
// atomically so a recomputation never leaves a partial result visible.
type Repository interface {
	ReplaceAll(ctx context.Context, leads []*Lead) error
	List(ctx context.Context, f Filter) ([]*Lead, error)
	Count(ctx context.Context) (int64, error)
}
