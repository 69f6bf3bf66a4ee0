package port

import (
	"context"

	"github.com/ldtran/home-inventory/internal/core/domain"
)

// SnapshotCache holds a single whole-collection snapshot for display
// reads. Granularity is the entire collection: any successful mutation
// invalidates everything. Verification reads must never go through it.
type SnapshotCache interface {
	// Get returns the cached snapshot, reporting false if none is present.
	Get(ctx context.Context) (domain.Collection, bool, error)

	// Put stores a fresh snapshot.
	Put(ctx context.Context, c domain.Collection) error

	// Invalidate drops the snapshot so the next read hits the store.
	Invalidate(ctx context.Context) error
}
