package port

import (
	"context"

	"github.com/ldtran/home-inventory/internal/core/domain"
)

// TableStore is the contract of the external tabular store. The store has
// no transactions and no locking of its own; concurrency safety lives in
// the layer above.
type TableStore interface {
	// ReadAll returns the full current collection. Fails with
	// domain.ErrStoreUnavailable on transport/API failure.
	ReadAll(ctx context.Context) (domain.Collection, error)

	// WriteAll replaces the entire backing table contents. Fails with
	// domain.ErrStoreUnavailable or domain.ErrStoreRejected; on failure
	// the table is left unchanged.
	WriteAll(ctx context.Context, c domain.Collection) error
}

// RowStore is an optional capability of stores that support row-addressed
// conditional writes keyed by (name, version). When available, the engine
// prefers it over full-table rewrites: the version check then happens
// atomically inside the store, closing the verify-then-write race.
type RowStore interface {
	// UpdateRow writes the record only if the stored version still equals
	// expectedVersion. Fails with domain.ErrRecordNotFound or
	// domain.ErrVersionConflict.
	UpdateRow(ctx context.Context, rec domain.Record, expectedVersion int) error

	// DeleteRow removes the named record under the same version condition.
	DeleteRow(ctx context.Context, name string, expectedVersion int) error

	// InsertRow appends a new record. Fails with domain.ErrDuplicateName
	// if the name is already taken.
	InsertRow(ctx context.Context, rec domain.Record) error
}
