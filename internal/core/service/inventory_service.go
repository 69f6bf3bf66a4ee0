package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ldtran/home-inventory/internal/core/domain"
	"github.com/ldtran/home-inventory/internal/port"
)

// InventoryService is the optimistic update engine. Every existing-record
// mutation re-reads the authoritative collection, verifies the caller's
// expected version, and only then writes. A stale version is rejected with
// domain.ErrVersionConflict and leaves the store untouched; at most one
// writer succeeds per version.
//
// Mutations within one process serialize on an internal mutex. That mutex
// is not what makes the protocol safe: writers in other processes are
// rejected by the version check alone.
type InventoryService struct {
	store  port.TableStore
	cache  port.SnapshotCache // optional, may be nil
	logger *log.Logger
	now    func() time.Time

	mu sync.Mutex
}

func NewInventoryService(store port.TableStore, cache port.SnapshotCache, logger *log.Logger) *InventoryService {
	if logger == nil {
		logger = log.Default()
	}
	return &InventoryService{
		store:  store,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// List returns the collection for display, going through the snapshot
// cache when one is configured.
func (s *InventoryService) List(ctx context.Context) (domain.Collection, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Printf("snapshot cache read failed, falling back to store: %v", err)
		} else if ok {
			return cached, nil
		}
	}

	coll, err := s.readAuthoritative(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, coll); err != nil {
			s.logger.Printf("snapshot cache write failed: %v", err)
		}
	}
	return coll, nil
}

// LowStock returns the records at or below the given quantity threshold.
func (s *InventoryService) LowStock(ctx context.Context, threshold int) (domain.Collection, error) {
	coll, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	low := make(domain.Collection, 0)
	for _, rec := range coll {
		if rec.Quantity <= threshold {
			low = append(low, rec)
		}
	}
	return low, nil
}

// UpdateQuantity sets the record's quantity (clamped to zero), stamps the
// Date column, and bumps the version by one.
func (s *InventoryService) UpdateQuantity(ctx context.Context, name string, quantity, expectedVersion int) error {
	if quantity < 0 {
		quantity = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, i, err := s.readVerify(ctx, name, expectedVersion)
	if err != nil {
		return err
	}

	coll[i].Quantity = quantity
	coll[i].Date = domain.FormatDate(s.now())
	coll[i].Version = expectedVersion + 1

	if err := s.writeRecord(ctx, coll, coll[i], expectedVersion); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// AdjustQuantity applies a signed delta to the record's quantity, clamping
// the result at zero. Same verification protocol as UpdateQuantity.
func (s *InventoryService) AdjustQuantity(ctx context.Context, name string, delta, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, i, err := s.readVerify(ctx, name, expectedVersion)
	if err != nil {
		return err
	}

	quantity := coll[i].Quantity + delta
	if quantity < 0 {
		quantity = 0
	}
	coll[i].Quantity = quantity
	coll[i].Date = domain.FormatDate(s.now())
	coll[i].Version = expectedVersion + 1

	if err := s.writeRecord(ctx, coll, coll[i], expectedVersion); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// UpdateNotes replaces the record's notes and bumps the version. The Date
// column is left alone: it tracks quantity changes only.
func (s *InventoryService) UpdateNotes(ctx context.Context, name, notes string, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, i, err := s.readVerify(ctx, name, expectedVersion)
	if err != nil {
		return err
	}

	coll[i].Notes = notes
	coll[i].Version = expectedVersion + 1

	if err := s.writeRecord(ctx, coll, coll[i], expectedVersion); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Delete removes the record entirely after the version check. No
// tombstone is kept.
func (s *InventoryService) Delete(ctx context.Context, name string, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, i, err := s.readVerify(ctx, name, expectedVersion)
	if err != nil {
		return err
	}

	if rs, ok := s.store.(port.RowStore); ok {
		if err := rs.DeleteRow(ctx, name, expectedVersion); err != nil {
			return err
		}
	} else {
		reduced := append(coll[:i:i], coll[i+1:]...)
		if err := s.store.WriteAll(ctx, reduced); err != nil {
			return err
		}
	}
	s.invalidate(ctx)
	return nil
}

// Add appends a new record at version 1. There is no version to verify,
// so this is the one unconditional operation; duplicate names are rejected
// at the collection boundary instead.
func (s *InventoryService) Add(ctx context.Context, image, name string, quantity int, notes string) error {
	if quantity < 0 {
		quantity = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.readAuthoritative(ctx)
	if err != nil {
		return err
	}
	if coll.Contains(name) {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateName, name)
	}

	rec := domain.Record{
		Image:    image,
		Name:     name,
		Quantity: quantity,
		Notes:    notes,
		Date:     domain.FormatDate(s.now()),
		Version:  1,
	}

	if rs, ok := s.store.(port.RowStore); ok {
		if err := rs.InsertRow(ctx, rec); err != nil {
			return err
		}
	} else {
		if err := s.store.WriteAll(ctx, append(coll, rec)); err != nil {
			return err
		}
	}
	s.invalidate(ctx)
	return nil
}

// readAuthoritative always hits the store, never the cache, and applies
// the load-time version/quantity repair.
func (s *InventoryService) readAuthoritative(ctx context.Context) (domain.Collection, error) {
	coll, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	coll, repaired := domain.Normalize(coll)
	if len(repaired) > 0 {
		s.logger.Printf("repaired malformed records on load: %s", strings.Join(repaired, ", "))
	}
	return coll, nil
}

// readVerify re-reads the collection from the source of truth and checks
// the caller's expected version against the named record.
func (s *InventoryService) readVerify(ctx context.Context, name string, expectedVersion int) (domain.Collection, int, error) {
	coll, err := s.readAuthoritative(ctx)
	if err != nil {
		return nil, 0, err
	}

	i := coll.IndexOf(name)
	if i < 0 {
		return nil, 0, fmt.Errorf("%w: %q", domain.ErrRecordNotFound, name)
	}
	if coll[i].Version != expectedVersion {
		return nil, 0, fmt.Errorf("%w: %q is at version %d, caller expected %d",
			domain.ErrVersionConflict, name, coll[i].Version, expectedVersion)
	}
	return coll, i, nil
}

// writeRecord persists a single-record mutation, routing through the
// conditional row write when the store supports it.
func (s *InventoryService) writeRecord(ctx context.Context, coll domain.Collection, rec domain.Record, expectedVersion int) error {
	if rs, ok := s.store.(port.RowStore); ok {
		return rs.UpdateRow(ctx, rec, expectedVersion)
	}
	return s.store.WriteAll(ctx, coll)
}

// invalidate drops the snapshot cache after a successful write. The write
// already landed, so a failed invalidation only means stale display reads
// until the cache TTL expires; it is logged, not propagated.
func (s *InventoryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Printf("snapshot cache invalidation failed: %v", err)
	}
}
