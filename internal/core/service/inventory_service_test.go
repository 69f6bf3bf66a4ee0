package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ldtran/home-inventory/internal/core/domain"
)

// Mock TableStore with full-table semantics only.
type mockTableStore struct {
	mu       sync.Mutex
	coll     domain.Collection
	readErr  error
	writeErr error
	writes   int
}

func newMockTableStore(coll domain.Collection) *mockTableStore {
	return &mockTableStore{coll: coll.Clone()}
}

func (m *mockTableStore) ReadAll(ctx context.Context) (domain.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.coll.Clone(), nil
}

func (m *mockTableStore) WriteAll(ctx context.Context, c domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.coll = c.Clone()
	return nil
}

func (m *mockTableStore) snapshot() domain.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coll.Clone()
}

// Mock RowStore: same table plus atomic conditional row writes.
type mockRowStore struct {
	mockTableStore
}

func newMockRowStore(coll domain.Collection) *mockRowStore {
	return &mockRowStore{mockTableStore{coll: coll.Clone()}}
}

func (m *mockRowStore) UpdateRow(ctx context.Context, rec domain.Record, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.coll.IndexOf(rec.Name)
	if i < 0 {
		return domain.ErrRecordNotFound
	}
	if m.coll[i].Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	m.writes++
	m.coll[i] = rec
	return nil
}

func (m *mockRowStore) DeleteRow(ctx context.Context, name string, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.coll.IndexOf(name)
	if i < 0 {
		return domain.ErrRecordNotFound
	}
	if m.coll[i].Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	m.writes++
	m.coll = append(m.coll[:i:i], m.coll[i+1:]...)
	return nil
}

func (m *mockRowStore) InsertRow(ctx context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.coll.Contains(rec.Name) {
		return domain.ErrDuplicateName
	}
	m.writes++
	m.coll = append(m.coll, rec)
	return nil
}

// Mock SnapshotCache counting traffic.
type mockCache struct {
	mu            sync.Mutex
	coll          domain.Collection
	has           bool
	gets          int
	puts          int
	invalidations int
}

func (m *mockCache) Get(ctx context.Context) (domain.Collection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if !m.has {
		return nil, false, nil
	}
	return m.coll.Clone(), true, nil
}

func (m *mockCache) Put(ctx context.Context, c domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.coll = c.Clone()
	m.has = true
	return nil
}

func (m *mockCache) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidations++
	m.coll = nil
	m.has = false
	return nil
}

func seedCollection() domain.Collection {
	return domain.Collection{
		{Name: "Rice", Quantity: 5, Notes: "in the pantry", Date: "1/2/2026", Version: 2},
		{Name: "Shampoo", Quantity: 1, Version: 1},
	}
}

func TestUpdateQuantity_Success(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	err := svc.UpdateQuantity(context.Background(), "Rice", 4, 2)
	if err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	rec := coll[coll.IndexOf("Rice")]
	if rec.Quantity != 4 {
		t.Errorf("expected quantity 4, got %d", rec.Quantity)
	}
	if rec.Version != 3 {
		t.Errorf("expected version 3, got %d", rec.Version)
	}
	if rec.Date == "1/2/2026" || rec.Date == "" {
		t.Errorf("expected Date stamped with today, got %q", rec.Date)
	}
}

func TestUpdateQuantity_StaleVersionRejected(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	// First update wins the version
	if err := svc.UpdateQuantity(context.Background(), "Rice", 4, 2); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	// Same stale expected version again
	before := store.snapshot()
	err := svc.UpdateQuantity(context.Background(), "Rice", 9, 2)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got: %v", err)
	}

	if !reflect.DeepEqual(before, store.snapshot()) {
		t.Error("rejected mutation changed the stored collection")
	}
}

func TestUpdateQuantity_RecordNotFound(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	err := svc.UpdateQuantity(context.Background(), "Sugar", 4, 1)
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got: %v", err)
	}
}

func TestUpdateQuantity_ClampsNegative(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.UpdateQuantity(context.Background(), "Rice", -1, 2); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	if q := coll[coll.IndexOf("Rice")].Quantity; q != 0 {
		t.Errorf("expected quantity clamped to 0, got %d", q)
	}
}

func TestAdjustQuantity_ClampsAtZero(t *testing.T) {
	store := newMockTableStore(domain.Collection{
		{Name: "Rice", Quantity: 0, Version: 3},
	})
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.AdjustQuantity(context.Background(), "Rice", -1, 3); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	rec := coll[coll.IndexOf("Rice")]
	if rec.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", rec.Quantity)
	}
	if rec.Version != 4 {
		t.Errorf("expected version 4, got %d", rec.Version)
	}
}

func TestUpdateNotes_Success(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.UpdateNotes(context.Background(), "Rice", "moved to the shelf", 2); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	rec := coll[coll.IndexOf("Rice")]
	if rec.Notes != "moved to the shelf" {
		t.Errorf("expected notes updated, got %q", rec.Notes)
	}
	if rec.Version != 3 {
		t.Errorf("expected version 3, got %d", rec.Version)
	}
	if rec.Date != "1/2/2026" {
		t.Errorf("notes update must not touch Date, got %q", rec.Date)
	}
	if rec.Quantity != 5 {
		t.Errorf("notes update must not touch Quantity, got %d", rec.Quantity)
	}
}

func TestUpdateNotes_StaleVersionRejected(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	err := svc.UpdateNotes(context.Background(), "Rice", "stale", 1)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got: %v", err)
	}
}

func TestDelete_Success(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.Delete(context.Background(), "Rice", 2); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	if coll.Contains("Rice") {
		t.Error("deleted record still present")
	}
	if !coll.Contains("Shampoo") {
		t.Error("unrelated record went missing")
	}
}

func TestDelete_NotFound(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	err := svc.Delete(context.Background(), "Sugar", 1)
	if !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got: %v", err)
	}
}

func TestDelete_StaleVersionRejected(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	before := store.snapshot()
	err := svc.Delete(context.Background(), "Rice", 1)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got: %v", err)
	}
	if !reflect.DeepEqual(before, store.snapshot()) {
		t.Error("rejected delete changed the stored collection")
	}
}

func TestAdd_StartsAtVersionOne(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.Add(context.Background(), "", "Sugar", 3, ""); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	i := coll.IndexOf("Sugar")
	if i < 0 {
		t.Fatal("added record not found")
	}
	if coll[i].Version != 1 {
		t.Errorf("expected version 1, got %d", coll[i].Version)
	}
	if coll[i].Date == "" {
		t.Error("expected Date stamped on creation")
	}
}

func TestAdd_DuplicateNameRejected(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	err := svc.Add(context.Background(), "", "Rice", 1, "")
	if !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}
}

func TestAdd_ClampsNegativeQuantity(t *testing.T) {
	store := newMockTableStore(nil)
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.Add(context.Background(), "", "Sugar", -5, ""); err != nil {
		t.Fatalf("expected success, got: %v", err)
	}

	coll := store.snapshot()
	if q := coll[coll.IndexOf("Sugar")].Quantity; q != 0 {
		t.Errorf("expected quantity 0, got %d", q)
	}
}

func TestNormalization_RepairsOnLoadWithoutConflict(t *testing.T) {
	// Version 0 in the store normalizes to 1 on load; a caller that
	// observed the normalized version must not be rejected.
	store := newMockTableStore(domain.Collection{
		{Name: "Rice", Quantity: 5, Version: 0},
	})
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.UpdateQuantity(context.Background(), "Rice", 4, 1); err != nil {
		t.Fatalf("expected repaired version to verify, got: %v", err)
	}

	coll := store.snapshot()
	if v := coll[coll.IndexOf("Rice")].Version; v != 2 {
		t.Errorf("expected version 2 after repair and bump, got %d", v)
	}
}

func TestConcurrent_ExactlyOneWriterWins(t *testing.T) {
	store := newMockTableStore(domain.Collection{
		{Name: "Rice", Quantity: 5, Version: 3},
	})
	svc := NewInventoryService(store, nil, log.Default())

	writers := 10
	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := svc.UpdateQuantity(context.Background(), "Rice", n, 3)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrVersionConflict):
				conflictCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
	if conflictCount.Load() != int32(writers-1) {
		t.Errorf("expected %d conflicts, got %d", writers-1, conflictCount.Load())
	}

	coll := store.snapshot()
	if v := coll[coll.IndexOf("Rice")].Version; v != 4 {
		t.Errorf("expected version 4, got %d", v)
	}
}

func TestRowStore_MutationsRouteThroughConditionalWrites(t *testing.T) {
	store := newMockRowStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	if err := svc.UpdateQuantity(context.Background(), "Rice", 4, 2); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := svc.Delete(context.Background(), "Shampoo", 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Add(context.Background(), "", "Sugar", 2, ""); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	coll := store.snapshot()
	if v := coll[coll.IndexOf("Rice")].Version; v != 3 {
		t.Errorf("expected version 3, got %d", v)
	}
	if coll.Contains("Shampoo") {
		t.Error("deleted record still present")
	}
	if i := coll.IndexOf("Sugar"); i < 0 || coll[i].Version != 1 {
		t.Error("inserted record missing or not at version 1")
	}
}

func TestRowStore_ConcurrentSingleWinner(t *testing.T) {
	store := newMockRowStore(domain.Collection{
		{Name: "Rice", Quantity: 5, Version: 3},
	})
	svc := NewInventoryService(store, nil, log.Default())

	writers := 10
	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := svc.UpdateQuantity(context.Background(), "Rice", n, 3); err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
}

func TestList_ReadsThroughCache(t *testing.T) {
	store := newMockTableStore(seedCollection())
	cache := &mockCache{}
	svc := NewInventoryService(store, cache, log.Default())

	// First read misses the cache and fills it
	first, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if cache.puts != 1 {
		t.Errorf("expected 1 cache fill, got %d", cache.puts)
	}

	// Second read is served from the cache
	second, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("cached read differs from store read")
	}
	if cache.gets != 2 {
		t.Errorf("expected 2 cache lookups, got %d", cache.gets)
	}
	if cache.puts != 1 {
		t.Errorf("cache refilled on a hit: %d puts", cache.puts)
	}
}

func TestMutation_InvalidatesCacheAndBypassesIt(t *testing.T) {
	store := newMockTableStore(seedCollection())
	cache := &mockCache{}
	svc := NewInventoryService(store, cache, log.Default())

	// Warm the cache
	if _, err := svc.List(context.Background()); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	getsBefore := cache.gets

	if err := svc.UpdateQuantity(context.Background(), "Rice", 4, 2); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if cache.gets != getsBefore {
		t.Error("verification read consulted the cache")
	}
	if cache.invalidations != 1 {
		t.Errorf("expected 1 invalidation, got %d", cache.invalidations)
	}

	// Next read must reflect the new state
	coll, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if q := coll[coll.IndexOf("Rice")].Quantity; q != 4 {
		t.Errorf("expected refreshed quantity 4, got %d", q)
	}
}

func TestLowStock_FiltersByThreshold(t *testing.T) {
	store := newMockTableStore(seedCollection())
	svc := NewInventoryService(store, nil, log.Default())

	low, err := svc.LowStock(context.Background(), 1)
	if err != nil {
		t.Fatalf("low stock failed: %v", err)
	}

	if len(low) != 1 || low[0].Name != "Shampoo" {
		t.Errorf("expected only Shampoo at threshold 1, got %+v", low)
	}
}

func TestStoreWriteFailure_NoPartialEffect(t *testing.T) {
	store := newMockTableStore(seedCollection())
	store.writeErr = fmt.Errorf("%w: connection reset", domain.ErrStoreUnavailable)
	cache := &mockCache{}
	svc := NewInventoryService(store, cache, log.Default())

	before := store.snapshot()
	err := svc.UpdateQuantity(context.Background(), "Rice", 4, 2)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got: %v", err)
	}

	if !reflect.DeepEqual(before, store.snapshot()) {
		t.Error("failed write changed the stored collection")
	}
	if cache.invalidations != 0 {
		t.Error("cache invalidated although the write failed")
	}
}

func TestStoreReadFailure_Propagated(t *testing.T) {
	store := newMockTableStore(nil)
	store.readErr = fmt.Errorf("%w: timeout", domain.ErrStoreUnavailable)
	svc := NewInventoryService(store, nil, log.Default())

	if _, err := svc.List(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from List, got: %v", err)
	}
	if err := svc.Delete(context.Background(), "Rice", 1); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable from Delete, got: %v", err)
	}
}
