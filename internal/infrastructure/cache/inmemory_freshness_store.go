package cache

import (
	"context"
	"sync"
	"time"

	"github.com/marketsync/backend/internal/domain/integration"
)

// entry is a recorded sync time with its expiration
type entry struct {
	syncedAt  time.Time
	expiresAt time.Time // zero never expires
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryFreshnessStore implements CategoryFreshnessStore using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryFreshnessStore struct {
	mu        sync.RWMutex
	entries   map[integration.CategoryScope]entry
	retention time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryFreshnessStore creates a new in-memory freshness store. A
// positive retention starts a background goroutine that drops expired
// entries.
func NewInMemoryFreshnessStore(retention time.Duration) *InMemoryFreshnessStore {
	store := &InMemoryFreshnessStore{
		entries:   make(map[integration.CategoryScope]entry),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	if retention > 0 {
		store.wg.Add(1)
		go store.cleanupLoop()
	}

	return store
}

// LastSynced returns when the scope's categories were last synced
func (s *InMemoryFreshnessStore) LastSynced(_ context.Context, scope integration.CategoryScope) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[scope]
	if !exists || e.expired(time.Now()) {
		return time.Time{}, false, nil
	}
	return e.syncedAt, true, nil
}

// MarkSynced records a successful category sync
func (s *InMemoryFreshnessStore) MarkSynced(_ context.Context, scope integration.CategoryScope, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{syncedAt: at}
	if s.retention > 0 {
		e.expiresAt = time.Now().Add(s.retention)
	}
	s.entries[scope] = e
	return nil
}

// Invalidate forgets the last sync time so the next request syncs
func (s *InMemoryFreshnessStore) Invalidate(_ context.Context, scope integration.CategoryScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, scope)
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (s *InMemoryFreshnessStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemoryFreshnessStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryFreshnessStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryFreshnessStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ensure InMemoryFreshnessStore implements CategoryFreshnessStore
var _ integration.CategoryFreshnessStore = (*InMemoryFreshnessStore)(nil)
