package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

const defaultCleanupInterval = 5 * time.Minute

// entry is one remembered callback delivery
type entry struct {
	expiresAt time.Time
}

// InMemoryIdempotencyStore remembers which gateway callback deliveries
// (payment-callback:<transaction>:<status>) this process has already handled.
// Replays reaching another instance are not caught here and fall through to
// the payment version check, so clustered deployments use the Redis store.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore returns a store that drops expired deliveries
// every five minutes until Close.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	return newInMemoryIdempotencyStore(time.Now, defaultCleanupInterval)
}

func newInMemoryIdempotencyStore(now func() time.Time, cleanupInterval time.Duration) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		entries:  make(map[string]entry),
		now:      now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(cleanupInterval)

	return store
}

// MarkProcessed claims a callback delivery for ttl. It returns false when the
// same transaction and status arrived earlier and has not expired, which the
// callback service answers as already processed.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.entries[key]; exists && now.Before(e.expiresAt) {
		return false, nil
	}

	s.entries[key] = entry{expiresAt: now.Add(ttl)}
	return true, nil
}

// IsProcessed reports whether a delivery is still claimed
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists {
		return false, nil
	}
	return s.now().Before(e.expiresAt), nil
}

// Forget releases a claim after a callback failed to apply, so the gateway's
// retry of the same status is handled instead of skipped
func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the expiry sweep. Calling it again is a no-op.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
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

// cleanup drops deliveries whose TTL has passed
func (s *InMemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns how many deliveries are currently claimed
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
