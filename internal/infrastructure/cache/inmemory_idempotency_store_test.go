package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*InMemoryIdempotencyStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	store := newInMemoryIdempotencyStore(clock.Now, time.Hour)
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	ctx := context.Background()

	t.Run("marks a new key", func(t *testing.T) {
		store, _ := newTestStore(t)
		isNew, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PAID", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("second delivery is a duplicate", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PAID", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PAID", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("different status of the same transaction is new", func(t *testing.T) {
		store, _ := newTestStore(t)
		_, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PENDING", time.Hour)
		require.NoError(t, err)

		isNew, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PAID", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("expired key can be marked again", func(t *testing.T) {
		store, clock := newTestStore(t)
		_, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PAID", time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		isNew, err := store.MarkProcessed(ctx, "payment-callback:TXN-1:PAID", time.Minute)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	processed, err := store.IsProcessed(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, processed)

	_, err = store.MarkProcessed(ctx, "payment-callback:TXN-2:PAID", time.Minute)
	require.NoError(t, err)

	processed, err = store.IsProcessed(ctx, "payment-callback:TXN-2:PAID")
	require.NoError(t, err)
	assert.True(t, processed)

	clock.Advance(2 * time.Minute)
	processed, err = store.IsProcessed(ctx, "payment-callback:TXN-2:PAID")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Forget(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.MarkProcessed(ctx, "payment-callback:TXN-3:PAID", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Forget(ctx, "payment-callback:TXN-3:PAID"))

	isNew, err := store.MarkProcessed(ctx, "payment-callback:TXN-3:PAID", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew, "a forgotten key must be processable again")

	assert.NoError(t, store.Forget(ctx, "never-marked"))
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(t)

	_, _ = store.MarkProcessed(ctx, "short-1", time.Minute)
	_, _ = store.MarkProcessed(ctx, "short-2", time.Minute)
	_, _ = store.MarkProcessed(ctx, "long", 24*time.Hour)
	assert.Equal(t, 3, store.Size())

	clock.Advance(time.Hour)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, "long")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentAccess(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()

	ctx := context.Background()
	const workers = 100
	results := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, "payment-callback:TXN-4:PAID", time.Hour)
			results <- err == nil && isNew
		}()
	}
	wg.Wait()
	close(results)

	newCount := 0
	for isNew := range results {
		if isNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount, "exactly one delivery wins")
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
