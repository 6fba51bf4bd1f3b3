package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitionhub/backend/internal/infrastructure/config"
)

// Port 1 is reserved and refuses connections on every CI runner we use.
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(BackendMemory, unreachableRedis).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("empty backend defaults to memory", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory("", unreachableRedis).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory("memcached", unreachableRedis).CreateStore(ctx)
		assert.Error(t, err)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(BackendRedis, unreachableRedis).CreateStore(ctx)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("unreachable redis without fallback", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory(BackendRedis, unreachableRedis, WithInMemoryFallback(false)).CreateStore(ctx)
		assert.Error(t, err)
	})
}
