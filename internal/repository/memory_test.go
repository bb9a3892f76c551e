package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimitStore(t *testing.T) {
	store := NewMemoryRateLimitStore()
	clock := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	t.Run("FixedWindow", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			allowed, err := store.CheckRateLimit(ctx, "a", 2, time.Minute)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
		allowed, _ := store.CheckRateLimit(ctx, "a", 2, time.Minute)
		assert.False(t, allowed)

		clock = clock.Add(time.Minute)
		allowed, _ = store.CheckRateLimit(ctx, "a", 2, time.Minute)
		assert.True(t, allowed)
	})

	t.Run("Prune", func(t *testing.T) {
		_, _ = store.CheckRateLimit(ctx, "b", 1, time.Second)
		clock = clock.Add(2 * time.Second)
		assert.Equal(t, 1, store.Prune())
		assert.NotContains(t, store.windows, "b")
		assert.Contains(t, store.windows, "a")
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		granted := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := store.CheckRateLimit(ctx, "c", 10, time.Hour); ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 10, granted)
	})
}
