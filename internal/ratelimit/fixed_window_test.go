package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to limit", func(t *testing.T) {
		f := NewFixedWindow(3, time.Minute)

		for i := 0; i < 3; i++ {
			ok, err := f.Allow(ctx, "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, ok, "request %d should be allowed", i+1)
		}

		ok, err := f.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, ok, "request over the limit should be rejected")
	})

	t.Run("keys are independent", func(t *testing.T) {
		f := NewFixedWindow(1, time.Minute)

		ok, _ := f.Allow(ctx, "10.0.0.1")
		assert.True(t, ok)
		ok, _ = f.Allow(ctx, "10.0.0.1")
		assert.False(t, ok)

		ok, _ = f.Allow(ctx, "10.0.0.2")
		assert.True(t, ok, "a different caller has its own window")
	})

	t.Run("rejected requests still count", func(t *testing.T) {
		f := NewFixedWindow(2, time.Minute)

		f.Allow(ctx, "k")
		f.Allow(ctx, "k")
		ok, _ := f.Allow(ctx, "k")
		assert.False(t, ok)

		// The rejection above consumed a slot too; still rejected.
		ok, _ = f.Allow(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("window resets after it elapses", func(t *testing.T) {
		f := NewFixedWindow(1, time.Minute)
		current := time.Now()
		f.now = func() time.Time { return current }

		ok, _ := f.Allow(ctx, "k")
		assert.True(t, ok)
		ok, _ = f.Allow(ctx, "k")
		assert.False(t, ok)

		current = current.Add(time.Minute)
		ok, _ = f.Allow(ctx, "k")
		assert.True(t, ok, "first request of the new window should be allowed")
	})

	t.Run("default limit of 100", func(t *testing.T) {
		f := NewFixedWindow(100, time.Minute)

		for i := 0; i < 100; i++ {
			ok, _ := f.Allow(ctx, "caller")
			require.True(t, ok)
		}
		ok, _ := f.Allow(ctx, "caller")
		assert.False(t, ok, "101st request in the window must be rejected")
	})
}

func TestFixedWindowCleanup(t *testing.T) {
	f := NewFixedWindow(10, time.Minute)
	current := time.Now()
	f.now = func() time.Time { return current }

	f.Allow(context.Background(), "a")
	f.Allow(context.Background(), "b")
	assert.Equal(t, 2, f.Len())

	current = current.Add(30 * time.Second)
	f.Allow(context.Background(), "c")

	current = current.Add(45 * time.Second)
	f.Cleanup()
	assert.Equal(t, 1, f.Len(), "only the unexpired window should remain")
}

func TestFixedWindowConcurrent(t *testing.T) {
	f := NewFixedWindow(50, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	allowed := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.Allow(ctx, "shared")
			assert.NoError(t, err)
			allowed <- ok
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 50, count, "exactly the limit should be allowed")
}
