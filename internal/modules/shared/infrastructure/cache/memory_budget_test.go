package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryBudget_AcquireUntilLimit(t *testing.T) {
	ctx := context.Background()
	budget := NewMemoryBudget(2)

	ok, err := budget.Acquire(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = budget.Acquire(ctx, "s1")
	require.True(t, ok)

	ok, _ = budget.Acquire(ctx, "s1")
	require.False(t, ok, "3回目は上限で拒否")

	// 別セッションは独立
	ok, _ = budget.Acquire(ctx, "s2")
	require.True(t, ok)

	used, _ := budget.Used(ctx, "s1")
	require.Equal(t, 2, used)
}

func TestMemoryBudget_ReleaseAndReset(t *testing.T) {
	ctx := context.Background()
	budget := NewMemoryBudget(1)

	ok, _ := budget.Acquire(ctx, "s1")
	require.True(t, ok)
	require.NoError(t, budget.Release(ctx, "s1"))

	used, _ := budget.Used(ctx, "s1")
	require.Equal(t, 0, used)

	// 0未満にはならない
	require.NoError(t, budget.Release(ctx, "s1"))
	used, _ = budget.Used(ctx, "s1")
	require.Equal(t, 0, used)

	ok, _ = budget.Acquire(ctx, "s1")
	require.True(t, ok)
	require.NoError(t, budget.Reset(ctx, "s1"))
	ok, _ = budget.Acquire(ctx, "s1")
	require.True(t, ok)
}

func TestMemoryBudget_ConcurrentNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	const limit = 5
	budget := NewMemoryBudget(limit)

	var granted int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := budget.Acquire(ctx, "shared"); ok {
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(limit), granted)
	used, _ := budget.Used(ctx, "shared")
	require.Equal(t, limit, used)
	require.Equal(t, limit, budget.Limit())
}
