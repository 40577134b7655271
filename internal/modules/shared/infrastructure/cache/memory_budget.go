package cache

import (
	"context"
	"sync"
)

// MemoryBudget Redisを使わない場合のプロセス内カウンタ
type MemoryBudget struct {
	mu     sync.Mutex
	counts map[string]int
	limit  int
}

// NewMemoryBudget 新しいMemoryBudgetを作成
func NewMemoryBudget(limit int) *MemoryBudget {
	return &MemoryBudget{
		counts: make(map[string]int),
		limit:  limit,
	}
}

// Acquire 上限未満なら1回分を予約する
func (b *MemoryBudget) Acquire(_ context.Context, sessionID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.counts[sessionID] >= b.limit {
		return false, nil
	}
	b.counts[sessionID]++
	return true, nil
}

// Release 予約を取り消す
func (b *MemoryBudget) Release(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.counts[sessionID] > 0 {
		b.counts[sessionID]--
	}
	return nil
}

// Used 使用済み回数
func (b *MemoryBudget) Used(_ context.Context, sessionID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[sessionID], nil
}

// Reset カウンタを0に戻す
func (b *MemoryBudget) Reset(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counts, sessionID)
	return nil
}

// Limit 上限回数
func (b *MemoryBudget) Limit() int {
	return b.limit
}
