package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const budgetKeyPrefix = "label:budget:"

// 上限未満のときだけ加算する
var acquireScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// 0未満にはしない
var releaseScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisBudget セッションごとの台語音声合成回数をRedisで数える
type RedisBudget struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
}

// NewRedisBudget 新しいRedisBudgetを作成
func NewRedisBudget(client *redis.Client, limit int, ttl time.Duration) *RedisBudget {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisBudget{client: client, limit: limit, ttl: ttl}
}

func budgetKey(sessionID string) string {
	return budgetKeyPrefix + sessionID
}

// Acquire 上限未満なら1回分を予約する
func (b *RedisBudget) Acquire(ctx context.Context, sessionID string) (bool, error) {
	ok, err := acquireScript.Run(ctx, b.client, []string{budgetKey(sessionID)}, b.limit, int(b.ttl.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire budget: %w", err)
	}
	return ok == 1, nil
}

// Release 予約を取り消す
func (b *RedisBudget) Release(ctx context.Context, sessionID string) error {
	if err := releaseScript.Run(ctx, b.client, []string{budgetKey(sessionID)}).Err(); err != nil {
		return fmt.Errorf("failed to release budget: %w", err)
	}
	return nil
}

// Used 使用済み回数
func (b *RedisBudget) Used(ctx context.Context, sessionID string) (int, error) {
	n, err := b.client.Get(ctx, budgetKey(sessionID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get budget: %w", err)
	}
	return n, nil
}

// Reset カウンタを削除する
func (b *RedisBudget) Reset(ctx context.Context, sessionID string) error {
	if err := b.client.Del(ctx, budgetKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to reset budget: %w", err)
	}
	return nil
}

// Limit 上限回数
func (b *RedisBudget) Limit() int {
	return b.limit
}
