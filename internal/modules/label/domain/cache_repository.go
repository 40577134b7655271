package domain

import (
	"context"
	"time"
)

// CacheRepository キャッシュリポジトリのインターフェース
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// LabelRecordRepository 解読履歴リポジトリのインターフェース
type LabelRecordRepository interface {
	Create(ctx context.Context, record *LabelRecord) error
	FindByID(ctx context.Context, id string) (*LabelRecord, error)
	FindBySession(ctx context.Context, sessionID string, limit int) ([]*LabelRecord, error)
	FindAll(ctx context.Context, limit, offset int) ([]*LabelRecord, error)
	Delete(ctx context.Context, id string) error
}
