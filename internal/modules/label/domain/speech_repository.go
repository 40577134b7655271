package domain

import "context"

// Synthesizer テキストを音声に変換するバックエンド
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, req SpeechRequest) (*AudioArtifact, error)

	// Name ログ用のバックエンド名
	Name() string
}

// CallBudget セッションごとの台語音声合成回数の上限管理
type CallBudget interface {
	// Acquire 1回分を予約する。上限に達している場合はfalseを返す
	Acquire(ctx context.Context, sessionID string) (bool, error)

	// Release 予約を取り消す（合成失敗時）
	Release(ctx context.Context, sessionID string) error

	// Used 使用済み回数を返す
	Used(ctx context.Context, sessionID string) (int, error)

	// Reset セッション再開時にカウンタを0に戻す
	Reset(ctx context.Context, sessionID string) error

	// Limit 上限回数を返す
	Limit() int
}
