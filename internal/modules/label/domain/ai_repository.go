package domain

import "context"

// LabelInterpreter 画像からラベルを解読するリモートモデルのインターフェース
type LabelInterpreter interface {
	// InterpretLabel 正規化済み画像と固定の指示文を1回だけ送信する
	InterpretLabel(ctx context.Context, img *NormalizedImage) (*Interpretation, error)

	// ProviderName プロバイダー名を返す
	ProviderName() string
}

// DialectTranslator 要約を台語の発音表記へ翻訳するインターフェース
type DialectTranslator interface {
	TranslateToDialect(ctx context.Context, text string) (string, error)
}
