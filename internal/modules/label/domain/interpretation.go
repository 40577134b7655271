package domain

import (
	"strings"
	"time"
)

// Interpretation ラベル解読結果のエンティティ
type Interpretation struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Cached       bool
	ProcessedAt  time.Time
}

// NewInterpretation 新しいInterpretationを作成
func NewInterpretation(text string, inputTokens, outputTokens int, model string) *Interpretation {
	return &Interpretation{
		Text:         text,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		ProcessedAt:  time.Now(),
	}
}

// IsEmpty 解読テキストが空かどうか
func (i *Interpretation) IsEmpty() bool {
	return i == nil || strings.TrimSpace(i.Text) == ""
}

// TotalTokens 合計トークン数を返す
func (i *Interpretation) TotalTokens() int {
	return i.InputTokens + i.OutputTokens
}
