package service

import (
	"regexp"
	"strings"
)

// FallbackSummary 要約が見つからない場合の固定文
const FallbackSummary = "這是產品標籤的解讀結果，詳細的成分說明請參考上方內容。"

var summaryMarker = regexp.MustCompile(`總結說明[:：]?`)

// ExtractSummary 解読テキストから「總結說明」以降を取り出す。空文字は返さない
func ExtractSummary(text string) string {
	loc := summaryMarker.FindStringIndex(text)
	if loc == nil {
		return FallbackSummary
	}

	summary := strings.TrimSpace(text[loc[1]:])
	if summary == "" {
		return FallbackSummary
	}
	return summary
}
