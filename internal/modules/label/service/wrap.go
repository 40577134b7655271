package service

import (
	"strings"
	"unicode"
)

// TextMeasurer 文字列の描画幅（ピクセル）を返す
type TextMeasurer interface {
	MeasureString(s string) int
}

// MeasureFunc 関数をTextMeasurerとして使うためのアダプタ
type MeasureFunc func(s string) int

// MeasureString TextMeasurerの実装
func (f MeasureFunc) MeasureString(s string) int {
	return f(s)
}

// WrapText テキストを最大幅に収まる行に分割する。
// 漢字・かな等は1文字ごと、空白区切りの文字は単語ごとに折り返す。
func WrapText(text string, m TextMeasurer, maxWidth int) []string {
	var lines []string
	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		lines = append(lines, wrapParagraph(paragraph, m, maxWidth)...)
	}
	return lines
}

func wrapParagraph(paragraph string, m TextMeasurer, maxWidth int) []string {
	tokens := tokenize(paragraph)
	if len(tokens) == 0 {
		return []string{""}
	}

	var lines []string
	line := ""
	flush := func() {
		lines = append(lines, strings.TrimRight(line, " "))
		line = ""
	}

	for _, tok := range tokens {
		if line == "" && tok == " " {
			continue
		}
		if m.MeasureString(line+tok) <= maxWidth {
			line += tok
			continue
		}
		if line != "" {
			flush()
			if tok == " " {
				continue
			}
		}
		if m.MeasureString(tok) <= maxWidth {
			line = tok
			continue
		}
		// 1単語が幅を超える場合は文字単位で分割
		for _, r := range tok {
			if line != "" && m.MeasureString(line+string(r)) > maxWidth {
				flush()
			}
			line += string(r)
		}
	}
	if line != "" {
		flush()
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

// tokenize 折り返し単位に分割する
func tokenize(s string) []string {
	var tokens []string
	var word strings.Builder
	flushWord := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			flushWord()
			tokens = append(tokens, " ")
		case isWideRune(r):
			flushWord()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flushWord()
	return tokens
}

// isWideRune 単語境界を持たない文字（CJK・全角記号）かどうか
func isWideRune(r rune) bool {
	switch {
	case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Bopomofo):
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK記号と句読点
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // 全角形
		return true
	}
	return false
}
