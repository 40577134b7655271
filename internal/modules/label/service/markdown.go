package service

import (
	"regexp"
	"strings"
)

type replaceRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// 順序に意味がある（後のルールは前のルール適用済みを前提にする）
var markdownRules = []replaceRule{
	{regexp.MustCompile("```[A-Za-z0-9_-]*\\n?"), ""},
	{regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*`), ""},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`\*([^*\n]+?)\*`), "$1"},
	{regexp.MustCompile("`([^`\\n]+)`"), "$1"},
	{regexp.MustCompile(`\[([^\]\n]+)\]\([^)\n]*\)`), "$1"},
	{regexp.MustCompile(`(?m)^[ \t]*[-*+•][ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

// StripMarkdown 見出し・強調・リスト記号などを取り除いたプレーンテキストを返す
func StripMarkdown(s string) string {
	out := strings.TrimSpace(s)
	// 各ルールは文字を削るだけなので、変化がなくなるまで繰り返せば必ず止まる
	for {
		next := out
		for _, rule := range markdownRules {
			next = rule.pattern.ReplaceAllString(next, rule.replacement)
		}
		next = strings.TrimSpace(next)
		if next == out {
			return out
		}
		out = next
	}
}
