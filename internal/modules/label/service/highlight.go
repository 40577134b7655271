package service

import (
	"html/template"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var ingredientLine = regexp.MustCompile(`(?m)^[ \t]*(?:[-*•]|\d+[.、])[ \t]*(?:\*\*)?([^*：:\n]{1,30}?)(?:\*\*)?[ \t]*[：:]`)

// 成分名ではない見出し項目
var nonIngredientKeys = map[string]bool{
	"產品類型": true,
	"產品名稱": true,
	"成分說明": true,
	"總結說明": true,
}

// ExtractIngredientNames 「- 成分名稱：説明」形式の行から成分名を取り出す
func ExtractIngredientNames(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range ingredientLine.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || nonIngredientKeys[name] || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// HighlightIngredients 成分名を<mark>で囲んだHTMLを返す。
// 先頭から最長一致で走査するため、他の成分名を含む成分名でもタグが入れ子にならない。
func HighlightIngredients(text string, names []string) template.HTML {
	candidates := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			candidates = append(candidates, n)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i]) > len(candidates[j])
	})

	var out, plain strings.Builder
	flushPlain := func() {
		if plain.Len() > 0 {
			out.WriteString(template.HTMLEscapeString(plain.String()))
			plain.Reset()
		}
	}

	for i := 0; i < len(text); {
		matched := ""
		for _, c := range candidates {
			if strings.HasPrefix(text[i:], c) {
				matched = c
				break
			}
		}
		if matched == "" {
			_, size := utf8.DecodeRuneInString(text[i:])
			plain.WriteString(text[i : i+size])
			i += size
			continue
		}
		flushPlain()
		out.WriteString(`<mark class="ingredient">`)
		out.WriteString(template.HTMLEscapeString(matched))
		out.WriteString(`</mark>`)
		i += len(matched)
	}
	flushPlain()

	return template.HTML(out.String())
}
