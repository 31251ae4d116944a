package security

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// excerptLength は求人一覧に表示する説明文の抜粋の最大文字数。
const excerptLength = 120

// Excerpt はHTMLからテキストだけを取り出し、空白を詰めて最大maxRunes文字に切り詰める。
// script・styleの中身は含めない。切り詰めた場合は末尾に「…」を付ける。
func Excerpt(raw string, maxRunes int) string {
	if raw == "" || maxRunes <= 0 {
		return ""
	}

	var b strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(raw))
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return ""
			}
			break loop
		case html.StartTagToken:
			if isRawTextTag(z) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			if isRawTextTag(z) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}

	text := strings.Join(strings.Fields(b.String()), " ")
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}

func isRawTextTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
