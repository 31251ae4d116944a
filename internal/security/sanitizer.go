// Package security は外部APIから受け取ったテキストの無害化と、
// 履歴書ファイル取得時のSSRF防止を提供する。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/jobboard/internal/model"
)

// Sanitizer は画面に表示するテキストを無害化する。
//
// 求人の説明・応募条件・待遇は簡単な書式を残すリッチテキストとして、
// メッセージ本文や名前などはタグをすべて除去したプレーンテキストとして扱う。
type Sanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
// リッチテキストのポリシー:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - aタグ: href のみ許可し、target="_blank" と rel="noopener noreferrer" を付与
//   - imgタグ: src はhttpsのみ許可
func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &Sanitizer{
		rich:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// Rich はリッチテキストを無害化する。
func (s *Sanitizer) Rich(raw string) string {
	if raw == "" {
		return ""
	}
	return s.rich.Sanitize(raw)
}

// Plain はタグをすべて除去する。
func (s *Sanitizer) Plain(raw string) string {
	if raw == "" {
		return ""
	}
	return s.plain.Sanitize(raw)
}

// Job は求人の表示用テキストを無害化する。
func (s *Sanitizer) Job(j *model.Job) {
	if j == nil {
		return
	}
	j.Title = s.Plain(j.Title)
	j.CompanyName = s.Plain(j.CompanyName)
	j.Location = s.Plain(j.Location)
	j.Description = s.Rich(j.Description)
	j.Requirements = s.Rich(j.Requirements)
	j.Benefits = s.Rich(j.Benefits)
	j.Tags = s.Plain(j.Tags)
}

// Jobs は求人一覧の表示用テキストを無害化し、説明文の抜粋を付ける。
func (s *Sanitizer) Jobs(jobs []model.Job) {
	for i := range jobs {
		s.Job(&jobs[i])
		jobs[i].Summary = Excerpt(jobs[i].Description, excerptLength)
	}
}

// Messages はメッセージ本文と送信者名を無害化する。
func (s *Sanitizer) Messages(msgs []model.Message) {
	for i := range msgs {
		msgs[i].Content = s.Plain(msgs[i].Content)
		msgs[i].SenderName = s.Plain(msgs[i].SenderName)
	}
}
