// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー・管理者が入力したテキストをサニタイズし、
// XSS攻撃などのセキュリティリスクから閲覧者を保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はテキストサニタイズ機能のインターフェースを定義する。
// 進捗ノートの保存前と、Biohackのリッチテキストフィールドの保存前に使用される。
type ContentSanitizerService interface {
	// SanitizePlainText は入力からすべてのHTMLタグを除去し、プレーンテキストを返す。
	// 進捗ノートやタイトルなど、マークアップを許可しないフィールドに使用する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizePlainText(raw string) string

	// SanitizeRichText は限定的なマークアップを許可してサニタイズする。
	// Biohackのmechanism/biology等の解説フィールドに使用する。
	// 許可タグ（p, br, ul, ol, li, blockquote, strong, em, a）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	SanitizeRichText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのポリシーを2種類構築する:
//   - strict: 全タグ除去（StrictPolicy）
//   - rich: p, br, ul, ol, li, blockquote, strong, em, a のみ許可
func NewContentSanitizer() *contentSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	// aタグ:
	// - href属性を許可、相対URLは不許可
	// - target="_blank" と rel="noreferrer noopener" を強制付与
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowStandardURLs()
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// SanitizePlainText は入力からすべてのHTMLタグを除去する。
func (s *contentSanitizer) SanitizePlainText(raw string) string {
	return strings.TrimSpace(s.strict.Sanitize(raw))
}

// SanitizeRichText は限定的なマークアップを許可してサニタイズする。
func (s *contentSanitizer) SanitizeRichText(raw string) string {
	return s.rich.Sanitize(raw)
}
