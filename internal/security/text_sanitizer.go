package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はフィード由来のHTML断片をプレーンテキストに変換する機能のインターフェース。
type TextSanitizerService interface {
	// PlainText はすべてのタグを除去し、文字参照を展開したテキストを返す。
	// 連続する空白は1つのスペースにまとめ、前後の空白は取り除く。
	PlainText(rawHTML string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyはタグを全て除去するが、テキスト中の&等はエスケープして返すため、
// 最後にhtml.UnescapeStringで元の文字に戻す。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// 隣接する要素のテキストが連結されないよう、除去したタグの位置に空白を入れる。
func NewTextSanitizer() *textSanitizer {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return &textSanitizer{policy: p}
}

// PlainText はHTML断片からテキストのみを取り出す。
func (s *textSanitizer) PlainText(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(rawHTML))
	return strings.Join(strings.Fields(stripped), " ")
}
