package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はページから取り込んだ文字列をプレーンテキストにする。
// タグはすべて除去し、連続する空白は1つにまとめる。
type TextSanitizer struct {
	policy *bluemonday.Policy
	limit  int
}

// NewTextSanitizer はTextSanitizerを生成する。limitは結果の最大文字数（0以下で無制限）。
func NewTextSanitizer(limit int) *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
		limit:  limit,
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
func (s *TextSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyは&などをエスケープして返すため、プレーンテキストとして戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.Join(strings.Fields(text), " ")

	if s.limit > 0 {
		r := []rune(text)
		if len(r) > s.limit {
			text = string(r[:s.limit])
		}
	}
	return text
}
