// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// PlatformID は単語同期先の学習サービスを表す識別子。
// 取り得る値は下記の定数に限られる（クローズドな列挙）。
type PlatformID string

const (
	// PlatformShanbay は扇贝单词（Cookieセッション、JSON API）。
	PlatformShanbay PlatformID = "shanbay"
	// PlatformBBDC は不背单词（Cookieセッション、multipart API）。
	PlatformBBDC PlatformID = "bbdc"
	// PlatformMomo は墨墨背单词の開放API（Bearerトークン、云词本ドキュメント）。
	PlatformMomo PlatformID = "momo"
	// PlatformBaicizhan は百词斩（Cookieセッション、HTMLページで認証判定）。
	PlatformBaicizhan PlatformID = "baicizhan"
)

// allPlatforms は列挙順を固定したプラットフォーム一覧。
var allPlatforms = []PlatformID{
	PlatformShanbay,
	PlatformBBDC,
	PlatformMomo,
	PlatformBaicizhan,
}

// AllPlatforms はサポートする全プラットフォームを固定順で返す。
func AllPlatforms() []PlatformID {
	out := make([]PlatformID, len(allPlatforms))
	copy(out, allPlatforms)
	return out
}

// Valid はIDが列挙に含まれるかを返す。
func (p PlatformID) Valid() bool {
	for _, id := range allPlatforms {
		if p == id {
			return true
		}
	}
	return false
}

// String はfmt.Stringerを実装する。
func (p PlatformID) String() string {
	return string(p)
}

// ParsePlatformID は文字列をPlatformIDに変換する。
// 大文字小文字と前後の空白は無視する。列挙外の値はエラーを返す。
func ParsePlatformID(s string) (PlatformID, error) {
	id := PlatformID(strings.ToLower(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", fmt.Errorf("unknown platform: %q", s)
	}
	return id, nil
}
