// Package capture は取り込んだ選択テキストを同期できる単語に整える。
package capture

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
	"github.com/hitoshi/wordsync/internal/security"
)

// maxContextLength はページ文脈として保存する最大文字数。
const maxContextLength = 500

var (
	// ErrNoWordDetected は選択テキストから単語が見つからなかった場合のエラー。
	ErrNoWordDetected = errors.New("no word detected")
	// ErrInvalidSourceURL は取り込み元URLがhttp/httpsでない場合のエラー。
	ErrInvalidSourceURL = errors.New("invalid source URL")
)

var textSanitizer = security.NewTextSanitizer(maxContextLength)

// Selection は選択テキストを解析した結果。
type Selection struct {
	// Words は1段落目をカンマで区切った単語（1〜2語のもののみ）。
	Words []string
	// Sentence は2段落目の例文。なければ空。
	Sentence string
}

// ParseSelection は選択テキストを単語と例文に分ける。
//
// 空でない最初の行をカンマで区切り、空白区切りで2語以下のものを単語とする。
// 2行目があれば例文とする。例文の追加が無効で全体が3語以上の場合は単語なしとみなす。
func ParseSelection(text string, sentenceEnabled bool) (Selection, error) {
	if len(strings.Fields(text)) > 2 && !sentenceEnabled {
		return Selection{}, ErrNoWordDetected
	}

	var paragraphs []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	if len(paragraphs) == 0 {
		return Selection{}, ErrNoWordDetected
	}

	var sel Selection
	for _, part := range strings.Split(paragraphs[0], ",") {
		w := strings.TrimSpace(part)
		if w == "" || len(strings.Fields(w)) >= 3 {
			continue
		}
		sel.Words = append(sel.Words, w)
	}
	if len(sel.Words) == 0 {
		return Selection{}, ErrNoWordDetected
	}
	if len(paragraphs) > 1 {
		sel.Sentence = strings.TrimSpace(paragraphs[1])
	}
	return sel, nil
}

// NormalizeWord は単語の前後の空白を除き、空や改行を含むものを拒否する。
func NormalizeWord(text string) (string, error) {
	w, err := platform.NormalizeWord(text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoWordDetected, err)
	}
	return w, nil
}

// SanitizeText はページ由来の文字列をプレーンテキストにする。
func SanitizeText(s string) string {
	return textSanitizer.Sanitize(s)
}

// NewCapturedWord は取り込んだ単語を生成する。
// ページ文脈はタグを除いたプレーンテキストとして保存する。
func NewCapturedWord(text, sourceURL, pageContext string, now time.Time) (*model.CapturedWord, error) {
	w, err := NormalizeWord(text)
	if err != nil {
		return nil, err
	}
	if !security.IsWebURL(sourceURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceURL, sourceURL)
	}

	return &model.CapturedWord{
		ID:          uuid.NewString(),
		Text:        w,
		CapturedAt:  now.UTC(),
		SourceURL:   sourceURL,
		PageContext: SanitizeText(pageContext),
		Status:      model.SyncStatusPending,
	}, nil
}
