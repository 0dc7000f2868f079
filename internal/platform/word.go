package platform

import (
	"errors"
	"strings"

	"github.com/hitoshi/wordsync/internal/model"
)

var (
	// ErrEmptyWord は空白のみの単語。
	ErrEmptyWord = errors.New("word is empty")
	// ErrMultilineWord は改行を含む単語。行単位の文書を壊すため拒否する。
	ErrMultilineWord = errors.New("word contains a line break")
)

// NormalizeWord は前後の空白を取り除き、送信できない単語を拒否する。
func NormalizeWord(word string) (string, error) {
	w := strings.TrimSpace(word)
	if w == "" {
		return "", ErrEmptyWord
	}
	if strings.ContainsAny(w, "\r\n") {
		return "", ErrMultilineWord
	}
	return w, nil
}

// CheckWord はNormalizeWordの結果をInvalidInputのSyncErrorとして返す。
// lowerがtrueなら小文字化する。ネットワーク呼び出しの前に使う。
func (r *Requester) CheckWord(op, word string, lower bool) (string, error) {
	w, err := NormalizeWord(word)
	if err != nil {
		return "", r.Fail(op, model.KindInvalidInput, err)
	}
	if lower {
		w = strings.ToLower(w)
	}
	return w, nil
}
