// Package translate は例文の翻訳をLLMで行う。
package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"
)

const (
	// DefaultModel は翻訳に使う既定のモデル。
	DefaultModel = "claude-3-5-haiku-latest"
	// defaultMaxTokens は1回の翻訳で生成する最大トークン数。
	defaultMaxTokens = 1024

	systemPrompt = "You translate English example sentences into Simplified Chinese for a vocabulary notebook. " +
		"Reply with the translation only, without quotes, notes or romanization."
)

// ErrEmptyTranslation はモデルが空の応答を返した場合のエラー。
var ErrEmptyTranslation = errors.New("empty translation")

// Translator は例文を翻訳する。
type Translator struct {
	logger *slog.Logger
	// prompt はシステムプロンプトとユーザープロンプトから応答テキストを得る。テスト用に差し替え可能。
	prompt func(system, user string) (string, error)
}

// Config はTranslatorの設定。
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// New はTranslatorを生成する。APIキーが空の場合はnilを返す（翻訳なしで動作する）。
func New(cfg Config, logger *slog.Logger) *Translator {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := types.RequestSettings{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
	return &Translator{
		logger: logger,
		prompt: func(system, user string) (string, error) {
			response, err := anthropic.PromptWithSettings(system, user, "", cfg.APIKey, settings)
			if err != nil {
				return "", err
			}
			if len(response.Content) == 0 {
				return "", ErrEmptyTranslation
			}
			return response.Content[0].Text, nil
		},
	}
}

type result struct {
	text string
	err  error
}

// Translate は例文を翻訳する。LLMクライアントはcontextを受け取らないため、
// キャンセル時は応答を待たずにctx.Err()を返す。
func (t *Translator) Translate(ctx context.Context, sentence string) (string, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return "", nil
	}

	done := make(chan result, 1)
	go func() {
		text, err := t.prompt(systemPrompt, sentence)
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			t.logger.Error("例文の翻訳に失敗しました",
				slog.String("error", r.err.Error()),
			)
			return "", fmt.Errorf("translate sentence: %w", r.err)
		}
		text := strings.TrimSpace(r.text)
		if text == "" {
			return "", ErrEmptyTranslation
		}
		return text, nil
	}
}
