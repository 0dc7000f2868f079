package maimemo

import (
	"context"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/notepad"
)

// Adapter は墨墨のplatform.Adapter実装。
// 単語の送信は云词本へのマージとして行う。
type Adapter struct {
	client *Client
	engine *notepad.Engine
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(client *Client, engine *notepad.Engine) *Adapter {
	return &Adapter{client: client, engine: engine}
}

// ID はmodel.PlatformMomoを返す。
func (a *Adapter) ID() model.PlatformID {
	return model.PlatformMomo
}

// ProbeAuth は云词本の一覧取得が成功すればトークンが有効とみなす。
// トークン未設定の場合はリクエストせずNotConfiguredを返す。
func (a *Adapter) ProbeAuth(ctx context.Context) error {
	_, err := a.client.ListNotepads(ctx)
	return err
}

// SubmitWord は単語を1つ云词本に追加する。
func (a *Adapter) SubmitWord(ctx context.Context, word string) error {
	_, err := a.SubmitWords(ctx, []string{word})
	return err
}

// SubmitWords は複数の単語を1回の読み取り・書き戻しで云词本に追加する。
func (a *Adapter) SubmitWords(ctx context.Context, words []string) (model.MergeOutcome, error) {
	return a.engine.SubmitWords(ctx, words)
}
