// Package shanbay は扇贝单词への単語送信を提供する。
package shanbay

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
)

// DefaultBaseURL は扇贝APIのオリジン。
const DefaultBaseURL = "https://apiv3.shanbay.com"

// Client は扇贝APIのクライアント。platform.Adapterを実装する。
type Client struct {
	req     *platform.Requester
	baseURL string // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使う。
func NewClient(cfg platform.RequesterConfig, baseURL string) *Client {
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{"Accept": "application/json"}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		req:     platform.NewRequester(model.PlatformShanbay, cfg),
		baseURL: baseURL,
	}
}

// ID はmodel.PlatformShanbayを返す。
func (c *Client) ID() model.PlatformID {
	return model.PlatformShanbay
}

type codeEnvelope struct {
	Code *int `json:"code"`
}

// ProbeAuth はユーザー情報を取得して認証状態を確認する。
// ボディがJSON配列、またはcodeが0のオブジェクトであれば認証済み。
func (c *Client) ProbeAuth(ctx context.Context) error {
	const op = "probe"

	resp, err := c.get(ctx, op, c.baseURL+"/bayuser/user")
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return nil
	}

	var env codeEnvelope
	if err := c.req.DecodeJSON(op, trimmed, &env); err != nil {
		return err
	}
	if env.Code == nil || *env.Code != 0 {
		return c.req.Fail(op, model.KindNotAuthenticated, fmt.Errorf("認証済みの応答ではありません"))
	}
	return nil
}

// SubmitWord は単語を小文字化して単語本に追加する。codeが0なら成功。
func (c *Client) SubmitWord(ctx context.Context, word string) error {
	const op = "submit"

	w, err := c.req.CheckWord(op, word, true)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("word", w)
	resp, err := c.get(ctx, op, c.baseURL+"/wordscollection/words/add?"+q.Encode())
	if err != nil {
		return err
	}

	var env codeEnvelope
	if err := c.req.DecodeJSON(op, resp.Body, &env); err != nil {
		return err
	}
	if env.Code == nil {
		return c.req.Fail(op, model.KindUnexpectedShape, fmt.Errorf("code フィールドがありません"))
	}
	if *env.Code != 0 {
		return c.req.Rejected(op, strconv.Itoa(*env.Code))
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, rawURL string) (*platform.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, c.req.Fail(op, model.KindInternal, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	return c.req.Do(ctx, op, req)
}
