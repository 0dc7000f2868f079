// Package baicizhan は百词斩への単語送信を提供する。
// 公開APIがないため、認証確認はログイン済みユーザー向けページのHTMLを検査して行う。
package baicizhan

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
)

const (
	// DefaultBaseURL は百词斩のオリジン。
	DefaultBaseURL = "https://www.baicizhan.com"
	// loginMarker は未ログイン時にページへ表示される文言。
	// ページの文言変更で判定が壊れるため、変更時はここを更新する。
	loginMarker = "请先登录"
	// codeOK は単語追加APIが成功時に返すcode。
	codeOK = 1
)

// Client は百词斩のクライアント。platform.Adapterを実装する。
type Client struct {
	req     *platform.Requester
	baseURL string // テスト用に差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使う。
func NewClient(cfg platform.RequesterConfig, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		req:     platform.NewRequester(model.PlatformBaicizhan, cfg),
		baseURL: baseURL,
	}
}

// ID はmodel.PlatformBaicizhanを返す。
func (c *Client) ID() model.PlatformID {
	return model.PlatformBaicizhan
}

// ProbeAuth は単語一覧ページを取得し、ログイン誘導の文言が含まれていなければ認証済みとみなす。
func (c *Client) ProbeAuth(ctx context.Context) error {
	const op = "probe"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/words", nil)
	if err != nil {
		return c.req.Fail(op, model.KindInternal, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.req.Do(ctx, op, req)
	if err != nil {
		return err
	}
	if strings.Contains(string(resp.Body), loginMarker) {
		return c.req.Fail(op, model.KindNotAuthenticated, fmt.Errorf("ログイン誘導ページが返されました"))
	}
	return nil
}

// SubmitWord は単語を小文字化して収藏に追加する。codeが1なら成功。
func (c *Client) SubmitWord(ctx context.Context, word string) error {
	const op = "submit"

	w, err := c.req.CheckWord(op, word, true)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("word", w); err != nil {
		return c.req.Fail(op, model.KindInternal, err)
	}
	if err := mw.Close(); err != nil {
		return c.req.Fail(op, model.KindInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/words/collect", &body)
	if err != nil {
		return c.req.Fail(op, model.KindInternal, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.req.Do(ctx, op, req)
	if err != nil {
		return err
	}

	var env struct {
		Code *int `json:"code"`
	}
	if err := c.req.DecodeJSON(op, resp.Body, &env); err != nil {
		return err
	}
	if env.Code == nil {
		return c.req.Fail(op, model.KindUnexpectedShape, fmt.Errorf("code フィールドがありません"))
	}
	if *env.Code != codeOK {
		return c.req.Rejected(op, strconv.Itoa(*env.Code))
	}
	return nil
}
