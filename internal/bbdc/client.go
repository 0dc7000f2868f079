// Package bbdc は不背单词（bbdc.cn）への単語送信を提供する。
// 認証はブラウザのセッションCookieに依存する。
package bbdc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
)

const (
	// DefaultBaseURL は不背单词のオリジン。
	DefaultBaseURL = "https://bbdc.cn"
	// newWordPath は生词本APIのパス。取得と追加で共通。
	newWordPath = "/api/user-new-word"
	// resultOK はAPIが成功時に返すresult_code。
	resultOK = 200
)

// Client は不背单词APIのクライアント。platform.Adapterを実装する。
type Client struct {
	req     *platform.Requester
	baseURL string // テスト用に差し替え可能
	now     func() time.Time
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使う。
func NewClient(cfg platform.RequesterConfig, baseURL string) *Client {
	headers := map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"X-Requested-With": "XMLHttpRequest",
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		req:     platform.NewRequester(model.PlatformBBDC, cfg),
		baseURL: baseURL,
		now:     time.Now,
	}
}

// ID はmodel.PlatformBBDCを返す。
func (c *Client) ID() model.PlatformID {
	return model.PlatformBBDC
}

// resultEnvelope は不背单词APIの共通レスポンス。
type resultEnvelope struct {
	ResultCode int `json:"result_code"`
}

// ProbeAuth は生词本の1ページ目を取得し、result_codeが200であれば認証済みとみなす。
func (c *Client) ProbeAuth(ctx context.Context) error {
	const op = "probe"

	// キャッシュ回避のためミリ秒のタイムスタンプを付与する
	reqURL := c.baseURL + newWordPath + "?page=0&time=" + strconv.FormatInt(c.now().UnixMilli(), 10)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return c.req.Fail(op, model.KindInternal, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}

	resp, err := c.req.Do(ctx, op, req)
	if err != nil {
		return err
	}

	var env resultEnvelope
	if err := c.req.DecodeJSON(op, resp.Body, &env); err != nil {
		return err
	}
	if env.ResultCode != resultOK {
		return c.req.Fail(op, model.KindNotAuthenticated,
			fmt.Errorf("result_code %d", env.ResultCode))
	}
	return nil
}

// newWord は生词本に追加する単語1件の送信形式。
// 単語以外のフィールドはWeb版が送る固定値。
type newWord struct {
	Word      string `json:"word"`
	Course    string `json:"course"`
	WordIdx   string `json:"wordidx"`
	InfoIdx   string `json:"infoidx"`
	Selection string `json:"selection"`
	Opcode    string `json:"opcode"`
}

// SubmitWord は単語を生词本に追加する。大文字小文字はそのまま送る。
func (c *Client) SubmitWord(ctx context.Context, word string) error {
	const op = "submit"

	w, err := c.req.CheckWord(op, word, false)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(newWord{
		Word:      w,
		Course:    "*",
		WordIdx:   "*",
		InfoIdx:   "100",
		Selection: "*",
		Opcode:    "1",
	})
	if err != nil {
		return c.req.Fail(op, model.KindInternal, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("newwordlist", string(payload)); err != nil {
		return c.req.Fail(op, model.KindInternal, err)
	}
	if err := mw.Close(); err != nil {
		return c.req.Fail(op, model.KindInternal, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+newWordPath, &body)
	if err != nil {
		return c.req.Fail(op, model.KindInternal, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.req.Do(ctx, op, req)
	if err != nil {
		return err
	}

	var env resultEnvelope
	if err := c.req.DecodeJSON(op, resp.Body, &env); err != nil {
		return err
	}
	if env.ResultCode != resultOK {
		return c.req.Rejected(op, strconv.Itoa(env.ResultCode))
	}
	return nil
}
