// Package maimemo は墨墨背单词のオープンAPIクライアントを提供する。
// 云词本（ユーザーの単語帳ドキュメント）の取得・作成・更新と、単語への例文追加を扱う。
// すべてのレスポンスは埋め込みJSON Schemaで形式を検証してからデコードする。
package maimemo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
)

// DefaultBaseURL は墨墨オープンAPIのベースURL。
const DefaultBaseURL = "https://open.maimemo.com/open/api/v1"

// Phrase は単語に追加する例文。
type Phrase struct {
	VocID          string   `json:"voc_id"`
	Phrase         string   `json:"phrase"`
	Interpretation string   `json:"interpretation"`
	Tags           []string `json:"tags"`
	Origin         string   `json:"origin"`
}

// Client は墨墨オープンAPIのクライアント。
type Client struct {
	req     *platform.Requester
	baseURL string // テスト用に差し替え可能
	token   string
}

// NewClient はClientの新しいインスタンスを生成する。
// tokenは "Bearer " 接頭辞の有無どちらでもよい。空の場合、呼び出しはNotConfiguredで失敗する。
func NewClient(cfg platform.RequesterConfig, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		req:     platform.NewRequester(model.PlatformMomo, cfg),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
	}
}

// Configured はトークンが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.token != ""
}

func (c *Client) authorization() string {
	if strings.HasPrefix(c.token, "Bearer") {
		return c.token
	}
	return "Bearer " + c.token
}

// ListNotepads は云词本の一覧を返す。一覧の要素はContentを含まない。
func (c *Client) ListNotepads(ctx context.Context) ([]model.Notepad, error) {
	var out struct {
		Data struct {
			Notepads []model.Notepad `json:"notepads"`
		} `json:"data"`
	}
	if err := c.call(ctx, "list_notepads", http.MethodGet, "/notepads", nil, schemaNotepads, &out); err != nil {
		return nil, err
	}
	return out.Data.Notepads, nil
}

// GetNotepad はIDを指定して云词本を取得する。
func (c *Client) GetNotepad(ctx context.Context, id string) (model.Notepad, error) {
	var out notepadResponse
	if err := c.call(ctx, "get_notepad", http.MethodGet, "/notepads/"+url.PathEscape(id), nil, schemaNotepad, &out); err != nil {
		return model.Notepad{}, err
	}
	return out.Data.Notepad, nil
}

// CreateNotepad は云词本を作成し、採番されたIDを含む云词本を返す。
func (c *Client) CreateNotepad(ctx context.Context, n model.Notepad) (model.Notepad, error) {
	n.ID = ""
	var out notepadResponse
	if err := c.call(ctx, "create_notepad", http.MethodPost, "/notepads", notepadRequest{Notepad: n}, schemaNotepad, &out); err != nil {
		return model.Notepad{}, err
	}
	return out.Data.Notepad, nil
}

// UpdateNotepad は云词本全体を上書きする。部分更新はできない。
func (c *Client) UpdateNotepad(ctx context.Context, id string, n model.Notepad) error {
	n.ID = ""
	return c.call(ctx, "update_notepad", http.MethodPost, "/notepads/"+url.PathEscape(id), notepadRequest{Notepad: n}, "", nil)
}

// LookupVocabulary は綴りから単語IDを検索する。
func (c *Client) LookupVocabulary(ctx context.Context, spelling string) (string, error) {
	var out struct {
		Data struct {
			Voc struct {
				ID string `json:"id"`
			} `json:"voc"`
		} `json:"data"`
	}
	path := "/vocabulary?" + url.Values{"spelling": {spelling}}.Encode()
	if err := c.call(ctx, "lookup_vocabulary", http.MethodGet, path, nil, schemaVocabulary, &out); err != nil {
		return "", err
	}
	return out.Data.Voc.ID, nil
}

// CreatePhrase は単語に例文を追加する。
func (c *Client) CreatePhrase(ctx context.Context, p Phrase) error {
	body := struct {
		Phrase Phrase `json:"phrase"`
	}{Phrase: p}
	return c.call(ctx, "create_phrase", http.MethodPost, "/phrases", body, "", nil)
}

type notepadRequest struct {
	Notepad model.Notepad `json:"notepad"`
}

type notepadResponse struct {
	Data struct {
		Notepad model.Notepad `json:"notepad"`
	} `json:"data"`
}

// call はリクエストを送信し、共通エンベロープとレスポンス固有のスキーマを検証してからoutにデコードする。
// schemaNameが空の場合はエンベロープのみ検証し、outは無視する。
func (c *Client) call(ctx context.Context, op, method, path string, in any, schemaName string, out any) error {
	if !c.Configured() {
		return c.req.Fail(op, model.KindNotConfigured, fmt.Errorf("墨墨のトークンが設定されていません"))
	}

	schemas, err := loadSchemas()
	if err != nil {
		return c.req.Fail(op, model.KindInternal, err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return c.req.Fail(op, model.KindInternal, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return c.req.Fail(op, model.KindInternal, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.req.Do(ctx, op, req)
	if err != nil {
		return err
	}

	var doc any
	if err := c.req.DecodeJSON(op, resp.Body, &doc); err != nil {
		return err
	}
	if err := schemas[schemaEnvelope].Validate(doc); err != nil {
		return c.req.Fail(op, model.KindUnexpectedShape, err)
	}
	env, _ := doc.(map[string]any)
	if ok, _ := env["success"].(bool); !ok {
		return c.req.Rejected(op, "success=false")
	}

	if schemaName == "" {
		return nil
	}
	if err := schemas[schemaName].Validate(doc); err != nil {
		return c.req.Fail(op, model.KindUnexpectedShape, err)
	}
	return c.req.DecodeJSON(op, resp.Body, out)
}
