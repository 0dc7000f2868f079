package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/wordsync/internal/middleware"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/syncer"
)

const (
	// defaultListLimit はGET /api/wordsでlimit未指定時の件数。
	defaultListLimit = 50
	// maxListLimit はGET /api/wordsで返す最大件数。
	maxListLimit = 200
)

// WordServiceInterface は単語ハンドラーが必要とするサービスインターフェース。
type WordServiceInterface interface {
	// Capture は単語を取り込んでプラットフォームに送信する。
	Capture(ctx context.Context, req syncer.CaptureRequest) (syncer.CaptureResult, error)
	// ListRecent は最近取り込んだ単語を新しい順に返す。
	ListRecent(ctx context.Context, limit int) ([]*model.CapturedWord, error)
}

// WordHandler は単語の取り込みと履歴参照のHTTPハンドラー。
type WordHandler struct {
	service WordServiceInterface
}

// NewWordHandler はWordHandlerを生成する。
func NewWordHandler(service WordServiceInterface) *WordHandler {
	return &WordHandler{service: service}
}

// captureRequest は単語取り込みリクエストのボディ。
type captureRequest struct {
	Text        string `json:"text"`
	SourceURL   string `json:"source_url"`
	PageContext string `json:"page_context"`
	Platform    string `json:"platform"`
}

// captureResponse は単語取り込みのAPIレスポンス。
// 送信失敗は4xx/5xxではなくsuccess=falseで返す。
type captureResponse struct {
	Success bool         `json:"success"`
	Reason  string       `json:"reason,omitempty"`
	Word    wordResponse `json:"word"`
}

// wordResponse は取り込み単語のAPIレスポンス。
type wordResponse struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	CapturedAt  time.Time  `json:"captured_at"`
	SourceURL   string     `json:"source_url,omitempty"`
	PageContext string     `json:"page_context,omitempty"`
	Platform    string     `json:"platform"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// wordListResponse は取り込み履歴のAPIレスポンス。
type wordListResponse struct {
	Words []wordResponse `json:"words"`
}

// CaptureWord は単語を取り込んで送信する。
// POST /api/words
func (h *WordHandler) CaptureWord(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	var platformID model.PlatformID
	if req.Platform != "" {
		id, err := model.ParsePlatformID(req.Platform)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownPlatformError(req.Platform))
			return
		}
		platformID = id
	}

	result, err := h.service.Capture(r.Context(), syncer.CaptureRequest{
		Text:        req.Text,
		SourceURL:   req.SourceURL,
		PageContext: req.PageContext,
		Platform:    platformID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := captureResponse{
		Success: result.Result.Success,
		Reason:  string(result.Result.Kind),
	}
	if result.Word != nil {
		resp.Word = toWordResponse(result.Word)
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// ListWords は最近取り込んだ単語を返す。
// GET /api/words?limit=N
func (h *WordHandler) ListWords(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("limitは1以上の整数で指定してください"))
		return
	}

	words, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := wordListResponse{Words: make([]wordResponse, 0, len(words))}
	for _, word := range words {
		resp.Words = append(resp.Words, toWordResponse(word))
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// parseLimit はlimitクエリを解析する。空なら既定値、上限を超える値は上限に丸める。
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return min(n, maxListLimit), nil
}

// toWordResponse はmodel.CapturedWordからAPIレスポンスに変換する。
func toWordResponse(word *model.CapturedWord) wordResponse {
	return wordResponse{
		ID:          word.ID,
		Text:        word.Text,
		CapturedAt:  word.CapturedAt,
		SourceURL:   word.SourceURL,
		PageContext: word.PageContext,
		Platform:    string(word.Platform),
		Status:      string(word.Status),
		Reason:      word.Reason,
		SyncedAt:    word.SyncedAt,
	}
}
