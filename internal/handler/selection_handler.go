package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/wordsync/internal/capture"
	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/middleware"
	"github.com/hitoshi/wordsync/internal/model"
)

// SelectionServiceInterface は選択テキストと例文のハンドラーが必要とするサービスインターフェース。
type SelectionServiceInterface interface {
	// SubmitWords は複数の単語を墨墨の云词本に1回のマージで追加する。
	SubmitWords(ctx context.Context, words []string) (model.MergeOutcome, error)
	// AttachSentence は単語に例文を追加する。
	AttachSentence(ctx context.Context, words []string, sentence, translation string) (model.AttachReport, error)
	// Preferences は現在のユーザー設定を返す。
	Preferences() config.Preferences
}

// SelectionHandler は選択テキストの取り込みと例文追加のHTTPハンドラー。
type SelectionHandler struct {
	service SelectionServiceInterface
}

// NewSelectionHandler はSelectionHandlerを生成する。
func NewSelectionHandler(service SelectionServiceInterface) *SelectionHandler {
	return &SelectionHandler{service: service}
}

// selectionRequest は選択テキスト取り込みリクエストのボディ。
type selectionRequest struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
}

// sentenceRequest は例文追加リクエストのボディ。
type sentenceRequest struct {
	Words       []string `json:"words"`
	Sentence    string   `json:"sentence"`
	Translation string   `json:"translation"`
}

// mergeResponse は云词本へのマージ結果のAPIレスポンス。
type mergeResponse struct {
	Success   bool            `json:"success"`
	Reason    string          `json:"reason,omitempty"`
	NotepadID string          `json:"notepad_id,omitempty"`
	Created   bool            `json:"created"`
	Added     []string        `json:"added"`
	Skipped   []string        `json:"skipped"`
	Message   string          `json:"message,omitempty"`
	Sentence  *attachResponse `json:"sentence,omitempty"`
}

// attachResponse は例文追加結果のAPIレスポンス。
type attachResponse struct {
	Success bool                 `json:"success"`
	Reason  string               `json:"reason,omitempty"`
	Results []attachItemResponse `json:"results"`
}

type attachItemResponse struct {
	Word   string `json:"word"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// SubmitSelection は選択テキストを単語と例文に分けて墨墨に送信する。
// 例文があり設定で有効な場合は、マージの成否にかかわらず例文も追加し、両方の結果を返す。
// POST /api/selections
func (h *SelectionHandler) SubmitSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	prefs := h.service.Preferences()
	sel, err := capture.ParseSelection(req.Text, prefs.SentenceEnabled)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	outcome, err := h.service.SubmitWords(r.Context(), sel.Words)
	if err != nil {
		if apiErr := toAPIError(err); apiErr != nil {
			writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
	}

	var resp mergeResponse
	if err != nil {
		resp = mergeResponse{
			Success: false,
			Reason:  string(model.KindOf(err)),
			Added:   []string{},
			Skipped: []string{},
		}
	} else {
		resp = toMergeResponse(outcome)
	}

	// 単語の追加と例文の追加は独立しており、マージに失敗しても例文の追加は試みる
	if sel.Sentence != "" && prefs.SentenceEnabled {
		report, err := h.service.AttachSentence(r.Context(), sel.Words, sel.Sentence, req.Translation)
		attach := toAttachResponse(report, err)
		resp.Sentence = &attach
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// AttachSentence は指定した単語に例文を追加する。
// POST /api/sentences
func (h *SelectionHandler) AttachSentence(w http.ResponseWriter, r *http.Request) {
	var req sentenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの解析に失敗しました"))
		return
	}

	report, err := h.service.AttachSentence(r.Context(), req.Words, req.Sentence, req.Translation)
	if err != nil {
		if apiErr := toAPIError(err); apiErr != nil {
			writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, toAttachResponse(report, err))
}

// toMergeResponse はmodel.MergeOutcomeからAPIレスポンスに変換する。
func toMergeResponse(outcome model.MergeOutcome) mergeResponse {
	resp := mergeResponse{
		Success:   true,
		NotepadID: outcome.NotepadID,
		Created:   outcome.Created,
		Added:     outcome.Added,
		Skipped:   outcome.Skipped,
		Message:   outcome.Message,
	}
	if resp.Added == nil {
		resp.Added = []string{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	return resp
}

// toAttachResponse はmodel.AttachReportからAPIレスポンスに変換する。
// errがある場合は失敗として種別をreasonに入れる。
func toAttachResponse(report model.AttachReport, err error) attachResponse {
	resp := attachResponse{
		Success: report.Success && err == nil,
		Results: make([]attachItemResponse, 0, len(report.Results)),
	}
	if err != nil {
		resp.Reason = string(model.KindOf(err))
	}
	for _, res := range report.Results {
		item := attachItemResponse{Word: res.Word, Status: string(res.Status)}
		if res.Err != nil {
			item.Reason = string(model.KindOf(res.Err))
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}
