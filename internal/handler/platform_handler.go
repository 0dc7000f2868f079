package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/middleware"
	"github.com/hitoshi/wordsync/internal/model"
)

// PlatformServiceInterface はプラットフォームハンドラーが必要とするサービスインターフェース。
type PlatformServiceInterface interface {
	// ProbeAuth はプラットフォームのログイン状態を返す。
	ProbeAuth(ctx context.Context, id model.PlatformID) bool
	// ProbeAll は全プラットフォームのログイン状態を並行して確認する。
	ProbeAll(ctx context.Context) map[model.PlatformID]bool
	// Preferences は現在のユーザー設定を返す。
	Preferences() config.Preferences
}

// PlatformHandler はプラットフォームの状態確認のHTTPハンドラー。
type PlatformHandler struct {
	service PlatformServiceInterface
}

// NewPlatformHandler はPlatformHandlerを生成する。
func NewPlatformHandler(service PlatformServiceInterface) *PlatformHandler {
	return &PlatformHandler{service: service}
}

// platformResponse はプラットフォーム状態のAPIレスポンス。
type platformResponse struct {
	ID            string `json:"id"`
	Active        bool   `json:"active"`
	Authenticated bool   `json:"authenticated"`
}

// authResponse はログイン状態のAPIレスポンス。
type authResponse struct {
	ID            string `json:"id"`
	Authenticated bool   `json:"authenticated"`
}

// ListPlatforms は全プラットフォームの状態を列挙順で返す。
// GET /api/platforms
func (h *PlatformHandler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	active := h.service.Preferences().ActivePlatform
	probed := h.service.ProbeAll(r.Context())

	resp := make([]platformResponse, 0, len(model.AllPlatforms()))
	for _, id := range model.AllPlatforms() {
		resp = append(resp, platformResponse{
			ID:            string(id),
			Active:        id == active,
			Authenticated: probed[id],
		})
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// GetAuth は1つのプラットフォームのログイン状態を返す。
// GET /api/platforms/{id}/auth
func (h *PlatformHandler) GetAuth(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := model.ParsePlatformID(raw)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUnknownPlatformError(raw))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, authResponse{
		ID:            string(id),
		Authenticated: h.service.ProbeAuth(r.Context(), id),
	})
}
