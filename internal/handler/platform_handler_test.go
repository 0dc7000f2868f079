package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/model"
)

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func TestPlatformHandler_ListPlatforms(t *testing.T) {
	svc := &mockSyncService{
		prefs: config.Preferences{ActivePlatform: model.PlatformBBDC},
		probeAllFn: func(ctx context.Context) map[model.PlatformID]bool {
			return map[model.PlatformID]bool{
				model.PlatformShanbay: true,
				model.PlatformBBDC:    false,
			}
		},
	}
	h := NewPlatformHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/platforms", nil)
	w := httptest.NewRecorder()

	h.ListPlatforms(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp []platformResponse
	decodeJSON(t, w, &resp)
	if len(resp) != len(model.AllPlatforms()) {
		t.Fatalf("len = %d, want %d", len(resp), len(model.AllPlatforms()))
	}
	for i, id := range model.AllPlatforms() {
		if resp[i].ID != string(id) {
			t.Errorf("resp[%d].id = %q, want %q", i, resp[i].ID, id)
		}
		if resp[i].Active != (id == model.PlatformBBDC) {
			t.Errorf("resp[%d].active = %v", i, resp[i].Active)
		}
		if resp[i].Authenticated != (id == model.PlatformShanbay) {
			t.Errorf("resp[%d].authenticated = %v", i, resp[i].Authenticated)
		}
	}
}

func TestPlatformHandler_GetAuth(t *testing.T) {
	svc := &mockSyncService{
		probeAuthFn: func(ctx context.Context, id model.PlatformID) bool {
			return id == model.PlatformMomo
		},
	}
	h := NewPlatformHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/platforms/momo/auth", nil)
	req = withChiURLParam(req, "id", "momo")
	w := httptest.NewRecorder()

	h.GetAuth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp authResponse
	decodeJSON(t, w, &resp)
	if resp.ID != "momo" || !resp.Authenticated {
		t.Errorf("resp = %+v", resp)
	}
}

func TestPlatformHandler_GetAuth_UnknownPlatform(t *testing.T) {
	svc := &mockSyncService{
		probeAuthFn: func(ctx context.Context, id model.PlatformID) bool {
			t.Error("列挙外のIDでは確認しないこと")
			return false
		},
	}
	h := NewPlatformHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/platforms/anki/auth", nil)
	req = withChiURLParam(req, "id", "anki")
	w := httptest.NewRecorder()

	h.GetAuth(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if code := parseAPIErrorResponse(t, w)["code"]; code != model.ErrCodeUnknownPlatform {
		t.Errorf("code = %q, want %q", code, model.ErrCodeUnknownPlatform)
	}
}
