package baicizhan

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
)

func newTestClient(server *httptest.Server) *Client {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	return NewClient(platform.RequesterConfig{Client: server.Client(), Logger: logger}, server.URL)
}

func TestClient_ProbeAuth_MarkerPresentMeansLoggedOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><a href="/login">请先登录</a></body></html>`))
	}))
	defer server.Close()

	err := newTestClient(server).ProbeAuth(context.Background())
	if model.KindOf(err) != model.KindNotAuthenticated {
		t.Errorf("kind = %q, want not_authenticated", model.KindOf(err))
	}
}

func TestClient_ProbeAuth_MarkerAbsentMeansLoggedIn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/words" {
			t.Errorf("パス = %s, want /user/words", r.URL.Path)
		}
		w.Write([]byte(`<html><body><ul class="words"><li>abandon</li></ul></body></html>`))
	}))
	defer server.Close()

	if err := newTestClient(server).ProbeAuth(context.Background()); err != nil {
		t.Errorf("ProbeAuth がエラーを返した: %v", err)
	}
}

func TestClient_ProbeAuth_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	if err := newTestClient(server).ProbeAuth(context.Background()); err == nil {
		t.Error("非OKステータスでは認証済みと判定してはならない")
	}
}

func TestClient_SubmitWord(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind model.ErrorKind
	}{
		{"code 1 は成功", `{"code":1}`, model.KindNone},
		{"code 0 は拒否", `{"code":0,"message":"failed"}`, model.KindRemoteRejected},
		{"code なしは形式不正", `{"message":"?"}`, model.KindUnexpectedShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 16); err != nil {
					t.Fatalf("multipartのパースに失敗: %v", err)
				}
				if got := r.FormValue("word"); got != "abandon" {
					t.Errorf("word = %q, want abandon", got)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := newTestClient(server).SubmitWord(context.Background(), "Abandon")
			if model.KindOf(err) != tt.kind {
				t.Errorf("kind = %q, want %q", model.KindOf(err), tt.kind)
			}
		})
	}
}

func TestClient_SubmitWord_NewlineNoRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	err := newTestClient(server).SubmitWord(context.Background(), "a\r\nb")
	if model.KindOf(err) != model.KindInvalidInput {
		t.Errorf("kind = %q, want invalid_input", model.KindOf(err))
	}
	if calls.Load() != 0 {
		t.Errorf("リクエスト数 = %d, want 0", calls.Load())
	}
}
