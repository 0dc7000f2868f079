package platform

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// recordingObserver はCallObserverのテスト用実装。
type recordingObserver struct {
	mu    sync.Mutex
	calls []int
}

func (o *recordingObserver) ObserveRemoteCall(p model.PlatformID, op string, status int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, status)
}

func doGet(t *testing.T, r *Requester, url string) (*Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("リクエスト作成に失敗: %v", err)
	}
	return r.Do(context.Background(), "probe", req)
}

func TestRequester_Do_OK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("既定ヘッダーが付与されていない")
		}
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("User-Agent が空")
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	obs := &recordingObserver{}
	var buf bytes.Buffer
	r := NewRequester(model.PlatformBBDC, RequesterConfig{
		Client:   server.Client(),
		Logger:   newTestLogger(&buf),
		Observer: obs,
		Headers:  map[string]string{"X-Requested-With": "XMLHttpRequest"},
	})

	resp, err := doGet(t, r, server.URL)
	if err != nil {
		t.Fatalf("Do がエラーを返した: %v", err)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("Body = %s", resp.Body)
	}
	if len(obs.calls) != 1 || obs.calls[0] != 200 {
		t.Errorf("observer calls = %v, want [200]", obs.calls)
	}
}

func TestRequester_Do_ClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   model.ErrorKind
	}{
		{http.StatusUnauthorized, model.KindNotAuthenticated},
		{http.StatusForbidden, model.KindNotAuthenticated},
		{http.StatusNotFound, model.KindRemoteRejected},
		{http.StatusInternalServerError, model.KindRemoteRejected},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		var buf bytes.Buffer
		r := NewRequester(model.PlatformShanbay, RequesterConfig{Client: server.Client(), Logger: newTestLogger(&buf)})
		resp, err := doGet(t, r, server.URL)
		server.Close()

		if model.KindOf(err) != tt.want {
			t.Errorf("status %d: kind = %q, want %q", tt.status, model.KindOf(err), tt.want)
		}
		if resp == nil || resp.StatusCode != tt.status {
			t.Errorf("status %d: 非2xxでもレスポンスを返すべき", tt.status)
		}
		if !strings.Contains(buf.String(), "error_kind") {
			t.Errorf("status %d: 失敗がログに記録されていない", tt.status)
		}
	}
}

func TestRequester_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	r := NewRequester(model.PlatformBBDC, RequesterConfig{Logger: newTestLogger(&buf)})
	_, err := doGet(t, r, url)
	if model.KindOf(err) != model.KindNetworkUnreachable {
		t.Errorf("kind = %q, want network_unreachable", model.KindOf(err))
	}
}

func TestRequester_Do_BodyTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("a"), 64))
	}))
	defer server.Close()

	var buf bytes.Buffer
	r := NewRequester(model.PlatformBBDC, RequesterConfig{
		Client:          server.Client(),
		Logger:          newTestLogger(&buf),
		MaxResponseSize: 16,
	})
	_, err := doGet(t, r, server.URL)
	if model.KindOf(err) != model.KindUnexpectedShape {
		t.Errorf("kind = %q, want unexpected_shape", model.KindOf(err))
	}
}

func TestRequester_Do_RateLimitHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	var buf bytes.Buffer
	r := NewRequester(model.PlatformBBDC, RequesterConfig{
		Client:        server.Client(),
		Logger:        newTestLogger(&buf),
		RatePerMinute: 1,
	})

	if _, err := doGet(t, r, server.URL); err != nil {
		t.Fatalf("1回目はバースト内で成功するべき: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := r.Do(ctx, "probe", req)
	if model.KindOf(err) != model.KindNetworkUnreachable {
		t.Errorf("kind = %q, want network_unreachable", model.KindOf(err))
	}
}

func TestRequester_DecodeJSON_UnexpectedShape(t *testing.T) {
	var buf bytes.Buffer
	r := NewRequester(model.PlatformBBDC, RequesterConfig{Logger: newTestLogger(&buf)})

	var v struct{ Code int }
	err := r.DecodeJSON("submit", []byte("<html>"), &v)
	if model.KindOf(err) != model.KindUnexpectedShape {
		t.Errorf("kind = %q, want unexpected_shape", model.KindOf(err))
	}
}

func TestNewCookieJar_SeedsCookies(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Cookie")
	}))
	defer server.Close()

	jar, err := NewCookieJar(server.URL, "sid=abc; token=xyz")
	if err != nil {
		t.Fatalf("NewCookieJar がエラーを返した: %v", err)
	}
	client := WithJar(server.Client(), jar)
	if _, err := client.Get(server.URL + "/api"); err != nil {
		t.Fatalf("GET に失敗: %v", err)
	}

	if !strings.Contains(got, "sid=abc") || !strings.Contains(got, "token=xyz") {
		t.Errorf("Cookie = %q, want sid and token", got)
	}
}

func TestWithJar_DoesNotMutateOriginal(t *testing.T) {
	base := &http.Client{}
	jar, _ := NewCookieJar("https://bbdc.cn", "")
	c := WithJar(base, jar)
	if base.Jar != nil {
		t.Error("元のクライアントのJarを変更してはならない")
	}
	if c.Jar == nil {
		t.Error("コピーにはJarが設定されるべき")
	}
}

func TestRequester_CheckWord(t *testing.T) {
	var buf bytes.Buffer
	r := NewRequester(model.PlatformShanbay, RequesterConfig{Logger: newTestLogger(&buf)})

	tests := []struct {
		in    string
		lower bool
		want  string
		kind  model.ErrorKind
	}{
		{"  Hello ", true, "hello", model.KindNone},
		{"Hello", false, "Hello", model.KindNone},
		{"   ", true, "", model.KindInvalidInput},
		{"foo\nbar", true, "", model.KindInvalidInput},
		{"foo\rbar", false, "", model.KindInvalidInput},
	}
	for _, tt := range tests {
		got, err := r.CheckWord("submit", tt.in, tt.lower)
		if model.KindOf(err) != tt.kind {
			t.Errorf("CheckWord(%q) kind = %q, want %q", tt.in, model.KindOf(err), tt.kind)
		}
		if got != tt.want {
			t.Errorf("CheckWord(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
