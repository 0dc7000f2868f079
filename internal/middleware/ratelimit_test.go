package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiterConfig(generalRate float64, generalBurst int, submitRate float64, submitBurst int) RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	cfg.GeneralRate = rate.Limit(generalRate)
	cfg.GeneralBurst = generalBurst
	cfg.SubmitRate = rate.Limit(submitRate)
	cfg.SubmitBurst = submitBurst
	cfg.CleanupInterval = time.Minute
	return cfg
}

// requestAs はクライアントIDを注入したリクエストを生成する。
func requestAs(method, clientID string) *http.Request {
	req := httptest.NewRequest(method, "/api/words", nil)
	return req.WithContext(ContextWithClientID(req.Context(), clientID))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(2, 5, 1, 10))
	defer rl.Stop()

	handlerCallCount := 0
	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCallCount++
		w.WriteHeader(http.StatusOK)
	}))

	// バースト内の5リクエストは全て通る
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(http.MethodGet, "token:a"))

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	if handlerCallCount != 5 {
		t.Errorf("handler call count = %d, want 5", handlerCallCount)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 2, 1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestAs(http.MethodGet, "token:limited"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "token:limited"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", resp.Header.Get("Retry-After"))
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode 429 body: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}

func TestRateLimitMiddleware_IsolatesClients(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1, 1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "token:a"))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "token:a"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("client a should be limited: status = %d", w.Result().StatusCode)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(http.MethodGet, "token:b"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("client b should not be affected by client a: status = %d", w.Result().StatusCode)
	}
}

func TestRateLimitMiddleware_FallsBackToRemoteIP(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(1, 1, 1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/words", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	if got := send("10.0.0.1:1111"); got != http.StatusOK {
		t.Fatalf("first request: status = %d", got)
	}
	if got := send("10.0.0.1:2222"); got != http.StatusTooManyRequests {
		t.Errorf("same IP with another port should share the limit: status = %d", got)
	}
	if got := send("10.0.0.2:1111"); got != http.StatusOK {
		t.Errorf("another IP should not be limited: status = %d", got)
	}
}

func TestSubmitRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(testLimiterConfig(100, 100, 1, 1))
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	submit := rl.SubmitMiddleware()(okHandler())

	w := httptest.NewRecorder()
	submit.ServeHTTP(w, requestAs(http.MethodPost, "token:a"))
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first submit: status = %d", w.Result().StatusCode)
	}

	w = httptest.NewRecorder()
	submit.ServeHTTP(w, requestAs(http.MethodPost, "token:a"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("second submit should be limited: status = %d", w.Result().StatusCode)
	}

	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestAs(http.MethodGet, "token:a"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("general limit should be independent: status = %d", w.Result().StatusCode)
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	cfg := testLimiterConfig(10, 10, 10, 10)
	cfg.CleanupInterval = time.Hour
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestAs(http.MethodGet, "token:old"))

	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("limiter count = %d, want 1", rl.GeneralLimiterCount())
	}

	rl.general.mu.Lock()
	rl.general.limiters["token:old"].lastAccess = time.Now().Add(-3 * time.Hour)
	rl.general.mu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("limiter count after cleanup = %d, want 0", rl.GeneralLimiterCount())
	}
}

func TestRateLimiterConfig_PerMinute(t *testing.T) {
	cfg := DefaultRateLimiterConfig().PerMinute(60, 0)

	if float64(cfg.GeneralRate) != 1 {
		t.Errorf("GeneralRate = %v, want 1 req/sec", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 60 {
		t.Errorf("GeneralBurst = %d, want 60", cfg.GeneralBurst)
	}
	if cfg.SubmitBurst != 30 {
		t.Errorf("0以下の値は既定値のままにするべき: SubmitBurst = %d", cfg.SubmitBurst)
	}
}

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if float64(cfg.GeneralRate) != 2 {
		t.Errorf("GeneralRate = %v, want 2 req/sec", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if float64(cfg.SubmitRate) != 0.5 {
		t.Errorf("SubmitRate = %v, want 0.5 req/sec", cfg.SubmitRate)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
}
