// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/hitoshi/wordsync/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
	clientIDContextKey = contextKey("client_id")
	// clientIDHolderKey はロギングミドルウェアが内側で判明したクライアントIDを受け取るためのキー。
	clientIDHolderKey = contextKey("client_id_holder")
)

// clientIDHolder は内側のミドルウェアで決まったクライアントIDを外側に伝える。
type clientIDHolder struct {
	id string
}

// NewAPITokenMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// tokenが空の場合は検証せず、リモートIPをクライアントIDとして注入する。
// トークンが一致しないリクエストには401 Unauthorizedを返す。
func NewAPITokenMiddleware(token string) func(next http.Handler) http.Handler {
	tokenID := "token:" + shortHash(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				ctx := ContextWithClientID(r.Context(), "ip:"+remoteIP(r))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			got, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithClientID(r.Context(), tokenID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// APIトークンミドルウェアを通過したリクエストでのみ値が入る。
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	if h, ok := ctx.Value(clientIDHolderKey).(*clientIDHolder); ok {
		h.id = clientID
	}
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// remoteIP はRemoteAddrからポートを除いたアドレスを返す。
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// shortHash はトークンをログやキーに使える短い識別子に変換する。
func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
