package platform

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// NewCookieJar はブラウザセッションのCookieヘッダー値を投入したCookieJarを生成する。
// cookieHeaderは "name=value; name2=value2" 形式。空の場合は空のJarを返す。
// レスポンスのSet-Cookieによるセッション更新もこのJarに保持される。
func NewCookieJar(baseURL, cookieHeader string) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if cookieHeader == "" {
		return jar, nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie header: %w", err)
	}
	jar.SetCookies(u, cookies)
	return jar, nil
}

// WithJar はJarを設定したクライアントのコピーを返す。
// 共有クライアント（SSRF対策済みクライアント等）のTransportはそのまま使う。
func WithJar(client *http.Client, jar http.CookieJar) *http.Client {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.Jar = jar
	return &c
}
