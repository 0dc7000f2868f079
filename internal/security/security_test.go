package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewOutboundClient_Timeout(t *testing.T) {
	client := NewOutboundClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("safeurlのTransportが設定されるべき")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、送信はブロックされる。
func TestNewOutboundClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	resp, err := NewOutboundClient(2 * time.Second).Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("ループバックへの送信はブロックされるべき")
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://open.maimemo.com/open/api/v1", false},
		{"http://bbdc.cn", false},
		{"", true},
		{"ftp://bbdc.cn", true},
		{"https://", true},
		{"http://localhost:8080", true},
		{"http://127.0.0.1", true},
		{"http://10.1.2.3", true},
		{"http://169.254.169.254/latest/meta-data", true},
		{"http://[::1]/", true},
		{"http://[::ffff:192.168.0.1]/", true},
		{"http://8.8.8.8", false},
		{"://bad", true},
	}

	for _, tt := range tests {
		err := ValidateBaseURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBaseURL(%q) err = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestIsWebURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"https://example.com/article", true},
		{"http://localhost:3000/page", true},
		{"javascript:alert(1)", false},
		{"chrome-extension://abc/popup.html", false},
		{"/relative", false},
	}

	for _, tt := range tests {
		if got := IsWebURL(tt.url); got != tt.want {
			t.Errorf("IsWebURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestTextSanitizer_Sanitize(t *testing.T) {
	s := NewTextSanitizer(0)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"空文字列", "", ""},
		{"プレーンテキスト", "It was a serendipitous find.", "It was a serendipitous find."},
		{"タグを除去", "<p>Hello <b>world</b></p>", "Hello world"},
		{"scriptを除去", "safe<script>alert(1)</script>", "safe"},
		{"空白をまとめる", "  a \n\t b  ", "a b"},
		{"エンティティを戻す", "Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Limit(t *testing.T) {
	s := NewTextSanitizer(3)
	if got := s.Sanitize("単語帳です"); got != "単語帳" {
		t.Errorf("Sanitize = %q, want 単語帳", got)
	}
}
