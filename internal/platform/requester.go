package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/wordsync/internal/model"
)

const (
	// defaultMaxResponseSize はレスポンスボディの既定上限（1MiB）。
	defaultMaxResponseSize = 1 << 20
	// defaultUserAgent は送信時のUser-Agent。
	defaultUserAgent = "Mozilla/5.0 (compatible; wordsync/1.0)"
)

// CallObserver はリモート呼び出しの結果を受け取るインターフェース。
// metrics.Collectorが実装する。
type CallObserver interface {
	ObserveRemoteCall(platform model.PlatformID, op string, statusCode int, duration time.Duration)
}

// RequesterConfig はRequesterの設定。
type RequesterConfig struct {
	// Client は送信に使うHTTPクライアント。nilの場合はhttp.DefaultClient。
	Client *http.Client
	// Logger はエラーログの出力先。nilの場合はslog.Default()。
	Logger *slog.Logger
	// RatePerMinute は1分あたりの最大送信数。0以下なら制限しない。
	RatePerMinute int
	// MaxResponseSize はレスポンスボディの上限バイト数。0以下なら既定値。
	MaxResponseSize int64
	// Observer はリモート呼び出しの記録先。nil可。
	Observer CallObserver
	// Headers は全リクエストに付与する既定ヘッダー。
	Headers map[string]string
}

// Response はリモートからのレスポンス。ボディは読み取り済み。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Requester はプラットフォームクライアントが共有するHTTP送信処理。
// レート制限、ボディサイズ制限、ステータス分類、ログ、メトリクス記録を一か所にまとめる。
// リトライはしない。タイムアウトはHTTPクライアント側の設定に従う。
type Requester struct {
	platform model.PlatformID
	client   *http.Client
	logger   *slog.Logger
	limiter  *rate.Limiter
	observer CallObserver
	maxBody  int64
	headers  map[string]string
}

// NewRequester はRequesterを生成する。
func NewRequester(platform model.PlatformID, cfg RequesterConfig) *Requester {
	r := &Requester{
		platform: platform,
		client:   cfg.Client,
		logger:   cfg.Logger,
		observer: cfg.Observer,
		maxBody:  cfg.MaxResponseSize,
		headers:  cfg.Headers,
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.maxBody <= 0 {
		r.maxBody = defaultMaxResponseSize
	}
	if cfg.RatePerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}
	return r
}

// Platform は担当プラットフォームを返す。
func (r *Requester) Platform() model.PlatformID {
	return r.platform
}

// Do はリクエストを送信し、ボディを読み取ったレスポンスを返す。
// 失敗は次のように分類する:
//   - レート待ち・送信・読み取りの失敗: NetworkUnreachable
//   - 401/403: NotAuthenticated
//   - その他の非2xx: RemoteRejected
//   - ボディ上限超過: UnexpectedShape
//
// 非2xxの場合もResponseは返す（ボディを検査したい呼び出し元のため）。
func (r *Requester) Do(ctx context.Context, op string, req *http.Request) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, r.fail(op, model.KindNetworkUnreachable, 0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}
	for k, v := range r.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := r.client.Do(req.WithContext(ctx))
	if err != nil {
		r.observe(op, 0, start)
		return nil, r.fail(op, model.KindNetworkUnreachable, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	r.observe(op, resp.StatusCode, start)
	if err != nil {
		return nil, r.fail(op, model.KindNetworkUnreachable, resp.StatusCode,
			fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}
	if int64(len(body)) > r.maxBody {
		return nil, r.fail(op, model.KindUnexpectedShape, resp.StatusCode,
			fmt.Errorf("レスポンスボディが上限 %d バイトを超えています", r.maxBody))
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return out, r.fail(op, model.KindNotAuthenticated, resp.StatusCode, nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return out, r.fail(op, model.KindRemoteRejected, resp.StatusCode, nil)
	}
	return out, nil
}

// DecodeJSON はボディをJSONとしてデコードする。失敗はUnexpectedShape。
func (r *Requester) DecodeJSON(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return r.fail(op, model.KindUnexpectedShape, 0, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err))
	}
	return nil
}

// Fail はこのプラットフォームのSyncErrorを生成し、ログに記録する。
func (r *Requester) Fail(op string, kind model.ErrorKind, err error) *model.SyncError {
	return r.fail(op, kind, 0, err)
}

// Rejected は結果コードによる拒否を表すSyncErrorを生成する。
func (r *Requester) Rejected(op string, code string) *model.SyncError {
	se := &model.SyncError{
		Platform: r.platform,
		Op:       op,
		Kind:     model.KindRemoteRejected,
		Code:     code,
	}
	r.log(se)
	return se
}

func (r *Requester) fail(op string, kind model.ErrorKind, status int, err error) *model.SyncError {
	se := &model.SyncError{
		Platform: r.platform,
		Op:       op,
		Kind:     kind,
		Status:   status,
		Err:      err,
	}
	r.log(se)
	return se
}

func (r *Requester) log(se *model.SyncError) {
	attrs := []any{
		slog.String("platform", string(se.Platform)),
		slog.String("op", se.Op),
		slog.String("error_kind", string(se.Kind)),
	}
	if se.Status != 0 {
		attrs = append(attrs, slog.Int("http_status", se.Status))
	}
	if se.Code != "" {
		attrs = append(attrs, slog.String("result_code", se.Code))
	}
	if se.Err != nil {
		attrs = append(attrs, slog.String("error", se.Err.Error()))
	}
	r.logger.Warn("プラットフォーム呼び出しに失敗しました", attrs...)
}

func (r *Requester) observe(op string, status int, start time.Time) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveRemoteCall(r.platform, op, status, time.Since(start))
}
