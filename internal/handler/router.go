package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/wordsync/internal/middleware"
)

// SyncService はAPIが呼び出す同期サービス。syncer.Serviceが満たす。
type SyncService interface {
	WordServiceInterface
	SelectionServiceInterface
	PlatformServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	APIToken          string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 同期
	Service SyncService
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → APIToken → RateLimit(General)
//
// /health と /metrics はトークン認証とレート制限の外に配置する。
// 単語を送信するPOSTには送信専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// --- 認証不要のルート ---
	r.Get("/health", newHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	wordHandler := NewWordHandler(deps.Service)
	selectionHandler := NewSelectionHandler(deps.Service)
	platformHandler := NewPlatformHandler(deps.Service)

	// --- APIトークンが必要なルート ---
	// ミドルウェアスタック: APIToken → RateLimit(General)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewAPITokenMiddleware(deps.APIToken))
		r.Use(limiter.GeneralMiddleware())

		submit := limiter.SubmitMiddleware()

		// 単語の取り込み
		r.Route("/words", func(r chi.Router) {
			r.With(submit).Post("/", wordHandler.CaptureWord)
			r.Get("/", wordHandler.ListWords)
		})

		// 選択テキストと例文（墨墨）
		r.With(submit).Post("/selections", selectionHandler.SubmitSelection)
		r.With(submit).Post("/sentences", selectionHandler.AttachSentence)

		// プラットフォームのログイン状態
		r.Route("/platforms", func(r chi.Router) {
			r.Get("/", platformHandler.ListPlatforms)
			r.Get("/{id}/auth", platformHandler.GetAuth)
		})
	})

	return r
}
