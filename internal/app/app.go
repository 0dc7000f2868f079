// Package app はサブコマンドごとに依存関係を組み立ててwordsyncを起動する。
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/database"
	"github.com/hitoshi/wordsync/internal/handler"
	"github.com/hitoshi/wordsync/internal/logger"
	"github.com/hitoshi/wordsync/internal/metrics"
	"github.com/hitoshi/wordsync/internal/middleware"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/syncer"
	"github.com/hitoshi/wordsync/internal/worker/cleanup"
	"github.com/hitoshi/wordsync/internal/worker/probe"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで作り直す
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。wはログの出力先、コマンドの結果は標準出力に書く。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	// 1. DB・設定ファイル・同期サービス
	rt, err := newRuntime(cfg, log, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 2. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig().PerMinute(cfg.RateLimitGeneral, cfg.PlatformRatePerMin),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		APIToken:          cfg.APIToken,
		RateLimiter:       rateLimiter,
		HealthChecker:     rt.db,
		MetricsHandler:    metrics.Handler(rt.registry),
		Service:           rt.service,
	})

	if cfg.APIToken == "" {
		slog.Warn("WORDSYNC_API_TOKEN が未設定のため /api は認証なしで公開されます")
	}

	// 3. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 認証状態の監視と履歴のクリーンアップジョブを起動し、ctxのキャンセルで停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	rt, err := newRuntime(cfg, log, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewCleanupJob(rt.captures, log)
	cleanupJob.RetentionDays = cfg.HistoryRetentionDays

	monitor := probe.NewMonitor(rt.service, log)

	slog.Info("worker starting",
		slog.Duration("probe_interval", cfg.ProbeInterval),
		slog.Int("retention_days", cfg.HistoryRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行（起動直後に1回実行）
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 認証監視をメインgoroutineで実行（ブロッキング）
	monitor.Start(ctx, cfg.ProbeInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// downがfalseならすべての未適用マイグレーションを、trueなら直近の1件を戻す。
func runMigrate(cfg *config.Config, down bool) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Bool("down", down),
	)

	if down {
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migration rolled back")
		return nil
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// runSubmit は1単語を取り込んで送信し、結果をJSONで書き出す。
func runSubmit(ctx context.Context, cfg *config.Config, out io.Writer, word string, platformName string) error {
	rt, err := newRuntime(cfg, slog.Default(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	var id model.PlatformID
	if platformName != "" {
		id, err = model.ParsePlatformID(platformName)
		if err != nil {
			return err
		}
	}

	result, err := rt.service.Capture(ctx, syncer.CaptureRequest{Text: word, Platform: id})
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}

	if err := writeResult(out, submitOutput{
		Platform: string(result.Result.Platform),
		Word:     result.Word.Text,
		Success:  result.Result.Success,
		Reason:   string(result.Result.Kind),
	}); err != nil {
		return err
	}
	if !result.Result.Success {
		return fmt.Errorf("submission to %s failed: %s", result.Result.Platform, result.Result.Kind)
	}
	return nil
}

// runProbe はプラットフォームのログイン状態を確認して書き出す。platformNameが空なら全件。
func runProbe(ctx context.Context, cfg *config.Config, out io.Writer, platformName string) error {
	rt, err := newRuntime(cfg, slog.Default(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if platformName != "" {
		id, err := model.ParsePlatformID(platformName)
		if err != nil {
			return err
		}
		return writeResult(out, []probeOutput{{Platform: string(id), Authenticated: rt.service.ProbeAuth(ctx, id)}})
	}

	results := rt.service.ProbeAll(ctx)
	rows := make([]probeOutput, 0, len(results))
	for _, id := range model.AllPlatforms() {
		rows = append(rows, probeOutput{Platform: string(id), Authenticated: results[id]})
	}
	return writeResult(out, rows)
}

// runAttach は単語に例文を追加し、単語ごとの結果を書き出す。
func runAttach(ctx context.Context, cfg *config.Config, out io.Writer, words []string, sentence, translation string) error {
	rt, err := newRuntime(cfg, slog.Default(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.service.AttachSentence(ctx, words, sentence, translation)
	if err != nil {
		return fmt.Errorf("attach failed: %w", err)
	}

	rows := make([]attachOutput, 0, len(report.Results))
	for _, r := range report.Results {
		row := attachOutput{Word: r.Word, Status: string(r.Status)}
		if r.Err != nil {
			row.Reason = string(model.KindOf(r.Err))
		}
		rows = append(rows, row)
	}
	if err := writeResult(out, rows); err != nil {
		return err
	}
	if !report.Success {
		return errors.New("no sentence was attached")
	}
	return nil
}

type submitOutput struct {
	Platform string `json:"platform"`
	Word     string `json:"word"`
	Success  bool   `json:"success"`
	Reason   string `json:"reason,omitempty"`
}

type probeOutput struct {
	Platform      string `json:"platform"`
	Authenticated bool   `json:"authenticated"`
}

type attachOutput struct {
	Word   string `json:"word"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func writeResult(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}

// serverPort はhealthcheck用にSERVER_PORTだけを読む（フル初期化をしない）。
func serverPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}
