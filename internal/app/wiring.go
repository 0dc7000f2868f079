package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/wordsync/internal/baicizhan"
	"github.com/hitoshi/wordsync/internal/bbdc"
	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/database"
	"github.com/hitoshi/wordsync/internal/maimemo"
	"github.com/hitoshi/wordsync/internal/metrics"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/notepad"
	"github.com/hitoshi/wordsync/internal/platform"
	"github.com/hitoshi/wordsync/internal/repository"
	"github.com/hitoshi/wordsync/internal/security"
	"github.com/hitoshi/wordsync/internal/sentence"
	"github.com/hitoshi/wordsync/internal/shanbay"
	"github.com/hitoshi/wordsync/internal/syncer"
	"github.com/hitoshi/wordsync/internal/translate"
)

// PlatformOptions はBuildPlatformsの入力。
type PlatformOptions struct {
	Config      *config.Config
	Preferences config.Preferences
	// Client は送信に使うHTTPクライアント。nilの場合はSSRF対策済みクライアントを生成する。
	Client *http.Client
	// Metadata は云词本IDの保存先。nilの場合はプロセス内にのみ保持する。
	Metadata   repository.MetadataRepository
	Observer   platform.CallObserver
	Translator sentence.Translator
	Logger     *slog.Logger
}

// BuildPlatforms は設定から各プラットフォームのアダプタを組み立てる。
// Cookieやトークンが設定されていないプラットフォームは登録しない（送信はnot_configuredになる）。
func BuildPlatforms(opts PlatformOptions) (*syncer.Platforms, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.Client
	if client == nil {
		client = security.NewOutboundClient(cfg.HTTPTimeout)
	}

	requesterConfig := func(c *http.Client) platform.RequesterConfig {
		return platform.RequesterConfig{
			Client:          c,
			Logger:          logger,
			RatePerMinute:   cfg.PlatformRatePerMin,
			MaxResponseSize: cfg.HTTPMaxResponseSize,
			Observer:        opts.Observer,
		}
	}

	// セッションCookieで認証するプラットフォーム
	cookieClient := func(id model.PlatformID, defaultBaseURL string) (*http.Client, string, bool, error) {
		cookie := opts.Preferences.Cookie(id)
		if cookie == "" {
			return nil, "", false, nil
		}
		baseURL := cfg.BaseURL(id)
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		jar, err := platform.NewCookieJar(baseURL, cookie)
		if err != nil {
			return nil, "", false, fmt.Errorf("%s: %w", id, err)
		}
		return platform.WithJar(client, jar), baseURL, true, nil
	}

	var adapters []platform.Adapter

	if c, baseURL, ok, err := cookieClient(model.PlatformShanbay, shanbay.DefaultBaseURL); err != nil {
		return nil, err
	} else if ok {
		adapters = append(adapters, shanbay.NewClient(requesterConfig(c), baseURL))
	}

	if c, baseURL, ok, err := cookieClient(model.PlatformBBDC, bbdc.DefaultBaseURL); err != nil {
		return nil, err
	} else if ok {
		adapters = append(adapters, bbdc.NewClient(requesterConfig(c), baseURL))
	}

	if c, baseURL, ok, err := cookieClient(model.PlatformBaicizhan, baicizhan.DefaultBaseURL); err != nil {
		return nil, err
	} else if ok {
		adapters = append(adapters, baicizhan.NewClient(requesterConfig(c), baseURL))
	}

	platforms := &syncer.Platforms{}

	// 墨墨はトークンで認証する
	if token := opts.Preferences.MomoToken; token != "" {
		momoClient := maimemo.NewClient(requesterConfig(client), cfg.BaseURL(model.PlatformMomo), token)

		accountKey := notepad.AccountKey(token)
		var cache notepad.IDCache
		if opts.Metadata != nil {
			cache = repository.NewMetadataIDCache(opts.Metadata, accountKey)
		}
		engine := notepad.NewEngine(momoClient, cache, logger, notepad.Config{
			AccountKey: accountKey,
			Location:   cfg.NotepadLocation,
		})

		momo := maimemo.NewAdapter(momoClient, engine)
		adapters = append(adapters, momo)
		platforms.Momo = momo

		platforms.Attacher = sentence.NewAttacher(momoClient, opts.Translator, logger)
	}

	registry, err := platform.NewRegistry(adapters...)
	if err != nil {
		return nil, fmt.Errorf("failed to build platform registry: %w", err)
	}
	platforms.Registry = registry

	return platforms, nil
}

// newTranslator は翻訳器を生成する。APIキーがない場合はnilのインターフェースを返す。
// nilの*translate.Translatorをそのまま返すとnilでないインターフェースになるため分けて扱う。
func newTranslator(cfg *config.Config, logger *slog.Logger) sentence.Translator {
	t := translate.New(translate.Config{APIKey: cfg.AnthropicAPIKey, Model: cfg.TranslateModel}, logger)
	if t == nil {
		return nil
	}
	return t
}

// runtime はサブコマンド間で共有する依存関係一式。
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sql.DB
	captures  repository.CaptureRepository
	metadata  repository.MetadataRepository
	prefs     *config.PreferencesLoader
	registry  *prometheus.Registry
	collector *metrics.Collector
	service   *syncer.Service
}

// newRuntime はDB接続、設定ファイル、メトリクス、同期サービスを初期化する。
// SQLiteの場合はマイグレーションも適用する（単体のCLIとして動かすため）。
// watchがtrueなら設定ファイルの変更を監視し、変更時にアダプタを組み立て直す。
func newRuntime(cfg *config.Config, logger *slog.Logger, watch bool) (*runtime, error) {
	dialect, err := database.DialectOf(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if dialect == database.DialectSQLite {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		captures: repository.NewSQLCaptureRepo(db),
		metadata: repository.NewSQLMetadataRepo(db),
		prefs:    config.NewPreferencesLoader(cfg.PreferencesPath, logger),
		registry: prometheus.NewRegistry(),
	}
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.collector = metrics.NewCollector(rt.registry)

	prefs, err := rt.prefs.Load()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	translator := newTranslator(cfg, logger)
	build := func(p config.Preferences) (*syncer.Platforms, error) {
		return BuildPlatforms(PlatformOptions{
			Config:      cfg,
			Preferences: p,
			Metadata:    rt.metadata,
			Observer:    rt.collector,
			Translator:  translator,
			Logger:      logger,
		})
	}

	platforms, err := build(prefs)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.service = syncer.NewService(syncer.Deps{
		Platforms:   platforms,
		Preferences: rt.prefs.Current,
		History:     rt.captures,
		Recorder:    rt.collector,
		Logger:      logger,
	})

	if watch {
		rt.prefs.OnChange(func(p config.Preferences) {
			next, err := build(p)
			if err != nil {
				logger.Error("設定変更後のアダプタ構築に失敗しました", slog.String("error", err.Error()))
				return
			}
			rt.service.SetPlatforms(next)
			logger.Info("設定の変更を反映しました",
				slog.String("active_platform", string(p.ActivePlatform)),
				slog.Any("platforms", next.Registry.IDs()),
			)
		})
		if err := rt.prefs.Watch(); err != nil {
			logger.Warn("設定ファイルを監視できません", slog.String("error", err.Error()))
		}
	}

	logger.Info("platforms configured",
		slog.String("active_platform", string(prefs.ActivePlatform)),
		slog.Any("platforms", platforms.Registry.IDs()),
	)

	return rt, nil
}

// Close は保持しているリソースを解放する。
func (rt *runtime) Close() {
	if rt.prefs != nil {
		rt.prefs.Close()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}
