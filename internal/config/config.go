// Package config はプロセス設定（環境変数）とユーザー設定ファイルを読み込む。
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/security"
)

// DefaultDatabaseURL はDATABASE_URL未設定時に使うローカルのSQLiteデータベース。
const DefaultDatabaseURL = "sqlite3://wordsync.db"

// Config はプロセス全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort        string
	CORSAllowedOrigin string
	// APIToken が設定されている場合、/api 以下はBearerトークンを要求する
	APIToken string

	// Rate Limit
	RateLimitGeneral   int
	PlatformRatePerMin int

	// Outbound HTTP
	HTTPTimeout         time.Duration
	HTTPMaxResponseSize int64
	// BaseURLs はプラットフォームごとのベースURLの上書き（テスト環境・ミラー用）
	BaseURLs map[model.PlatformID]string

	// Notepad
	NotepadLocation *time.Location

	// Preferences
	PreferencesPath string

	// Translation
	AnthropicAPIKey string
	TranslateModel  string

	// Logging
	LogLevel slog.Level

	// Worker
	HistoryRetentionDays int
	ProbeInterval        time.Duration
}

// baseURLEnv はベースURLを上書きする環境変数名。
var baseURLEnv = map[model.PlatformID]string{
	model.PlatformShanbay:   "SHANBAY_BASE_URL",
	model.PlatformBBDC:      "BBDC_BASE_URL",
	model.PlatformMomo:      "MAIMEMO_BASE_URL",
	model.PlatformBaicizhan: "BAICIZHAN_BASE_URL",
}

// Load は環境変数からConfigを読み込む。
// 値が不正な場合（タイムゾーン名、ベースURL、ログレベル）はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = getEnvString("DATABASE_URL", DefaultDatabaseURL)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "")
	cfg.APIToken = getEnvString("WORDSYNC_API_TOKEN", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.PlatformRatePerMin = getEnvInt("PLATFORM_RATE_PER_MIN", 30)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.HTTPMaxResponseSize = getEnvInt64("HTTP_MAX_RESPONSE_SIZE", 1<<20)
	cfg.PreferencesPath = getEnvString("PREFERENCES_PATH", "wordsync.toml")
	cfg.AnthropicAPIKey = getEnvString("ANTHROPIC_API_KEY", "")
	cfg.TranslateModel = getEnvString("TRANSLATE_MODEL", "")
	cfg.HistoryRetentionDays = getEnvInt("HISTORY_RETENTION_DAYS", 90)
	cfg.ProbeInterval = getEnvDuration("PROBE_INTERVAL", 15*time.Minute)

	var invalid []string

	loc, err := time.LoadLocation(getEnvString("NOTEPAD_TIMEZONE", "Local"))
	if err != nil {
		invalid = append(invalid, fmt.Sprintf("NOTEPAD_TIMEZONE: %v", err))
	}
	cfg.NotepadLocation = loc

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnvString("LOG_LEVEL", "info"))); err != nil {
		invalid = append(invalid, fmt.Sprintf("LOG_LEVEL: %v", err))
	}

	cfg.BaseURLs = make(map[model.PlatformID]string)
	for _, id := range model.AllPlatforms() {
		key := baseURLEnv[id]
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		if err := security.ValidateBaseURL(v); err != nil {
			invalid = append(invalid, fmt.Sprintf("%s: %v", key, err))
			continue
		}
		cfg.BaseURLs[id] = strings.TrimRight(v, "/")
	}

	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return cfg, nil
}

// BaseURL はプラットフォームのベースURLの上書きを返す。未設定なら空文字列。
func (c *Config) BaseURL(id model.PlatformID) string {
	return c.BaseURLs[id]
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
