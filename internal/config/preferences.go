package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/wordsync/internal/model"
)

// Preferences はユーザーが変更する設定。ファイルから読み込み、変更時に再読み込みする。
type Preferences struct {
	// ActivePlatform は単語の送信先。
	ActivePlatform model.PlatformID `toml:"active_platform" yaml:"active_platform" json:"active_platform"`
	// SentenceEnabled は例文の追加を有効にするか。
	SentenceEnabled bool `toml:"sentence_enabled" yaml:"sentence_enabled" json:"sentence_enabled"`
	// MomoToken は墨墨オープンAPIのトークン。
	MomoToken string `toml:"momo_token" yaml:"momo_token" json:"momo_token"`
	// Cookies はセッションCookieで認証するプラットフォームのCookieヘッダー値。
	Cookies map[string]string `toml:"cookies" yaml:"cookies" json:"cookies"`
}

// DefaultPreferences は設定ファイルがない場合の既定値を返す。
func DefaultPreferences() Preferences {
	return Preferences{ActivePlatform: model.PlatformMomo}
}

// Cookie はプラットフォームのCookieヘッダー値を返す。
func (p Preferences) Cookie(id model.PlatformID) string {
	return p.Cookies[string(id)]
}

// Validate は設定値を検証する。
func (p Preferences) Validate() error {
	if !p.ActivePlatform.Valid() {
		return fmt.Errorf("active_platform: unknown platform %q", p.ActivePlatform)
	}
	for k := range p.Cookies {
		id, err := model.ParsePlatformID(k)
		if err != nil {
			return fmt.Errorf("cookies: %w", err)
		}
		// Cookieは正規化済みのIDで引くため、表記の揺れは受け付けない
		if string(id) != k {
			return fmt.Errorf("cookies: key %q must be written as %q", k, id)
		}
	}
	if p.SentenceEnabled && p.MomoToken == "" {
		return errors.New("sentence_enabled requires momo_token")
	}
	return nil
}

// applyEnvOverrides は環境変数による上書きを反映する。
func (p *Preferences) applyEnvOverrides() {
	if v := os.Getenv("WORDSYNC_ACTIVE_PLATFORM"); v != "" {
		p.ActivePlatform = model.PlatformID(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := os.Getenv("MOMO_TOKEN"); v != "" {
		p.MomoToken = v
	}
}

// ParsePreferences は拡張子に応じてTOML・YAML・JSONとして設定を解析する。
func ParsePreferences(data []byte, ext string) (Preferences, error) {
	p := DefaultPreferences()

	switch strings.ToLower(ext) {
	case ".toml", "":
		if _, err := toml.Decode(string(data), &p); err != nil {
			return Preferences{}, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Preferences{}, fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return Preferences{}, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		return Preferences{}, fmt.Errorf("unsupported preferences format %q", ext)
	}

	p.ActivePlatform = model.PlatformID(strings.ToLower(strings.TrimSpace(string(p.ActivePlatform))))

	cookies, err := normalizeCookieKeys(p.Cookies)
	if err != nil {
		return Preferences{}, err
	}
	p.Cookies = cookies
	return p, nil
}

// normalizeCookieKeys はcookiesのキーを小文字のプラットフォームIDにそろえる。
// 表記違いで同じプラットフォームを指すキーが複数ある場合はエラーを返す。
func normalizeCookieKeys(in map[string]string) (map[string]string, error) {
	if len(in) == 0 {
		return in, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("cookies: duplicate key %q", key)
		}
		out[key] = v
	}
	return out, nil
}

// PreferencesLoader は設定ファイルの読み込みと変更監視を行う。
type PreferencesLoader struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	current  Preferences
	onChange []func(Preferences)

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
	errCh     chan error
}

// NewPreferencesLoader はPreferencesLoaderを生成する。読み込みはLoadで行う。
func NewPreferencesLoader(path string, logger *slog.Logger) *PreferencesLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferencesLoader{
		path:    path,
		logger:  logger,
		current: DefaultPreferences(),
		done:    make(chan struct{}),
		errCh:   make(chan error, 1),
	}
}

// Load は設定ファイルを読み込む。ファイルがない場合は既定値を使う。
func (l *PreferencesLoader) Load() (Preferences, error) {
	p, err := l.read()
	if err != nil {
		return Preferences{}, err
	}

	l.mu.Lock()
	l.current = p
	l.mu.Unlock()
	return p, nil
}

// Current は現在の設定を返す。
func (l *PreferencesLoader) Current() Preferences {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange は再読み込みで設定が変わった際に呼ばれるコールバックを登録する。
func (l *PreferencesLoader) OnChange(cb func(Preferences)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors は監視中に発生したエラーを受け取るチャネルを返す。
func (l *PreferencesLoader) Errors() <-chan error {
	return l.errCh
}

// Watch は設定ファイルの変更監視を開始する。
// エディタの置き換え保存にも追従するため、ファイルではなくディレクトリを監視する。
func (l *PreferencesLoader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = watcher

	go l.watchLoop()
	return nil
}

// Close は監視を停止する。
func (l *PreferencesLoader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}

func (l *PreferencesLoader) watchLoop() {
	// 連続した書き込みで何度も再読み込みしないよう間引く
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-l.done:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

// reload は設定を読み直し、検証に通った場合のみ差し替える。
func (l *PreferencesLoader) reload() {
	p, err := l.read()
	if err != nil {
		l.logger.Warn("設定ファイルの再読み込みに失敗しました。以前の設定を使い続けます",
			slog.String("path", l.path),
			slog.String("error", err.Error()),
		)
		l.report(fmt.Errorf("reload preferences: %w", err))
		return
	}

	l.mu.Lock()
	l.current = p
	callbacks := append([]func(Preferences){}, l.onChange...)
	l.mu.Unlock()

	l.logger.Info("設定ファイルを再読み込みしました",
		slog.String("path", l.path),
		slog.String("active_platform", string(p.ActivePlatform)),
	)
	for _, cb := range callbacks {
		cb(p)
	}
}

func (l *PreferencesLoader) read() (Preferences, error) {
	var p Preferences
	data, err := os.ReadFile(l.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		p = DefaultPreferences()
	case err != nil:
		return Preferences{}, fmt.Errorf("read preferences: %w", err)
	default:
		p, err = ParsePreferences(data, filepath.Ext(l.path))
		if err != nil {
			return Preferences{}, err
		}
	}

	p.applyEnvOverrides()
	if err := p.Validate(); err != nil {
		return Preferences{}, fmt.Errorf("validate preferences: %w", err)
	}
	return p, nil
}

func (l *PreferencesLoader) report(err error) {
	select {
	case l.errCh <- err:
	default:
	}
}
