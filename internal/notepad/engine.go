// Package notepad は墨墨云词本への単語追加（読み取り・マージ・全体書き戻し）を提供する。
// リモートAPIには追記操作がないため、文書全体を取得して当日の見出しの下へ単語を挿入し、全体を上書きする。
package notepad

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
)

const (
	// Title は同期用云词本を識別するタイトル。
	Title = "浏览器单词同步"
	// Brief は同期用云词本を識別する説明文。ユーザーが変更すると別文書とみなされる。
	Brief = "浏览器插件单词同步(请勿修改描述)"
	// Tag は作成時に付与するタグ。
	Tag = "词典"
)

// Store は云词本のリモート操作。maimemo.Clientが実装する。
type Store interface {
	ListNotepads(ctx context.Context) ([]model.Notepad, error)
	GetNotepad(ctx context.Context, id string) (model.Notepad, error)
	CreateNotepad(ctx context.Context, n model.Notepad) (model.Notepad, error)
	UpdateNotepad(ctx context.Context, id string, n model.Notepad) error
}

// IDCache は同期用云词本のIDを保持する。未保存の場合Getは空文字列を返す。
type IDCache interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, id string) error
}

// Config はEngineの設定。
type Config struct {
	// AccountKey は同一アカウントへのマージを直列化するためのキー。AccountKeyで生成する。
	AccountKey string
	// Location は「今日」を決めるタイムゾーン。nilの場合はtime.Local。
	Location *time.Location
	// Now は現在時刻。nilの場合はtime.Now。
	Now func() time.Time
}

// Engine は云词本への単語追加を行う。
type Engine struct {
	store  Store
	cache  IDCache
	logger *slog.Logger
	key    string
	loc    *time.Location
	now    func() time.Time
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(store Store, cache IDCache, logger *slog.Logger, cfg Config) *Engine {
	e := &Engine{
		store:  store,
		cache:  cache,
		logger: logger,
		key:    cfg.AccountKey,
		loc:    cfg.Location,
		now:    cfg.Now,
	}
	if e.cache == nil {
		e.cache = NewMemoryIDCache()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// AccountKey は認証トークンから直列化キーを導出する。トークン自体は保持しない。
func AccountKey(token string) string {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer"))
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// Today は設定されたタイムゾーンでの当日の日付文字列を返す。
func (e *Engine) Today() string {
	return e.now().In(e.loc).Format(DateLayout)
}

// SubmitWords は単語群を当日のセクションに追加する。
// 同じAccountKeyを持つ呼び出しは直列化されるため、重なった送信で更新が失われることはない。
// 全単語が既存の場合は書き戻しを行わず成功とする。
func (e *Engine) SubmitWords(ctx context.Context, words []string) (model.MergeOutcome, error) {
	cleaned, err := validateWords(words)
	if err != nil {
		return model.MergeOutcome{}, err
	}

	unlock := locks.lock(e.key)
	defer unlock()

	id, err := e.resolveID(ctx)
	if err != nil {
		return model.MergeOutcome{}, err
	}
	if id == "" {
		return e.create(ctx, cleaned)
	}
	return e.update(ctx, id, cleaned)
}

// resolveID はキャッシュ、次にリモート一覧の署名一致で云词本のIDを解決する。
// 見つからない場合は空文字列を返す。
func (e *Engine) resolveID(ctx context.Context) (string, error) {
	id, err := e.cache.Get(ctx)
	if err != nil {
		// キャッシュ読み取りの失敗はリモート一覧からの解決で代替する
		e.logger.Warn("云词本IDキャッシュの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
	}
	if id != "" {
		return id, nil
	}

	notepads, err := e.store.ListNotepads(ctx)
	if err != nil {
		return "", err
	}
	for _, n := range notepads {
		if n.Title == Title && n.Brief == Brief && n.ID != "" {
			e.remember(ctx, n.ID)
			return n.ID, nil
		}
	}
	return "", nil
}

func (e *Engine) create(ctx context.Context, words []string) (model.MergeOutcome, error) {
	content, added := InitialContent(e.Today(), words)
	created, err := e.store.CreateNotepad(ctx, model.Notepad{
		Status:  model.NotepadStatusPublished,
		Content: content,
		Title:   Title,
		Brief:   Brief,
		Tags:    []string{Tag},
	})
	if err != nil {
		return model.MergeOutcome{}, err
	}
	if created.ID == "" {
		return model.MergeOutcome{}, model.NewSyncError(model.PlatformMomo, "create_notepad",
			model.KindUnexpectedShape, errors.New("作成した云词本のIDがありません"))
	}
	e.remember(ctx, created.ID)

	e.logger.Info("云词本を作成しました",
		slog.String("notepad_id", created.ID),
		slog.Int("added", len(added)),
	)
	return model.MergeOutcome{
		NotepadID: created.ID,
		Created:   true,
		Added:     added,
		Message:   fmt.Sprintf("云词本を作成し、単語 %s を追加しました", strings.Join(added, ", ")),
	}, nil
}

func (e *Engine) update(ctx context.Context, id string, words []string) (model.MergeOutcome, error) {
	current, err := e.store.GetNotepad(ctx, id)
	if err != nil {
		if isNotFound(err) {
			// 削除された云词本のIDを捨て、次回は一覧の署名一致から解決し直す
			e.logger.Warn("キャッシュした云词本が見つかりません。IDを破棄します",
				slog.String("notepad_id", id),
			)
			e.remember(ctx, "")
		}
		return model.MergeOutcome{}, err
	}

	res := Merge(current.Content, e.Today(), words)
	out := model.MergeOutcome{
		NotepadID: id,
		Added:     res.Added,
		Skipped:   res.Skipped,
	}
	if !res.Changed() {
		out.Message = fmt.Sprintf("単語 %s は既に云词本にあります", strings.Join(res.Skipped, ", "))
		return out, nil
	}

	next := current
	next.Content = res.Content
	if err := e.store.UpdateNotepad(ctx, id, next); err != nil {
		return model.MergeOutcome{}, err
	}

	e.logger.Info("云词本に単語を追加しました",
		slog.String("notepad_id", id),
		slog.Int("added", len(res.Added)),
		slog.Int("skipped", len(res.Skipped)),
	)
	out.Message = fmt.Sprintf("単語 %s を云词本に追加しました", strings.Join(res.Added, ", "))
	return out, nil
}

// remember はIDをキャッシュする。失敗しても次回は一覧から解決できるため処理は続ける。
func (e *Engine) remember(ctx context.Context, id string) {
	if err := e.cache.Set(ctx, id); err != nil {
		e.logger.Warn("云词本IDのキャッシュに失敗しました",
			slog.String("notepad_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// isNotFound はリモートが404を返したエラーかを返す。
func isNotFound(err error) bool {
	var se *model.SyncError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

// validateWords は改行を含む単語や空の単語をネットワーク呼び出しの前に拒否する。
func validateWords(words []string) ([]string, error) {
	if len(words) == 0 {
		return nil, model.NewSyncError(model.PlatformMomo, "submit", model.KindInvalidInput,
			platform.ErrEmptyWord)
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		n, err := platform.NormalizeWord(w)
		if err != nil {
			return nil, model.NewSyncError(model.PlatformMomo, "submit", model.KindInvalidInput,
				fmt.Errorf("%q: %w", w, err))
		}
		out = append(out, n)
	}
	return out, nil
}

// keyedMutex はキーごとの排他ロック。アカウント数は少ないためエントリは削除しない。
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

var locks = &keyedMutex{m: make(map[string]*sync.Mutex)}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
