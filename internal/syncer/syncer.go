// Package syncer は取り込んだ単語をプラットフォームへ同期する入口を提供する。
// アダプタの解決、panicの回収、メトリクスとログの記録、取り込み履歴の更新をまとめる。
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/wordsync/internal/capture"
	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/metrics"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
	"github.com/hitoshi/wordsync/internal/repository"
)

var (
	// ErrSentenceDisabled は例文の追加が設定で無効な場合のエラー。
	ErrSentenceDisabled = errors.New("sentence attachment is disabled")
	// ErrMomoUnavailable は墨墨の云词本アダプタが構成されていない場合のエラー。
	ErrMomoUnavailable = errors.New("momo adapter is not available")
)

// WordsSubmitter は複数の単語を1回のマージで云词本に追加する。maimemo.Adapterが満たす。
type WordsSubmitter interface {
	SubmitWords(ctx context.Context, words []string) (model.MergeOutcome, error)
}

// SentenceAttacher は単語に例文を追加する。sentence.Attacherが満たす。
type SentenceAttacher interface {
	Attach(ctx context.Context, words []string, sentence, translation string) (model.AttachReport, error)
}

// Platforms は設定から組み立てたアダプタ一式。
// Cookieやトークンが変わった場合は組み立て直してSetPlatformsで差し替える。
type Platforms struct {
	Registry *platform.Registry
	Momo     WordsSubmitter
	Attacher SentenceAttacher
}

// Deps はServiceの依存関係。
type Deps struct {
	Platforms   *Platforms
	Preferences func() config.Preferences
	// History は取り込み履歴。nilの場合は履歴を保存しない。
	History  repository.CaptureRepository
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Service は同期処理の入口。複数のgoroutineから同時に呼び出せる。
type Service struct {
	platforms   atomic.Pointer[Platforms]
	preferences func() config.Preferences
	history     repository.CaptureRepository
	recorder    metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(deps Deps) *Service {
	s := &Service{
		preferences: deps.Preferences,
		history:     deps.History,
		recorder:    deps.Recorder,
		logger:      deps.Logger,
		now:         time.Now,
	}
	if s.preferences == nil {
		s.preferences = config.DefaultPreferences
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if deps.Platforms != nil {
		s.platforms.Store(deps.Platforms)
	}
	return s
}

// SetPlatforms はアダプタ一式を差し替える。実行中の呼び出しは古い一式で完了する。
func (s *Service) SetPlatforms(p *Platforms) {
	s.platforms.Store(p)
}

// Preferences は現在のユーザー設定を返す。
func (s *Service) Preferences() config.Preferences {
	return s.preferences()
}

func (s *Service) current() *Platforms {
	if p := s.platforms.Load(); p != nil {
		return p
	}
	return &Platforms{}
}

// resolve はIDに対応するアダプタを返す。
func (s *Service) resolve(id model.PlatformID) (platform.Adapter, error) {
	reg := s.current().Registry
	if reg == nil {
		return nil, fmt.Errorf("%w: %q", platform.ErrNotRegistered, id)
	}
	return reg.Resolve(id)
}

// SubmitWord は単語を指定プラットフォームに送信する。
// アダプタの失敗やpanicはすべて結果のSuccess=falseとして返し、呼び出し元には伝播しない。
func (s *Service) SubmitWord(ctx context.Context, id model.PlatformID, word string) model.SubmissionResult {
	res := model.SubmissionResult{Platform: id, Word: word}

	adapter, err := s.resolve(id)
	if err != nil {
		res.Kind = model.KindNotConfigured
		if errors.Is(err, platform.ErrUnknownPlatform) {
			res.Kind = model.KindInvalidInput
		}
		res.Reason = err.Error()
		s.recordSubmission(res)
		return res
	}

	err = safeCall(id, "submit", func() error { return adapter.SubmitWord(ctx, word) })
	res.Success = err == nil
	if err != nil {
		res.Kind = model.KindOf(err)
		res.Reason = err.Error()
	}

	s.recordSubmission(res)
	return res
}

// SubmitActive は単語を現在有効なプラットフォームに送信する。
func (s *Service) SubmitActive(ctx context.Context, word string) model.SubmissionResult {
	return s.SubmitWord(ctx, s.preferences().ActivePlatform, word)
}

// ProbeAuth は指定プラットフォームの認証が有効かを返す。
// アダプタが未登録、失敗、panicのいずれの場合もfalseを返す。
func (s *Service) ProbeAuth(ctx context.Context, id model.PlatformID) bool {
	adapter, err := s.resolve(id)
	if err != nil {
		s.recorder.RecordProbe(id, false)
		return false
	}

	err = safeCall(id, "probe_auth", func() error { return adapter.ProbeAuth(ctx) })
	ok := err == nil
	if !ok {
		s.logger.Info("プラットフォームの認証が確認できませんでした",
			slog.String("platform", string(id)),
			slog.String("error_kind", string(model.KindOf(err))),
			slog.String("error", err.Error()),
		)
	}
	s.recorder.RecordProbe(id, ok)
	return ok
}

// ProbeAll は登録済みの全プラットフォームの認証を並列に確認する。
// 各確認は独立しており、1つの失敗や遅延が他の結果に影響しない。
func (s *Service) ProbeAll(ctx context.Context) map[model.PlatformID]bool {
	results := make(map[model.PlatformID]bool)
	reg := s.current().Registry
	if reg == nil {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range reg.IDs() {
		wg.Add(1)
		go func(id model.PlatformID) {
			defer wg.Done()
			ok := s.ProbeAuth(ctx, id)

			mu.Lock()
			results[id] = ok
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return results
}

// SubmitWords は複数の単語を墨墨の云词本に1回のマージで追加する。
func (s *Service) SubmitWords(ctx context.Context, words []string) (outcome model.MergeOutcome, err error) {
	momo := s.current().Momo
	if momo == nil {
		return model.MergeOutcome{}, model.NewSyncError(model.PlatformMomo, "submit_words", model.KindNotConfigured, ErrMomoUnavailable)
	}

	err = safeCall(model.PlatformMomo, "submit_words", func() error {
		var callErr error
		outcome, callErr = momo.SubmitWords(ctx, words)
		return callErr
	})

	res := model.SubmissionResult{Platform: model.PlatformMomo, Success: err == nil, Kind: model.KindOf(err)}
	if err != nil {
		res.Reason = err.Error()
	}
	s.recordSubmission(res)

	return outcome, err
}

// AttachSentence は単語に例文を追加する。
// 設定で例文の追加が有効かつ墨墨のトークンがある場合のみ実行する。
func (s *Service) AttachSentence(ctx context.Context, words []string, sentence, translation string) (report model.AttachReport, err error) {
	prefs := s.preferences()
	if !prefs.SentenceEnabled {
		return model.AttachReport{}, ErrSentenceDisabled
	}
	if prefs.MomoToken == "" {
		return model.AttachReport{}, model.NewSyncError(model.PlatformMomo, "attach", model.KindNotConfigured, errors.New("momo token is not set"))
	}

	attacher := s.current().Attacher
	if attacher == nil {
		return model.AttachReport{}, model.NewSyncError(model.PlatformMomo, "attach", model.KindNotConfigured, ErrMomoUnavailable)
	}

	err = safeCall(model.PlatformMomo, "attach", func() error {
		var callErr error
		report, callErr = attacher.Attach(ctx, words, sentence, translation)
		return callErr
	})
	if err != nil {
		return model.AttachReport{}, err
	}

	for _, r := range report.Results {
		s.recorder.RecordAttachment(r.Status)
	}
	return report, nil
}

// CaptureRequest は単語の取り込み要求。
type CaptureRequest struct {
	Text        string
	SourceURL   string
	PageContext string
	// Platform は送信先。空の場合は設定の有効プラットフォームを使う。
	Platform model.PlatformID
}

// CaptureResult は取り込み結果。
type CaptureResult struct {
	Word   *model.CapturedWord
	Result model.SubmissionResult
}

// Capture は単語を正規化して履歴に保存し、プラットフォームに送信して結果を記録する。
// 入力が不正な場合のみerrorを返す。履歴の書き込み失敗はログに残して処理を続ける。
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	word, err := capture.NewCapturedWord(req.Text, req.SourceURL, req.PageContext, s.now())
	if err != nil {
		return CaptureResult{}, err
	}

	id := req.Platform
	if id == "" {
		id = s.preferences().ActivePlatform
	}
	word.Platform = id

	stored := s.saveHistory(ctx, word)

	res := s.SubmitWord(ctx, id, word.Text)

	if res.Success {
		syncedAt := s.now().UTC()
		word.Status = model.SyncStatusSynced
		word.SyncedAt = &syncedAt
	} else {
		word.Status = model.SyncStatusFailed
		word.Reason = string(res.Kind)
	}

	if stored {
		s.recordOutcome(ctx, word)
	}

	return CaptureResult{Word: word, Result: res}, nil
}

// ListRecent は最近取り込んだ単語を新しい順に返す。
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*model.CapturedWord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListRecent(ctx, limit)
}

func (s *Service) saveHistory(ctx context.Context, word *model.CapturedWord) bool {
	if s.history == nil {
		return false
	}
	if err := s.history.Create(ctx, word); err != nil {
		s.logger.Error("取り込み履歴の保存に失敗しました",
			slog.String("capture_id", word.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// recordOutcome は送信結果を履歴に反映する。
func (s *Service) recordOutcome(ctx context.Context, word *model.CapturedWord) {
	if err := s.history.UpdateSyncStatus(ctx, word.ID, word.Platform, word.Status, word.Reason, word.SyncedAt); err != nil {
		s.logger.Error("同期結果の記録に失敗しました",
			slog.String("capture_id", word.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) recordSubmission(res model.SubmissionResult) {
	s.recorder.RecordSubmission(res.Platform, res.Kind)
	if res.Success {
		s.logger.Info("単語を同期しました",
			slog.String("platform", string(res.Platform)),
			slog.String("word", res.Word),
		)
		return
	}
	s.logger.Warn("単語の同期に失敗しました",
		slog.String("platform", string(res.Platform)),
		slog.String("word", res.Word),
		slog.String("error_kind", string(res.Kind)),
		slog.String("reason", res.Reason),
	)
}

// safeCall はfnを実行し、panicをKindInternalのエラーに変換する。
func safeCall(id model.PlatformID, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewSyncError(id, op, model.KindInternal, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

type nopRecorder struct{}

func (nopRecorder) RecordSubmission(model.PlatformID, model.ErrorKind) {}
func (nopRecorder) RecordProbe(model.PlatformID, bool) {}
func (nopRecorder) RecordAttachment(model.AttachStatus) {}
func (nopRecorder) ObserveRemoteCall(model.PlatformID, string, int, time.Duration) {}
