// Package sentence は墨墨の単語に例文を追加する。
// 単語IDの検索と例文の作成の2段階で、複数単語には並列に行う。
package sentence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/wordsync/internal/maimemo"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/notepad"
)

const (
	// Origin は例文の出典として送る値。
	Origin = "wordsync"
	// defaultMaxConcurrency は同時に処理する単語数の既定値。
	defaultMaxConcurrency = 4
)

// ErrNoSentence は例文が空の場合のエラー。
var ErrNoSentence = errors.New("sentence is empty")

// PhraseStore は単語IDの検索と例文の作成。maimemo.Clientが実装する。
type PhraseStore interface {
	LookupVocabulary(ctx context.Context, spelling string) (string, error)
	CreatePhrase(ctx context.Context, p maimemo.Phrase) error
}

// Translator は訳文が指定されなかった場合に例文を翻訳する。
type Translator interface {
	Translate(ctx context.Context, sentence string) (string, error)
}

// Attacher は例文の追加を行う。
type Attacher struct {
	store          PhraseStore
	translator     Translator
	logger         *slog.Logger
	maxConcurrency int
}

// NewAttacher はAttacherの新しいインスタンスを生成する。translatorはnil可。
func NewAttacher(store PhraseStore, translator Translator, logger *slog.Logger) *Attacher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Attacher{
		store:          store,
		translator:     translator,
		logger:         logger,
		maxConcurrency: defaultMaxConcurrency,
	}
}

// Attach は各単語に例文を追加する。
// 1単語でも成功すればreport.Successはtrueで、失敗した単語の結果もResultsに残る。
// 入力不正と翻訳の失敗のみerrorを返す。
func (a *Attacher) Attach(ctx context.Context, words []string, sentence, translation string) (model.AttachReport, error) {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return model.AttachReport{}, model.NewSyncError(model.PlatformMomo, "attach", model.KindInvalidInput, ErrNoSentence)
	}
	if len(words) == 0 {
		return model.AttachReport{}, model.NewSyncError(model.PlatformMomo, "attach", model.KindInvalidInput, errors.New("no words"))
	}

	translation = strings.TrimSpace(translation)
	if translation == "" && a.translator != nil {
		t, err := a.translator.Translate(ctx, sentence)
		if err != nil {
			return model.AttachReport{}, fmt.Errorf("例文の翻訳に失敗しました: %w", err)
		}
		translation = t
	}

	results := make([]model.AttachResult, len(words))

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, a.maxConcurrency)
	var wg sync.WaitGroup

	for i, w := range words {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, word string) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = a.attachOne(ctx, word, sentence, translation)
		}(i, w)
	}

	wg.Wait()

	report := model.AttachReport{Results: results}
	for _, r := range results {
		if r.Status == model.AttachStatusAttached {
			report.Success = true
			break
		}
	}

	a.logger.Info("例文の追加が完了しました",
		slog.Int("word_count", len(words)),
		slog.Int("failed_count", len(report.Failed())),
		slog.Bool("success", report.Success),
	)
	return report, nil
}

// attachOne は1単語分の検索と例文作成を行う。
// panicは現在の段階の失敗（KindInternal）として結果に残し、他の単語の処理を続ける。
func (a *Attacher) attachOne(ctx context.Context, word, sentence, translation string) (res model.AttachResult) {
	res = model.AttachResult{Word: word, Status: model.AttachStatusLookupFailed}
	defer func() {
		if r := recover(); r != nil {
			res.Err = model.NewSyncError(model.PlatformMomo, "attach", model.KindInternal, fmt.Errorf("panic: %v", r))
			a.logger.Error("例文の追加中にpanicが発生しました",
				slog.String("word", word),
				slog.String("status", string(res.Status)),
				slog.Any("panic", r),
			)
		}
	}()

	vocID, err := a.store.LookupVocabulary(ctx, strings.TrimSpace(word))
	if err != nil {
		res.Err = err
		return res
	}

	res.Status = model.AttachStatusPhraseFailed
	err = a.store.CreatePhrase(ctx, maimemo.Phrase{
		VocID:          vocID,
		Phrase:         sentence,
		Interpretation: translation,
		Tags:           []string{notepad.Tag},
		Origin:         Origin,
	})
	if err != nil {
		res.Err = err
		return res
	}

	res.Status = model.AttachStatusAttached
	return res
}
