// Package probe はプラットフォームの認証状態を定期的に確認するバックグラウンドジョブを提供する。
// セッションの失効や復旧を検出するとログに記録する。
package probe

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
)

// DefaultInterval は認証確認の間隔のデフォルト値。
const DefaultInterval = 15 * time.Minute

// Prober は登録済みプラットフォームの認証状態を返す。syncer.Serviceが満たす。
type Prober interface {
	ProbeAll(ctx context.Context) map[model.PlatformID]bool
}

// Transition は1回の確認で検出した認証状態の変化。
type Transition struct {
	Platform      model.PlatformID
	Authenticated bool
}

// Monitor は認証状態の定期確認ジョブ。
// 前回の結果を保持し、状態が変化したプラットフォームのみを報告する。
type Monitor struct {
	prober Prober
	logger *slog.Logger

	mu   sync.Mutex
	last map[model.PlatformID]bool
}

// NewMonitor は新しいMonitorを生成する。
func NewMonitor(prober Prober, logger *slog.Logger) *Monitor {
	return &Monitor{
		prober: prober,
		logger: logger,
		last:   make(map[model.PlatformID]bool),
	}
}

// Start はinterval間隔のティッカーで確認を繰り返す。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("認証監視を開始しました", slog.Duration("interval", interval))

	m.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("認証監視を停止しました")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce は1回分の確認を行い、前回から状態が変わったプラットフォームをID順に返す。
// 初回の確認では未認証のプラットフォームのみを変化として扱う。
// 登録が外れたプラットフォームは以後の比較対象から除く。
func (m *Monitor) RunOnce(ctx context.Context) []Transition {
	results := m.prober.ProbeAll(ctx)
	if ctx.Err() != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var transitions []Transition
	for id, ok := range results {
		prev, seen := m.last[id]
		switch {
		case !seen && !ok:
			transitions = append(transitions, Transition{Platform: id, Authenticated: false})
		case seen && prev != ok:
			transitions = append(transitions, Transition{Platform: id, Authenticated: ok})
		}
	}
	m.last = results

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].Platform < transitions[j].Platform
	})

	for _, tr := range transitions {
		if tr.Authenticated {
			m.logger.Info("プラットフォームの認証が復旧しました",
				slog.String("platform", string(tr.Platform)),
			)
			continue
		}
		m.logger.Warn("プラットフォームが未認証です。認証情報を更新してください",
			slog.String("platform", string(tr.Platform)),
		)
	}

	m.logger.Debug("認証確認サイクルが完了しました",
		slog.Int("platforms", len(results)),
		slog.Int("transitions", len(transitions)),
	)
	return transitions
}
