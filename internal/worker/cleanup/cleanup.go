// Package cleanup は取り込み履歴の自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したcaptured_wordsを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays は履歴の保持日数のデフォルト値。
const DefaultRetentionDays = 90

// HistoryDeleter は指定日時より古い履歴を削除する。
// repository.CaptureRepository が満たす。
type HistoryDeleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過した取り込み履歴の自動削除ジョブ。
// 冪等: 削除対象がない場合でもエラーにならない。
type CleanupJob struct {
	repo          HistoryDeleter
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 履歴の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(repo HistoryDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:          repo,
		logger:        logger,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Cutoff は削除基準日時（これより前の履歴を削除する）を返す。
func (j *CleanupJob) Cutoff() time.Time {
	return j.now().AddDate(0, 0, -j.RetentionDays)
}

// Run は保持期間を超過した履歴を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.Cutoff()

	deletedCount, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("履歴クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("履歴クリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("履歴クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// コンテキストがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
