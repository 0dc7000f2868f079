// Package repository はデータアクセス層のインターフェースと実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
)

// CaptureRepository は取り込み単語の履歴に対するデータアクセスインターフェース。
type CaptureRepository interface {
	Create(ctx context.Context, word *model.CapturedWord) error
	UpdateSyncStatus(ctx context.Context, id string, platform model.PlatformID, status model.SyncStatus, reason string, syncedAt *time.Time) error
	ListRecent(ctx context.Context, limit int) ([]*model.CapturedWord, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MetadataRepository はキー・値形式の内部状態に対するデータアクセスインターフェース。
type MetadataRepository interface {
	// Get はキーの値を返す。存在しない場合はokがfalseになる。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
