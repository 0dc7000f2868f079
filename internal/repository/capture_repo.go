package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/wordsync/internal/model"
)

// captureColumns はcaptured_wordsのSELECT列。scanCapturedWordと順序を合わせること。
const captureColumns = `id, text, captured_at, source_url, page_context, platform, status, reason, synced_at`

// SQLCaptureRepo はcaptured_wordsテーブルを使用する取り込み履歴リポジトリ。
// クエリはPostgreSQLとSQLiteの両方で動作する構文に限定している。
type SQLCaptureRepo struct {
	db *sql.DB
}

// NewSQLCaptureRepo はSQLCaptureRepoを生成する。
func NewSQLCaptureRepo(db *sql.DB) *SQLCaptureRepo {
	return &SQLCaptureRepo{db: db}
}

// Create は取り込み単語を登録する。
func (r *SQLCaptureRepo) Create(ctx context.Context, word *model.CapturedWord) error {
	status := word.Status
	if status == "" {
		status = model.SyncStatusPending
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO captured_words (id, text, captured_at, source_url, page_context, platform, status, reason, synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		word.ID, word.Text, word.CapturedAt.UTC(), word.SourceURL, word.PageContext,
		string(word.Platform), string(status), word.Reason, nullTime(word.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert captured word: %w", err)
	}
	return nil
}

// UpdateSyncStatus は同期結果の列のみを更新する。対象が存在しない場合はエラーを返す。
func (r *SQLCaptureRepo) UpdateSyncStatus(ctx context.Context, id string, platform model.PlatformID, status model.SyncStatus, reason string, syncedAt *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE captured_words SET platform = $1, status = $2, reason = $3, synced_at = $4 WHERE id = $5`,
		string(platform), string(status), reason, nullTime(syncedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("captured word not found: %s", id)
	}
	return nil
}

// ListRecent は取り込み日時の新しい順に最大limit件を返す。
func (r *SQLCaptureRepo) ListRecent(ctx context.Context, limit int) ([]*model.CapturedWord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+captureColumns+` FROM captured_words ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list captured words: %w", err)
	}
	defer rows.Close()

	var words []*model.CapturedWord
	for rows.Next() {
		w, err := scanCapturedWord(rows)
		if err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate captured words: %w", err)
	}
	return words, nil
}

// DeleteOlderThan はcutoffより前に取り込まれた履歴を削除し、削除件数を返す。
func (r *SQLCaptureRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM captured_words WHERE captured_at < $1`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old captured words: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func scanCapturedWord(rows *sql.Rows) (*model.CapturedWord, error) {
	var (
		w        model.CapturedWord
		platform string
		status   string
		syncedAt sql.NullTime
	)
	if err := rows.Scan(&w.ID, &w.Text, &w.CapturedAt, &w.SourceURL, &w.PageContext,
		&platform, &status, &w.Reason, &syncedAt); err != nil {
		return nil, fmt.Errorf("failed to scan captured word: %w", err)
	}

	w.Platform = model.PlatformID(platform)
	w.Status = model.SyncStatus(status)
	if syncedAt.Valid {
		t := syncedAt.Time
		w.SyncedAt = &t
	}
	return &w, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
