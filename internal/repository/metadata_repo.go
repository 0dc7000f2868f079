package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLMetadataRepo はmetadataテーブルを使用するキー・値リポジトリ。
type SQLMetadataRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLMetadataRepo はSQLMetadataRepoを生成する。
func NewSQLMetadataRepo(db *sql.DB) *SQLMetadataRepo {
	return &SQLMetadataRepo{db: db, now: time.Now}
}

// Get はキーの値を返す。
func (r *SQLMetadataRepo) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM metadata WHERE key = $1`,
		key,
	).Scan(&value)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get metadata %q: %w", key, err)
	}
	return value, true, nil
}

// Set はキーの値を登録または上書きする。
func (r *SQLMetadataRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metadata (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。存在しないキーはエラーにしない。
func (r *SQLMetadataRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metadata WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete metadata %q: %w", key, err)
	}
	return nil
}

// NotepadIDKey は同期用云词本IDを保存するmetadataのキー。
const NotepadIDKey = "notepad_id"

// MetadataIDCache はMetadataRepositoryを云词本IDのキャッシュとして使うアダプタ。
// notepad.IDCacheを満たす。
type MetadataIDCache struct {
	repo MetadataRepository
	key  string
}

// NewMetadataIDCache はMetadataIDCacheを生成する。
// accountKeyを指定するとアカウントごとに別のキーで保存する。
func NewMetadataIDCache(repo MetadataRepository, accountKey string) *MetadataIDCache {
	key := NotepadIDKey
	if accountKey != "" {
		key = NotepadIDKey + ":" + accountKey
	}
	return &MetadataIDCache{repo: repo, key: key}
}

// Get は保存済みのIDを返す。未保存の場合は空文字列を返す。
func (c *MetadataIDCache) Get(ctx context.Context) (string, error) {
	v, _, err := c.repo.Get(ctx, c.key)
	return v, err
}

// Set はIDを保存する。空文字列は削除として扱う。
func (c *MetadataIDCache) Set(ctx context.Context, id string) error {
	if id == "" {
		return c.repo.Delete(ctx, c.key)
	}
	return c.repo.Set(ctx, c.key, id)
}
