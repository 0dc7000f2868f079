// Package platform は単語同期先サービスの共通抽象を提供する。
// アダプタインターフェース、プラットフォームIDからアダプタを引くレジストリ、
// 各プラットフォームクライアントが共有するHTTP送信処理を含む。
package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/wordsync/internal/model"
)

// Adapter はプラットフォームごとの単語送信と認証確認の実装。
// 失敗はすべて*model.SyncErrorとして返し、panicを境界の外に出さない。
type Adapter interface {
	// ID はアダプタが担当するプラットフォームを返す。
	ID() model.PlatformID
	// SubmitWord は単語を1つリモートに送信する。
	SubmitWord(ctx context.Context, word string) error
	// ProbeAuth は現在の認証情報が有効かを確認する。nilなら認証済み。
	ProbeAuth(ctx context.Context) error
}

var (
	// ErrUnknownPlatform は列挙外のIDが指定された場合のエラー。
	ErrUnknownPlatform = errors.New("unknown platform")
	// ErrNotRegistered は列挙内だがアダプタが登録されていない場合のエラー。
	ErrNotRegistered = errors.New("platform adapter not registered")
)

// Registry はプラットフォームIDからアダプタへの対応表。
// 構築後は変更しないため、並行アクセスで保護は不要。
type Registry struct {
	adapters map[model.PlatformID]Adapter
}

// NewRegistry はアダプタ群からRegistryを生成する。
// 列挙外のIDや重複したIDを持つアダプタが含まれる場合はエラーを返す。
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[model.PlatformID]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("nil adapter")
		}
		id := a.ID()
		if !id.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, id)
		}
		if _, dup := r.adapters[id]; dup {
			return nil, fmt.Errorf("duplicate adapter for platform %q", id)
		}
		r.adapters[id] = a
	}
	return r, nil
}

// Resolve はIDに対応するアダプタを返す。
// 既定値へのフォールバックはせず、該当がなければエラーを返す。
func (r *Registry) Resolve(id model.PlatformID) (Adapter, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, id)
	}
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, id)
	}
	return a, nil
}

// IDs は登録済みのプラットフォームIDを列挙順で返す。
func (r *Registry) IDs() []model.PlatformID {
	var ids []model.PlatformID
	for _, id := range model.AllPlatforms() {
		if _, ok := r.adapters[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
