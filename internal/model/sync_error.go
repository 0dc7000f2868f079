package model

import (
	"errors"
	"fmt"
)

// ErrorKind はリモート同期失敗の分類。
// 外部APIは成功/失敗の2値のみを返すが、ログとテストのために内部では種別を保持する。
type ErrorKind string

const (
	// KindNone は失敗していないことを示す。
	KindNone ErrorKind = ""
	// KindNetworkUnreachable は接続・タイムアウトなどトランスポート層の失敗。
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	// KindRemoteRejected はリモートが非2xxステータスまたは失敗コードを返した。
	KindRemoteRejected ErrorKind = "remote_rejected"
	// KindUnexpectedShape はレスポンスが期待する形でなかった。
	KindUnexpectedShape ErrorKind = "unexpected_shape"
	// KindNotAuthenticated はセッションまたはトークンが無効。
	KindNotAuthenticated ErrorKind = "not_authenticated"
	// KindInvalidInput は送信前に入力が不正と判定された。
	KindInvalidInput ErrorKind = "invalid_input"
	// KindNotConfigured は認証情報などの設定が不足している。
	KindNotConfigured ErrorKind = "not_configured"
	// KindInternal はアダプタ内部の想定外の失敗（panicの回収を含む）。
	KindInternal ErrorKind = "internal"
)

// SyncError はプラットフォーム呼び出しの失敗を表す。
type SyncError struct {
	Platform PlatformID
	Op       string    // 例: "submit", "probe", "get_notepad"
	Kind     ErrorKind // 失敗の分類
	Status   int       // HTTPステータス（取得できた場合）
	Code     string    // リモートの結果コード（取得できた場合）
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Platform, e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(" (code %s)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap は元のエラーを返す。
func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewSyncError はSyncErrorを生成する。
func NewSyncError(platform PlatformID, op string, kind ErrorKind, err error) *SyncError {
	return &SyncError{Platform: platform, Op: op, Kind: kind, Err: err}
}

// KindOf はエラーチェーンからErrorKindを取り出す。
// nilの場合はKindNone、SyncErrorを含まない場合はKindInternalを返す。
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind はエラーが指定した種別かを返す。
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
