package model

import "time"

// CapturedWord はユーザーが選択して取り込んだ単語を表す。
// Text、CapturedAt、SourceURL、PageContextは取り込み後に変更しない。
// 同期結果の列（Platform以降）のみ更新される。
type CapturedWord struct {
	ID          string
	Text        string
	CapturedAt  time.Time
	SourceURL   string
	PageContext string

	Platform PlatformID
	Status   SyncStatus
	Reason   string
	SyncedAt *time.Time
}

// SyncStatus は取り込み単語の同期状態を表す。
type SyncStatus string

const (
	// SyncStatusPending は同期前。
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced は同期成功。
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusFailed は同期失敗。
	SyncStatusFailed SyncStatus = "failed"
)

// SubmissionResult は1単語の送信結果。
// 外部にはSuccessのみを契約として公開し、KindとReasonは診断用に保持する。
type SubmissionResult struct {
	Platform PlatformID
	Word     string
	Success  bool
	Kind     ErrorKind
	Reason   string
}
