package model

// NotepadStatus は墨墨云词本の公開状態。
type NotepadStatus string

const (
	NotepadStatusPublished   NotepadStatus = "PUBLISHED"
	NotepadStatusUnpublished NotepadStatus = "UNPUBLISHED"
	NotepadStatusDraft       NotepadStatus = "DRAFT"
)

// Notepad は墨墨云词本（ユーザーごとに1つ使う共有テキストドキュメント）を表す。
// Contentは改行区切りで、"# YYYY-MM-DD" 形式の日付見出しでセクションに分かれる。
type Notepad struct {
	ID      string        `json:"id,omitempty"`
	Status  NotepadStatus `json:"status"`
	Content string        `json:"content"`
	Title   string        `json:"title"`
	Brief   string        `json:"brief"`
	Tags    []string      `json:"tags"`
}

// MergeOutcome は云词本への単語追加の結果。
// Skippedには既に文書内に存在したため追加しなかった単語が入る（エラーではない）。
type MergeOutcome struct {
	NotepadID string
	Created   bool
	Added     []string
	Skipped   []string
	Message   string
}

// AttachStatus は例文追加の単語ごとの結果。
type AttachStatus string

const (
	// AttachStatusAttached は例文の追加に成功した。
	AttachStatusAttached AttachStatus = "attached"
	// AttachStatusLookupFailed は単語IDの検索に失敗した。
	AttachStatusLookupFailed AttachStatus = "lookup_failed"
	// AttachStatusPhraseFailed は単語IDは得られたが例文の作成に失敗した。
	AttachStatusPhraseFailed AttachStatus = "phrase_failed"
)

// AttachResult は1単語に対する例文追加の結果。
type AttachResult struct {
	Word   string
	Status AttachStatus
	Err    error
}

// AttachReport は複数単語への例文追加の集計結果。
// 1件でも成功すればSuccessはtrue（ベストエフォート）。失敗分もResultsに残す。
type AttachReport struct {
	Success bool
	Results []AttachResult
}

// Failed は失敗した単語の結果のみを返す。
func (r AttachReport) Failed() []AttachResult {
	var out []AttachResult
	for _, res := range r.Results {
		if res.Status != AttachStatusAttached {
			out = append(out, res)
		}
	}
	return out
}
