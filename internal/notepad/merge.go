package notepad

import "strings"

// DateLayout は日付見出しの書式（ISO 8601、ロケール非依存）。
const DateLayout = "2006-01-02"

// Header は日付見出しの行を返す。
func Header(date string) string {
	return "# " + date
}

// MergeResult はMergeの結果。
type MergeResult struct {
	Content string
	Added   []string
	Skipped []string
}

// Changed は内容が変わったかを返す。
func (r MergeResult) Changed() bool {
	return len(r.Added) > 0
}

// Merge は既存の云词本の内容に当日の見出しの下へ単語を挿入した内容を返す。
//
// 見出しは前後の空白を除いて "# <date>" と完全一致する最初の行。なければ先頭に見出しと空行を追加する。
// 単語は入力順に見出しの直後へ1つずつ挿入するため、セクション内では新しい単語ほど上に来る。
// 同じ行が文書のどこかに既にある単語（入力内の重複を含む）は挿入しない。
// 比較は前後の空白を除いて行うが、既存の行は一切書き換えない。
func Merge(content, date string, words []string) MergeResult {
	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
	}
	header := Header(date)

	present := make(map[string]struct{}, len(lines)+len(words))
	headerIdx := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		present[t] = struct{}{}
		if headerIdx == -1 && t == header {
			headerIdx = i
		}
	}

	var res MergeResult
	var toInsert []string
	for _, w := range words {
		key := strings.TrimSpace(w)
		if _, dup := present[key]; dup {
			res.Skipped = append(res.Skipped, w)
			continue
		}
		present[key] = struct{}{}
		toInsert = append(toInsert, key)
		res.Added = append(res.Added, key)
	}

	if len(toInsert) == 0 {
		res.Content = content
		return res
	}

	if headerIdx == -1 {
		lines = append([]string{header, ""}, lines...)
		headerIdx = 0
	}

	// 1語ずつ見出し直後へ挿入した結果と同じになるよう、逆順に並べてまとめて挿入する
	insert := make([]string, len(toInsert))
	for i, w := range toInsert {
		insert[len(toInsert)-1-i] = w
	}
	at := headerIdx + 1
	merged := make([]string, 0, len(lines)+len(insert))
	merged = append(merged, lines[:at]...)
	merged = append(merged, insert...)
	merged = append(merged, lines[at:]...)

	res.Content = strings.Join(merged, "\n")
	return res
}

// InitialContent は新規作成する云词本の内容を返す。
// 見出し、入力順の単語（重複は除く）、末尾の空行からなる。
func InitialContent(date string, words []string) (string, []string) {
	seen := make(map[string]struct{}, len(words))
	added := make([]string, 0, len(words))
	for _, w := range words {
		key := strings.TrimSpace(w)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		added = append(added, key)
	}

	var b strings.Builder
	b.WriteString(Header(date))
	b.WriteByte('\n')
	for _, w := range added {
		b.WriteString(w)
		b.WriteByte('\n')
	}
	return b.String(), added
}
