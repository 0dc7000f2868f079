package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, platform, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnknownPlatform     = "UNKNOWN_PLATFORM"
	ErrCodeInvalidWord         = "INVALID_WORD"
	ErrCodeNoWordDetected      = "NO_WORD_DETECTED"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeSentenceDisabled    = "SENTENCE_DISABLED"
	ErrCodePlatformUnavailable = "PLATFORM_UNAVAILABLE"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// NewUnknownPlatformError は列挙外のプラットフォーム指定エラーを生成する。
func NewUnknownPlatformError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownPlatform,
		Message:  fmt.Sprintf("未対応のプラットフォームです: %s", id),
		Category: "validation",
		Action:   "shanbay、bbdc、momo、baicizhan のいずれかを指定してください。",
	}
}

// NewInvalidWordError は単語の形式が不正な場合のエラーを生成する。
func NewInvalidWordError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWord,
		Message:  fmt.Sprintf("単語の形式が不正です: %s", reason),
		Category: "validation",
		Action:   "改行を含まない1語または短いフレーズを指定してください。",
	}
}

// NewNoWordDetectedError は選択テキストから単語を検出できなかった場合のエラーを生成する。
func NewNoWordDetectedError() *APIError {
	return &APIError{
		Code:     ErrCodeNoWordDetected,
		Message:  "単語を検出できませんでした。",
		Category: "validation",
		Action:   "英単語または2語以内のフレーズを選択してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSentenceDisabledError は例文追加が無効な場合のエラーを生成する。
func NewSentenceDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeSentenceDisabled,
		Message:  "例文の追加は無効になっています。",
		Category: "validation",
		Action:   "設定ファイルで sentence_enabled を true にしてください。",
	}
}

// NewPlatformUnavailableError はプラットフォームが登録されていない場合のエラーを生成する。
func NewPlatformUnavailableError(id PlatformID) *APIError {
	return &APIError{
		Code:     ErrCodePlatformUnavailable,
		Message:  fmt.Sprintf("プラットフォームが利用できません: %s", id),
		Category: "platform",
		Action:   "認証情報（Cookieまたはトークン）が設定されているか確認してください。",
	}
}

// NewUnauthorizedError はAPIトークンが無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "APIトークンが無効です。",
		Category: "auth",
		Action:   "Authorization: Bearer ヘッダーに WORDSYNC_API_TOKEN の値を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディが不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}
