package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/wordsync/internal/capture"
	"github.com/hitoshi/wordsync/internal/middleware"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/platform"
	"github.com/hitoshi/wordsync/internal/syncer"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// toAPIError はサービス層のエラーをAPIErrorに変換する。変換できない場合はnilを返す。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, platform.ErrMultilineWord):
		return model.NewInvalidWordError("改行を含んでいます")
	case errors.Is(err, capture.ErrNoWordDetected), errors.Is(err, platform.ErrEmptyWord):
		return model.NewNoWordDetectedError()
	case errors.Is(err, capture.ErrInvalidSourceURL):
		return model.NewInvalidURLError("http または https のURLではありません")
	case errors.Is(err, syncer.ErrSentenceDisabled):
		return model.NewSentenceDisabledError()
	}

	var se *model.SyncError
	if errors.As(err, &se) {
		switch se.Kind {
		case model.KindInvalidInput:
			reason := string(se.Kind)
			if se.Err != nil {
				reason = se.Err.Error()
			}
			return model.NewInvalidWordError(reason)
		case model.KindNotConfigured:
			return model.NewPlatformUnavailableError(se.Platform)
		}
	}
	return nil
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnknownPlatform:
		return http.StatusNotFound
	case model.ErrCodeInvalidWord, model.ErrCodeInvalidURL, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeNoWordDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSentenceDisabled:
		return http.StatusConflict
	case model.ErrCodePlatformUnavailable:
		return http.StatusServiceUnavailable
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
