package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/wordsync/internal/config"
	"github.com/hitoshi/wordsync/internal/model"
	"github.com/hitoshi/wordsync/internal/syncer"
)

// --- モック定義 ---

// mockSyncService はSyncServiceのモック実装。
type mockSyncService struct {
	captureFn        func(ctx context.Context, req syncer.CaptureRequest) (syncer.CaptureResult, error)
	listRecentFn     func(ctx context.Context, limit int) ([]*model.CapturedWord, error)
	submitWordsFn    func(ctx context.Context, words []string) (model.MergeOutcome, error)
	attachSentenceFn func(ctx context.Context, words []string, sentence, translation string) (model.AttachReport, error)
	probeAuthFn      func(ctx context.Context, id model.PlatformID) bool
	probeAllFn       func(ctx context.Context) map[model.PlatformID]bool
	prefs            config.Preferences
}

func (m *mockSyncService) Capture(ctx context.Context, req syncer.CaptureRequest) (syncer.CaptureResult, error) {
	if m.captureFn != nil {
		return m.captureFn(ctx, req)
	}
	return syncer.CaptureResult{}, nil
}

func (m *mockSyncService) ListRecent(ctx context.Context, limit int) ([]*model.CapturedWord, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockSyncService) SubmitWords(ctx context.Context, words []string) (model.MergeOutcome, error) {
	if m.submitWordsFn != nil {
		return m.submitWordsFn(ctx, words)
	}
	return model.MergeOutcome{}, nil
}

func (m *mockSyncService) AttachSentence(ctx context.Context, words []string, sentence, translation string) (model.AttachReport, error) {
	if m.attachSentenceFn != nil {
		return m.attachSentenceFn(ctx, words, sentence, translation)
	}
	return model.AttachReport{}, nil
}

func (m *mockSyncService) ProbeAuth(ctx context.Context, id model.PlatformID) bool {
	if m.probeAuthFn != nil {
		return m.probeAuthFn(ctx, id)
	}
	return false
}

func (m *mockSyncService) ProbeAll(ctx context.Context) map[model.PlatformID]bool {
	if m.probeAllFn != nil {
		return m.probeAllFn(ctx)
	}
	return map[model.PlatformID]bool{}
}

func (m *mockSyncService) Preferences() config.Preferences {
	return m.prefs
}

// --- テストヘルパー ---

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeJSON はレスポンスボディを任意の型にデコードするヘルパー。
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
