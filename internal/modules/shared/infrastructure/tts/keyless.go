package tts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
)

// KeylessSynthesizer APIキー不要の台語音声合成API
type KeylessSynthesizer struct {
	httpClient  *http.Client
	apiEndpoint string
}

// NewKeylessSynthesizer 新しいKeylessSynthesizerを作成
func NewKeylessSynthesizer(cfg *config.KeylessConfig) *KeylessSynthesizer {
	return &KeylessSynthesizer{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		apiEndpoint: cfg.Endpoint,
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (s *KeylessSynthesizer) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// Name バックエンド名
func (s *KeylessSynthesizer) Name() string {
	return "dialect-keyless"
}

// Synthesize {"text", "language"} を送って音声ストリームを受け取る
func (s *KeylessSynthesizer) Synthesize(ctx context.Context, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	lang := req.Language
	if lang == "" {
		lang = "nan-TW"
	}

	return postJSON(ctx, s.httpClient, s.Name(), s.apiEndpoint, map[string]string{
		"text":     text,
		"language": lang,
	}, nil)
}
