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

// BearerSynthesizer Bearerトークン認証の台語音声合成API
//
// リクエスト: POST {"text": ..., "voice": ...}
// レスポンス: 音声のバイナリ。入力を受け付けない場合は400を返す
type BearerSynthesizer struct {
	apiKey      string
	voice       string
	httpClient  *http.Client
	apiEndpoint string
}

// NewBearerSynthesizer 新しいBearerSynthesizerを作成
func NewBearerSynthesizer(cfg *config.BearerConfig) *BearerSynthesizer {
	return &BearerSynthesizer{
		apiKey:      cfg.APIKey,
		voice:       cfg.Voice,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		apiEndpoint: cfg.Endpoint,
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (s *BearerSynthesizer) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// Name バックエンド名
func (s *BearerSynthesizer) Name() string {
	return "dialect-bearer"
}

// Synthesize テキストを台語音声に変換する
func (s *BearerSynthesizer) Synthesize(ctx context.Context, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	voice := req.Voice
	if voice == "" {
		voice = s.voice
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)

	return postJSON(ctx, s.httpClient, s.Name(), s.apiEndpoint, map[string]string{
		"text":  text,
		"voice": voice,
	}, header)
}
