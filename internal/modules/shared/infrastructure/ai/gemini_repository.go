package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/service"
)

// GeminiRepository Gemini generateContent APIのリポジトリ実装
type GeminiRepository struct {
	apiKey      string
	model       string
	httpClient  *http.Client
	apiEndpoint string // テスト用にエンドポイントを差し替え可能に
}

// NewGeminiRepository 新しいGeminiRepositoryを作成
func NewGeminiRepository(cfg *config.GeminiConfig) *GeminiRepository {
	client := &http.Client{}
	if cfg.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}

	return &GeminiRepository{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		httpClient:  client,
		apiEndpoint: base,
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (r *GeminiRepository) SetHTTPClient(client *http.Client) {
	r.httpClient = client
}

// ProviderName プロバイダー名を返す
func (r *GeminiRepository) ProviderName() string {
	return "Google Gemini"
}

// InterpretLabel 指示文と画像を1回だけ送信して解読テキストを得る
func (r *GeminiRepository) InterpretLabel(ctx context.Context, img *domain.NormalizedImage) (*domain.Interpretation, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, domain.ErrEmptyImage
	}

	parts := []map[string]interface{}{
		{"text": service.LabelInstruction},
		{
			"inline_data": map[string]string{
				"mime_type": img.MediaType,
				"data":      base64.StdEncoding.EncodeToString(img.Data),
			},
		},
	}

	resp, err := r.generate(ctx, parts)
	if err != nil {
		return nil, err
	}

	return domain.NewInterpretation(
		resp.text(),
		resp.UsageMetadata.PromptTokenCount,
		resp.UsageMetadata.CandidatesTokenCount,
		r.model,
	), nil
}

// TranslateToDialect 要約を台語の羅馬字へ翻訳する
func (r *GeminiRepository) TranslateToDialect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is empty")
	}

	parts := []map[string]interface{}{
		{"text": service.DialectInstruction + text},
	}

	resp, err := r.generate(ctx, parts)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.text()), nil
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// text 最初の候補のテキストパートを連結する（候補がなければ空文字）
func (g *generateResponse) text() string {
	if len(g.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range g.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// generate generateContentの共通処理
func (r *GeminiRepository) generate(ctx context.Context, parts []map[string]interface{}) (*generateResponse, error) {
	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		r.apiEndpoint, url.PathEscape(r.model), url.QueryEscape(r.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError("gemini", resp)
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}
