package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"label-voice-app/internal/config"
)

// translatePrompt Taigi-Llama-2-Translatorの入力形式
const translatePrompt = "[TRANS]\n%s\n[/TRANS]\n[%s]\n"

// HuggingFaceTranslator Hugging Face Inference API経由の台語翻訳
type HuggingFaceTranslator struct {
	apiKey       string
	model        string
	target       string
	maxNewTokens int
	httpClient   *http.Client
	apiEndpoint  string
}

// NewHuggingFaceTranslator 新しいHuggingFaceTranslatorを作成
func NewHuggingFaceTranslator(cfg *config.HuggingFaceConfig) *HuggingFaceTranslator {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api-inference.huggingface.co"
	}

	target := strings.ToUpper(cfg.Target)
	switch target {
	case "HAN", "POJ", "ZH", "HL":
	default:
		target = "POJ"
	}

	return &HuggingFaceTranslator{
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		target:       target,
		maxNewTokens: cfg.MaxNewTokens,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		apiEndpoint:  base + "/models/" + cfg.Model,
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (t *HuggingFaceTranslator) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

// BuildPrompt 翻訳モデルに渡すプロンプトを作る
func BuildPrompt(source, target string) string {
	return fmt.Sprintf(translatePrompt, source, target)
}

// TranslateToDialect 要約を指定の表記（既定はPOJ）へ翻訳する
func (t *HuggingFaceTranslator) TranslateToDialect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is empty")
	}

	parameters := map[string]interface{}{
		"return_full_text":   false,
		"repetition_penalty": 1.1,
		"do_sample":          false,
	}
	if t.maxNewTokens > 0 {
		parameters["max_new_tokens"] = t.maxNewTokens
	}

	requestBody := map[string]interface{}{
		"inputs":     BuildPrompt(text, t.target),
		"parameters": parameters,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiEndpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", newAPIError("huggingface", resp)
	}

	var response []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response) == 0 {
		return "", nil
	}
	return strings.TrimSpace(response[0].GeneratedText), nil
}
