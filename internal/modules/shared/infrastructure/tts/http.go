package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"label-voice-app/internal/modules/label/domain"
)

// maxAudioBytes 受け取る音声の上限
const maxAudioBytes = 32 << 20

// newAPIError 2xx以外のレスポンスをdomain.APIErrorにする（400はErrUnsupportedInputとして判定される）
func newAPIError(service string, resp *http.Response) *domain.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed struct {
		Error   interface{} `json:"error"`
		Message string      `json:"message"`
		Detail  string      `json:"detail"`
	}
	message := ""
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch e := parsed.Error.(type) {
		case string:
			message = e
		case map[string]interface{}:
			if m, ok := e["message"].(string); ok {
				message = m
			}
		}
		if message == "" {
			message = parsed.Message
		}
		if message == "" {
			message = parsed.Detail
		}
	}

	return &domain.APIError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(body)),
		Message:    message,
	}
}

// postJSON JSONをPOSTして音声のバイト列を受け取る共通処理
func postJSON(ctx context.Context, client *http.Client, service, endpoint string, payload interface{}, header http.Header) (*domain.AudioArtifact, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(service, resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s audio: %w", service, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s returned empty audio", service)
	}

	return domain.NewAudioArtifact(data, resp.Header.Get("Content-Type")), nil
}
