package router

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"label-voice-app/internal/config"
	"label-voice-app/internal/presentation/di"
)

const testSessionID = "0b8f3c5e-6d1a-4f2b-9c3d-7e8f9a0b1c2d"

// newUpstream GeminiとgTTSの代わりに応答するサーバー
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1beta/models/"):
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"candidates": []map[string]interface{}{
					{"content": map[string]interface{}{
						"parts": []map[string]string{{"text": "## 成分\n- 鹽：調味用。\n\n總結說明：這是**鹽**。"}},
					}},
				},
			})
		case r.URL.Path == "/translate_tts":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3fake-mp3"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	upstream := newUpstream(t)

	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = false
	cfg.MySQL.Enabled = false
	cfg.Telegram.Enabled = false
	cfg.Artifacts.Dir = t.TempDir()
	cfg.Gemini.APIKey = "test-api-key"
	cfg.Gemini.BaseURL = upstream.URL
	cfg.Speech.GTTS.BaseURL = upstream.URL

	container, err := di.NewContainer(cfg)
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })

	return NewRouter(container)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 200, B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func analyzeRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("images", "label.png")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	_, _ = part.Write(pngBytes(t))
	_ = writer.WriteField("voice", "majority")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Session-ID", testSessionID)
	return req
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"provider":"Google Gemini"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "異常系: GET /analyze", method: http.MethodGet, path: "/analyze"},
		{name: "異常系: GET /session/reset", method: http.MethodGet, path: "/session/reset"},
		{name: "異常系: PUT /api/v1/labels/analyze", method: http.MethodPut, path: "/api/v1/labels/analyze"},
		{name: "異常系: DELETE /api/v1/labels", method: http.MethodDelete, path: "/api/v1/labels"},
		{name: "異常系: POST /health", method: http.MethodPost, path: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
			}
		})
	}
}

func TestRouter_NotFoundEndpoint(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		path string
	}{
		{name: "異常系: 存在しないパス", path: "/not-found"},
		{name: "異常系: /api/v1/unknown", path: "/api/v1/unknown"},
		{name: "異常系: /api/v2/labels", path: "/api/v2/labels"},
		{name: "異常系: 存在しない履歴", path: "/api/v1/labels/missing"},
		{name: "異常系: 存在しない一時ファイル", path: "/artifacts/missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Errorf("Expected status %d, got %d", http.StatusNotFound, rec.Code)
			}
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/labels/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS header '*', got '%s'", got)
	}
}

func TestRouter_UploadPage(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `name="images"`) {
		t.Error("upload form not rendered")
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("session cookie not issued")
	}
}

func TestRouter_AnalyzeAndServeArtifactOnce(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, analyzeRequest(t, "/api/v1/labels/analyze"))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var response struct {
		Success   bool   `json:"success"`
		SessionID string `json:"session_id"`
		Results   []struct {
			Status    string `json:"status"`
			PlainText string `json:"plain_text"`
			AudioURL  string `json:"audio_url"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !response.Success || response.SessionID != testSessionID {
		t.Fatalf("unexpected response: %+v", response)
	}
	if len(response.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(response.Results))
	}
	result := response.Results[0]
	if result.Status != "ok" {
		t.Fatalf("status = %s, want ok", result.Status)
	}
	if result.PlainText != "這是鹽。" {
		t.Errorf("plain_text = %q", result.PlainText)
	}
	if result.AudioURL == "" {
		t.Fatal("audio_url is empty")
	}

	// 1回目は配信され、2回目は削除済み
	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, result.AudioURL, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first fetch status = %d", first.Code)
	}
	if first.Header().Get("Content-Type") != "audio/mpeg" {
		t.Errorf("Content-Type = %s", first.Header().Get("Content-Type"))
	}
	if first.Body.String() != "ID3fake-mp3" {
		t.Errorf("audio body = %q", first.Body.String())
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, result.AudioURL, nil))
	if second.Code != http.StatusNotFound {
		t.Errorf("second fetch status = %d, want %d", second.Code, http.StatusNotFound)
	}
}

func TestRouter_WebAnalyze(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, analyzeRequest(t, "/analyze"))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "這是鹽。") {
		t.Error("summary not rendered")
	}
	if !strings.Contains(body, "data:audio/mpeg;base64,") {
		t.Error("audio not embedded")
	}
}

func TestRouter_BudgetAndHistory(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/budget", nil)
	req.Header.Set("X-Session-ID", testSessionID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("budget status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"remaining":5`) {
		t.Errorf("unexpected budget body: %s", rec.Body.String())
	}

	// MySQL無効時の履歴は空
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("unexpected list body: %s", rec.Body.String())
	}
}
