package router

import (
	"net/http"

	"label-voice-app/internal/presentation/di"
	"label-voice-app/internal/presentation/http/middleware"
)

// NewRouter 新しいルーターを作成
func NewRouter(container *di.Container) http.Handler {
	mux := http.NewServeMux()

	// Web UI ハンドラー
	webHandler := container.WebHandler()
	mux.HandleFunc("GET /{$}", webHandler.HandleUploadPage)
	mux.HandleFunc("POST /analyze", webHandler.HandleAnalyze)
	mux.HandleFunc("POST /session/reset", webHandler.HandleResetSession)

	// Label API ハンドラー
	labelHandler := container.LabelHandler()
	mux.HandleFunc("POST /api/v1/labels/analyze", labelHandler.HandleAnalyze)
	mux.HandleFunc("GET /api/v1/labels", labelHandler.HandleList)
	mux.HandleFunc("GET /api/v1/labels/{id}", labelHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/session/budget", labelHandler.HandleBudget)

	// 音声・画像カード（1回だけ配信）
	mux.HandleFunc("GET /artifacts/{id}", labelHandler.HandleArtifact)

	// Health check
	mux.Handle("GET /health", container.HealthHandler())

	// ミドルウェアの適用
	var h http.Handler = mux
	h = middleware.Recovery(h)
	h = middleware.LoggerWithHealthCheck(h)
	h = middleware.RequestID(h)
	h = middleware.CORS(h)

	return h
}
