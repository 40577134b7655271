package handler

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/usecase"
)

//go:embed templates
var templateFS embed.FS

// ResultView 結果ページ1画像分の表示データ
type ResultView struct {
	*domain.LabelResult
	AudioSrc  template.URL
	AudioType string
	CardSrc   template.URL
}

// WebHandler Web UIのハンドラー
type WebHandler struct {
	labelUseCase  LabelUseCaseInterface
	speechUseCase SpeechUseCaseInterface
	artifacts     ArtifactStoreInterface
	pages         map[string]*template.Template
}

// NewWebHandler 新しいWebHandlerを作成
func NewWebHandler(
	labelUseCase LabelUseCaseInterface,
	speechUseCase SpeechUseCaseInterface,
	artifacts ArtifactStoreInterface,
) (*WebHandler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"upload.html", "result.html"} {
		tmpl, err := template.ParseFS(templateFS,
			"templates/layout/base.html",
			"templates/layout/header.html",
			"templates/layout/footer.html",
			"templates/pages/"+name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &WebHandler{
		labelUseCase:  labelUseCase,
		speechUseCase: speechUseCase,
		artifacts:     artifacts,
		pages:         pages,
	}, nil
}

// HandleUploadPage アップロード画面を表示
func (h *WebHandler) HandleUploadPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sid := sessionID(w, r)
	data := map[string]interface{}{
		"Title":     "食品標籤解讀",
		"Provider":  h.labelUseCase.ProviderName(),
		"Budget":    h.budget(r, sid),
		"MaxMB":     domain.MaxUploadBytes >> 20,
		"MaxImages": domain.MaxBatchImages,
	}
	h.render(w, "upload.html", data)
}

// HandleAnalyze フォーム送信を処理して結果画面を表示
func (h *WebHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sid := sessionID(w, r)
	uploads, opts, err := readUploads(w, r)
	if err != nil {
		http.Error(w, fmt.Sprintf("上傳失敗：%v", err), http.StatusBadRequest)
		return
	}

	results := h.labelUseCase.ProcessBatch(r.Context(), sid, uploads, opts)

	views := make([]ResultView, 0, len(results))
	for _, res := range results {
		views = append(views, h.toView(res))
	}

	data := map[string]interface{}{
		"Title":   "解讀結果",
		"Results": views,
		"Options": opts,
		"Budget":  h.budget(r, sid),
	}
	h.render(w, "result.html", data)
}

// HandleResetSession セッションを作り直して台語音声の回数を戻す
func (h *WebHandler) HandleResetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if c, err := r.Cookie(SessionCookieName); err == nil && validSessionID(c.Value) {
		if err := h.speechUseCase.ResetSession(r.Context(), c.Value); err != nil {
			slog.Warn("failed to reset session budget", "session", c.Value, "error", err)
		}
	}
	newSession(w)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// toView 音声と画像カードはページに直接埋め込み、一時ファイルはその場で消す
func (h *WebHandler) toView(res *domain.LabelResult) ResultView {
	view := ResultView{LabelResult: res}

	if res.HasAudio() {
		if data, err := h.artifacts.ReadAndDelete(res.AudioArtifactID); err == nil {
			view.AudioType = res.AudioFormat.ContentType()
			view.AudioSrc = dataURI(view.AudioType, data)
		} else {
			slog.Warn("audio artifact missing", "id", res.AudioArtifactID, "error", err)
		}
	}

	if res.HasCard() {
		if data, err := h.artifacts.ReadAndDelete(res.CardArtifactID); err == nil {
			view.CardSrc = dataURI("image/png", data)
		} else {
			slog.Warn("card artifact missing", "id", res.CardArtifactID, "error", err)
		}
	}

	return view
}

func (h *WebHandler) budget(r *http.Request, sid string) *usecase.BudgetStatus {
	status, err := h.speechUseCase.BudgetStatus(r.Context(), sid)
	if err != nil {
		slog.Warn("failed to read budget", "session", sid, "error", err)
		return nil
	}
	return status
}

func (h *WebHandler) render(w http.ResponseWriter, page string, data map[string]interface{}) {
	tmpl, ok := h.pages[page]
	if !ok {
		http.Error(w, "Unknown page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		http.Error(w, fmt.Sprintf("Failed to render template: %v", err), http.StatusInternalServerError)
		return
	}
}

func dataURI(contentType string, data []byte) template.URL {
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
