package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/usecase"
	"label-voice-app/internal/modules/shared/infrastructure/storage"
)

// LabelHandler ラベル解読APIのハンドラー
type LabelHandler struct {
	labelUseCase  LabelUseCaseInterface
	speechUseCase SpeechUseCaseInterface
	artifacts     ArtifactStoreInterface

	// publicHistory falseの間は呼び出し元セッションの履歴しか返さない
	publicHistory bool
}

// NewLabelHandler 新しいLabelHandlerを作成
func NewLabelHandler(
	labelUseCase LabelUseCaseInterface,
	speechUseCase SpeechUseCaseInterface,
	artifacts ArtifactStoreInterface,
) *LabelHandler {
	return &LabelHandler{
		labelUseCase:  labelUseCase,
		speechUseCase: speechUseCase,
		artifacts:     artifacts,
	}
}

// SetPublicHistory 全セッションの履歴参照を許可するかどうか
func (h *LabelHandler) SetPublicHistory(enabled bool) {
	h.publicHistory = enabled
}

// AnalyzeResponse 解読APIレスポンス
type AnalyzeResponse struct {
	Success   bool                  `json:"success"`
	SessionID string                `json:"session_id,omitempty"`
	Provider  string                `json:"provider,omitempty"`
	Results   []LabelResultResponse `json:"results,omitempty"`
	Budget    *usecase.BudgetStatus `json:"budget,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// LabelResultResponse 1画像分の結果
type LabelResultResponse struct {
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	Interpretation string `json:"interpretation,omitempty"`
	Summary        string `json:"summary,omitempty"`
	PlainText      string `json:"plain_text,omitempty"`
	Highlighted    string `json:"highlighted_html,omitempty"`
	SpokenText     string `json:"spoken_text,omitempty"`
	Translated     bool   `json:"translated"`
	AudioURL       string `json:"audio_url,omitempty"`
	AudioFormat    string `json:"audio_format,omitempty"`
	AudioNotice    string `json:"audio_notice,omitempty"`
	CardURL        string `json:"card_url,omitempty"`
	CardNotice     string `json:"card_notice,omitempty"`
	RecordID       string `json:"record_id,omitempty"`
}

// RecordResponse 履歴1件
type RecordResponse struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	Interpretation string    `json:"interpretation,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	SpokenText     string    `json:"spoken_text,omitempty"`
	Voice          string    `json:"voice"`
	AudioFormat    string    `json:"audio_format,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecordsResponse 履歴APIレスポンス
type RecordsResponse struct {
	Success bool             `json:"success"`
	Record  *RecordResponse  `json:"record,omitempty"`
	Records []RecordResponse `json:"records,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// HandleAnalyze 画像解読ハンドラー（複数画像対応）
func (h *LabelHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	sid := sessionID(w, r)

	uploads, opts, err := readUploads(w, r)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := h.labelUseCase.ProcessBatch(ctx, sid, uploads, opts)

	response := AnalyzeResponse{
		Success:   true,
		SessionID: sid,
		Provider:  h.labelUseCase.ProviderName(),
		Results:   make([]LabelResultResponse, 0, len(results)),
	}
	for _, res := range results {
		response.Results = append(response.Results, toResultResponse(res))
	}

	if budget, err := h.speechUseCase.BudgetStatus(ctx, sid); err == nil {
		response.Budget = budget
	} else {
		slog.Warn("failed to read budget", "session", sid, "error", err)
	}

	h.sendJSON(w, http.StatusOK, response)
}

// HandleList 履歴一覧ハンドラー
func (h *LabelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	var (
		records []*domain.LabelRecord
		err     error
	)
	if query.Get("scope") == "all" {
		if !h.publicHistory {
			h.sendError(w, "History of other sessions is not available", http.StatusForbidden)
			return
		}
		records, err = h.labelUseCase.ListRecords(r.Context(), limit, offset)
	} else {
		records, err = h.labelUseCase.ListSessionRecords(r.Context(), sessionID(w, r), limit)
	}
	if err != nil {
		slog.Error("failed to list records", "error", err)
		h.sendError(w, "Failed to list records", http.StatusInternalServerError)
		return
	}

	response := RecordsResponse{
		Success: true,
		Records: make([]RecordResponse, 0, len(records)),
	}
	for _, rec := range records {
		response.Records = append(response.Records, toRecordResponse(rec))
	}
	h.sendJSON(w, http.StatusOK, response)
}

// HandleGet 履歴1件取得ハンドラー
func (h *LabelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		h.sendError(w, "ID is required", http.StatusBadRequest)
		return
	}

	record, err := h.labelUseCase.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			h.sendError(w, "Record not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to get record", "id", id, "error", err)
		h.sendError(w, "Failed to get record", http.StatusInternalServerError)
		return
	}
	// 他セッションの履歴は存在しないものとして扱う
	if !h.publicHistory && record.SessionID != sessionID(w, r) {
		h.sendError(w, "Record not found", http.StatusNotFound)
		return
	}

	rec := toRecordResponse(record)
	h.sendJSON(w, http.StatusOK, RecordsResponse{Success: true, Record: &rec})
}

// HandleBudget 台語音声の残り回数ハンドラー
func (h *LabelHandler) HandleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sid := sessionID(w, r)
	budget, err := h.speechUseCase.BudgetStatus(r.Context(), sid)
	if err != nil {
		slog.Error("failed to read budget", "session", sid, "error", err)
		h.sendError(w, "Failed to read budget", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, http.StatusOK, AnalyzeResponse{
		Success:   true,
		SessionID: sid,
		Budget:    budget,
	})
}

// HandleArtifact 音声・画像カードを1回だけ配信する
func (h *LabelHandler) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if err := h.artifacts.Serve(w, id); err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			http.Error(w, "Artifact not found", http.StatusNotFound)
			return
		}
		slog.Error("failed to serve artifact", "id", id, "error", err)
	}
}

func toResultResponse(res *domain.LabelResult) LabelResultResponse {
	out := LabelResultResponse{
		Filename:       res.Filename,
		Status:         string(res.Status),
		Error:          res.ErrorMessage,
		Interpretation: res.Interpretation,
		Summary:        res.Summary,
		PlainText:      res.PlainText,
		Highlighted:    string(res.Highlighted),
		SpokenText:     res.SpokenText,
		Translated:     res.Translated,
		AudioNotice:    res.AudioNotice,
		CardNotice:     res.CardNotice,
		RecordID:       res.RecordID,
	}
	if res.HasAudio() {
		out.AudioURL = artifactURL(res.AudioArtifactID)
		out.AudioFormat = string(res.AudioFormat)
	}
	if res.HasCard() {
		out.CardURL = artifactURL(res.CardArtifactID)
	}
	return out
}

func toRecordResponse(rec *domain.LabelRecord) RecordResponse {
	return RecordResponse{
		ID:             rec.ID,
		SessionID:      rec.SessionID,
		Filename:       rec.Filename,
		Status:         string(rec.Status),
		Error:          rec.ErrorMessage,
		Interpretation: rec.Interpretation,
		Summary:        rec.Summary,
		SpokenText:     rec.SpokenText,
		Voice:          string(rec.Voice),
		AudioFormat:    string(rec.AudioFormat),
		CreatedAt:      rec.CreatedAt,
	}
}

func artifactURL(id string) string {
	return "/artifacts/" + id
}

func (h *LabelHandler) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendError エラーレスポンスを送信
func (h *LabelHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, statusCode, AnalyzeResponse{
		Success: false,
		Error:   message,
	})
}
