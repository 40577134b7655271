package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/usecase"
	"label-voice-app/internal/modules/shared/infrastructure/storage"
)

const testSessionID = "7f1c2d0e-3b4a-4c5d-8e9f-0a1b2c3d4e5f"

// MockLabelUseCase モックラベル解読ユースケース
type MockLabelUseCase struct {
	ProcessBatchFunc func(ctx context.Context, sessionID string, uploads []domain.UploadedImage, opts domain.Options) []*domain.LabelResult
	GetRecordFunc    func(ctx context.Context, id string) (*domain.LabelRecord, error)
	ListFunc         func(ctx context.Context, limit, offset int) ([]*domain.LabelRecord, error)
	ListSessionFunc  func(ctx context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error)

	lastSession string
	lastUploads []domain.UploadedImage
	lastOpts    domain.Options
}

func (m *MockLabelUseCase) ProcessBatch(ctx context.Context, sessionID string, uploads []domain.UploadedImage, opts domain.Options) []*domain.LabelResult {
	m.lastSession = sessionID
	m.lastUploads = uploads
	m.lastOpts = opts
	if m.ProcessBatchFunc != nil {
		return m.ProcessBatchFunc(ctx, sessionID, uploads, opts)
	}
	results := make([]*domain.LabelResult, 0, len(uploads))
	for _, u := range uploads {
		results = append(results, &domain.LabelResult{
			Filename:        u.Filename,
			Status:          domain.StatusOK,
			Summary:         "這是鹽。",
			PlainText:       "這是鹽。",
			AudioArtifactID: "audio-1",
			AudioFormat:     domain.AudioMP3,
			CardArtifactID:  "card-1",
		})
	}
	return results
}

func (m *MockLabelUseCase) GetRecord(ctx context.Context, id string) (*domain.LabelRecord, error) {
	if m.GetRecordFunc != nil {
		return m.GetRecordFunc(ctx, id)
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MockLabelUseCase) ListRecords(ctx context.Context, limit, offset int) ([]*domain.LabelRecord, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *MockLabelUseCase) ListSessionRecords(ctx context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error) {
	if m.ListSessionFunc != nil {
		return m.ListSessionFunc(ctx, sessionID, limit)
	}
	return nil, nil
}

func (m *MockLabelUseCase) ProviderName() string {
	return "Mock Provider"
}

// MockSpeechUseCase モック予算管理
type MockSpeechUseCase struct {
	BudgetFunc func(ctx context.Context, sessionID string) (*usecase.BudgetStatus, error)
	resets     []string
}

func (m *MockSpeechUseCase) BudgetStatus(ctx context.Context, sessionID string) (*usecase.BudgetStatus, error) {
	if m.BudgetFunc != nil {
		return m.BudgetFunc(ctx, sessionID)
	}
	return &usecase.BudgetStatus{Used: 1, Limit: 5, Remaining: 4}, nil
}

func (m *MockSpeechUseCase) ResetSession(_ context.Context, sessionID string) error {
	m.resets = append(m.resets, sessionID)
	return nil
}

// MockArtifactStore モック一時ファイル
type MockArtifactStore struct {
	items map[string][]byte
}

func newMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{items: map[string][]byte{
		"audio-1": []byte("ID3audio"),
		"card-1":  []byte("\x89PNG"),
	}}
}

func (m *MockArtifactStore) Serve(w http.ResponseWriter, id string) error {
	data, ok := m.items[id]
	if !ok {
		return storage.ErrArtifactNotFound
	}
	delete(m.items, id)
	w.Header().Set("Content-Type", "audio/mpeg")
	_, err := w.Write(data)
	return err
}

func (m *MockArtifactStore) ReadAndDelete(id string) ([]byte, error) {
	data, ok := m.items[id]
	if !ok {
		return nil, storage.ErrArtifactNotFound
	}
	delete(m.items, id)
	return data, nil
}

type multipartFile struct {
	name string
	data []byte
}

func newMultipartRequest(t *testing.T, path string, files []multipartFile, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := writer.CreateFormFile("images", f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestLabelHandler_HandleAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		files      []multipartFile
		fields     map[string]string
		wantStatus int
		wantCount  int
	}{
		{
			name:       "正常系: 複数画像",
			files:      []multipartFile{{"a.png", []byte("a")}, {"b.png", []byte("b")}},
			fields:     map[string]string{"voice": "dialect-with-fallback", "speed": "slow", "detail": "full"},
			wantStatus: http.StatusOK,
			wantCount:  2,
		},
		{
			name:       "異常系: 画像なし",
			fields:     map[string]string{"voice": "majority"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "異常系: 不明な音声オプション",
			files:      []multipartFile{{"a.png", []byte("a")}},
			fields:     map[string]string{"voice": "klingon"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &MockLabelUseCase{}
			h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

			req := newMultipartRequest(t, "/api/v1/labels/analyze", tt.files, tt.fields)
			req.Header.Set(SessionHeader, testSessionID)
			rec := httptest.NewRecorder()

			h.HandleAnalyze(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			var resp AnalyzeResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			if tt.wantStatus != http.StatusOK {
				require.False(t, resp.Success)
				require.NotEmpty(t, resp.Error)
				return
			}

			require.True(t, resp.Success)
			require.Equal(t, testSessionID, resp.SessionID)
			require.Equal(t, testSessionID, uc.lastSession)
			require.Len(t, resp.Results, tt.wantCount)
			require.Equal(t, "/artifacts/audio-1", resp.Results[0].AudioURL)
			require.Equal(t, "mp3", resp.Results[0].AudioFormat)
			require.Equal(t, "/artifacts/card-1", resp.Results[0].CardURL)
			require.Equal(t, 4, resp.Budget.Remaining)
			require.Equal(t, domain.VoiceDialectWithFallback, uc.lastOpts.Voice)
			require.Equal(t, domain.SpeedSlow, uc.lastOpts.Speed)
			require.Equal(t, domain.DetailFull, uc.lastOpts.Detail)
		})
	}
}

func TestLabelHandler_HandleAnalyze_OversizeReachesUseCase(t *testing.T) {
	uc := &MockLabelUseCase{
		ProcessBatchFunc: func(_ context.Context, _ string, uploads []domain.UploadedImage, _ domain.Options) []*domain.LabelResult {
			return []*domain.LabelResult{{
				Filename:     uploads[0].Filename,
				Status:       domain.StatusRejected,
				ErrorMessage: domain.MsgImageTooLarge,
			}}
		},
	}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	big := bytes.Repeat([]byte{0xff}, 6<<20)
	req := newMultipartRequest(t, "/api/v1/labels/analyze", []multipartFile{{"big.jpg", big}}, nil)
	rec := httptest.NewRecorder()

	h.HandleAnalyze(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, uc.lastUploads, 1)
	require.True(t, uc.lastUploads[0].ExceedsLimit())
	require.LessOrEqual(t, len(uc.lastUploads[0].Data), domain.MaxUploadBytes+1)

	var resp AnalyzeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "rejected", resp.Results[0].Status)
	require.Equal(t, domain.MsgImageTooLarge, resp.Results[0].Error)
}

func TestLabelHandler_HandleAnalyze_LargeBatchReportedPerImage(t *testing.T) {
	uc := &MockLabelUseCase{}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	// 合計はフォーム全体の上限を超えないが、1枚ごとの上限は大きく超える
	big := bytes.Repeat([]byte{0xff}, 33<<20)
	files := []multipartFile{{"big1.jpg", big}, {"big2.jpg", big}, {"small.png", []byte("a")}}
	req := newMultipartRequest(t, "/api/v1/labels/analyze", files, map[string]string{"voice": "majority"})
	rec := httptest.NewRecorder()

	h.HandleAnalyze(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, uc.lastUploads, 3)
	for _, u := range uc.lastUploads[:2] {
		require.True(t, u.ExceedsLimit())
		require.Equal(t, int64(33<<20), u.Size)
		require.Len(t, u.Data, domain.MaxUploadBytes+1)
	}
	require.False(t, uc.lastUploads[2].ExceedsLimit())
	require.Equal(t, "small.png", uc.lastUploads[2].Filename)
}

func TestLabelHandler_HandleAnalyze_TooManyImages(t *testing.T) {
	uc := &MockLabelUseCase{}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	files := make([]multipartFile, 0, domain.MaxBatchImages+1)
	for i := 0; i <= domain.MaxBatchImages; i++ {
		files = append(files, multipartFile{fmt.Sprintf("%d.png", i), []byte("a")})
	}
	req := newMultipartRequest(t, "/api/v1/labels/analyze", files, nil)
	rec := httptest.NewRecorder()

	h.HandleAnalyze(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, uc.lastUploads)

	var resp AnalyzeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp.Error, "at most")
}

func TestLabelHandler_SessionCookieIssued(t *testing.T) {
	uc := &MockLabelUseCase{}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	req := newMultipartRequest(t, "/api/v1/labels/analyze", []multipartFile{{"a.png", []byte("a")}}, nil)
	rec := httptest.NewRecorder()

	h.HandleAnalyze(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.Equal(t, cookies[0].Value, uc.lastSession)
	require.True(t, cookies[0].HttpOnly)
}

func TestLabelHandler_MethodNotAllowed(t *testing.T) {
	h := NewLabelHandler(&MockLabelUseCase{}, &MockSpeechUseCase{}, newMockArtifactStore())

	tests := []struct {
		name    string
		method  string
		handler http.HandlerFunc
	}{
		{name: "異常系: GET analyze", method: http.MethodGet, handler: h.HandleAnalyze},
		{name: "異常系: POST list", method: http.MethodPost, handler: h.HandleList},
		{name: "異常系: DELETE get", method: http.MethodDelete, handler: h.HandleGet},
		{name: "異常系: POST budget", method: http.MethodPost, handler: h.HandleBudget},
		{name: "異常系: POST artifact", method: http.MethodPost, handler: h.HandleArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			rec := httptest.NewRecorder()
			tt.handler(rec, req)
			require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		})
	}
}

func TestLabelHandler_HandleList(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	record := &domain.LabelRecord{ID: "r1", SessionID: testSessionID, Filename: "a.png", Status: domain.StatusOK, Voice: domain.VoiceMajority, CreatedAt: created}

	var gotLimit, gotOffset int
	var gotSession string
	var globalCalls int
	uc := &MockLabelUseCase{
		ListFunc: func(_ context.Context, limit, offset int) ([]*domain.LabelRecord, error) {
			globalCalls++
			gotLimit, gotOffset = limit, offset
			return []*domain.LabelRecord{record}, nil
		},
		ListSessionFunc: func(_ context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error) {
			gotSession = sessionID
			gotLimit = limit
			return []*domain.LabelRecord{record}, nil
		},
	}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	// 既定は呼び出し元セッションの履歴のみ
	req := httptest.NewRequest(http.MethodGet, "/api/v1/labels?limit=5", nil)
	req.Header.Set(SessionHeader, testSessionID)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, testSessionID, gotSession)
	require.Equal(t, 5, gotLimit)
	require.Zero(t, globalCalls)

	var resp RecordsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Records, 1)
	require.Equal(t, "r1", resp.Records[0].ID)
	require.True(t, resp.Records[0].CreatedAt.Equal(created))

	// 全セッションの一覧は無効のまま
	rec = httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/v1/labels?scope=all", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Zero(t, globalCalls)

	h.SetPublicHistory(true)
	rec = httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/v1/labels?scope=all&limit=5&offset=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, globalCalls)
	require.Equal(t, 5, gotLimit)
	require.Equal(t, 10, gotOffset)
}

func TestLabelHandler_HandleList_Error(t *testing.T) {
	uc := &MockLabelUseCase{
		ListSessionFunc: func(context.Context, string, int) ([]*domain.LabelRecord, error) {
			return nil, errors.New("db down")
		},
	}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLabelHandler_HandleGet(t *testing.T) {
	const otherSessionID = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	uc := &MockLabelUseCase{
		GetRecordFunc: func(_ context.Context, id string) (*domain.LabelRecord, error) {
			switch id {
			case "r1":
				return &domain.LabelRecord{ID: "r1", SessionID: testSessionID, Summary: "這是鹽。", Status: domain.StatusOK}, nil
			case "other":
				return &domain.LabelRecord{ID: "other", SessionID: otherSessionID, Summary: "這是糖。", Status: domain.StatusOK}, nil
			case "broken":
				return nil, errors.New("db down")
			}
			return nil, domain.ErrRecordNotFound
		},
	}
	h := NewLabelHandler(uc, &MockSpeechUseCase{}, newMockArtifactStore())

	tests := []struct {
		name       string
		id         string
		public     bool
		wantStatus int
	}{
		{name: "正常系: 自分の履歴", id: "r1", wantStatus: http.StatusOK},
		{name: "正常系: 公開設定なら他セッションも参照可", id: "other", public: true, wantStatus: http.StatusOK},
		{name: "異常系: 他セッションの履歴", id: "other", wantStatus: http.StatusNotFound},
		{name: "異常系: 存在しない履歴", id: "missing", wantStatus: http.StatusNotFound},
		{name: "異常系: DBエラー", id: "broken", wantStatus: http.StatusInternalServerError},
		{name: "異常系: IDなし", id: "", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.SetPublicHistory(tt.public)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/labels/x", nil)
			req.SetPathValue("id", tt.id)
			req.Header.Set(SessionHeader, testSessionID)
			rec := httptest.NewRecorder()

			h.HandleGet(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var resp RecordsResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				require.Equal(t, tt.id, resp.Record.ID)
			}
		})
	}
}

func TestLabelHandler_HandleBudget(t *testing.T) {
	h := NewLabelHandler(&MockLabelUseCase{}, &MockSpeechUseCase{}, newMockArtifactStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session/budget", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: testSessionID})
	rec := httptest.NewRecorder()

	h.HandleBudget(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnalyzeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, testSessionID, resp.SessionID)
	require.Equal(t, &usecase.BudgetStatus{Used: 1, Limit: 5, Remaining: 4}, resp.Budget)
}

func TestLabelHandler_HandleArtifact_ServedOnce(t *testing.T) {
	h := NewLabelHandler(&MockLabelUseCase{}, &MockSpeechUseCase{}, newMockArtifactStore())

	req := httptest.NewRequest(http.MethodGet, "/artifacts/audio-1", nil)
	req.SetPathValue("id", "audio-1")
	rec := httptest.NewRecorder()
	h.HandleArtifact(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ID3audio", rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleArtifact(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionID_InvalidHeaderIgnored(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionHeader, "../../etc/passwd")
	rec := httptest.NewRecorder()

	id := sessionID(rec, req)

	require.NotEqual(t, "../../etc/passwd", id)
	require.True(t, validSessionID(id))
	require.True(t, strings.Contains(rec.Header().Get("Set-Cookie"), SessionCookieName))
}
