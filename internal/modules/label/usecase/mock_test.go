package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"label-voice-app/internal/modules/label/domain"
)

// MockSynthesizer モック音声合成
type MockSynthesizer struct {
	SynthesizeFunc func(ctx context.Context, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error)
	NameValue      string

	mu    sync.Mutex
	texts []string
	reqs  []domain.SpeechRequest
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, req)
	}
	return domain.NewAudioArtifact([]byte("ID3audio"), "audio/mpeg"), nil
}

func (m *MockSynthesizer) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return "mock"
}

func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

func (m *MockSynthesizer) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.texts...)
}

func (m *MockSynthesizer) Requests() []domain.SpeechRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SpeechRequest(nil), m.reqs...)
}

// MockTranslator モック台語翻訳
type MockTranslator struct {
	TranslateFunc func(ctx context.Context, text string) (string, error)
	calls         int
}

func (m *MockTranslator) TranslateToDialect(ctx context.Context, text string) (string, error) {
	m.calls++
	if m.TranslateFunc != nil {
		return m.TranslateFunc(ctx, text)
	}
	return "tâi-gí:" + text, nil
}

// MockLabelInterpreter モックラベル解読
type MockLabelInterpreter struct {
	InterpretLabelFunc func(ctx context.Context, img *domain.NormalizedImage) (*domain.Interpretation, error)
	calls              int
}

func (m *MockLabelInterpreter) InterpretLabel(ctx context.Context, img *domain.NormalizedImage) (*domain.Interpretation, error) {
	m.calls++
	if m.InterpretLabelFunc != nil {
		return m.InterpretLabelFunc(ctx, img)
	}
	return domain.NewInterpretation("## 成分說明\n- 鹽：調味用。\n\n總結說明：這是鹽。", 10, 5, "mock-model"), nil
}

func (m *MockLabelInterpreter) ProviderName() string {
	return "Mock Interpreter"
}

// MockCacheRepository モックキャッシュ
type MockCacheRepository struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *MockCacheRepository) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockLabelRecordRepository モック履歴リポジトリ
type MockLabelRecordRepository struct {
	CreateFunc func(ctx context.Context, record *domain.LabelRecord) error
	records    []*domain.LabelRecord
}

func (m *MockLabelRecordRepository) Create(ctx context.Context, record *domain.LabelRecord) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, record); err != nil {
			return err
		}
	}
	m.records = append(m.records, record)
	return nil
}

func (m *MockLabelRecordRepository) FindByID(_ context.Context, id string) (*domain.LabelRecord, error) {
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (m *MockLabelRecordRepository) FindBySession(_ context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error) {
	var out []*domain.LabelRecord
	for _, r := range m.records {
		if r.SessionID == sessionID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockLabelRecordRepository) FindAll(_ context.Context, limit, offset int) ([]*domain.LabelRecord, error) {
	if offset >= len(m.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], nil
}

func (m *MockLabelRecordRepository) Delete(_ context.Context, id string) error {
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return domain.ErrRecordNotFound
}

// MockCardRenderer モック画像カード
type MockCardRenderer struct {
	RenderFunc func(text string) ([]byte, string, error)
}

func (m *MockCardRenderer) Render(text string) ([]byte, string, error) {
	if m.RenderFunc != nil {
		return m.RenderFunc(text)
	}
	return []byte("\x89PNG" + text), "", nil
}

// MockArtifactStore モック一時保存
type MockArtifactStore struct {
	PutFunc func(kind domain.ArtifactKind, data []byte, contentType, ext string) (string, error)
	items   map[string][]byte
	kinds   map[string]domain.ArtifactKind
	seq     int
}

func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{
		items: make(map[string][]byte),
		kinds: make(map[string]domain.ArtifactKind),
	}
}

func (m *MockArtifactStore) Put(kind domain.ArtifactKind, data []byte, contentType, ext string) (string, error) {
	if m.PutFunc != nil {
		return m.PutFunc(kind, data, contentType, ext)
	}
	m.seq++
	id := fmt.Sprintf("%s-%d", kind, m.seq)
	m.items[id] = data
	m.kinds[id] = kind
	return id, nil
}

func (m *MockArtifactStore) ReadAndDelete(id string) ([]byte, error) {
	data, ok := m.items[id]
	if !ok {
		return nil, errors.New("not found")
	}
	delete(m.items, id)
	return data, nil
}
