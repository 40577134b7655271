package handler

import (
	"context"
	"net/http"

	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/usecase"
)

// LabelUseCaseInterface はラベル解読ユースケースのインターフェース
type LabelUseCaseInterface interface {
	ProcessBatch(ctx context.Context, sessionID string, uploads []domain.UploadedImage, opts domain.Options) []*domain.LabelResult
	GetRecord(ctx context.Context, id string) (*domain.LabelRecord, error)
	ListRecords(ctx context.Context, limit, offset int) ([]*domain.LabelRecord, error)
	ListSessionRecords(ctx context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error)
	ProviderName() string
}

// SpeechUseCaseInterface はセッション予算を扱うインターフェース
type SpeechUseCaseInterface interface {
	BudgetStatus(ctx context.Context, sessionID string) (*usecase.BudgetStatus, error)
	ResetSession(ctx context.Context, sessionID string) error
}

// ArtifactStoreInterface は一時ファイル配信のインターフェース
type ArtifactStoreInterface interface {
	Serve(w http.ResponseWriter, id string) error
	ReadAndDelete(id string) ([]byte, error)
}
