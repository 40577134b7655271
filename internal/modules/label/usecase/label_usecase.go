package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/service"
)

const defaultHistoryLimit = 20

// LabelUseCase ラベル画像の解読から音声・画像カード生成までのユースケース
type LabelUseCase struct {
	intake      *service.ImageIntake
	interpreter domain.LabelInterpreter
	speech      *SpeechUseCase
	cards       domain.CardRenderer
	artifacts   domain.ArtifactStore
	recordRepo  domain.LabelRecordRepository
	cacheRepo   domain.CacheRepository
	cacheTTL    time.Duration
	now         func() time.Time
}

// LabelUseCaseDeps LabelUseCaseの依存関係。recordRepoとcacheRepoはnilでもよい
type LabelUseCaseDeps struct {
	Intake      *service.ImageIntake
	Interpreter domain.LabelInterpreter
	Speech      *SpeechUseCase
	Cards       domain.CardRenderer
	Artifacts   domain.ArtifactStore
	RecordRepo  domain.LabelRecordRepository
	CacheRepo   domain.CacheRepository
	CacheTTL    time.Duration
}

// NewLabelUseCase 新しいLabelUseCaseを作成
func NewLabelUseCase(deps LabelUseCaseDeps) *LabelUseCase {
	intake := deps.Intake
	if intake == nil {
		intake = service.NewImageIntake(0)
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LabelUseCase{
		intake:      intake,
		interpreter: deps.Interpreter,
		speech:      deps.Speech,
		cards:       deps.Cards,
		artifacts:   deps.Artifacts,
		recordRepo:  deps.RecordRepo,
		cacheRepo:   deps.CacheRepo,
		cacheTTL:    ttl,
		now:         time.Now,
	}
}

// ProviderName 解読に使うモデルのプロバイダー名
func (uc *LabelUseCase) ProviderName() string {
	return uc.interpreter.ProviderName()
}

// Speech 音声合成ユースケースを返す
func (uc *LabelUseCase) Speech() *SpeechUseCase {
	return uc.speech
}

// ProcessBatch 画像を1枚ずつ順番に処理する。1枚の失敗は他の画像に影響しない
func (uc *LabelUseCase) ProcessBatch(ctx context.Context, sessionID string, uploads []domain.UploadedImage, opts domain.Options) []*domain.LabelResult {
	results := make([]*domain.LabelResult, 0, len(uploads))
	for _, upload := range uploads {
		if err := ctx.Err(); err != nil {
			results = append(results, &domain.LabelResult{
				Filename:     upload.Filename,
				Status:       domain.StatusFailed,
				ErrorMessage: domain.UserMessage(err),
				Detail:       opts.Detail,
			})
			continue
		}
		results = append(results, uc.ProcessImage(ctx, sessionID, upload, opts))
	}
	return results
}

// ProcessImage 1枚の画像を処理する。エラーは結果の中に記録して返す
func (uc *LabelUseCase) ProcessImage(ctx context.Context, sessionID string, upload domain.UploadedImage, opts domain.Options) *domain.LabelResult {
	result := &domain.LabelResult{
		Filename: upload.Filename,
		Detail:   opts.Detail,
	}

	img, err := uc.intake.Normalize(upload)
	if err != nil {
		slog.Warn("rejected upload", "filename", upload.Filename, "error", err)
		result.Status = domain.StatusRejected
		result.ErrorMessage = domain.UserMessage(err)
		uc.saveRecord(ctx, sessionID, hashOf(upload.Data), opts, result)
		return result
	}
	imageHash := hashOf(img.Data)

	interp, err := uc.interpret(ctx, img, imageHash)
	if err != nil {
		slog.Error("label interpretation failed", "filename", upload.Filename, "provider", uc.interpreter.ProviderName(), "error", err)
		result.Status = domain.StatusFailed
		result.ErrorMessage = domain.UserMessage(err)
		uc.saveRecord(ctx, sessionID, imageHash, opts, result)
		return result
	}

	if interp.IsEmpty() {
		slog.Warn("empty interpretation", "filename", upload.Filename)
		result.Status = domain.StatusEmpty
		result.ErrorMessage = domain.MsgEmptyResult
		uc.saveRecord(ctx, sessionID, imageHash, opts, result)
		return result
	}

	result.Status = domain.StatusOK
	result.Interpretation = interp.Text
	result.Summary = service.ExtractSummary(interp.Text)
	result.PlainText = service.StripMarkdown(result.Summary)
	if opts.Detail == domain.DetailFull {
		result.Highlighted = service.HighlightIngredients(interp.Text, service.ExtractIngredientNames(interp.Text))
	}

	uc.attachSpeech(ctx, sessionID, opts, result)
	uc.attachCard(result)
	uc.saveRecord(ctx, sessionID, imageHash, opts, result)

	return result
}

// interpret キャッシュを確認してから解読する
func (uc *LabelUseCase) interpret(ctx context.Context, img *domain.NormalizedImage, imageHash string) (*domain.Interpretation, error) {
	cacheKey := "label:interpret:" + imageHash

	if uc.cacheRepo != nil {
		if cached, err := uc.cacheRepo.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			interp := domain.NewInterpretation(string(cached), 0, 0, uc.interpreter.ProviderName())
			interp.Cached = true
			return interp, nil
		}
	}

	interp, err := uc.interpreter.InterpretLabel(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("label interpretation failed: %w", err)
	}

	if uc.cacheRepo != nil && !interp.IsEmpty() {
		_ = uc.cacheRepo.Set(ctx, cacheKey, []byte(interp.Text), uc.cacheTTL)
	}

	return interp, nil
}

func (uc *LabelUseCase) attachSpeech(ctx context.Context, sessionID string, opts domain.Options, result *domain.LabelResult) {
	if uc.speech == nil {
		result.AudioNotice = domain.MsgNoAudio
		return
	}

	outcome := uc.speech.Speak(ctx, sessionID, result.PlainText, opts)
	result.SpokenText = outcome.SpokenText
	result.Translated = outcome.Translated
	result.AudioNotice = outcome.Notice

	if !outcome.HasAudio() {
		if result.AudioNotice == "" {
			result.AudioNotice = domain.MsgNoAudio
		}
		return
	}
	if uc.artifacts == nil {
		result.AudioNotice = domain.MsgNoAudio
		return
	}

	format := outcome.Audio.Format
	id, err := uc.artifacts.Put(domain.ArtifactAudio, outcome.Audio.Data, format.ContentType(), format.Extension())
	if err != nil {
		slog.Error("failed to store audio", "filename", result.Filename, "error", err)
		result.AudioNotice = domain.MsgNoAudio
		return
	}
	result.AudioArtifactID = id
	result.AudioFormat = format
}

func (uc *LabelUseCase) attachCard(result *domain.LabelResult) {
	if uc.cards == nil || uc.artifacts == nil {
		result.CardNotice = domain.MsgCardUnavailable
		return
	}

	png, warning, err := uc.cards.Render(result.PlainText)
	if err != nil {
		slog.Error("failed to render card", "filename", result.Filename, "error", err)
		result.CardNotice = domain.MsgCardUnavailable
		return
	}

	id, err := uc.artifacts.Put(domain.ArtifactCard, png, "image/png", ".png")
	if err != nil {
		slog.Error("failed to store card", "filename", result.Filename, "error", err)
		result.CardNotice = domain.MsgCardUnavailable
		return
	}
	result.CardArtifactID = id
	result.CardNotice = warning
}

// saveRecord 履歴を保存する。失敗してもパイプラインは止めない
func (uc *LabelUseCase) saveRecord(ctx context.Context, sessionID, imageHash string, opts domain.Options, result *domain.LabelResult) {
	if uc.recordRepo == nil {
		return
	}

	record := &domain.LabelRecord{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		ImageHash:      imageHash,
		Filename:       result.Filename,
		Interpretation: result.Interpretation,
		Summary:        result.Summary,
		SpokenText:     result.SpokenText,
		Voice:          opts.Voice,
		AudioFormat:    result.AudioFormat,
		Status:         result.Status,
		ErrorMessage:   result.ErrorMessage,
		CreatedAt:      uc.now(),
	}

	if err := uc.recordRepo.Create(ctx, record); err != nil {
		slog.Warn("failed to save label record", "filename", result.Filename, "error", err)
		return
	}
	result.RecordID = record.ID
}

// GetRecord 履歴を1件取得
func (uc *LabelUseCase) GetRecord(ctx context.Context, id string) (*domain.LabelRecord, error) {
	if uc.recordRepo == nil {
		return nil, domain.ErrRecordNotFound
	}
	record, err := uc.recordRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// ListRecords 履歴を新しい順に取得
func (uc *LabelUseCase) ListRecords(ctx context.Context, limit, offset int) ([]*domain.LabelRecord, error) {
	if uc.recordRepo == nil {
		return []*domain.LabelRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	records, err := uc.recordRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// ListSessionRecords セッションの履歴を取得
func (uc *LabelUseCase) ListSessionRecords(ctx context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error) {
	if uc.recordRepo == nil {
		return []*domain.LabelRecord{}, nil
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := uc.recordRepo.FindBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	return records, nil
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
