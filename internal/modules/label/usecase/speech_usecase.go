package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"label-voice-app/internal/modules/label/domain"
)

var errEmptyAudio = errors.New("synthesizer returned empty audio")

// SpeechSettings 音声合成の言語・話者設定
type SpeechSettings struct {
	MajorityLanguage string
	DialectLanguage  string
	DialectVoice     string
	CacheTTL         time.Duration
}

// BudgetStatus セッションの台語音声合成回数
type BudgetStatus struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// SpeechUseCase 要約を音声に変換するユースケース
type SpeechUseCase struct {
	majority   domain.Synthesizer
	dialect    domain.Synthesizer
	translator domain.DialectTranslator
	budget     domain.CallBudget
	cacheRepo  domain.CacheRepository
	settings   SpeechSettings
}

// NewSpeechUseCase 新しいSpeechUseCaseを作成
func NewSpeechUseCase(
	majority, dialect domain.Synthesizer,
	translator domain.DialectTranslator,
	budget domain.CallBudget,
	cacheRepo domain.CacheRepository,
	settings SpeechSettings,
) *SpeechUseCase {
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = 24 * time.Hour
	}
	return &SpeechUseCase{
		majority:   majority,
		dialect:    dialect,
		translator: translator,
		budget:     budget,
		cacheRepo:  cacheRepo,
		settings:   settings,
	}
}

// Speak 選択された音声で要約を読み上げる。失敗しても結果は必ず返す
func (uc *SpeechUseCase) Speak(ctx context.Context, sessionID, summary string, opts domain.Options) *domain.SpeechOutcome {
	text := strings.TrimSpace(summary)
	if text == "" {
		return &domain.SpeechOutcome{Notice: domain.MsgNoAudio, Failed: true}
	}

	switch opts.Voice {
	case domain.VoiceDialectPrimary:
		return uc.speakDialectPrimary(ctx, sessionID, text, opts)
	case domain.VoiceDialectWithFallback:
		return uc.speakDialectWithFallback(ctx, sessionID, text, opts)
	default:
		return uc.speakMajority(ctx, text, opts)
	}
}

func (uc *SpeechUseCase) speakMajority(ctx context.Context, text string, opts domain.Options) *domain.SpeechOutcome {
	outcome := &domain.SpeechOutcome{SpokenText: text}
	if uc.majority == nil {
		outcome.Notice = domain.MsgNoAudio
		outcome.Failed = true
		return outcome
	}

	audio, err := synthesize(ctx, uc.majority, text, uc.request(uc.settings.MajorityLanguage, "", opts))
	if err != nil {
		slog.Error("majority synthesis failed", "backend", uc.majority.Name(), "error", err)
		outcome.Notice = noAudioNotice(err)
		outcome.Failed = true
		return outcome
	}

	outcome.Audio = audio
	return outcome
}

func (uc *SpeechUseCase) speakDialectPrimary(ctx context.Context, sessionID, text string, opts domain.Options) *domain.SpeechOutcome {
	outcome := &domain.SpeechOutcome{SpokenText: text}
	if !uc.reserve(ctx, sessionID, outcome) {
		return outcome
	}

	spoken, translated, notice := uc.translateOrOriginal(ctx, text)
	outcome.SpokenText = spoken
	outcome.Translated = translated

	audio, err := synthesize(ctx, uc.dialect, spoken, uc.dialectRequest(opts))
	if err != nil {
		slog.Error("dialect synthesis failed", "backend", uc.dialect.Name(), "error", err)
		uc.refund(ctx, sessionID)
		outcome.Notice = noAudioNotice(err)
		outcome.Failed = true
		return outcome
	}

	outcome.Audio = audio
	outcome.Notice = notice
	return outcome
}

func (uc *SpeechUseCase) speakDialectWithFallback(ctx context.Context, sessionID, text string, opts domain.Options) *domain.SpeechOutcome {
	outcome := &domain.SpeechOutcome{SpokenText: text}
	if !uc.reserve(ctx, sessionID, outcome) {
		return outcome
	}

	req := uc.dialectRequest(opts)
	audio, err := synthesize(ctx, uc.dialect, text, req)
	if err == nil {
		outcome.Audio = audio
		return outcome
	}

	if !errors.Is(err, domain.ErrUnsupportedInput) {
		slog.Error("dialect synthesis failed", "backend", uc.dialect.Name(), "error", err)
		uc.refund(ctx, sessionID)
		outcome.Notice = noAudioNotice(err)
		outcome.Failed = true
		return outcome
	}

	slog.Info("dialect backend rejected native script, retrying with translation", "backend", uc.dialect.Name())

	spoken, translated, notice := uc.translateOrOriginal(ctx, text)
	outcome.SpokenText = spoken
	outcome.Translated = translated

	audio, err = synthesize(ctx, uc.dialect, spoken, req)
	if err != nil {
		slog.Error("dialect synthesis retry failed", "backend", uc.dialect.Name(), "error", err)
		uc.refund(ctx, sessionID)
		outcome.Notice = noAudioNotice(err)
		outcome.Failed = true
		return outcome
	}

	outcome.Audio = audio
	outcome.Notice = notice
	return outcome
}

// reserve 台語音声の予算を1回分確保する。確保できない場合はoutcomeに理由を書く
func (uc *SpeechUseCase) reserve(ctx context.Context, sessionID string, outcome *domain.SpeechOutcome) bool {
	if uc.dialect == nil || uc.budget == nil {
		outcome.Notice = domain.MsgNoAudio
		outcome.Failed = true
		return false
	}

	ok, err := uc.budget.Acquire(ctx, sessionID)
	if err != nil {
		slog.Error("failed to acquire dialect budget", "session", sessionID, "error", err)
		outcome.Notice = domain.MsgNoAudio
		outcome.Failed = true
		return false
	}
	if !ok {
		slog.Warn("dialect budget exhausted", "session", sessionID, "limit", uc.budget.Limit())
		outcome.Notice = domain.MsgBudgetExhausted
		return false
	}
	return true
}

func (uc *SpeechUseCase) refund(ctx context.Context, sessionID string) {
	if err := uc.budget.Release(ctx, sessionID); err != nil {
		slog.Warn("failed to release dialect budget", "session", sessionID, "error", err)
	}
}

// translateOrOriginal 台語に翻訳する。失敗・空結果の場合は警告を出して原文を返す
func (uc *SpeechUseCase) translateOrOriginal(ctx context.Context, text string) (string, bool, string) {
	if uc.translator == nil {
		slog.Debug("no dialect translator configured, using original text")
		return text, false, ""
	}

	cacheKey := generateCacheKey("translate", []byte(text))
	if uc.cacheRepo != nil {
		if cached, err := uc.cacheRepo.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			return string(cached), true, ""
		}
	}

	translated, err := uc.translator.TranslateToDialect(ctx, text)
	if err != nil {
		slog.Warn("dialect translation failed, using original text", "error", err)
		return text, false, domain.MsgTranslateFailed
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		slog.Warn("dialect translation returned empty text, using original text")
		return text, false, domain.MsgTranslateFailed
	}

	if uc.cacheRepo != nil {
		_ = uc.cacheRepo.Set(ctx, cacheKey, []byte(translated), uc.settings.CacheTTL)
	}
	return translated, true, ""
}

func (uc *SpeechUseCase) request(language, voice string, opts domain.Options) domain.SpeechRequest {
	return domain.SpeechRequest{
		Language: language,
		Voice:    voice,
		Slow:     opts.Speed == domain.SpeedSlow,
	}
}

func (uc *SpeechUseCase) dialectRequest(opts domain.Options) domain.SpeechRequest {
	return uc.request(uc.settings.DialectLanguage, uc.settings.DialectVoice, opts)
}

// BudgetStatus セッションの使用状況を返す
func (uc *SpeechUseCase) BudgetStatus(ctx context.Context, sessionID string) (*BudgetStatus, error) {
	if uc.budget == nil {
		return &BudgetStatus{}, nil
	}

	used, err := uc.budget.Used(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read budget: %w", err)
	}

	limit := uc.budget.Limit()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &BudgetStatus{Used: used, Limit: limit, Remaining: remaining}, nil
}

// ResetSession セッション再開時に予算を戻す
func (uc *SpeechUseCase) ResetSession(ctx context.Context, sessionID string) error {
	if uc.budget == nil {
		return nil
	}
	if err := uc.budget.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset budget: %w", err)
	}
	return nil
}

// synthesize 空の音声は失敗として扱う
func synthesize(ctx context.Context, synth domain.Synthesizer, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error) {
	audio, err := synth.Synthesize(ctx, text, req)
	if err != nil {
		return nil, err
	}
	if audio == nil || len(audio.Data) == 0 {
		return nil, errEmptyAudio
	}
	return audio, nil
}

// noAudioNotice 音声なしの理由。429だけは専用の文言にする
func noAudioNotice(err error) string {
	if domain.IsRateLimited(err) {
		return domain.MsgRateLimited
	}
	return domain.MsgNoAudio
}

// generateCacheKey キャッシュキーを生成
func generateCacheKey(prefix string, data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("label:%s:%s", prefix, hex.EncodeToString(hash[:]))
}
