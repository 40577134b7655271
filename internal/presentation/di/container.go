package di

import (
	"fmt"
	"log/slog"
	"time"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
	labelHandler "label-voice-app/internal/modules/label/presentation/handler"
	"label-voice-app/internal/modules/label/presentation/telegram"
	"label-voice-app/internal/modules/label/service"
	labelUsecase "label-voice-app/internal/modules/label/usecase"
	sharedAI "label-voice-app/internal/modules/shared/infrastructure/ai"
	sharedCache "label-voice-app/internal/modules/shared/infrastructure/cache"
	sharedDB "label-voice-app/internal/modules/shared/infrastructure/database"
	"label-voice-app/internal/modules/shared/infrastructure/render"
	"label-voice-app/internal/modules/shared/infrastructure/storage"
	"label-voice-app/internal/modules/shared/infrastructure/tts"
	appHandler "label-voice-app/internal/presentation/http/handler"
)

// Container DIコンテナ
type Container struct {
	cfg *config.Config

	// Shared Infrastructure
	interpreter domain.LabelInterpreter
	translator  domain.DialectTranslator
	majority    domain.Synthesizer
	dialect     domain.Synthesizer
	budget      domain.CallBudget
	cacheRepo   *sharedCache.RedisRepository
	recordRepo  *sharedDB.BunLabelRecordRepository
	artifacts   *storage.ArtifactStore

	// Label Module
	speechUseCase *labelUsecase.SpeechUseCase
	labelUseCase  *labelUsecase.LabelUseCase
	labelHandler  *labelHandler.LabelHandler
	webHandler    *labelHandler.WebHandler
	telegramBot   *telegram.Bot

	healthHandler *appHandler.HealthHandler
}

// NewContainer 新しいContainerを作成
func NewContainer(cfg *config.Config) (*Container, error) {
	container := &Container{cfg: cfg}

	// Shared Infrastructure: 解読モデル
	interpreter, err := newInterpreter(cfg)
	if err != nil {
		return nil, err
	}
	container.interpreter = interpreter

	// Shared Infrastructure: 台語翻訳
	translator, err := newTranslator(cfg)
	if err != nil {
		return nil, err
	}
	container.translator = translator

	// Shared Infrastructure: 音声合成
	majority, err := newMajoritySynthesizer(cfg)
	if err != nil {
		return nil, err
	}
	container.majority = majority

	dialect, err := newDialectSynthesizer(cfg)
	if err != nil {
		return nil, err
	}
	container.dialect = dialect

	// Shared Infrastructure: Cache Repository（任意）
	var cacheRepo domain.CacheRepository
	if cfg.Redis.Enabled {
		redisRepo, err := sharedCache.NewRedisRepository(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache repository: %w", err)
		}
		container.cacheRepo = redisRepo
		cacheRepo = redisRepo
		container.budget = sharedCache.NewRedisBudget(redisRepo.Client(), cfg.Speech.Dialect.SessionBudget, 24*time.Hour)
	} else {
		container.budget = sharedCache.NewMemoryBudget(cfg.Speech.Dialect.SessionBudget)
	}

	// Shared Infrastructure: 解読履歴（任意）
	var recordRepo domain.LabelRecordRepository
	if cfg.MySQL.Enabled {
		bunRepo, err := sharedDB.NewBunLabelRecordRepository(&cfg.MySQL)
		if err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to initialize record repository: %w", err)
		}
		container.recordRepo = bunRepo
		recordRepo = bunRepo
	}

	// Shared Infrastructure: 一時ファイル
	artifacts, err := storage.NewArtifactStore(&cfg.Artifacts)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	container.artifacts = artifacts

	cacheTTL := time.Duration(cfg.Pipeline.CacheTTLHours) * time.Hour

	// Label Module: UseCase
	container.speechUseCase = labelUsecase.NewSpeechUseCase(
		majority,
		dialect,
		translator,
		container.budget,
		cacheRepo,
		labelUsecase.SpeechSettings{
			MajorityLanguage: cfg.Speech.Majority.Language,
			DialectLanguage:  cfg.Speech.Dialect.Language,
			DialectVoice:     cfg.Speech.Bearer.Voice,
			CacheTTL:         cacheTTL,
		},
	)

	container.labelUseCase = labelUsecase.NewLabelUseCase(labelUsecase.LabelUseCaseDeps{
		Intake:      service.NewImageIntake(cfg.Pipeline.MaxPixelExtent),
		Interpreter: interpreter,
		Speech:      container.speechUseCase,
		Cards:       render.NewCardRenderer(&cfg.Render),
		Artifacts:   artifacts,
		RecordRepo:  recordRepo,
		CacheRepo:   cacheRepo,
		CacheTTL:    cacheTTL,
	})

	// Label Module: Handler
	container.labelHandler = labelHandler.NewLabelHandler(container.labelUseCase, container.speechUseCase, artifacts)
	container.labelHandler.SetPublicHistory(cfg.Pipeline.PublicHistory)

	webHandler, err := labelHandler.NewWebHandler(container.labelUseCase, container.speechUseCase, artifacts)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("failed to initialize web handler: %w", err)
	}
	container.webHandler = webHandler

	container.healthHandler = appHandler.NewHealthHandler(interpreter.ProviderName())

	// Label Module: Telegram（任意）
	if cfg.Telegram.Enabled {
		defaults, err := defaultOptions(cfg)
		if err != nil {
			_ = container.Close()
			return nil, err
		}
		bot, err := telegram.NewBot(cfg.Telegram.Token, cfg.Telegram.Debug, container.labelUseCase, container.speechUseCase, artifacts, defaults)
		if err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		container.telegramBot = bot
	}

	return container, nil
}

func newInterpreter(cfg *config.Config) (domain.LabelInterpreter, error) {
	switch cfg.Interpreter.Provider {
	case "gemini", "":
		return sharedAI.NewGeminiRepository(&cfg.Gemini), nil
	case "anthropic":
		return sharedAI.NewClaudeRepository(&cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown interpreter provider %q", cfg.Interpreter.Provider)
	}
}

// newTranslator 翻訳を使わない場合はnilを返す
func newTranslator(cfg *config.Config) (domain.DialectTranslator, error) {
	switch cfg.Translator.Provider {
	case "gemini":
		return sharedAI.NewGeminiRepository(&cfg.Gemini), nil
	case "anthropic":
		return sharedAI.NewClaudeRepository(&cfg.Anthropic), nil
	case "huggingface":
		return sharedAI.NewHuggingFaceTranslator(&cfg.HuggingFace), nil
	case "none", "":
		slog.Info("dialect translation disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown translator provider %q", cfg.Translator.Provider)
	}
}

func newMajoritySynthesizer(cfg *config.Config) (domain.Synthesizer, error) {
	switch cfg.Speech.Majority.Backend {
	case "gtts", "":
		return tts.NewGTTSSynthesizer(&cfg.Speech.GTTS), nil
	case "piper":
		return tts.NewPiperSynthesizer(&cfg.Speech.Piper), nil
	default:
		return nil, fmt.Errorf("unknown majority speech backend %q", cfg.Speech.Majority.Backend)
	}
}

func newDialectSynthesizer(cfg *config.Config) (domain.Synthesizer, error) {
	switch cfg.Speech.Dialect.Backend {
	case "bearer", "":
		return tts.NewBearerSynthesizer(&cfg.Speech.Bearer), nil
	case "keyless":
		return tts.NewKeylessSynthesizer(&cfg.Speech.Keyless), nil
	default:
		return nil, fmt.Errorf("unknown dialect speech backend %q", cfg.Speech.Dialect.Backend)
	}
}

func defaultOptions(cfg *config.Config) (domain.Options, error) {
	opts, err := domain.ParseOptions(cfg.Pipeline.DefaultVoice, cfg.Pipeline.DefaultSpeed, cfg.Pipeline.DefaultDetail)
	if err != nil {
		return domain.Options{}, fmt.Errorf("invalid pipeline defaults: %w", err)
	}
	return opts, nil
}

// Config 読み込んだ設定を取得
func (c *Container) Config() *config.Config {
	return c.cfg
}

// LabelUseCase ラベル解読ユースケースを取得
func (c *Container) LabelUseCase() *labelUsecase.LabelUseCase {
	return c.labelUseCase
}

// SpeechUseCase 音声合成ユースケースを取得
func (c *Container) SpeechUseCase() *labelUsecase.SpeechUseCase {
	return c.speechUseCase
}

// LabelHandler JSON APIハンドラーを取得
func (c *Container) LabelHandler() *labelHandler.LabelHandler {
	return c.labelHandler
}

// WebHandler Web UIハンドラーを取得
func (c *Container) WebHandler() *labelHandler.WebHandler {
	return c.webHandler
}

// HealthHandler ヘルスチェックハンドラーを取得
func (c *Container) HealthHandler() *appHandler.HealthHandler {
	return c.healthHandler
}

// ArtifactStore 一時ファイルストアを取得
func (c *Container) ArtifactStore() *storage.ArtifactStore {
	return c.artifacts
}

// TelegramBot 無効な場合はnil
func (c *Container) TelegramBot() *telegram.Bot {
	return c.telegramBot
}

// Close リソースをクローズ
func (c *Container) Close() error {
	if c.cacheRepo != nil {
		if err := c.cacheRepo.Close(); err != nil {
			return fmt.Errorf("failed to close cache repository: %w", err)
		}
		c.cacheRepo = nil
	}

	if c.recordRepo != nil {
		if err := c.recordRepo.Close(); err != nil {
			return fmt.Errorf("failed to close record repository: %w", err)
		}
		c.recordRepo = nil
	}

	if c.artifacts != nil {
		if err := c.artifacts.Close(); err != nil {
			return fmt.Errorf("failed to close artifact store: %w", err)
		}
	}

	return nil
}
