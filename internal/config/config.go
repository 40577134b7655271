package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config アプリケーション全体の設定
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Interpreter InterpreterConfig `yaml:"interpreter"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Anthropic   AnthropicConfig   `yaml:"anthropic"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	Translator  TranslatorConfig  `yaml:"translator"`
	Speech      SpeechConfig      `yaml:"speech"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Render      RenderConfig      `yaml:"render"`
	Redis       RedisConfig       `yaml:"redis"`
	MySQL       MySQLConfig       `yaml:"mysql"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
}

// ServerConfig HTTPサーバーの設定
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig ログ出力の設定
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// InterpreterConfig ラベル解読に使うプロバイダーの選択
type InterpreterConfig struct {
	Provider string `yaml:"provider"` // gemini, anthropic
}

// GeminiConfig Gemini APIの設定
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// TimeoutSeconds 0の場合はトランスポートのデフォルトに任せる
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// AnthropicConfig Anthropic APIの設定
type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// HuggingFaceConfig Hugging Face Inference APIの設定
type HuggingFaceConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	BaseURL      string `yaml:"base_url"`
	Target       string `yaml:"target"` // HAN, POJ, ZH, HL
	MaxNewTokens int    `yaml:"max_new_tokens"`
}

// TranslatorConfig 台語翻訳に使うプロバイダーの選択
type TranslatorConfig struct {
	Provider string `yaml:"provider"` // gemini, anthropic, huggingface, none
}

// SpeechConfig 音声合成の設定
type SpeechConfig struct {
	Majority MajorityConfig `yaml:"majority"`
	GTTS     GTTSConfig     `yaml:"gtts"`
	Piper    PiperConfig    `yaml:"piper"`
	Dialect  DialectConfig  `yaml:"dialect"`
	Bearer   BearerConfig   `yaml:"bearer"`
	Keyless  KeylessConfig  `yaml:"keyless"`
}

// MajorityConfig 華語音声のバックエンド選択
type MajorityConfig struct {
	Backend  string `yaml:"backend"` // gtts, piper
	Language string `yaml:"language"`
}

// GTTSConfig Google翻訳TTSの設定
type GTTSConfig struct {
	BaseURL string `yaml:"base_url"`
}

// PiperConfig Wyomingプロトコルで接続するPiperサーバーの設定
type PiperConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Voice          string `yaml:"voice"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// DialectConfig 台語音声のバックエンド選択と回数上限
type DialectConfig struct {
	Backend       string `yaml:"backend"` // bearer, keyless
	Language      string `yaml:"language"`
	SessionBudget int    `yaml:"session_budget"`
}

// BearerConfig APIキーが必要な台語TTSの設定
type BearerConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Voice    string `yaml:"voice"`
}

// KeylessConfig APIキー不要の台語TTSの設定
type KeylessConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// PipelineConfig パイプライン全体の設定
type PipelineConfig struct {
	MaxPixelExtent int    `yaml:"max_pixel_extent"`
	DefaultVoice   string `yaml:"default_voice"`
	DefaultSpeed   string `yaml:"default_speed"`
	DefaultDetail  string `yaml:"default_detail"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours"`

	// PublicHistory trueなら全セッションの履歴一覧を公開する
	PublicHistory bool `yaml:"public_history"`
}

// RenderConfig 画像カードの設定
type RenderConfig struct {
	FontPaths []string `yaml:"font_paths"`
	FontSize  float64  `yaml:"font_size"`
	Width     int      `yaml:"width"`
	Margin    int      `yaml:"margin"`
	LineGap   int      `yaml:"line_gap"`
}

// RedisConfig Redisの設定
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MySQLConfig MySQLの設定
type MySQLConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// TelegramConfig Telegramボットの設定
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Debug   bool   `yaml:"debug"`
}

// ArtifactsConfig 一時ファイル（音声・画像カード）の設定
type ArtifactsConfig struct {
	Dir           string `yaml:"dir"`
	MaxAgeMinutes int    `yaml:"max_age_minutes"`
}

// DefaultPath 設定ファイルのパスを返す（CONFIG_PATH優先）
func DefaultPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".label-voice-app", "config.yaml")
}

// Load 設定ファイルを読み込む
func Load(configPath string) (*Config, error) {
	// .envがあれば環境変数に読み込む（なくてもよい）
	_ = godotenv.Load()

	// 設定ファイルが存在しない場合はデフォルト設定を返す
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 環境変数の展開
	dataStr := os.ExpandEnv(string(data))

	// ファイルにない項目はデフォルト値のまま残す
	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(dataStr), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// DefaultConfig デフォルト設定を返す
func DefaultConfig() *Config {
	// Redis/MySQLのホストはテスト環境では localhost を使用
	redisHost := "redis"
	mysqlHost := "mysql"
	if os.Getenv("GO_ENV") == "test" {
		redisHost = "localhost"
		mysqlHost = "localhost"
	}

	return &Config{
		Server: ServerConfig{
			Port: envOr("PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		Interpreter: InterpreterConfig{
			Provider: envOr("INTERPRETER_PROVIDER", "gemini"),
		},
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GEMINI_API_KEY"),
			Model:   "gemini-2.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com",
		},
		Anthropic: AnthropicConfig{
			APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			Model:     "claude-haiku-4-5-20251001",
			MaxTokens: 4096,
		},
		HuggingFace: HuggingFaceConfig{
			APIKey:       os.Getenv("HUGGINGFACE_API_KEY"),
			Model:        "Bohanlu/Taigi-Llama-2-Translator-7B",
			BaseURL:      "https://api-inference.huggingface.co",
			Target:       "POJ",
			MaxNewTokens: 128,
		},
		Translator: TranslatorConfig{
			Provider: envOr("TRANSLATOR_PROVIDER", "gemini"),
		},
		Speech: SpeechConfig{
			Majority: MajorityConfig{
				Backend:  "gtts",
				Language: "zh-TW",
			},
			GTTS: GTTSConfig{
				BaseURL: "https://translate.google.com",
			},
			Piper: PiperConfig{
				Host:           "localhost",
				Port:           10200,
				TimeoutSeconds: 30,
			},
			Dialect: DialectConfig{
				Backend:       envOr("DIALECT_TTS_BACKEND", "bearer"),
				Language:      "nan-TW",
				SessionBudget: 5,
			},
			Bearer: BearerConfig{
				Endpoint: os.Getenv("DIALECT_TTS_ENDPOINT"),
				APIKey:   os.Getenv("DIALECT_TTS_API_KEY"),
				Voice:    "taigi",
			},
			Keyless: KeylessConfig{
				Endpoint: os.Getenv("DIALECT_TTS_KEYLESS_ENDPOINT"),
			},
		},
		Pipeline: PipelineConfig{
			MaxPixelExtent: 1024,
			DefaultVoice:   "majority",
			DefaultSpeed:   "normal",
			DefaultDetail:  "summary",
			CacheTTLHours:  24,
			PublicHistory:  os.Getenv("PUBLIC_HISTORY") == "true",
		},
		Render: RenderConfig{
			FontPaths: []string{
				"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
				"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttc",
				"/usr/share/fonts/truetype/wqy/wqy-microhei.ttc",
				"/System/Library/Fonts/PingFang.ttc",
				"C:\\Windows\\Fonts\\msjh.ttc",
			},
			FontSize: 28,
			Width:    800,
			Margin:   40,
			LineGap:  10,
		},
		Redis: RedisConfig{
			Enabled:  os.Getenv("REDIS_ENABLED") == "true",
			Host:     redisHost,
			Port:     6379,
			Password: "",
			DB:       0,
		},
		MySQL: MySQLConfig{
			Enabled:  os.Getenv("MYSQL_ENABLED") == "true",
			Host:     mysqlHost,
			Port:     3306,
			User:     "root",
			Password: os.Getenv("MYSQL_ROOT_PASSWORD"),
			Database: "label_voice",
		},
		Telegram: TelegramConfig{
			Enabled: os.Getenv("TELEGRAM_BOT_TOKEN") != "",
			Token:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
		Artifacts: ArtifactsConfig{
			Dir:           "",
			MaxAgeMinutes: 30,
		},
	}
}

// Validate 有効なリモートエンドポイントに必要な認証情報が揃っているか確認する
func (c *Config) Validate() error {
	var errs []error

	switch c.Interpreter.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key (GEMINI_API_KEY) is required for interpreter provider gemini"))
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key (ANTHROPIC_API_KEY) is required for interpreter provider anthropic"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown interpreter provider %q", c.Interpreter.Provider))
	}

	switch c.Translator.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			errs = append(errs, errors.New("gemini.api_key (GEMINI_API_KEY) is required for translator provider gemini"))
		}
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			errs = append(errs, errors.New("anthropic.api_key (ANTHROPIC_API_KEY) is required for translator provider anthropic"))
		}
	case "huggingface":
		if c.HuggingFace.APIKey == "" {
			errs = append(errs, errors.New("huggingface.api_key (HUGGINGFACE_API_KEY) is required for translator provider huggingface"))
		}
	case "none", "":
	default:
		errs = append(errs, fmt.Errorf("unknown translator provider %q", c.Translator.Provider))
	}

	switch c.Speech.Majority.Backend {
	case "gtts", "piper":
	default:
		errs = append(errs, fmt.Errorf("unknown majority speech backend %q", c.Speech.Majority.Backend))
	}

	switch c.Speech.Dialect.Backend {
	case "bearer":
		if c.Speech.Bearer.Endpoint == "" {
			errs = append(errs, errors.New("speech.bearer.endpoint (DIALECT_TTS_ENDPOINT) is required for dialect backend bearer"))
		}
		if c.Speech.Bearer.APIKey == "" {
			errs = append(errs, errors.New("speech.bearer.api_key (DIALECT_TTS_API_KEY) is required for dialect backend bearer"))
		}
	case "keyless":
		if c.Speech.Keyless.Endpoint == "" {
			errs = append(errs, errors.New("speech.keyless.endpoint (DIALECT_TTS_KEYLESS_ENDPOINT) is required for dialect backend keyless"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown dialect speech backend %q", c.Speech.Dialect.Backend))
	}

	if c.Speech.Dialect.SessionBudget < 0 {
		errs = append(errs, errors.New("speech.dialect.session_budget must not be negative"))
	}

	if c.Telegram.Enabled && c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token (TELEGRAM_BOT_TOKEN) is required when telegram is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Save 設定をファイルに保存する
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SetupLogging ログレベルと出力形式からデフォルトロガーを設定する
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
