package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"label-voice-app/internal/config"
	"label-voice-app/internal/presentation/di"
	"label-voice-app/internal/presentation/http/router"
)

const sweepInterval = 5 * time.Minute

// AppConfig アプリケーション設定
type AppConfig struct {
	ConfigPath string
	Port       string

	// RequireCredentials trueなら有効なプロバイダーの認証情報が揃っていないと起動しない
	RequireCredentials bool
}

// ServerInterface サーバーインターフェース（Seam化）
type ServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App アプリケーション構造体（Seamパターン）
type App struct {
	config     *AppConfig
	container  *di.Container
	server     *http.Server
	serverSeam ServerInterface // テスト用のSeam

	// バックグラウンド処理（一時ファイル掃除・Telegram）
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewApp 新しいAppを作成
func NewApp(appCfg *AppConfig) (*App, error) {
	// 設定の読み込み
	cfg, err := config.Load(appCfg.ConfigPath)
	if err != nil {
		log.Printf("Failed to load config: %v. Using defaults.", err)
		cfg = config.DefaultConfig()
	}

	if appCfg.RequireCredentials {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	config.SetupLogging(cfg.Logging)

	// ポートのデフォルト値設定
	if appCfg.Port == "" {
		appCfg.Port = cfg.Server.Port
	}
	if appCfg.Port == "" {
		appCfg.Port = "8080"
	}

	// DIコンテナの初期化
	container, err := di.NewContainer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DI container: %w", err)
	}

	// ルーターの作成
	handler := router.NewRouter(container)

	// サーバーの設定（複数画像の解読と音声合成を1リクエストで行うため書き込みは長め）
	server := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	app := &App{
		config:    appCfg,
		container: container,
		server:    server,
		bgCtx:     bgCtx,
		bgCancel:  bgCancel,
	}
	// デフォルトでは実際のサーバーを使用
	app.serverSeam = server

	return app, nil
}

// Start バックグラウンド処理とサーバーを起動
func (a *App) Start() error {
	// 起動メッセージ
	a.printStartupMessage()

	a.startBackground()

	// サーバー起動（Seamを使用）
	return a.serverSeam.ListenAndServe()
}

// startBackground 一時ファイルの掃除とTelegramボットを起動
func (a *App) startBackground() {
	cfg := a.container.Config()
	maxAge := time.Duration(cfg.Artifacts.MaxAgeMinutes) * time.Minute
	if maxAge > 0 {
		a.container.ArtifactStore().StartSweeper(a.bgCtx, sweepInterval, maxAge)
	}

	if bot := a.container.TelegramBot(); bot != nil {
		a.bgWG.Add(1)
		go func() {
			defer a.bgWG.Done()
			if err := bot.Run(a.bgCtx); err != nil {
				slog.Error("telegram bot stopped", "error", err)
			}
		}()
	}
}

// printStartupMessage 起動メッセージを出力
func (a *App) printStartupMessage() {
	cfg := a.container.Config()

	fmt.Println("=== Label Voice Server ===")
	fmt.Printf("Interpreter: %s\n", a.container.LabelUseCase().ProviderName())
	fmt.Printf("Translator: %s\n", cfg.Translator.Provider)
	fmt.Printf("Speech: majority=%s dialect=%s (budget %d/session)\n",
		cfg.Speech.Majority.Backend, cfg.Speech.Dialect.Backend, cfg.Speech.Dialect.SessionBudget)
	fmt.Printf("Redis: %v  MySQL: %v  Telegram: %v\n", cfg.Redis.Enabled, cfg.MySQL.Enabled, a.container.TelegramBot() != nil)
	fmt.Printf("Server listening on http://0.0.0.0:%s\n", a.config.Port)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /                          - Upload page (上傳頁面)")
	fmt.Println("  POST /analyze                   - Analyze and show result page")
	fmt.Println("  POST /session/reset             - Start a new session")
	fmt.Println("  POST /api/v1/labels/analyze     - Label interpretation API")
	fmt.Println("  GET  /api/v1/labels             - History")
	fmt.Println("  GET  /api/v1/labels/{id}        - History entry")
	fmt.Println("  GET  /api/v1/session/budget     - Remaining dialect speech calls")
	fmt.Println("  GET  /artifacts/{id}            - Audio / summary card (served once)")
	fmt.Println("  GET  /health                    - Health check")
	fmt.Println()
}

// Shutdown サーバーをシャットダウン
func (a *App) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	// サーバーのシャットダウン（Seamを使用）
	if err := a.serverSeam.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// バックグラウンド処理の停止
	a.bgCancel()
	a.bgWG.Wait()

	// コンテナのクローズ
	if err := a.container.Close(); err != nil {
		return fmt.Errorf("container close failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Run アプリケーションを実行（グレースフルシャットダウン付き）
func (a *App) Run() error {
	// サーバー起動（goroutine）
	serverErr := make(chan error, 1)
	go func() {
		if err := a.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// シグナルの待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		a.bgCancel()
		_ = a.container.Close()
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
		// グレースフルシャットダウン
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		return a.Shutdown(ctx)
	}
}

// realMain 実際のmain処理（テスト可能にするため分離）
func realMain() error {
	// アプリケーション設定
	appCfg := &AppConfig{
		ConfigPath:         config.DefaultPath(),
		Port:               os.Getenv("PORT"),
		RequireCredentials: true,
	}

	// アプリケーションの作成
	app, err := NewApp(appCfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	// アプリケーションの実行
	return app.Run()
}

func main() {
	if err := realMain(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
