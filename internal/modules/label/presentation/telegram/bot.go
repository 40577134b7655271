package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/usecase"
)

const (
	msgStart = `👋 歡迎使用食品標籤解讀機器人！

📸 傳一張產品標籤的照片給我，我會解讀成分並用語音念給你聽。

📋 指令：
/voice majority：華語語音
/voice dialect：台語語音（先翻譯）
/voice fallback：台語語音（直接朗讀，失敗時翻譯）
/slow：慢速朗讀
/normal：正常語速
/help：使用說明`

	msgHelp = `ℹ️ 使用方式：

1️⃣ 拍下產品標籤（成分表）
2️⃣ 傳照片給我（也可以用檔案傳送）
3️⃣ 收到總結文字、語音和分享圖卡

目前設定：%s、%s
台語語音剩餘 %d / %d 次，輸入 /start 可重新開始。`

	msgVoiceUsage     = "請指定語音：/voice majority、/voice dialect 或 /voice fallback"
	msgVoiceSet       = "✅ 語音已設定為：%s"
	msgSpeedSet       = "✅ 語速已設定為：%s"
	msgSendPhoto      = "📸 請傳送產品標籤的照片。"
	msgUnknownCommand = "❓ 不認識的指令，請輸入 /help 查看說明。"
	msgProcessing     = "⏳ 解讀中，請稍候……"
	msgDownloadError  = "⚠️ 無法下載圖片，請再傳一次。"
)

// LabelProcessor 画像を処理するユースケース
type LabelProcessor interface {
	ProcessBatch(ctx context.Context, sessionID string, uploads []domain.UploadedImage, opts domain.Options) []*domain.LabelResult
}

// SessionBudget セッション予算の参照とリセット
type SessionBudget interface {
	BudgetStatus(ctx context.Context, sessionID string) (*usecase.BudgetStatus, error)
	ResetSession(ctx context.Context, sessionID string) error
}

// ArtifactReader 一時ファイルを読み出して削除する
type ArtifactReader interface {
	ReadAndDelete(id string) ([]byte, error)
}

// botAPI tgbotapi.BotAPIのうち使用するメソッド
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot Telegramボット
type Bot struct {
	api          botAPI
	token        string
	fileEndpoint string
	httpClient   *http.Client

	labels    LabelProcessor
	budget    SessionBudget
	artifacts ArtifactReader
	defaults  domain.Options

	mu    sync.Mutex
	prefs map[int64]domain.Options
}

// NewBot 新しいBotを作成
func NewBot(token string, debug bool, labels LabelProcessor, budget SessionBudget, artifacts ArtifactReader, defaults domain.Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	api.Debug = debug

	slog.Info("telegram bot authorized", "account", api.Self.UserName)

	return newBot(api, token, labels, budget, artifacts, defaults), nil
}

func newBot(api botAPI, token string, labels LabelProcessor, budget SessionBudget, artifacts ArtifactReader, defaults domain.Options) *Bot {
	return &Bot{
		api:          api,
		token:        token,
		fileEndpoint: tgbotapi.FileEndpoint,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		labels:       labels,
		budget:       budget,
		artifacts:    artifacts,
		defaults:     defaults,
		prefs:        make(map[int64]domain.Options),
	}
}

// Run ctxが終わるまでメッセージを処理する
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage 受信メッセージを処理する
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if len(msg.Photo) > 0 {
		// 最大解像度の画像を使う
		photo := msg.Photo[len(msg.Photo)-1]
		b.handleImage(ctx, msg.Chat.ID, photo.FileID, "photo.jpg")
		return
	}

	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		b.handleImage(ctx, msg.Chat.ID, msg.Document.FileID, msg.Document.FileName)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand ボットコマンドを処理する
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.setOptions(chatID, b.defaults)
		if err := b.budget.ResetSession(ctx, sessionOf(chatID)); err != nil {
			slog.Warn("failed to reset telegram session", "chat", chatID, "error", err)
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		opts := b.options(chatID)
		status, err := b.budget.BudgetStatus(ctx, sessionOf(chatID))
		if err != nil || status == nil {
			status = &usecase.BudgetStatus{}
		}
		b.sendMessage(chatID, fmt.Sprintf(msgHelp, voiceLabel(opts.Voice), speedLabel(opts.Speed), status.Remaining, status.Limit))

	case "voice":
		voice, ok := parseVoiceArg(msg.CommandArguments())
		if !ok {
			b.sendMessage(chatID, msgVoiceUsage)
			return
		}
		opts := b.options(chatID)
		opts.Voice = voice
		b.setOptions(chatID, opts)
		b.sendMessage(chatID, fmt.Sprintf(msgVoiceSet, voiceLabel(voice)))

	case "slow", "normal":
		opts := b.options(chatID)
		opts.Speed = domain.SpeechSpeed(msg.Command())
		b.setOptions(chatID, opts)
		b.sendMessage(chatID, fmt.Sprintf(msgSpeedSet, speedLabel(opts.Speed)))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// handleImage 画像をダウンロードしてパイプラインに流し、結果を送信する
func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID, filename string) {
	b.sendMessage(chatID, msgProcessing)

	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		slog.Error("failed to download telegram file", "chat", chatID, "error", err)
		b.sendMessage(chatID, msgDownloadError)
		return
	}

	upload := domain.NewUploadedImage(filename, "", data)
	results := b.labels.ProcessBatch(ctx, sessionOf(chatID), []domain.UploadedImage{upload}, b.options(chatID))
	for _, res := range results {
		b.sendResult(chatID, res)
	}
}

func (b *Bot) sendResult(chatID int64, res *domain.LabelResult) {
	if !res.OK() {
		b.sendMessage(chatID, "⚠️ "+res.ErrorMessage)
		return
	}

	b.sendMessage(chatID, res.PlainText)

	if res.HasAudio() {
		if data, err := b.artifacts.ReadAndDelete(res.AudioArtifactID); err == nil {
			audio := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{
				Name:  "summary" + res.AudioFormat.Extension(),
				Bytes: data,
			})
			if res.Translated {
				audio.Caption = res.SpokenText
			}
			b.send(audio)
		} else {
			slog.Warn("audio artifact missing", "id", res.AudioArtifactID, "error", err)
		}
	}
	if res.AudioNotice != "" {
		b.sendMessage(chatID, "🔈 "+res.AudioNotice)
	}

	if res.HasCard() {
		if data, err := b.artifacts.ReadAndDelete(res.CardArtifactID); err == nil {
			b.send(tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "summary-card.png", Bytes: data}))
		} else {
			slog.Warn("card artifact missing", "id", res.CardArtifactID, "error", err)
		}
	}
	if res.CardNotice != "" {
		b.sendMessage(chatID, "🖼 "+res.CardNotice)
	}
}

// downloadFile Telegramからファイルを取得する
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(b.fileEndpoint, b.token, file.FilePath), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	// 上限+1バイトまで読めばサイズ超過は判定できる
	data, err := io.ReadAll(io.LimitReader(resp.Body, domain.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func (b *Bot) options(chatID int64) domain.Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	if opts, ok := b.prefs[chatID]; ok {
		return opts
	}
	return b.defaults
}

func (b *Bot) setOptions(chatID int64, opts domain.Options) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefs[chatID] = opts
}

// sendMessage テキストメッセージを送信
func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Error("failed to send telegram message", "error", err)
	}
}

func sessionOf(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func parseVoiceArg(arg string) (domain.VoiceOption, bool) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "majority", "mandarin", "華語":
		return domain.VoiceMajority, true
	case "dialect", "taigi", "台語":
		return domain.VoiceDialectPrimary, true
	case "fallback":
		return domain.VoiceDialectWithFallback, true
	}
	return "", false
}

func voiceLabel(v domain.VoiceOption) string {
	switch v {
	case domain.VoiceDialectPrimary:
		return "台語（先翻譯）"
	case domain.VoiceDialectWithFallback:
		return "台語（直接朗讀，失敗時翻譯）"
	default:
		return "華語"
	}
}

func speedLabel(s domain.SpeechSpeed) string {
	if s == domain.SpeedSlow {
		return "慢速"
	}
	return "正常語速"
}
