package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
)

const (
	// gttsMaxChars 1リクエストあたりの最大文字数
	gttsMaxChars    = 100
	gttsSpeedNormal = "1"
	gttsSpeedSlow   = "0.3"
)

// 区切りとして優先する文字
const chunkBreakers = "。！？；，、.!?;,:： \n"

// GTTSSynthesizer Google翻訳の読み上げ（APIキー不要）を使う華語音声合成
type GTTSSynthesizer struct {
	httpClient  *http.Client
	apiEndpoint string
}

// NewGTTSSynthesizer 新しいGTTSSynthesizerを作成
func NewGTTSSynthesizer(cfg *config.GTTSConfig) *GTTSSynthesizer {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://translate.google.com"
	}
	return &GTTSSynthesizer{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		apiEndpoint: base + "/translate_tts",
	}
}

// SetHTTPClient テスト用にHTTPクライアントを設定（テストコードからのみ使用）
func (s *GTTSSynthesizer) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// Name バックエンド名
func (s *GTTSSynthesizer) Name() string {
	return "gtts"
}

// Synthesize テキストを100文字以内に分割して順に合成し、MP3を連結して返す
func (s *GTTSSynthesizer) Synthesize(ctx context.Context, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error) {
	chunks := SplitChunks(text, gttsMaxChars)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	speed := gttsSpeedNormal
	if req.Slow {
		speed = gttsSpeedSlow
	}
	lang := req.Language
	if lang == "" {
		lang = "zh-TW"
	}

	var audio bytes.Buffer
	for i, chunk := range chunks {
		if err := s.fetchChunk(ctx, &audio, chunk, lang, speed, i, len(chunks)); err != nil {
			return nil, err
		}
	}

	return &domain.AudioArtifact{Data: audio.Bytes(), Format: domain.AudioMP3}, nil
}

func (s *GTTSSynthesizer) fetchChunk(ctx context.Context, w io.Writer, chunk, lang, speed string, idx, total int) error {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("q", chunk)
	q.Set("tl", lang)
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gtts request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return newAPIError("gtts", resp)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return fmt.Errorf("failed to read gtts audio: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("gtts returned empty audio for chunk %d/%d", idx+1, total)
	}
	return nil
}

// SplitChunks テキストを最大maxChars文字の断片に分ける。
// なるべく句読点か空白の直後で区切る
func SplitChunks(text string, maxChars int) []string {
	var chunks []string
	runes := []rune(strings.TrimSpace(text))

	for len(runes) > 0 {
		if len(runes) <= maxChars {
			chunks = appendChunk(chunks, string(runes))
			break
		}

		cut := maxChars
		for i := maxChars; i > 0; i-- {
			if strings.ContainsRune(chunkBreakers, runes[i-1]) {
				cut = i
				break
			}
		}
		chunks = appendChunk(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}

func appendChunk(chunks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}
