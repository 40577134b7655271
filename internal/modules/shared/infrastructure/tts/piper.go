package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
)

const defaultPiperVoice = "zh_CN-huayan-medium"

// PiperSynthesizer ローカルのPiperサーバー（Wyomingプロトコル）を使う華語音声合成。
// プロトコルに速度指定がないため、SpeechRequest.Slowは無視する
type PiperSynthesizer struct {
	addr    string
	voice   string
	timeout time.Duration
}

// NewPiperSynthesizer 新しいPiperSynthesizerを作成
func NewPiperSynthesizer(cfg *config.PiperConfig) *PiperSynthesizer {
	voice := cfg.Voice
	if voice == "" {
		voice = defaultPiperVoice
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	host := strings.TrimPrefix(cfg.Host, "tcp://")
	return &PiperSynthesizer{
		addr:    net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		voice:   voice,
		timeout: timeout,
	}
}

// Name バックエンド名
func (s *PiperSynthesizer) Name() string {
	return "piper"
}

// Synthesize synthesizeイベントを送り、audio-chunkを集めてWAVにする
func (s *PiperSynthesizer) Synthesize(ctx context.Context, text string, req domain.SpeechRequest) (*domain.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text for synthesis")
	}

	voice := req.Voice
	if voice == "" {
		voice = s.voice
	}

	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to piper: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	err = writeEvent(conn, wyomingEvent{
		Type: "synthesize",
		Data: map[string]interface{}{
			"text":  text,
			"voice": map[string]interface{}{"name": voice},
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	r := bufio.NewReader(conn)
	var pcm bytes.Buffer
	rate, channels, width := 22050, 1, 2

	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("piper: %w", err)
		}

		switch evt.Type {
		case "audio-start":
			rate = intField(evt.Data, "rate", rate)
			channels = intField(evt.Data, "channels", channels)
			width = intField(evt.Data, "width", width)
		case "audio-chunk":
			if pcm.Len()+len(payload) > maxAudioBytes {
				return nil, fmt.Errorf("piper audio exceeds %d bytes", maxAudioBytes)
			}
			pcm.Write(payload)
		case "audio-stop":
			if pcm.Len() == 0 {
				return nil, fmt.Errorf("piper returned empty audio")
			}
			slog.Debug("piper synthesized", "pcm_bytes", pcm.Len(), "rate", rate)
			return &domain.AudioArtifact{
				Data:   wrapPCM(pcm.Bytes(), rate, channels, width),
				Format: domain.AudioWAV,
			}, nil
		case "error":
			msg, _ := evt.Data["text"].(string)
			return nil, fmt.Errorf("piper error: %s", msg)
		}
	}
}
