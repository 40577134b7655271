package domain

import (
	"bytes"
	"strings"
)

// AudioFormat 音声のコンテナ形式
type AudioFormat string

const (
	AudioMP3 AudioFormat = "mp3"
	AudioWAV AudioFormat = "wav"
)

// ContentType MIMEタイプを返す
func (f AudioFormat) ContentType() string {
	if f == AudioWAV {
		return "audio/wav"
	}
	return "audio/mpeg"
}

// Extension ファイル拡張子を返す
func (f AudioFormat) Extension() string {
	return "." + string(f)
}

// DetectAudioFormat Content-Typeとマジックバイトから形式を判定する
func DetectAudioFormat(contentType string, data []byte) AudioFormat {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "wav"), strings.Contains(ct, "wave"):
		return AudioWAV
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return AudioMP3
	}

	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return AudioWAV
	}
	return AudioMP3
}

// AudioArtifact 合成された音声
type AudioArtifact struct {
	Data   []byte
	Format AudioFormat
}

// NewAudioArtifact 新しいAudioArtifactを作成
func NewAudioArtifact(data []byte, contentType string) *AudioArtifact {
	return &AudioArtifact{
		Data:   data,
		Format: DetectAudioFormat(contentType, data),
	}
}

// SpeechRequest 音声合成の要求
type SpeechRequest struct {
	// Language 言語タグ（例: "zh-TW", "nan-TW"）
	Language string
	// Voice バックエンド固有の話者指定
	Voice string
	// Slow ゆっくり読み上げるかどうか
	Slow bool
}

// SpeechOutcome 音声合成の最終結果。Audioがnilの場合はNoticeに理由が入る
type SpeechOutcome struct {
	Audio      *AudioArtifact
	Notice     string
	SpokenText string
	Translated bool
	Failed     bool
}

// HasAudio 音声が得られたかどうか
func (o *SpeechOutcome) HasAudio() bool {
	return o != nil && o.Audio != nil && len(o.Audio.Data) > 0
}
