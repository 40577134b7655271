package domain

import "fmt"

// VoiceOption 読み上げ音声の選択
type VoiceOption string

const (
	// VoiceMajority 華語（標準中国語）で読み上げる
	VoiceMajority VoiceOption = "majority"
	// VoiceDialectPrimary 先に台語へ翻訳してから台語音声で読み上げる
	VoiceDialectPrimary VoiceOption = "dialect-primary"
	// VoiceDialectWithFallback 漢字のまま台語音声を試し、非対応なら翻訳して再試行する
	VoiceDialectWithFallback VoiceOption = "dialect-with-fallback"
)

// SpeechSpeed 読み上げ速度
type SpeechSpeed string

const (
	SpeedNormal SpeechSpeed = "normal"
	SpeedSlow   SpeechSpeed = "slow"
)

// DetailLevel 表示する解説の詳細度
type DetailLevel string

const (
	DetailSummary DetailLevel = "summary"
	DetailFull    DetailLevel = "full"
)

// Options 1回のパイプライン実行の設定
type Options struct {
	Voice  VoiceOption
	Speed  SpeechSpeed
	Detail DetailLevel
}

// DefaultOptions デフォルト設定を返す
func DefaultOptions() Options {
	return Options{
		Voice:  VoiceMajority,
		Speed:  SpeedNormal,
		Detail: DetailSummary,
	}
}

// IsDialect 台語音声を使う選択かどうか
func (v VoiceOption) IsDialect() bool {
	return v == VoiceDialectPrimary || v == VoiceDialectWithFallback
}

// ParseOptions フォーム値から Options を組み立てる（空文字はデフォルト）
func ParseOptions(voice, speed, detail string) (Options, error) {
	opts := DefaultOptions()

	switch VoiceOption(voice) {
	case "":
	case VoiceMajority, VoiceDialectPrimary, VoiceDialectWithFallback:
		opts.Voice = VoiceOption(voice)
	default:
		return opts, fmt.Errorf("unknown voice option: %s", voice)
	}

	switch SpeechSpeed(speed) {
	case "":
	case SpeedNormal, SpeedSlow:
		opts.Speed = SpeechSpeed(speed)
	default:
		return opts, fmt.Errorf("unknown speed option: %s", speed)
	}

	switch DetailLevel(detail) {
	case "":
	case DetailSummary, DetailFull:
		opts.Detail = DetailLevel(detail)
	default:
		return opts, fmt.Errorf("unknown detail option: %s", detail)
	}

	return opts, nil
}
