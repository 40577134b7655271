package domain

import "time"

// LabelRecord 処理済みラベルの履歴エンティティ
type LabelRecord struct {
	ID             string
	SessionID      string
	ImageHash      string
	Filename       string
	Interpretation string
	Summary        string
	SpokenText     string
	Voice          VoiceOption
	AudioFormat    AudioFormat
	Status         Status
	ErrorMessage   string
	CreatedAt      time.Time
}
