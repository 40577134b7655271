package domain

import "html/template"

// Status 1画像ごとの処理結果の状態
type Status string

const (
	StatusOK       Status = "ok"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusEmpty    Status = "empty"
)

// LabelResult 1画像分のパイプライン結果
type LabelResult struct {
	Filename       string
	Status         Status
	ErrorMessage   string
	Interpretation string
	Summary        string
	PlainText      string
	Highlighted    template.HTML
	Detail         DetailLevel

	SpokenText  string
	Translated  bool
	AudioFormat AudioFormat
	AudioNotice string

	CardNotice string

	AudioArtifactID string
	CardArtifactID  string
	RecordID        string
}

// OK 正常に処理されたかどうか
func (r *LabelResult) OK() bool {
	return r.Status == StatusOK
}

// HasAudio 音声があるかどうか
func (r *LabelResult) HasAudio() bool {
	return r.AudioArtifactID != ""
}

// HasCard 画像カードがあるかどうか
func (r *LabelResult) HasCard() bool {
	return r.CardArtifactID != ""
}
