package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyImage 画像データが空
	ErrEmptyImage = errors.New("image data is empty")
	// ErrImageTooLarge 画像サイズが上限を超えている
	ErrImageTooLarge = errors.New("image size exceeds 5MiB")
	// ErrUndecodableImage 画像をデコードできない
	ErrUndecodableImage = errors.New("image cannot be decoded")
	// ErrUnsupportedInput 音声合成バックエンドが入力テキストを受け付けない（HTTP 400）
	ErrUnsupportedInput = errors.New("synthesis input is not supported")
	// ErrBudgetExhausted セッションの台語音声合成回数が上限に達した
	ErrBudgetExhausted = errors.New("dialect synthesis budget exhausted")
	// ErrRecordNotFound 履歴が見つからない
	ErrRecordNotFound = errors.New("label record not found")
)

// ユーザー向けメッセージ
const (
	MsgImageTooLarge    = "圖片超過 5MB，請縮小後再上傳。"
	MsgUndecodableImage = "無法讀取這張圖片，請確認檔案格式。"
	MsgEmptyImage       = "圖片內容是空的。"
	MsgRateLimited      = "目前使用人數過多（429），請稍後再試。"
	MsgEmptyResult      = "模型沒有回傳任何解讀內容，已略過這張圖片。"
	MsgBudgetExhausted  = "本次使用的台語語音次數已用完，請改用華語語音或重新開始。"
	MsgNoAudio          = "語音產生失敗，本張圖片沒有語音。"
	MsgTranslateFailed  = "台語翻譯失敗，改用原文朗讀。"
	MsgCardUnavailable  = "無法產生分享圖卡。"
	MsgFallbackFont     = "找不到中文字型，圖卡中的中文可能無法正確顯示。"
)

// InputError 入力検証エラー（画像ごとに報告し、次の画像へ進む）
type InputError struct {
	Filename string
	Err      error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid upload %q: %v", e.Filename, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// APIError リモートAPIが2xx以外を返した場合のエラー
type APIError struct {
	Service    string
	StatusCode int
	// Body 生のレスポンスボディ
	Body string
	// Message JSONボディから取り出したエラーメッセージ（取れない場合は空）
	Message string
}

func (e *APIError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Body
	}
	return fmt.Sprintf("%s API returned status %d: %s", e.Service, e.StatusCode, detail)
}

// RateLimited レート制限（429）かどうか
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// BadRequest 400系の「入力非対応」かどうか
func (e *APIError) BadRequest() bool {
	return e.StatusCode == http.StatusBadRequest
}

// Is ErrUnsupportedInput との比較を可能にする
func (e *APIError) Is(target error) bool {
	return target == ErrUnsupportedInput && e.BadRequest()
}

// IsRateLimited エラーチェーンにレート制限が含まれるかどうか
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}

// UserMessage エラーをユーザー向けの文言に変換する
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrImageTooLarge):
		return MsgImageTooLarge
	case errors.Is(err, ErrUndecodableImage):
		return MsgUndecodableImage
	case errors.Is(err, ErrEmptyImage):
		return MsgEmptyImage
	case errors.Is(err, ErrBudgetExhausted):
		return MsgBudgetExhausted
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.RateLimited() {
			return MsgRateLimited
		}
		detail := apiErr.Message
		if detail == "" {
			detail = apiErr.Body
		}
		return fmt.Sprintf("服務錯誤（狀態碼 %d）：%s", apiErr.StatusCode, detail)
	}

	return fmt.Sprintf("處理失敗：%v", err)
}
