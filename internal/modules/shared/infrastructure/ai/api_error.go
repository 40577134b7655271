package ai

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"label-voice-app/internal/modules/label/domain"
)

// maxErrorBody エラーボディとして読み込む上限
const maxErrorBody = 64 << 10

// newAPIError 2xx以外のレスポンスをdomain.APIErrorに変換する。
// JSONの error.message（または文字列の error）が取れればMessageに入れる
func newAPIError(service string, resp *http.Response) *domain.APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	raw := strings.TrimSpace(string(body))

	return &domain.APIError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Body:       raw,
		Message:    parseErrorMessage(body),
	}
}

func parseErrorMessage(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil && flat.Error != "" {
		return flat.Error
	}

	return ""
}
