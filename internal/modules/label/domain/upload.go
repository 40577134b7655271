package domain

const (
	// MaxUploadBytes アップロード画像のサイズ上限（5MiB）
	MaxUploadBytes = 5 << 20
	// MaxBatchImages 1リクエストで受け付ける画像の枚数
	MaxBatchImages = 10
)

// UploadedImage ユーザーがアップロードした画像
type UploadedImage struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// NewUploadedImage 新しいUploadedImageを作成
func NewUploadedImage(filename, contentType string, data []byte) UploadedImage {
	return UploadedImage{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}
}

// ExceedsLimit サイズ上限を超えているかどうか
func (u UploadedImage) ExceedsLimit() bool {
	return u.Size > MaxUploadBytes || int64(len(u.Data)) > MaxUploadBytes
}

// NormalizedImage 送信用に正規化された画像
type NormalizedImage struct {
	Data      []byte
	MediaType string
	Width     int
	Height    int
}
