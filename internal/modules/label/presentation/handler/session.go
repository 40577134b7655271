package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"label-voice-app/internal/modules/label/domain"
)

const (
	// SessionCookieName ブラウザのセッションCookie名
	SessionCookieName = "label_session"
	// SessionHeader APIクライアント用のセッションヘッダー
	SessionHeader = "X-Session-ID"

	uploadField   = "images"
	maxFieldBytes = 1 << 10
	sessionMaxAge = 24 * 60 * 60

	// maxRequestBytes 1枚あたり上限の4倍までは受け取り、超過は画像ごとに判定する
	maxRequestBytes = domain.MaxBatchImages * 4 * domain.MaxUploadBytes
)

var (
	errNoImages      = errors.New("at least one image is required")
	errTooManyImages = fmt.Errorf("at most %d images per request", domain.MaxBatchImages)
)

// sessionID リクエストのセッションIDを返す。無ければ発行してCookieに書く
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if id := r.Header.Get(SessionHeader); validSessionID(id) {
		return id
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && validSessionID(c.Value) {
		return c.Value
	}
	return newSession(w)
}

// newSession 新しいセッションを発行する
func newSession(w http.ResponseWriter) string {
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// readUploads マルチパートの images フィールドとオプションを順に読み込む
func readUploads(w http.ResponseWriter, r *http.Request) ([]domain.UploadedImage, domain.Options, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, domain.Options{}, fmt.Errorf("failed to parse form: %w", err)
	}

	fields := make(map[string]string)
	var uploads []domain.UploadedImage
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.Options{}, fmt.Errorf("failed to parse form: %w", err)
		}

		switch {
		case part.FormName() == uploadField && part.FileName() != "":
			if len(uploads) == domain.MaxBatchImages {
				_ = part.Close()
				return nil, domain.Options{}, errTooManyImages
			}
			upload, err := readUpload(part)
			if err != nil {
				_ = part.Close()
				return nil, domain.Options{}, err
			}
			uploads = append(uploads, upload)
		case part.FileName() == "":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				_ = part.Close()
				return nil, domain.Options{}, fmt.Errorf("failed to read field %s: %w", part.FormName(), err)
			}
			fields[part.FormName()] = string(value)
		}
		_ = part.Close()
	}

	opts, err := domain.ParseOptions(fields["voice"], fields["speed"], fields["detail"])
	if err != nil {
		return nil, opts, err
	}
	if len(uploads) == 0 {
		return nil, opts, errNoImages
	}
	return uploads, opts, nil
}

// readUpload 上限+1バイトまでだけ保持し、残りは読み捨ててサイズだけ数える。
// サイズ判定はユースケース側で画像ごとに行う
func readUpload(part *multipart.Part) (domain.UploadedImage, error) {
	data, err := io.ReadAll(io.LimitReader(part, domain.MaxUploadBytes+1))
	if err != nil {
		return domain.UploadedImage{}, fmt.Errorf("failed to read %s: %w", part.FileName(), err)
	}
	upload := domain.NewUploadedImage(part.FileName(), part.Header.Get("Content-Type"), data)

	rest, err := io.Copy(io.Discard, part)
	if err != nil {
		return domain.UploadedImage{}, fmt.Errorf("failed to read %s: %w", part.FileName(), err)
	}
	upload.Size += rest
	return upload, nil
}
