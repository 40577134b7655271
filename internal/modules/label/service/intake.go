package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp" // WebP形式のサポート

	"label-voice-app/internal/modules/label/domain"
)

const (
	// DefaultMaxPixelExtent 長辺の最大ピクセル数
	DefaultMaxPixelExtent = 1024
	jpegQuality           = 90
)

// ImageIntake アップロード画像の検証と正規化
type ImageIntake struct {
	maxExtent int
}

// NewImageIntake 新しいImageIntakeを作成
func NewImageIntake(maxExtent int) *ImageIntake {
	if maxExtent <= 0 {
		maxExtent = DefaultMaxPixelExtent
	}
	return &ImageIntake{maxExtent: maxExtent}
}

// ValidateUpload デコード前の検証（空データ・サイズ上限）
func ValidateUpload(upload domain.UploadedImage) error {
	if len(upload.Data) == 0 {
		return &domain.InputError{Filename: upload.Filename, Err: domain.ErrEmptyImage}
	}

	if upload.ExceedsLimit() {
		return &domain.InputError{Filename: upload.Filename, Err: domain.ErrImageTooLarge}
	}

	return nil
}

// Normalize 画像を検証し、向き補正・RGB化・縮小・JPEG再エンコードを行う
func (s *ImageIntake) Normalize(upload domain.UploadedImage) (*domain.NormalizedImage, error) {
	if err := ValidateUpload(upload); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(upload.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &domain.InputError{
			Filename: upload.Filename,
			Err:      fmt.Errorf("%w: %v", domain.ErrUndecodableImage, err),
		}
	}

	fitted := imaging.Fit(img, s.maxExtent, s.maxExtent, imaging.Lanczos)

	// 透過部分は白で塗りつぶしてRGBにする
	bounds := fitted.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	rgb := imaging.Overlay(background, fitted, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rgb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode normalized image: %w", err)
	}

	return &domain.NormalizedImage{
		Data:      buf.Bytes(),
		MediaType: "image/jpeg",
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
	}, nil
}
