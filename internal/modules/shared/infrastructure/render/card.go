package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
	"label-voice-app/internal/modules/label/service"
)

const (
	defaultWidth    = 800
	defaultMargin   = 40
	defaultLineGap  = 10
	defaultFontSize = 28
)

// CardRenderer 要約テキストを共有用のPNG画像カードにする
type CardRenderer struct {
	fontPaths []string
	fontSize  float64
	width     int
	margin    int
	lineGap   int

	// font.Faceは並行利用できないため描画全体をロックする
	mu       sync.Mutex
	loadOnce sync.Once
	face     font.Face
	warning  string
}

// NewCardRenderer 新しいCardRendererを作成
func NewCardRenderer(cfg *config.RenderConfig) *CardRenderer {
	r := &CardRenderer{
		fontPaths: cfg.FontPaths,
		fontSize:  cfg.FontSize,
		width:     cfg.Width,
		margin:    cfg.Margin,
		lineGap:   cfg.LineGap,
	}
	if r.width <= 0 {
		r.width = defaultWidth
	}
	if r.margin <= 0 {
		r.margin = defaultMargin
	}
	if r.lineGap <= 0 {
		r.lineGap = defaultLineGap
	}
	if r.fontSize <= 0 {
		r.fontSize = defaultFontSize
	}
	return r
}

// Render テキストを折り返して描画し、PNGのバイト列を返す。
// 中文フォントが見つからない場合は内蔵フォントで描画し、warningに理由を入れる
func (r *CardRenderer) Render(text string) ([]byte, string, error) {
	r.loadOnce.Do(r.loadFace)

	r.mu.Lock()
	defer r.mu.Unlock()

	measurer := service.MeasureFunc(func(s string) int {
		return font.MeasureString(r.face, s).Ceil()
	})
	lines := service.WrapText(text, measurer, r.width-2*r.margin)

	metrics := r.face.Metrics()
	lineHeight := metrics.Height.Ceil() + r.lineGap
	height := 2*r.margin + len(lines)*lineHeight

	img := image.NewRGBA(image.Rect(0, 0, r.width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: r.face,
	}
	for i, line := range lines {
		y := r.margin + i*lineHeight + metrics.Ascent.Ceil()
		drawer.Dot = fixed.P(r.margin, y)
		drawer.DrawString(line)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, r.warning, fmt.Errorf("failed to encode card: %w", err)
	}
	return buf.Bytes(), r.warning, nil
}

// loadFace 優先順にフォントを探し、見つからなければbasicfontにする
func (r *CardRenderer) loadFace() {
	for _, path := range r.fontPaths {
		face, err := loadFontFile(path, r.fontSize)
		if err != nil {
			slog.Debug("font not usable", "path", path, "error", err)
			continue
		}
		slog.Info("card font loaded", "path", path)
		r.face = face
		return
	}

	slog.Warn("no CJK font found, using built-in font", "candidates", len(r.fontPaths))
	r.face = basicfont.Face7x13
	r.warning = domain.MsgFallbackFont
}

func loadFontFile(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f *opentype.Font
	if bytes.HasPrefix(data, []byte("ttcf")) {
		coll, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font collection: %w", err)
		}
		if f, err = coll.Font(0); err != nil {
			return nil, fmt.Errorf("failed to read font from collection: %w", err)
		}
	} else {
		if f, err = opentype.Parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
