package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"strconv"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension 画布单边默认上限
const DefaultMaxDimension = 8192

var (
	// ErrInvalidColor 背景色不是 #RRGGBB 格式
	ErrInvalidColor = errors.New("invalid background color")
	// ErrCanvasTooLarge 画布超过单边上限
	ErrCanvasTooLarge = errors.New("canvas too large")
)

// PadOptions 输出画布参数
type PadOptions struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	BackgroundColor string `json:"backgroundColor"`
	// 单边上限，<=0 时使用 DefaultMaxDimension；只由服务端配置
	MaxDimension int `json:"-"`
}

// Validate 校验尺寸与颜色
func (o PadOptions) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", o.Width, o.Height)
	}
	limit := o.MaxDimension
	if limit <= 0 {
		limit = DefaultMaxDimension
	}
	if o.Width > limit || o.Height > limit {
		return fmt.Errorf("%w: %dx%d exceeds %d", ErrCanvasTooLarge, o.Width, o.Height, limit)
	}
	if _, err := ParseHexColor(o.BackgroundColor); err != nil {
		return err
	}
	return nil
}

// ParseHexColor 解析 #RRGGBB（# 可省略）
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// ImageProcessor 图片处理器：等比缩放到画布内、居中、背景色填充、输出 PNG
//
// 同一时刻只处理一张图片。
type ImageProcessor struct {
	mu     sync.Mutex
	scaler xdraw.Interpolator
}

// NewImageProcessor 创建图片处理器
func NewImageProcessor() *ImageProcessor {
	return &ImageProcessor{scaler: xdraw.CatmullRom}
}

// Pad 处理单张图片
func (p *ImageProcessor) Pad(data []byte, opts PadOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	bg, err := ParseHexColor(opts.BackgroundColor)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	target := FitRect(src.Bounds().Dx(), src.Bounds().Dy(), opts.Width, opts.Height)
	if target.Empty() {
		return nil, fmt.Errorf("empty %s image", format)
	}
	p.scaler.Scale(canvas, target, src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// FitRect 等比缩放（可放大可缩小）后在画布中居中的目标区域
func FitRect(srcW, srcH, width, height int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rectangle{}
	}
	scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
	w := max(1, min(width, int(math.Round(float64(srcW)*scale))))
	h := max(1, min(height, int(math.Round(float64(srcH)*scale))))
	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}
