package processor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoImages 没有可处理的图片
	ErrNoImages = errors.New("no images to process")
	// ErrBatchInFlight 已有批处理在运行
	ErrBatchInFlight = errors.New("a batch is already running")
)

// ImageFetcher 图片下载
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Failure 单张图片失败
type Failure struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Error string `json:"error"`
}

// Progress 进度事件
type Progress struct {
	Index   int
	Total   int
	URL     string
	Message string
}

// Report 批处理报告
type Report struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failures  []Failure     `json:"failures,omitempty"`
	Files     []File        `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// Status 用户可见的结果描述
func (r *Report) Status() string {
	return fmt.Sprintf("Successfully processed %d of %d images", r.Succeeded, r.Attempted)
}

// Batch 顺序批处理器
//
// 图片逐张处理：下载 → 变换 → 收集，单张失败记录后继续；
// 同一实例同一时刻只允许一个批次运行。
type Batch struct {
	fetcher   ImageFetcher
	processor *ImageProcessor
	logger    *zap.Logger
	running   atomic.Bool
	onImage   func(ok bool)
}

// NewBatch 创建批处理器
func NewBatch(fetcher ImageFetcher, processor *ImageProcessor, logger *zap.Logger) *Batch {
	if processor == nil {
		processor = NewImageProcessor()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{fetcher: fetcher, processor: processor, logger: logger}
}

// OnImage 设置单张图片完成回调（用于指标统计）
func (b *Batch) OnImage(fn func(ok bool)) {
	b.onImage = fn
}

// Running 是否有批次在运行
func (b *Batch) Running() bool {
	return b.running.Load()
}

// Run 处理图片列表
//
// 输出文件按输入位置命名，失败的位置不会被后续图片占用。
// 返回的错误只表示批次无法开始（空列表、参数无效、已有批次）。
func (b *Batch) Run(ctx context.Context, urls []string, opts PadOptions, progress func(Progress)) (*Report, error) {
	if len(urls) == 0 {
		return nil, ErrNoImages
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !b.running.CompareAndSwap(false, true) {
		return nil, ErrBatchInFlight
	}
	defer b.running.Store(false)

	start := time.Now()
	report := &Report{}
	total := len(urls)

	for i, u := range urls {
		report.Attempted++
		notify(progress, Progress{Index: i, Total: total, URL: u,
			Message: fmt.Sprintf("Processing image %d of %d", i+1, total)})

		data, err := b.processOne(ctx, u, opts)
		if err != nil {
			b.logger.Warn("image failed",
				zap.Int("index", i),
				zap.String("url", u),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, Failure{Index: i, URL: u, Error: err.Error()})
			notify(progress, Progress{Index: i, Total: total, URL: u,
				Message: fmt.Sprintf("Failed to process image %d: %v", i+1, err)})
			b.count(false)
			continue
		}

		report.Files = append(report.Files, File{Name: OutputName(i), Data: data})
		report.Succeeded++
		b.count(true)
	}

	report.Duration = time.Since(start)
	b.logger.Info("batch finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (b *Batch) processOne(ctx context.Context, url string, opts PadOptions) ([]byte, error) {
	raw, err := b.fetcher.FetchImage(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return b.processor.Pad(raw, opts)
}

func (b *Batch) count(ok bool) {
	if b.onImage != nil {
		b.onImage(ok)
	}
}

func notify(fn func(Progress), p Progress) {
	if fn != nil {
		fn(p)
	}
}
