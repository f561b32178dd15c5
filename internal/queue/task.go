package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/processor"
	"github.com/newsflow/variantpad/internal/resolver"
	"github.com/newsflow/variantpad/internal/service"
)

// Task 队列任务
//
// Variant 为空时只返回变体列表；否则处理选中的变体（all 为全部图片）并上传归档。
type Task struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	Variant         string    `json:"variant,omitempty"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Result 任务结果
type Result struct {
	TaskID     string               `json:"taskId"`
	URL        string               `json:"url"`
	Success    bool                 `json:"success"`
	Strategy   string               `json:"strategy,omitempty"`
	Selections []resolver.Selection `json:"selections,omitempty"`
	Variant    string               `json:"variant,omitempty"`
	Attempted  int                  `json:"attempted,omitempty"`
	Succeeded  int                  `json:"succeeded,omitempty"`
	Failures   []processor.Failure  `json:"failures,omitempty"`
	ArchiveURL string               `json:"archiveUrl,omitempty"`
	Status     string               `json:"status,omitempty"`
	Duration   int64                `json:"duration"`
	Error      string               `json:"error,omitempty"`
}

// DecodeTask 解析任务，缺少 ID 时补一个
func DecodeTask(data []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	return &task, nil
}

// Service 队列任务依赖的服务
type Service interface {
	Scrape(ctx context.Context, rawURL string) (*service.ScrapeResult, error)
	Process(ctx context.Context, req service.ProcessRequest, progress func(processor.Progress)) (*service.ProcessResult, error)
}

// TaskHandler 任务处理函数
type TaskHandler func(ctx context.Context, task *Task) *Result

// NewTaskHandler 创建任务处理函数
func NewTaskHandler(svc Service, logger *zap.Logger) TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, task *Task) *Result {
		start := time.Now()
		result := &Result{TaskID: task.ID, URL: task.URL}
		defer func() { result.Duration = time.Since(start).Milliseconds() }()

		if task.Variant == "" {
			scraped, err := svc.Scrape(ctx, task.URL)
			if err != nil {
				result.Error = err.Error()
				logger.Warn("list task failed", zap.String("task_id", task.ID), zap.Error(err))
				return result
			}
			result.Success = true
			result.Strategy = scraped.Strategy
			result.Selections = scraped.Selections
			result.Status = scraped.Status
			return result
		}

		processed, err := svc.Process(ctx, service.ProcessRequest{
			URL:       task.URL,
			Selection: task.Variant,
			Pad: processor.PadOptions{
				Width:           task.Width,
				Height:          task.Height,
				BackgroundColor: task.BackgroundColor,
			},
			Store: true,
			JobID: task.ID,
		}, func(p processor.Progress) {
			logger.Debug(p.Message, zap.String("task_id", task.ID), zap.String("url", p.URL))
		})
		if err != nil {
			result.Error = err.Error()
			logger.Warn("process task failed", zap.String("task_id", task.ID), zap.Error(err))
			return result
		}

		result.Success = processed.Report.Succeeded > 0
		result.Strategy = processed.Scrape.Strategy
		result.Variant = processed.Selection
		result.Attempted = processed.Report.Attempted
		result.Succeeded = processed.Report.Succeeded
		result.Failures = processed.Report.Failures
		result.ArchiveURL = processed.ArchiveURL
		result.Status = processed.Status
		return result
	}
}
