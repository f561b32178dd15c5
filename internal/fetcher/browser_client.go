package fetcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/newsflow/variantpad/internal/config"
)

// BrowserClient 无头浏览器路由（远程 browserless 或本地 Chrome）
//
// 只用于页面抓取，JSON 请求直接返回 ErrUnsupported。
type BrowserClient struct {
	remoteURL string
	userAgent string
	timeout   time.Duration

	once        sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewBrowserClient 创建浏览器客户端（分配器在首次使用时创建）
func NewBrowserClient(cfg *config.Config) *BrowserClient {
	return &BrowserClient{
		remoteURL: cfg.BrowserlessURL,
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout * 2,
	}
}

// Name 路由名称
func (b *BrowserClient) Name() string { return "browser" }

func (b *BrowserClient) allocator() context.Context {
	b.once.Do(func() {
		if b.remoteURL != "" {
			b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), b.remoteURL)
			return
		}
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(b.userAgent),
		)
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return b.allocCtx
}

// FetchWithHeaders 渲染页面并返回最终 HTML
func (b *BrowserClient) FetchWithHeaders(ctx context.Context, url string, headers map[string]string) *FetchResult {
	start := time.Now()
	result := &FetchResult{URL: url, Strategy: b.Name()}

	if strings.Contains(headers["Accept"], "application/json") {
		result.Error = fmt.Errorf("%w: json request", ErrUnsupported)
		return result
	}

	taskCtx, cancel := chromedp.NewContext(b.allocator())
	defer cancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, b.timeout)
	defer timeoutCancel()

	// 调用方取消时同时结束浏览器任务
	stop := context.AfterFunc(ctx, timeoutCancel)
	defer stop()

	var html, location string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		return result
	}

	result.FinalURL = location
	if result.FinalURL == "" {
		result.FinalURL = url
	}
	result.StatusCode = 200
	result.ContentType = "text/html"
	result.HTML = html
	return result
}

// Close 关闭浏览器分配器
func (b *BrowserClient) Close() {
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
