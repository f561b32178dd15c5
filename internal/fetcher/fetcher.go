package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/config"
	"github.com/newsflow/variantpad/internal/extractor"
)

var (
	// ErrAllRoutesFailed 所有抓取路由均失败
	ErrAllRoutesFailed = errors.New("all retrieval routes failed")
	// ErrEmptyBody 响应体为空
	ErrEmptyBody = errors.New("empty response body")
	// ErrChallenge 响应是反爬挑战页
	ErrChallenge = errors.New("challenge page")
	// ErrTooLarge 响应超过大小限制
	ErrTooLarge = errors.New("response too large")
	// ErrUnsupported 路由不支持该请求
	ErrUnsupported = errors.New("unsupported by route")
)

// FetchResult 抓取结果
type FetchResult struct {
	URL         string
	FinalURL    string
	HTML        string
	StatusCode  int
	ContentType string
	Strategy    string // cycletls, standard, proxy:<host>, browser
	Duration    time.Duration
	Error       error
}

// HTTPError HTTP 错误
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// Route 页面抓取路由
type Route interface {
	Name() string
	FetchWithHeaders(ctx context.Context, url string, headers map[string]string) *FetchResult
}

// ImageRoute 二进制图片下载路由
type ImageRoute interface {
	Name() string
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Fetcher 统一抓取器：按固定顺序尝试各路由，第一个成功的结果胜出
type Fetcher struct {
	routes      []Route
	imageRoutes []ImageRoute
	closers     []func()
	logger      *zap.Logger
	observe     func(strategy string, ok bool)
}

// New 创建抓取器
//
// 页面路由顺序：CycleTLS → 标准客户端 → 代理模板 → 无头浏览器（启用时）。
// 图片路由顺序：标准客户端 → 代理模板。
func New(cfg *config.Config, logger *zap.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	standard := NewStandardClient(cfg)

	var routes []Route
	var closers []func()

	// CycleTLS 失败时只使用标准客户端
	if cycle, err := NewCycleTLSClient(cfg); err == nil {
		routes = append(routes, cycle)
		closers = append(closers, cycle.Close)
	} else {
		logger.Warn("cycletls unavailable", zap.Error(err))
	}
	routes = append(routes, standard)

	imageRoutes := []ImageRoute{standard}
	for _, tpl := range cfg.ProxyTemplates {
		proxy, err := NewProxyRoute(tpl, standard)
		if err != nil {
			logger.Warn("skip proxy template", zap.String("template", tpl), zap.Error(err))
			continue
		}
		routes = append(routes, proxy)
		imageRoutes = append(imageRoutes, proxy)
	}

	if cfg.BrowserEnabled {
		browser := NewBrowserClient(cfg)
		routes = append(routes, browser)
		closers = append(closers, browser.Close)
	}

	f := NewWithRoutes(routes, imageRoutes, logger)
	f.closers = closers
	return f, nil
}

// NewWithRoutes 使用给定路由创建抓取器
func NewWithRoutes(routes []Route, imageRoutes []ImageRoute, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{routes: routes, imageRoutes: imageRoutes, logger: logger}
}

// OnAttempt 设置每次路由尝试后的回调（用于指标统计）
func (f *Fetcher) OnAttempt(fn func(strategy string, ok bool)) {
	f.observe = fn
}

// Strategies 返回页面路由名称（按尝试顺序）
func (f *Fetcher) Strategies() []string {
	names := make([]string, 0, len(f.routes))
	for _, r := range f.routes {
		names = append(names, r.Name())
	}
	return names
}

// Fetch 抓取页面
func (f *Fetcher) Fetch(ctx context.Context, url string) *FetchResult {
	return f.FetchWithHeaders(ctx, url, nil)
}

// FetchWithHeaders 带自定义 Headers 抓取
//
// 路由失败、返回空内容或挑战页都算失败并尝试下一条；
// 全部失败时 Error 聚合了每条路由的失败原因。
func (f *Fetcher) FetchWithHeaders(ctx context.Context, url string, headers map[string]string) *FetchResult {
	start := time.Now()
	var errs error

	for _, route := range f.routes {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}

		result := route.FetchWithHeaders(ctx, url, headers)
		err := checkResult(result)
		f.record(route.Name(), err == nil)
		if err == nil {
			return result
		}

		f.logger.Debug("route failed",
			zap.String("url", url),
			zap.String("strategy", route.Name()),
			zap.Error(err),
		)
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", route.Name(), err))
	}

	if errs == nil {
		errs = errors.New("no routes configured")
	}
	return &FetchResult{
		URL:      url,
		Strategy: "none",
		Duration: time.Since(start),
		Error:    fmt.Errorf("%w: %s: %w", ErrAllRoutesFailed, url, errs),
	}
}

// FetchWithStrategy 指定路由抓取（不回退）
func (f *Fetcher) FetchWithStrategy(ctx context.Context, url, strategy string) *FetchResult {
	for _, route := range f.routes {
		if route.Name() != strategy {
			continue
		}
		result := route.FetchWithHeaders(ctx, url, nil)
		if err := checkResult(result); err != nil {
			result.Error = err
		}
		f.record(route.Name(), result.Error == nil)
		return result
	}
	return f.Fetch(ctx, url)
}

// FetchImage 下载图片
func (f *Fetcher) FetchImage(ctx context.Context, url string) ([]byte, error) {
	var errs error
	for _, route := range f.imageRoutes {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		data, err := route.FetchBytes(ctx, url)
		if err == nil && len(data) == 0 {
			err = ErrEmptyBody
		}
		f.record(route.Name(), err == nil)
		if err == nil {
			return data, nil
		}
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", route.Name(), err))
	}
	if errs == nil {
		errs = errors.New("no routes configured")
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrAllRoutesFailed, url, errs)
}

// Close 关闭抓取器
func (f *Fetcher) Close() {
	for _, c := range f.closers {
		c()
	}
}

func (f *Fetcher) record(strategy string, ok bool) {
	if f.observe != nil {
		f.observe(strategy, ok)
	}
}

func checkResult(result *FetchResult) error {
	switch {
	case result == nil:
		return ErrEmptyBody
	case result.Error != nil:
		return result.Error
	case result.HTML == "":
		return ErrEmptyBody
	case extractor.IsChallengePage(result.HTML):
		return ErrChallenge
	}
	return nil
}
