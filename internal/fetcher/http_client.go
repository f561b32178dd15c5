package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/newsflow/variantpad/internal/config"
)

// StandardClient 标准 HTTP 客户端
type StandardClient struct {
	client        *http.Client
	userAgent     string
	maxImageBytes int64
}

// NewStandardClient 创建标准 HTTP 客户端
func NewStandardClient(cfg *config.Config) *StandardClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		TLSHandshakeTimeout:   10 * time.Second,
		DisableCompression:    false,
		ResponseHeaderTimeout: 10 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &StandardClient{
		client:        client,
		userAgent:     cfg.UserAgent,
		maxImageBytes: cfg.MaxImageBytes,
	}
}

// Name 路由名称
func (c *StandardClient) Name() string { return "standard" }

// FetchWithHeaders 使用标准客户端抓取页面
func (c *StandardClient) FetchWithHeaders(ctx context.Context, url string, headers map[string]string) *FetchResult {
	start := time.Now()
	result := &FetchResult{URL: url, Strategy: c.Name()}

	resp, err := c.do(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", headers)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.FinalURL = resp.Request.URL.String()
	result.StatusCode = resp.StatusCode
	result.ContentType = resp.Header.Get("Content-Type")

	if resp.StatusCode != http.StatusOK {
		result.Error = &HTTPError{StatusCode: resp.StatusCode}
		result.Duration = time.Since(start)
		return result
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	result.HTML = string(body)
	result.Duration = time.Since(start)
	return result
}

// FetchBytes 下载二进制内容（超过 maxImageBytes 视为失败）
func (c *StandardClient) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, url, "image/avif,image/webp,image/png,image/*,*/*;q=0.8", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode}
	}

	limit := c.maxImageBytes
	if limit <= 0 {
		return io.ReadAll(resp.Body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

func (c *StandardClient) do(ctx context.Context, url, accept string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.client.Do(req)
}
