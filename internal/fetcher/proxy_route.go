package fetcher

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ProxyRoute 通过公共转发代理抓取（模板中的 {url} 替换为转义后的目标地址）
type ProxyRoute struct {
	name     string
	template string
	client   *StandardClient
}

// NewProxyRoute 创建代理路由
func NewProxyRoute(template string, client *StandardClient) (*ProxyRoute, error) {
	if !strings.Contains(template, "{url}") {
		return nil, errors.New("template has no {url} placeholder")
	}
	u, err := url.Parse(strings.ReplaceAll(template, "{url}", ""))
	if err != nil || u.Host == "" {
		return nil, errors.New("template is not an absolute url")
	}
	return &ProxyRoute{name: "proxy:" + u.Host, template: template, client: client}, nil
}

// Name 路由名称
func (p *ProxyRoute) Name() string { return p.name }

// Target 生成代理地址
func (p *ProxyRoute) Target(target string) string {
	return strings.ReplaceAll(p.template, "{url}", url.QueryEscape(target))
}

// FetchWithHeaders 经代理抓取页面
func (p *ProxyRoute) FetchWithHeaders(ctx context.Context, target string, headers map[string]string) *FetchResult {
	result := p.client.FetchWithHeaders(ctx, p.Target(target), headers)
	result.URL = target
	result.FinalURL = target
	result.Strategy = p.name
	return result
}

// FetchBytes 经代理下载二进制内容
func (p *ProxyRoute) FetchBytes(ctx context.Context, target string) ([]byte, error) {
	return p.client.FetchBytes(ctx, p.Target(target))
}
