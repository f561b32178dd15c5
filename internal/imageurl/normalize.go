// Package imageurl 把页面中出现的原始图片引用规范化为可比较的绝对地址。
//
// 规范化后的地址即为去重身份：查询串与片段已被剥离，
// 因此同一张图片的不同尺寸参数（?v=123&width=600）视为同一项。
package imageurl

import (
	"net/url"
	"strings"
)

// DefaultExtensions 可识别的图片扩展名
var DefaultExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// DefaultExcludedWords 全页扫描时排除的装饰性图片关键字
var DefaultExcludedWords = []string{"logo", "icon", "favicon", "sprite", "placeholder"}

// Options 规范化选项
type Options struct {
	// 可信 CDN 主机标记（子串匹配）
	CDNHosts []string
	// 图片扩展名（不含点）
	Extensions []string
	// 全页扫描排除关键字
	ExcludedWords []string
}

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		CDNHosts:      []string{"cdn.shopify.com"},
		Extensions:    DefaultExtensions,
		ExcludedWords: DefaultExcludedWords,
	}
}

// Normalizer 图片地址规范化器（绑定页面来源）
type Normalizer struct {
	origin string
	opts   Options
}

// New 创建规范化器，origin 为页面的 scheme://host
func New(origin string, opts Options) *Normalizer {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Normalizer{origin: strings.TrimRight(origin, "/"), opts: opts}
}

// ForPage 根据页面地址创建规范化器
func ForPage(pageURL string, opts Options) *Normalizer {
	return New(Origin(pageURL), opts)
}

// Origin 返回页面地址的 scheme://host，无法解析时返回空串
func Origin(pageURL string) string {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Normalize 规范化原始引用
//
// 规则：
//  1. http(s) 绝对地址原样保留
//  2. 协议相对地址（//host/...）补全为 https:
//  3. 根相对地址（/path）拼接页面来源
//  4. 其余相对形式拒绝
//  5. 剥离查询串与片段
//  6. 路径以图片扩展名结尾，或主机属于可信 CDN，才接受
//
// 对已规范化的地址再次调用结果不变。
func (n *Normalizer) Normalize(raw string) (string, bool) {
	abs, ok := n.absolute(raw)
	if !ok {
		return "", false
	}
	abs = Canonical(abs)

	u, err := url.Parse(abs)
	if err != nil || u.Host == "" {
		return "", false
	}
	if !n.hasExtension(u.Path) && !n.isCDN(u.Host) {
		return "", false
	}
	return abs, true
}

// NormalizePage 全页扫描使用的规范化：可信 CDN 之外的地址还需通过排除关键字过滤
func (n *Normalizer) NormalizePage(raw string) (string, bool) {
	abs, ok := n.Normalize(raw)
	if !ok {
		return "", false
	}
	if n.IsCDN(abs) {
		return abs, true
	}
	lower := strings.ToLower(abs)
	for _, word := range n.opts.ExcludedWords {
		if strings.Contains(lower, word) {
			return "", false
		}
	}
	return abs, true
}

// NormalizeImage 规范化并要求以图片扩展名结尾
//
// Normalize 对可信 CDN 放宽了扩展名要求；写入变体图片列表的地址一律经过这里。
func (n *Normalizer) NormalizeImage(raw string) (string, bool) {
	abs, ok := n.Normalize(raw)
	if !ok || !n.hasExtension(abs) {
		return "", false
	}
	return abs, true
}

// NormalizePageImage 全页扫描的 NormalizeImage
func (n *Normalizer) NormalizePageImage(raw string) (string, bool) {
	abs, ok := n.NormalizePage(raw)
	if !ok || !n.hasExtension(abs) {
		return "", false
	}
	return abs, true
}

// IsCDN 地址主机是否属于可信 CDN
func (n *Normalizer) IsCDN(abs string) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	return n.isCDN(u.Host)
}

// HasImageExtension 原始引用（剥离查询串后）是否以图片扩展名结尾
func (n *Normalizer) HasImageExtension(raw string) bool {
	return n.hasExtension(Canonical(raw))
}

func (n *Normalizer) absolute(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case raw == "":
		return "", false
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return raw, true
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw, true
	case strings.HasPrefix(raw, "/"):
		if n.origin == "" {
			return "", false
		}
		return n.origin + raw, true
	default:
		return "", false
	}
}

func (n *Normalizer) hasExtension(path string) bool {
	return HasExtension(path, n.opts.Extensions)
}

// HasExtension 原始引用剥离查询串后是否以给定扩展名之一结尾（忽略大小写）
func HasExtension(raw string, exts []string) bool {
	lower := strings.ToLower(Canonical(raw))
	for _, ext := range exts {
		if strings.HasSuffix(lower, "."+ext) {
			return true
		}
	}
	return false
}

func (n *Normalizer) isCDN(host string) bool {
	host = strings.ToLower(host)
	for _, marker := range n.opts.CDNHosts {
		if marker != "" && strings.Contains(host, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Canonical 剥离查询串与片段
func Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// Filename 返回地址路径的最后一段
func Filename(raw string) string {
	raw = Canonical(raw)
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
