package extractor

import (
	"regexp"
	"strings"

	"github.com/newsflow/variantpad/internal/imageurl"
)

// Source 候选图片的来源扫描器
type Source string

const (
	SourceCDN            Source = "cdn"
	SourceStructuredData Source = "json-ld"
	SourceInline         Source = "inline"
	SourceProximity      Source = "proximity"
	SourceElement        Source = "element"
	SourceForward        Source = "forward"
)

// Candidate 候选图片
//
// Variant 为空表示未归属任何变体（全页扫描结果）。
// URL 是原始引用，规范化由解析器统一完成。
type Candidate struct {
	Variant string
	URL     string
	Source  Source
}

// Scoped 是否归属某个变体
func (c Candidate) Scoped() bool { return c.Variant != "" }

// Options 提取选项
type Options struct {
	// 变体标记属性名
	MarkerAttribute string
	// 标记邻近窗口：[offset-WindowBefore, offset+WindowAfter)
	WindowBefore int
	WindowAfter  int
	// 标记元素内容扫描的最大跨度
	ElementSpan int
	// 向前扫描跨度与数量上限
	ForwardSpan  int
	ForwardLimit int
	// 可信图片 CDN 主机
	CDNHosts []string
	// 图片扩展名
	Extensions []string
	// 内嵌商品 JSON 匹配模式（按顺序尝试，第一个捕获组为 JSON 文本）
	ProductJSONPatterns []string

	cdnPattern      *regexp.Regexp
	productPatterns []*regexp.Regexp
}

// DefaultProductJSONPatterns 默认内嵌商品 JSON 模式
var DefaultProductJSONPatterns = []string{
	`(?is)<script[^>]*id=["']product-json["'][^>]*>(.*?)</script>`,
	`(?is)<script[^>]*data-product-json[^>]*>(.*?)</script>`,
	`(?s)window\.__INITIAL_STATE__\s*=\s*({.*?});`,
	`(?s)Product\.json\s*=\s*({.*?});`,
	`(?s)"product":\s*({[^}]+"variants"[^}]+})`,
}

// DefaultOptions 默认提取选项
func DefaultOptions() Options {
	return Options{
		MarkerAttribute:     "data-variant",
		WindowBefore:        500,
		WindowAfter:         2000,
		ElementSpan:         3000,
		ForwardSpan:         5000,
		ForwardLimit:        50,
		CDNHosts:            []string{"cdn.shopify.com"},
		Extensions:          imageurl.DefaultExtensions,
		ProductJSONPatterns: DefaultProductJSONPatterns,
	}.prepared()
}

// prepared 编译正则（已编译则直接返回）
func (o Options) prepared() Options {
	if len(o.Extensions) == 0 {
		o.Extensions = imageurl.DefaultExtensions
	}
	if o.MarkerAttribute == "" {
		o.MarkerAttribute = "data-variant"
	}
	o.MarkerAttribute = strings.ToLower(o.MarkerAttribute)

	if o.cdnPattern == nil && len(o.CDNHosts) > 0 {
		hosts := make([]string, 0, len(o.CDNHosts))
		for _, h := range o.CDNHosts {
			hosts = append(hosts, regexp.QuoteMeta(h))
		}
		exts := make([]string, 0, len(o.Extensions))
		for _, e := range o.Extensions {
			exts = append(exts, regexp.QuoteMeta(e))
		}
		o.cdnPattern = regexp.MustCompile(`(?i)(?:https?:)?//(?:` + strings.Join(hosts, "|") +
			`)/[^"'\s<>()\\]*\.(?:` + strings.Join(exts, "|") + `)(?:\?[^"'\s<>()\\]*)?`)
	}

	if o.productPatterns == nil {
		for _, p := range o.ProductJSONPatterns {
			if re, err := regexp.Compile(p); err == nil {
				o.productPatterns = append(o.productPatterns, re)
			}
		}
	}
	return o
}

// isImage 引用是否以图片扩展名结尾
func (o Options) isImage(raw string) bool {
	return imageurl.HasExtension(raw, o.Extensions)
}

// scopedAttrs 变体范围扫描读取的单值属性
var scopedAttrs = map[string]bool{
	"src":                true,
	"data-src":           true,
	"data-image":         true,
	"data-zoom-src":      true,
	"data-zoom":          true,
	"data-product-image": true,
	"href":               true,
}

// pageAttrs 全页内联扫描读取的单值属性（src 仅限 <img>）
var pageAttrs = map[string]bool{
	"data-src":           true,
	"data-image":         true,
	"data-zoom-src":      true,
	"data-product-image": true,
}

var cssURLPattern = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)

// scopedImageValues 从属性中取出图片引用（变体范围扫描）
func (o Options) scopedImageValues(a Attr) []string {
	switch {
	case scopedAttrs[a.Key]:
		return o.filterImages([]string{a.Val})
	case a.Key == "srcset" || a.Key == "data-srcset":
		return o.filterImages(srcsetURLs(a.Val))
	case a.Key == "style":
		var refs []string
		for _, m := range cssURLPattern.FindAllStringSubmatch(a.Val, -1) {
			refs = append(refs, m[1])
		}
		return o.filterImages(refs)
	}
	return nil
}

// pageImageValues 从属性中取出图片引用（全页内联扫描）
func (o Options) pageImageValues(tag string, a Attr) []string {
	switch {
	case a.Key == "src" && tag == "img":
		return o.filterImages([]string{a.Val})
	case pageAttrs[a.Key]:
		return o.filterImages([]string{a.Val})
	case a.Key == "srcset" || a.Key == "data-srcset":
		return o.filterImages(srcsetURLs(a.Val))
	}
	return nil
}

func (o Options) filterImages(refs []string) []string {
	var out []string
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r != "" && o.isImage(r) {
			out = append(out, r)
		}
	}
	return out
}

// srcsetURLs 取 srcset 每一项的地址部分
func srcsetURLs(srcset string) []string {
	var out []string
	for _, item := range strings.Split(srcset, ",") {
		fields := strings.Fields(item)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}
