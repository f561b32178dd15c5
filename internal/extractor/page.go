package extractor

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ScanCDN 全文扫描可信 CDN 上的图片地址
//
// 内联脚本中 JSON 转义的斜杠（https:\/\/cdn...）先还原再匹配。
func ScanCDN(doc *Document, opts Options) []Candidate {
	opts = opts.prepared()
	if opts.cdnPattern == nil {
		return nil
	}

	text := strings.ReplaceAll(doc.Source, `\/`, "/")
	var out []Candidate
	for _, m := range opts.cdnPattern.FindAllString(text, -1) {
		out = append(out, Candidate{URL: m, Source: SourceCDN})
	}
	return out
}

// ScanStructuredData 扫描 application/ld+json 脚本中的图片地址
//
// 任一脚本解析失败只跳过该脚本。
func ScanStructuredData(doc *Document, opts Options) []Candidate {
	opts = opts.prepared()
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Source))
	if err != nil {
		return nil
	}

	var out []Candidate
	gq.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return
		}
		walkJSON(data, func(v string) {
			if opts.isImage(v) {
				out = append(out, Candidate{URL: v, Source: SourceStructuredData})
			}
		})
	})
	return out
}

// walkJSON 深度优先遍历所有字符串值（对象键按字典序）
func walkJSON(node any, visit func(string)) {
	switch v := node.(type) {
	case string:
		visit(v)
	case []any:
		for _, item := range v {
			walkJSON(item, visit)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkJSON(v[k], visit)
		}
	}
}

// ScanInline 扫描常见图片属性：img src、data-src、srcset、data-image、data-zoom-src、data-product-image
func ScanInline(doc *Document, opts Options) []Candidate {
	opts = opts.prepared()
	var out []Candidate
	for _, ev := range doc.Events {
		if ev.Kind != StartTag {
			continue
		}
		for _, a := range ev.Attrs {
			for _, ref := range opts.pageImageValues(ev.Tag, a) {
				out = append(out, Candidate{URL: ref, Source: SourceInline})
			}
		}
	}
	return out
}
