package extractor

import (
	"strings"

	"github.com/newsflow/variantpad/internal/product"
)

// ScanProductJSON 在页面中查找内嵌商品 JSON
//
// 按模式顺序尝试，第一个能解析出商品的匹配胜出；全部失败返回 nil。
func ScanProductJSON(doc *Document, opts Options) *product.Record {
	opts = opts.prepared()
	for _, re := range opts.productPatterns {
		m := re.FindStringSubmatch(doc.Source)
		if len(m) < 2 {
			continue
		}
		rec, err := product.Parse([]byte(strings.TrimSpace(m[1])))
		if err != nil {
			continue
		}
		return rec
	}
	return nil
}
