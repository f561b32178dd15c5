// Package extractor 从商品页 HTML 中提取候选图片。
//
// 各扫描器都是纯函数：输入已分词的文档与选项，输出候选列表，
// 解析失败只会让对应扫描器产出为空，不会向上返回错误。
package extractor

import (
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/product"
)

// Scan 候选扫描器
type Scan func(doc *Document, opts Options) []Candidate

// DefaultScans 默认扫描顺序：全页扫描在前，变体范围扫描在后
var DefaultScans = []Scan{
	ScanCDN,
	ScanStructuredData,
	ScanInline,
	ScanProximity,
	ScanElementContent,
	ScanForward,
}

// ProductSource 商品记录来源
type ProductSource string

const (
	ProductNone     ProductSource = ""
	ProductSupplied ProductSource = "endpoint"
	ProductEmbedded ProductSource = "embedded"
)

// Result 提取结果
type Result struct {
	Candidates    []Candidate
	Product       *product.Record
	ProductSource ProductSource
	// 按发现顺序去重的变体标记名
	Markers  []string
	Metadata Metadata
}

// Extractor 候选图片提取器
type Extractor struct {
	opts   Options
	scans  []Scan
	logger *zap.Logger
}

// New 创建提取器
func New(opts Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		opts:   opts.prepared(),
		scans:  DefaultScans,
		logger: logger,
	}
}

// Options 返回生效的提取选项
func (e *Extractor) Options() Options {
	return e.opts
}

// Extract 运行全部扫描器
//
// supplied 为 .json 端点取得的商品记录；为空时尝试页面内嵌商品 JSON。
func (e *Extractor) Extract(html, pageURL string, supplied *product.Record) *Result {
	doc := NewDocument(html)
	res := &Result{Product: supplied}

	if supplied != nil {
		res.ProductSource = ProductSupplied
	} else if rec := ScanProductJSON(doc, e.opts); rec != nil {
		res.Product = rec
		res.ProductSource = ProductEmbedded
	} else {
		e.logger.Debug("no embedded product json", zap.String("url", pageURL))
	}

	for _, scan := range e.scans {
		res.Candidates = append(res.Candidates, scan(doc, e.opts)...)
	}

	for _, m := range doc.FirstMarkers(e.opts.MarkerAttribute) {
		res.Markers = append(res.Markers, m.Name)
	}

	res.Metadata = PageMetadata(html, pageURL)

	e.logger.Debug("extracted candidates",
		zap.String("url", pageURL),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("markers", len(res.Markers)),
		zap.String("product", string(res.ProductSource)),
	)
	return res
}
