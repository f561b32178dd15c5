package resolver

import (
	"strings"

	"github.com/newsflow/variantpad/internal/extractor"
	"github.com/newsflow/variantpad/internal/product"
)

// variantContext 单个变体的解析上下文
type variantContext struct {
	record     *product.Record
	variant    *product.Variant
	id         product.ID
	name       string
	candidates []extractor.Candidate
}

// Step 解析策略中的一步，返回原始图片引用（规范化与去重由解析器完成）
type Step struct {
	Name string
	Fn   func(vc *variantContext) []string
}

// TaggedImages 商品图片的 variant_ids 显式包含该变体
var TaggedImages = Step{Name: "variant_ids", Fn: func(vc *variantContext) []string {
	if vc.record == nil {
		return nil
	}
	var out []string
	for _, img := range vc.record.Images {
		if img.TaggedWith(vc.id) {
			out = append(out, img.Src)
		}
	}
	return out
}}

// FilenameMatches 商品图片文件名命中变体名
var FilenameMatches = Step{Name: "filename", Fn: func(vc *variantContext) []string {
	if vc.record == nil {
		return nil
	}
	m := NewFilenameMatcher(vc.name)
	var out []string
	for _, img := range vc.record.Images {
		if m.Match(img.Src) {
			out = append(out, img.Src)
		}
	}
	return out
}}

// ScopedCandidates HTML 范围候选：先精确匹配，再忽略大小写匹配
var ScopedCandidates = Step{Name: "html", Fn: func(vc *variantContext) []string {
	var out []string
	for _, c := range vc.candidates {
		if c.Scoped() && c.Variant == vc.name {
			out = append(out, c.URL)
		}
	}
	for _, c := range vc.candidates {
		if c.Scoped() && c.Variant != vc.name && strings.EqualFold(c.Variant, vc.name) {
			out = append(out, c.URL)
		}
	}
	return out
}}

// PrimaryImage 变体指定主图：image_id 对应图片，以及内嵌 JSON 的 featured_image
var PrimaryImage = Step{Name: "image_id", Fn: func(vc *variantContext) []string {
	if vc.variant == nil {
		return nil
	}
	var out []string
	if vc.record != nil {
		if img, ok := vc.record.ImageByID(vc.variant.ImageID); ok {
			out = append(out, img.Src)
		}
	}
	if vc.variant.FeaturedImage != "" {
		out = append(out, vc.variant.FeaturedImage)
	}
	return out
}}

// DefaultPolicy 默认合并顺序
var DefaultPolicy = []Step{TaggedImages, FilenameMatches, ScopedCandidates, PrimaryImage}
