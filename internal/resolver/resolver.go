// Package resolver 把商品记录与候选图片合并为每个变体的有序图片集。
package resolver

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/extractor"
	"github.com/newsflow/variantpad/internal/imageurl"
	"github.com/newsflow/variantpad/internal/product"
)

const (
	// AllID 聚合选项 / 合成变体的 id
	AllID = "all"
	// AllVariantName 无变体时合成变体的名称
	AllVariantName = "All Product Images"
)

// Variant 解析后的变体
type Variant struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
	// 图片是否来自回退（共享图片或全部图片）
	Fallback bool `json:"fallback,omitempty"`
}

// Result 解析结果
type Result struct {
	Variants  []Variant `json:"variants"`
	AllImages []string  `json:"allImages"`
}

// Options 解析选项
type Options struct {
	Normalize imageurl.Options
	// 合并顺序，为空使用 DefaultPolicy
	Policy []Step
}

// DefaultOptions 默认解析选项
func DefaultOptions() Options {
	return Options{Normalize: imageurl.DefaultOptions(), Policy: DefaultPolicy}
}

// Resolver 变体解析器
type Resolver struct {
	opts   Options
	logger *zap.Logger
}

// New 创建解析器
func New(opts Options, logger *zap.Logger) *Resolver {
	if len(opts.Policy) == 0 {
		opts.Policy = DefaultPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{opts: opts, logger: logger}
}

// Resolve 合并商品记录与候选图片
//
// 有商品记录时按记录中的变体顺序输出；否则按 HTML 标记的发现顺序合成变体。
// 某变体合并结果为空时，回退到共享图片，再回退到全部图片。
// 最终没有任何变体但存在图片时，合成一个 "all" 变体。
func (r *Resolver) Resolve(pageURL string, record *product.Record, candidates []extractor.Candidate) *Result {
	norm := imageurl.ForPage(pageURL, r.opts.Normalize)
	res := &Result{AllImages: r.allImages(norm, record, candidates)}
	shared := r.sharedImages(norm, record)

	contexts := r.variantContexts(record, candidates)
	for _, vc := range contexts {
		set := newOrderedSet()
		for _, step := range r.opts.Policy {
			for _, raw := range step.Fn(vc) {
				if u, ok := norm.NormalizeImage(raw); ok {
					set.add(u)
				}
			}
		}

		v := Variant{ID: string(vc.id), Name: vc.name, Images: set.items()}
		if len(v.Images) == 0 {
			v.Fallback = true
			if len(shared) > 0 {
				v.Images = append([]string(nil), shared...)
			} else {
				v.Images = append([]string(nil), res.AllImages...)
			}
			r.logger.Debug("variant resolved by fallback",
				zap.String("variant", v.Name),
				zap.Int("shared", len(shared)),
			)
		}
		res.Variants = append(res.Variants, v)
	}

	if len(res.Variants) == 0 && len(res.AllImages) > 0 {
		res.Variants = []Variant{{
			ID:       AllID,
			Name:     AllVariantName,
			Images:   append([]string(nil), res.AllImages...),
			Fallback: true,
		}}
	}
	return res
}

// variantContexts 确定变体列表
func (r *Resolver) variantContexts(record *product.Record, candidates []extractor.Candidate) []*variantContext {
	var out []*variantContext
	if record != nil {
		for i := range record.Variants {
			v := &record.Variants[i]
			out = append(out, &variantContext{
				record:     record,
				variant:    v,
				id:         product.ID(v.Key(i)),
				name:       v.DisplayName(i),
				candidates: candidates,
			})
		}
		return out
	}

	seen := make(map[string]bool)
	for _, c := range candidates {
		if !c.Scoped() || seen[c.Variant] {
			continue
		}
		seen[c.Variant] = true
		out = append(out, &variantContext{
			id:         product.ID(strconv.Itoa(len(out))),
			name:       c.Variant,
			candidates: candidates,
		})
	}
	return out
}

// allImages 全部图片：商品图片 → 变体范围候选 → 全页扫描候选
func (r *Resolver) allImages(norm *imageurl.Normalizer, record *product.Record, candidates []extractor.Candidate) []string {
	set := newOrderedSet()
	if record != nil {
		for _, img := range record.Images {
			if u, ok := norm.NormalizeImage(img.Src); ok {
				set.add(u)
			}
		}
		for _, v := range record.Variants {
			if u, ok := norm.NormalizeImage(v.FeaturedImage); ok {
				set.add(u)
			}
		}
	}
	for _, c := range candidates {
		if !c.Scoped() {
			continue
		}
		if u, ok := norm.NormalizeImage(c.URL); ok {
			set.add(u)
		}
	}
	for _, c := range candidates {
		if c.Scoped() {
			continue
		}
		if u, ok := norm.NormalizePageImage(c.URL); ok {
			set.add(u)
		}
	}
	return set.items()
}

func (r *Resolver) sharedImages(norm *imageurl.Normalizer, record *product.Record) []string {
	if record == nil {
		return nil
	}
	set := newOrderedSet()
	for _, img := range record.SharedImages() {
		if u, ok := norm.NormalizeImage(img.Src); ok {
			set.add(u)
		}
	}
	return set.items()
}

// orderedSet 保持首次插入顺序的字符串集合
type orderedSet struct {
	seen  map[string]bool
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.order = append(s.order, v)
}

func (s *orderedSet) items() []string {
	return s.order
}
