package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSelection 选择的 id 不存在
	ErrUnknownSelection = errors.New("unknown selection")
	// ErrEmptySelection 选择的变体没有图片
	ErrEmptySelection = errors.New("selection has no images")
)

// AllLabel 聚合选项的显示文本
const AllLabel = "All Variants (All Images)"

// Selection 调用方可选择的一项
type Selection struct {
	ID     string   `json:"id"`
	Label  string   `json:"label"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

// Selections 选择列表：第一项始终是全部图片，其后每个变体一项
//
// 合成的 all 变体与第一项重复，不再单独列出。
func Selections(res *Result) []Selection {
	out := []Selection{{
		ID:     AllID,
		Label:  AllLabel,
		Name:   AllVariantName,
		Images: res.AllImages,
	}}
	for _, v := range res.Variants {
		if v.ID == AllID {
			continue
		}
		out = append(out, Selection{
			ID:     v.ID,
			Label:  fmt.Sprintf("%s (%d images)", v.Name, len(v.Images)),
			Name:   v.Name,
			Images: v.Images,
		})
	}
	return out
}

// Select 按 id 取图片列表
//
// 空 id 与 "all" 都表示全部图片。变体 id 查找失败时再按名称查找。
func Select(res *Result, id string) ([]string, error) {
	if id == "" || id == AllID {
		if len(res.AllImages) == 0 {
			return nil, ErrEmptySelection
		}
		return res.AllImages, nil
	}

	var match *Variant
	for i := range res.Variants {
		if res.Variants[i].ID == id {
			match = &res.Variants[i]
			break
		}
	}
	if match == nil {
		for i := range res.Variants {
			if res.Variants[i].Name == id {
				match = &res.Variants[i]
				break
			}
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelection, id)
	}
	if len(match.Images) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySelection, match.Name)
	}
	return match.Images, nil
}
