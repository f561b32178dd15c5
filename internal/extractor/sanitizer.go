package extractor

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer 变体显示名净化器
//
// 变体名来自页面属性值，输出到 JSON/终端前去除其中的标签。
// 只用于展示层，解析阶段的名称匹配始终使用原始值。
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer 创建净化器
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize 去除标签并还原实体，返回纯文本
func (s *Sanitizer) Sanitize(name string) string {
	clean := html.UnescapeString(s.policy.Sanitize(name))
	return strings.Join(strings.Fields(clean), " ")
}

// 默认净化器实例
var defaultSanitizer = NewSanitizer()

// SanitizeName 使用默认净化器
func SanitizeName(name string) string {
	return defaultSanitizer.Sanitize(name)
}
