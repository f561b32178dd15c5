package resolver

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/newsflow/variantpad/internal/imageurl"
)

// FilenameMatcher 文件名分隔符启发式
//
// 变体名（小写）两侧必须是分隔符：前面 - 或 _，后面 - _ 或 .，
// 即 -jet-、-jet_、_jet_、_jet-、-jet.、_jet. 这六种形式。
type FilenameMatcher struct {
	pattern *regexp2.Regexp
}

// NewFilenameMatcher 为变体名创建匹配器，名称为空返回 nil
func NewFilenameMatcher(name string) *FilenameMatcher {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	re, err := regexp2.Compile(`(?<=[-_])`+regexp2.Escape(name)+`(?=[-_.])`, regexp2.None)
	if err != nil {
		return nil
	}
	return &FilenameMatcher{pattern: re}
}

// Match 判断图片地址的文件名是否包含该变体名
func (m *FilenameMatcher) Match(src string) bool {
	if m == nil {
		return false
	}
	ok, err := m.pattern.MatchString(strings.ToLower(imageurl.Filename(src)))
	return err == nil && ok
}
