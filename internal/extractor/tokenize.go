package extractor

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// EventKind 标签事件类型
type EventKind int

const (
	// StartTag 开始标签（含自闭合）
	StartTag EventKind = iota
	// EndTag 结束标签
	EndTag
)

// Attr 属性及其在源文本中的字节偏移
type Attr struct {
	Key    string
	Val    string
	Offset int
}

// Event 标签事件
//
// Offset/End 是该标签在原始 HTML 中的字节区间，
// 变体窗口（前 500 / 后 2000 等）都按这些偏移计算。
type Event struct {
	Kind        EventKind
	Tag         string
	Offset      int
	End         int
	SelfClosing bool
	Attrs       []Attr
}

// Tokenize 把 HTML 转换为带偏移的标签事件流
//
// 使用 x/net/html 的宽松分词器：引号、单引号、无引号属性值都能识别，
// 实体会被解码。文本、注释、doctype 不产生事件，但计入偏移。
func Tokenize(src string) []Event {
	z := html.NewTokenizer(strings.NewReader(src))
	var events []Event
	offset := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return events
		}

		raw := string(z.Raw())
		start := offset
		offset += len(raw)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			events = append(events, Event{
				Kind:        StartTag,
				Tag:         tok.Data,
				Offset:      start,
				End:         offset,
				SelfClosing: tt == html.SelfClosingTagToken,
				Attrs:       locateAttrs(raw, start, len(tok.Data)+1, tok.Attr),
			})
		case html.EndTagToken:
			name, _ := z.TagName()
			events = append(events, Event{
				Kind:   EndTag,
				Tag:    string(name),
				Offset: start,
				End:    offset,
			})
		}
	}
}

// locateAttrs 在原始标签文本中依次定位属性键，得到属性的绝对偏移
func locateAttrs(raw string, base, cursor int, attrs []html.Attribute) []Attr {
	if len(attrs) == 0 {
		return nil
	}
	lower := asciiLower(raw)
	if cursor > len(lower) {
		cursor = len(lower)
	}

	out := make([]Attr, 0, len(attrs))
	for _, a := range attrs {
		pos := base
		if i := strings.Index(lower[cursor:], a.Key); i >= 0 {
			at := cursor + i
			pos = base + at
			cursor = at + len(a.Key)
			// 跳过属性值，避免值中出现的下一个键名造成误定位
			if a.Val != "" {
				if j := strings.Index(raw[cursor:], a.Val); j >= 0 && j <= 8 {
					cursor += j + len(a.Val)
				}
			}
		}
		out = append(out, Attr{Key: a.Key, Val: a.Val, Offset: pos})
	}
	return out
}

// asciiLower 只转换 ASCII 字母，保证字节长度不变
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Marker 变体标记出现位置
type Marker struct {
	Name   string
	Offset int
	// 标记所在事件的下标
	Event int
}

// Document 已分词的页面
type Document struct {
	Source string
	Events []Event
}

// NewDocument 分词并构建文档
func NewDocument(src string) *Document {
	return &Document{Source: src, Events: Tokenize(src)}
}

// Markers 返回全部标记出现（按文档顺序），空名称忽略
func (d *Document) Markers(attr string) []Marker {
	var out []Marker
	for i, ev := range d.Events {
		if ev.Kind != StartTag {
			continue
		}
		for _, a := range ev.Attrs {
			if a.Key != attr {
				continue
			}
			if name := trimName(a.Val); name != "" {
				out = append(out, Marker{Name: name, Offset: a.Offset, Event: i})
			}
		}
	}
	return out
}

// FirstMarkers 每个变体名只保留第一次出现
func (d *Document) FirstMarkers(attr string) []Marker {
	seen := make(map[string]bool)
	var out []Marker
	for _, m := range d.Markers(attr) {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out
}

// firstEventEndingAfter 第一个结束偏移大于 pos 的事件下标
func (d *Document) firstEventEndingAfter(pos int) int {
	return sort.Search(len(d.Events), func(i int) bool {
		return d.Events[i].End > pos
	})
}

func trimName(s string) string {
	return strings.TrimSpace(s)
}
