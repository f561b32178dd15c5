package extractor

// ScanProximity 标记邻近窗口扫描
//
// 对每个变体名的第一次出现，收集 [offset-WindowBefore, offset+WindowAfter)
// 内所有图片属性。窗口可能覆盖相邻变体的图片，这是该启发式的已知代价。
func ScanProximity(doc *Document, opts Options) []Candidate {
	opts = opts.prepared()
	var out []Candidate
	for _, m := range doc.FirstMarkers(opts.MarkerAttribute) {
		start := m.Offset - opts.WindowBefore
		end := m.Offset + opts.WindowAfter

		for i := doc.firstEventEndingAfter(start); i < len(doc.Events); i++ {
			ev := doc.Events[i]
			if ev.Offset >= end {
				break
			}
			if ev.Kind != StartTag {
				continue
			}
			for _, a := range ev.Attrs {
				if a.Offset < start || a.Offset >= end {
					continue
				}
				for _, ref := range opts.scopedImageValues(a) {
					out = append(out, Candidate{Variant: m.Name, URL: ref, Source: SourceProximity})
				}
			}
		}
	}
	return out
}

// ScanElementContent 标记元素内容扫描
//
// 从带标记的开始标签之后，到第一个结束标签为止（跨度不超过 ElementSpan）；
// 跨度内找不到结束标签则该元素不产出任何候选。
func ScanElementContent(doc *Document, opts Options) []Candidate {
	opts = opts.prepared()
	var out []Candidate
	for _, m := range doc.Markers(opts.MarkerAttribute) {
		open := doc.Events[m.Event]
		limit := open.End + opts.ElementSpan

		var found []Candidate
		closed := false
		for i := m.Event + 1; i < len(doc.Events); i++ {
			ev := doc.Events[i]
			if ev.Offset > limit {
				break
			}
			if ev.Kind == EndTag {
				closed = true
				break
			}
			for _, a := range ev.Attrs {
				for _, ref := range opts.scopedImageValues(a) {
					found = append(found, Candidate{Variant: m.Name, URL: ref, Source: SourceElement})
				}
			}
		}
		if closed {
			out = append(out, found...)
		}
	}
	return out
}

// ScanForward 标记向前扫描
//
// 从变体名第一次出现处向后扫描 ForwardSpan 字节，遇到不同名的标记立即停止，
// 每个变体最多 ForwardLimit 张。
func ScanForward(doc *Document, opts Options) []Candidate {
	opts = opts.prepared()
	var out []Candidate
	for _, m := range doc.FirstMarkers(opts.MarkerAttribute) {
		end := m.Offset + opts.ForwardSpan
		count := 0

	scan:
		for i := m.Event; i < len(doc.Events); i++ {
			ev := doc.Events[i]
			if ev.Offset >= end {
				break
			}
			if ev.Kind != StartTag {
				continue
			}
			for _, a := range ev.Attrs {
				if a.Offset < m.Offset || a.Offset >= end {
					continue
				}
				if a.Key == opts.MarkerAttribute {
					if name := trimName(a.Val); name != "" && name != m.Name {
						break scan
					}
					continue
				}
				for _, ref := range opts.scopedImageValues(a) {
					if count >= opts.ForwardLimit {
						break scan
					}
					out = append(out, Candidate{Variant: m.Name, URL: ref, Source: SourceForward})
					count++
				}
			}
		}
	}
	return out
}
