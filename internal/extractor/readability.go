package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// Metadata 页面元信息
type Metadata struct {
	Title    string `json:"title,omitempty"`
	SiteName string `json:"siteName,omitempty"`
}

// PageMetadata 提取页面标题与站点名
//
// 优先使用 go-readability，商品页正文过短时 readability 可能失败，
// 此时回退到 <title> 与 og:site_name。
func PageMetadata(html, pageURL string) Metadata {
	var meta Metadata

	if parsedURL, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(html), parsedURL); err == nil {
			meta.Title = strings.TrimSpace(article.Title)
			meta.SiteName = strings.TrimSpace(article.SiteName)
		}
	}

	if meta.Title != "" && meta.SiteName != "" {
		return meta
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return meta
	}
	if meta.Title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			meta.Title = strings.TrimSpace(og)
		}
	}
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if meta.SiteName == "" {
		if site, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
			meta.SiteName = strings.TrimSpace(site)
		}
	}
	return meta
}
